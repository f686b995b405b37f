package logging

import "regexp"

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

type redaction struct {
	pattern *regexp.Regexp
	// replace may reference groups of pattern.
	replace string
}

// Applied in order: a bearer JWT is caught by the first rule.
var redactions = []redaction{
	{
		pattern: regexp.MustCompile(`(?i)\b(bearer)\s+[a-z0-9._~+/=-]{8,}`),
		replace: "$1 " + RedactedValue,
	},
	{
		pattern: regexp.MustCompile(`eyJ[a-zA-Z0-9_-]{8,}\.[a-zA-Z0-9_-]{8,}\.[a-zA-Z0-9_-]+`),
		replace: RedactedValue,
	},
	{
		pattern: regexp.MustCompile(`(?i)\b(access_token|refresh_token|id_token|client_secret|token)=[^&\s"']+`),
		replace: "$1=" + RedactedValue,
	},
}

// Redact masks bearer tokens, JWTs and token-like form values in s. The
// surrounding text, including the scheme or key name, is kept.
func Redact(s string) string {
	for _, r := range redactions {
		s = r.pattern.ReplaceAllString(s, r.replace)
	}
	return s
}
