package cli

import (
	"fmt"
	"io"
)

// HintContext describes a finished command for next-step hints.
type HintContext struct {
	// Action is the command that ran ("create", "send", "open").
	Action string

	// ThreadID is the thread involved, if any.
	ThreadID string
}

// PrintNextSteps prints follow-up commands. It prints nothing for JSON output
// or with --quiet.
func PrintNextSteps(out io.Writer, ctx HintContext) {
	if IsJSONOutput() || IsJSONLOutput() || quiet {
		return
	}
	hints := generateHints(ctx)
	if len(hints) == 0 {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	for _, hint := range hints {
		fmt.Fprintf(out, "  %s\n", hint)
	}
}

func generateHints(ctx HintContext) []string {
	if ctx.ThreadID == "" {
		return nil
	}
	id := ctx.ThreadID
	switch ctx.Action {
	case "create":
		return []string{
			fmt.Sprintf("skillchat send %s \"Hallo!\"    # Write the first message", id),
			fmt.Sprintf("skillchat open %s              # Follow the conversation", id),
		}
	case "send":
		return []string{
			fmt.Sprintf("skillchat open %s              # Follow the conversation", id),
			"skillchat threads                   # List all conversations",
		}
	default:
		return nil
	}
}
