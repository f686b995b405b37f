package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the longest message text, in characters.
const MaxMessageLength = 2000

var (
	ErrEmptyMessageText = errors.New("message text is required")
	ErrMessageTooLong   = fmt.Errorf("message text exceeds %d characters", MaxMessageLength)
	ErrEmptyServiceID   = errors.New("service id is required")
)

// FieldError ties a validation failure to the JSON field that caused it.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &FieldError{Field: field, Err: err}
}

// Validate checks a send request after trimming. Length counts runes.
func (r SendMessageRequest) Validate() error {
	text := strings.TrimSpace(r.Text)
	switch {
	case text == "":
		return invalid("text", ErrEmptyMessageText)
	case utf8.RuneCountInString(text) > MaxMessageLength:
		return invalid("text", ErrMessageTooLong)
	}
	return nil
}

func (r CreateThreadRequest) Validate() error {
	if strings.TrimSpace(r.ServiceID) == "" {
		return invalid("dienstleistungId", ErrEmptyServiceID)
	}
	return nil
}
