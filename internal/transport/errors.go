package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// Category classifies a transport failure for the view layer.
type Category string

const (
	// CategoryAuth means the token is missing or the backend answered 401/403.
	CategoryAuth Category = "auth"
	// CategoryLoad is a non-auth failure of a read operation.
	CategoryLoad Category = "load"
	// CategorySend is a non-auth failure of a send or create operation.
	CategorySend Category = "send"
	// CategoryNetwork means no HTTP response was received.
	CategoryNetwork Category = "network"
)

// Error is returned by every Client operation.
type Error struct {
	Category Category
	Op       string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Category, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Category, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx response body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("chat api error: %s (%d): %s", e.Code, e.Status, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("chat api error (%d): %s", e.Status, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("chat api error: %s (%d)", e.Code, e.Status)
	}
	return fmt.Sprintf("chat api error (%d)", e.Status)
}

type apiErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CategoryOf returns the category of err, or "" when err is not a transport
// error.
func CategoryOf(err error) Category {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Category
	}
	return ""
}

// IsAuth reports whether err is an authentication or authorization failure.
func IsAuth(err error) bool {
	return CategoryOf(err) == CategoryAuth
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Status
	}
	return 0
}

func categorize(status int, fallback Category) Category {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return CategoryAuth
	}
	return fallback
}
