package cli

import (
	"errors"
	"fmt"

	"github.com/andertben/skillspot-chat/internal/auth"
	"github.com/andertben/skillspot-chat/internal/chatsync"
	"github.com/andertben/skillspot-chat/internal/transport"
)

// describeError turns a backend failure into a message with a next step.
func describeError(op string, err error) error {
	switch {
	case errors.Is(err, auth.ErrNoToken):
		return fmt.Errorf("%s: %s (set auth.token, auth.token_file or auth.oauth.* in the config)", op, chatsync.MessageAuthError)
	case transport.IsAuth(err):
		return fmt.Errorf("%s: %s: %w", op, chatsync.MessageAuthError, err)
	case transport.CategoryOf(err) == transport.CategoryNetwork:
		return fmt.Errorf("%s: backend unreachable (check api.base_url): %w", op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
