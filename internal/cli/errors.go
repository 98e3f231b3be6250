package cli

import (
	"errors"
	"fmt"

	"github.com/lherron/ttags/internal/auth"
	"github.com/lherron/ttags/internal/config"
	"github.com/lherron/ttags/internal/merge"
	"github.com/lherron/ttags/internal/session"
)

// ErrorMessage turns an error into the text shown to the operator.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, config.ErrConfigurationMissing):
		return fmt.Sprintf("%v. Place client_credentials.json there, or set TTAGS_CLIENT_KEY and TTAGS_CLIENT_SECRET.", err)
	case errors.Is(err, session.ErrAuthenticationRequired):
		return "Sorry, you are not logged in. Log in with 'login'."
	case errors.Is(err, auth.ErrAuthDenied):
		return fmt.Sprintf("Login failed: %v", err)
	case errors.Is(err, merge.ErrUnknownLabel):
		return fmt.Sprintf("%v. Run 'reinit' to fetch fresh data.", err)
	default:
		return err.Error()
	}
}
