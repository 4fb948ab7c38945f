package cli

import (
	"fmt"
	"io"

	"github.com/grovetools/storefront/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to out.
func NewErrorHandler(out io.Writer, verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     out,
	}
}

// Handle prints a user-friendly message for err and returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}

	var sfErr *errors.StorefrontError
	details := map[string]interface{}{}
	if e, ok := err.(*errors.StorefrontError); ok {
		sfErr = e
		details = e.Details
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "Configuration not found at %v.\n", details["path"])

	case errors.ErrCodeConfigInvalid:
		fmt.Fprintf(h.Out, "Configuration is invalid: %v\n", err)

	case errors.ErrCodeInvalidStoreName:
		fmt.Fprintf(h.Out, "Store name %q is not allowed.\n", details["name"])
		fmt.Fprintln(h.Out, "Use only lowercase letters, numbers, and hyphens.")

	case errors.ErrCodeCreateFailed, errors.ErrCodeRefreshFailed, errors.ErrCodeStreamFailed:
		fmt.Fprintf(h.Out, "Error: %v\n", err)
		if status, ok := details["status"].(int); ok && status == 401 {
			fmt.Fprintln(h.Out, "The session was rejected. Set session.token or STOREFRONT_SESSION_TOKEN.")
		}

	default:
		fmt.Fprintf(h.Out, "Error: %v\n", err)
	}

	if h.Verbose && sfErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", sfErr.ToJSON())
	}
	return err
}
