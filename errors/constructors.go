package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *StorefrontError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *StorefrontError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// InvalidStoreName creates a validation error for a rejected store name.
func InvalidStoreName(name, reason string) *StorefrontError {
	return New(ErrCodeInvalidStoreName, fmt.Sprintf("invalid store name %q: %s", name, reason)).
		WithDetail("name", name)
}

// CreateFailed wraps a failed creation request.
func CreateFailed(name string, err error) *StorefrontError {
	sfErr := Wrap(err, ErrCodeCreateFailed, fmt.Sprintf("failed to create store '%s'", name)).
		WithDetail("name", name)
	return withStatus(sfErr, err)
}

// RefreshFailed wraps a failed directory refresh.
func RefreshFailed(err error) *StorefrontError {
	return withStatus(Wrap(err, ErrCodeRefreshFailed, "failed to refresh store directory"), err)
}

// StreamFailed wraps a log stream dial or transport failure.
func StreamFailed(storeID string, err error) *StorefrontError {
	sfErr := Wrap(err, ErrCodeStreamFailed, fmt.Sprintf("log stream for store '%s' failed", storeID)).
		WithDetail("storeId", storeID)
	return withStatus(sfErr, err)
}

// statusCoder is implemented by transport errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// withStatus records the HTTP status of the cause, if it has one.
func withStatus(sfErr *StorefrontError, cause error) *StorefrontError {
	for err := cause; err != nil; {
		if sc, ok := err.(statusCoder); ok {
			return sfErr.WithDetail("status", sc.StatusCode())
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return sfErr
}
