// Package storeapi provides the client for the external store orchestration service.
// Stores are listed and created over HTTP; provisioning logs arrive over a
// per-store WebSocket that the client only ever reads from.
package storeapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/grovetools/storefront/pkg/models"
)

// Client defines the operations the storefront core needs from the orchestration service.
type Client interface {
	// ListStores returns every store visible to the current session.
	ListStores(ctx context.Context) ([]models.Store, error)

	// CreateStore requests provisioning of a new store and returns the
	// service's record for it, normally in PROVISIONING status.
	CreateStore(ctx context.Context, name string) (models.Store, error)

	// OpenStream connects to the provisioning log stream of a store.
	OpenStream(ctx context.Context, storeID string) (Stream, error)

	// Close cleans up any resources used by the client.
	Close() error
}

// Stream is a receive-only, ordered channel of text frames.
type Stream interface {
	// Next blocks until the next frame arrives. It returns io.EOF when the
	// server closes the stream normally.
	Next() (string, error)

	// Close releases the connection. It is safe to call more than once and
	// concurrently with Next.
	Close() error
}

// DefaultCookieName is the session cookie the orchestration service authenticates with.
const DefaultCookieName = "better-auth.session_token"

// Auth carries the ambient session credential attached to every request.
type Auth struct {
	CookieName string
	Token      string
}

// apply attaches the session cookie to a request header.
func (a Auth) apply(h http.Header) {
	if a.Token == "" {
		return
	}
	name := a.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	cookie := &http.Cookie{Name: name, Value: a.Token}
	h.Add("Cookie", cookie.String())
}

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("orchestration service returned status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("orchestration service returned status %d", e.Code)
}

// StatusCode returns the HTTP status code.
func (e *StatusError) StatusCode() int {
	return e.Code
}

// Unauthorized reports whether the session credential was rejected.
func (e *StatusError) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}
