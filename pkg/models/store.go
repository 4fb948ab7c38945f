package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// StoreStatus is the provisioning status the orchestration service reports for a store.
type StoreStatus string

const (
	StatusProvisioning StoreStatus = "PROVISIONING"
	StatusReady        StoreStatus = "READY"
	StatusFailed       StoreStatus = "FAILED"
)

// Valid reports whether s is one of the known statuses.
func (s StoreStatus) Valid() bool {
	switch s {
	case StatusProvisioning, StatusReady, StatusFailed:
		return true
	}
	return false
}

// Store is a single e-commerce store owned by the current session.
// URL and the admin credentials are only meaningful once Status is READY.
// AdminPassword is held in memory only and must never be logged or persisted.
type Store struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Status        StoreStatus `json:"status"`
	URL           string      `json:"url,omitempty"`
	AdminUser     string      `json:"admin_user,omitempty"`
	AdminPassword string      `json:"admin_password,omitempty"`
	CreatedAt     Timestamp   `json:"created_at,omitempty"`
}

// Normalize enforces the READY-only invariant on the access fields and
// maps unknown statuses to PROVISIONING.
func (s Store) Normalize() Store {
	if !s.Status.Valid() {
		s.Status = StatusProvisioning
	}
	if s.Status != StatusReady {
		s.URL = ""
		s.AdminUser = ""
		s.AdminPassword = ""
	}
	return s
}

// Redacted returns a copy of the store that is safe to log or print.
func (s Store) Redacted() Store {
	if s.AdminPassword != "" {
		s.AdminPassword = redactedValue
	}
	return s
}

// Credentials is the one-shot access payload delivered on a provisioning log stream.
type Credentials struct {
	URL           string `json:"url"`
	AdminUser     string `json:"admin_user"`
	AdminPassword string `json:"admin_password,omitempty"`
}

const redactedValue = "********"

// String renders the credentials with the password redacted.
func (c Credentials) String() string {
	pw := ""
	if c.AdminPassword != "" {
		pw = redactedValue
	}
	return fmt.Sprintf("url=%s admin_user=%s admin_password=%s", c.URL, c.AdminUser, pw)
}

var storeNamePattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidateStoreName checks a store name against the allowed character set.
// Names are lowercase alphanumerics and hyphens, and may not be empty.
func ValidateStoreName(name string) error {
	if name == "" {
		return fmt.Errorf("store name cannot be empty")
	}
	if !storeNamePattern.MatchString(name) {
		return fmt.Errorf("store name must contain only lowercase letters, numbers, and hyphens")
	}
	return nil
}

// SanitizeStoreName lowercases input and strips every character the
// orchestration service would reject. The result may be empty.
func SanitizeStoreName(input string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(input) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Timestamp is a backend-assigned time that tolerates timestamps without a zone.
// The orchestration service emits naive UTC times such as "2025-01-02T15:04:05.999999".
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON parses RFC3339 and naive UTC timestamps. Null and empty strings leave the zero value.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// MarshalJSON renders the time as RFC3339, or null when unset.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}
