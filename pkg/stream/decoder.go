// Package stream classifies the text frames pushed on a store's provisioning
// log channel. One channel carries three kinds of payload: control sentinels,
// a one-shot JSON credential payload, and free-form log lines.
package stream

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/grovetools/storefront/pkg/models"
)

// Reserved sentinel frames.
const (
	SentinelComplete = "PROVISIONING_COMPLETE"
	SentinelFailed   = "PROVISIONING_FAILED"
)

// Kind discriminates a decoded Event.
type Kind int

const (
	KindLogLine Kind = iota
	KindComplete
	KindFailed
	KindCredentials
)

func (k Kind) String() string {
	switch k {
	case KindLogLine:
		return "log_line"
	case KindComplete:
		return "complete"
	case KindFailed:
		return "failed"
	case KindCredentials:
		return "credentials"
	}
	return "unknown"
}

// Event is the result of decoding one frame. Line is set for KindLogLine,
// Credentials for KindCredentials.
type Event struct {
	Kind        Kind
	Line        string
	Credentials models.Credentials
}

// Decode classifies a single frame. It never fails: anything that is not a
// sentinel or a well-formed credential payload is a log line.
func Decode(line string) Event {
	switch line {
	case SentinelComplete:
		return Event{Kind: KindComplete}
	case SentinelFailed:
		return Event{Kind: KindFailed}
	}

	if creds, ok := decodeCredentials(line); ok {
		return Event{Kind: KindCredentials, Credentials: creds}
	}
	return Event{Kind: KindLogLine, Line: line}
}

// decodeCredentials accepts a JSON object whose url and admin_user keys hold
// truthy values. Field types are not checked: non-string values keep their
// raw JSON text.
func decodeCredentials(line string) (models.Credentials, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return models.Credentials{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return models.Credentials{}, false
	}
	url, ok := fieldText(fields["url"])
	if !ok {
		return models.Credentials{}, false
	}
	user, ok := fieldText(fields["admin_user"])
	if !ok {
		return models.Credentials{}, false
	}
	password, _ := fieldText(fields["admin_password"])
	return models.Credentials{URL: url, AdminUser: user, AdminPassword: password}, true
}

// fieldText renders a JSON value as text. It reports false for missing,
// null, false, zero and empty-string values.
func fieldText(raw json.RawMessage) (string, bool) {
	text := strings.TrimSpace(string(raw))
	switch text {
	case "", "null", "false":
		return "", false
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return "", false
		}
		return s, s != ""
	}
	if n, err := strconv.ParseFloat(text, 64); err == nil && n == 0 {
		return "", false
	}
	return text, true
}
