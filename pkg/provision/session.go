// Package provision implements the state machine behind a single store's
// live provisioning session.
package provision

import (
	"sync"

	"github.com/grovetools/storefront/pkg/models"
	"github.com/grovetools/storefront/pkg/stream"
)

// State is the connection state of a provisioning session.
type State string

const (
	StateConnecting   State = "CONNECTING"
	StateProvisioning State = "PROVISIONING"
	StateComplete     State = "COMPLETE"
	StateFailed       State = "FAILED"
)

// Terminal reports whether no further transitions can leave s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Synthetic lines appended by the session itself.
const (
	LineConnected = "Connected to logging service..."
	LineTransport = "Error connecting to log service."
	LineClosed    = "Connection closed."
)

// Option configures a Session.
type Option func(*Session)

// WithCredentialsHandler registers a callback invoked once when the
// credential payload is received.
func WithCredentialsHandler(fn func(models.Credentials)) Option {
	return func(s *Session) {
		s.onCredentials = fn
	}
}

// WithStateHandler registers a callback invoked on every state transition.
func WithStateHandler(fn func(from, to State)) Option {
	return func(s *Session) {
		s.onState = fn
	}
}

// WithLineHandler registers a callback invoked for every appended line.
func WithLineHandler(fn func(line string)) Option {
	return func(s *Session) {
		s.onLine = fn
	}
}

// Session is one store's provisioning session. A single goroutine drives the
// transition methods; accessors are safe to call from any goroutine.
// Callbacks run on the driving goroutine after the session lock is released.
type Session struct {
	storeID   string
	storeName string

	mu           sync.RWMutex
	state        State
	lines        []string
	credentials  *models.Credentials
	disconnected bool

	onCredentials func(models.Credentials)
	onState       func(from, to State)
	onLine        func(line string)
}

// New creates a session in the CONNECTING state.
func New(storeID, storeName string, opts ...Option) *Session {
	s := &Session{
		storeID:   storeID,
		storeName: storeName,
		state:     StateConnecting,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoreID returns the id of the store being provisioned.
func (s *Session) StoreID() string { return s.storeID }

// StoreName returns the display name of the store being provisioned.
func (s *Session) StoreName() string { return s.storeName }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Terminal reports whether the session has reached COMPLETE or FAILED.
func (s *Session) Terminal() bool {
	return s.State().Terminal()
}

// Lines returns a copy of the accumulated log lines in arrival order.
func (s *Session) Lines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// Credentials returns the credential payload, if one has arrived.
func (s *Session) Credentials() (models.Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.credentials == nil {
		return models.Credentials{}, false
	}
	return *s.credentials, true
}

// Disconnected reports whether the channel closed before any terminal event.
func (s *Session) Disconnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disconnected
}

// Connected records successful channel establishment.
func (s *Session) Connected() {
	var n notifications
	s.mu.Lock()
	s.connectLocked(&n)
	s.mu.Unlock()
	n.fire(s)
}

// Handle applies one decoded frame.
func (s *Session) Handle(ev stream.Event) {
	var n notifications
	s.mu.Lock()

	if ev.Kind == stream.KindCredentials {
		// Credentials may trail the completion sentinel.
		if s.state != StateFailed && s.credentials == nil {
			s.connectLocked(&n)
			creds := ev.Credentials
			s.credentials = &creds
			n.credentials = &creds
		}
		s.mu.Unlock()
		n.fire(s)
		return
	}

	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	// A frame proves the channel is open.
	s.connectLocked(&n)

	switch ev.Kind {
	case stream.KindLogLine:
		s.appendLocked(&n, ev.Line)
	case stream.KindComplete:
		s.transitionLocked(&n, StateComplete)
	case stream.KindFailed:
		s.transitionLocked(&n, StateFailed)
	}

	s.mu.Unlock()
	n.fire(s)
}

// TransportError records a transport fault. It moves a non-terminal
// session to FAILED and appends one diagnostic line.
func (s *Session) TransportError(err error) {
	var n notifications
	s.mu.Lock()
	if !s.state.Terminal() {
		s.appendLocked(&n, LineTransport)
		s.transitionLocked(&n, StateFailed)
	}
	s.mu.Unlock()
	n.fire(s)
}

// Closed records that the channel closed. A session that never saw a
// terminal event stays in its current state and is marked disconnected.
func (s *Session) Closed() {
	var n notifications
	s.mu.Lock()
	if !s.state.Terminal() && !s.disconnected {
		s.disconnected = true
		s.appendLocked(&n, LineClosed)
	}
	s.mu.Unlock()
	n.fire(s)
}

func (s *Session) connectLocked(n *notifications) {
	if s.state != StateConnecting {
		return
	}
	s.transitionLocked(n, StateProvisioning)
	s.appendLocked(n, LineConnected)
}

func (s *Session) appendLocked(n *notifications, line string) {
	s.lines = append(s.lines, line)
	n.lines = append(n.lines, line)
}

func (s *Session) transitionLocked(n *notifications, to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	n.transitions = append(n.transitions, [2]State{from, to})
}

// notifications collects callback work so it can run outside the lock.
type notifications struct {
	transitions [][2]State
	lines       []string
	credentials *models.Credentials
}

func (n *notifications) fire(s *Session) {
	for _, t := range n.transitions {
		if s.onState != nil {
			s.onState(t[0], t[1])
		}
	}
	for _, line := range n.lines {
		if s.onLine != nil {
			s.onLine(line)
		}
	}
	if n.credentials != nil && s.onCredentials != nil {
		s.onCredentials(*n.credentials)
	}
}
