// Package viewer owns the single live provisioning session: it dials the log
// stream, pumps frames through the decoder into the session state machine,
// and refreshes the store directory when a job ends.
package viewer

import (
	"context"
	stderrors "errors"
	"io"
	"sync"
	"time"

	"github.com/grovetools/storefront/errors"
	"github.com/grovetools/storefront/logging"
	"github.com/grovetools/storefront/pkg/directory"
	"github.com/grovetools/storefront/pkg/metrics"
	"github.com/grovetools/storefront/pkg/models"
	"github.com/grovetools/storefront/pkg/provision"
	"github.com/grovetools/storefront/pkg/storeapi"
	"github.com/grovetools/storefront/pkg/stream"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultCredentialGrace is how long the stream stays open after the
	// completion sentinel waiting for a trailing credential payload.
	DefaultCredentialGrace = 2 * time.Second

	// DefaultRefreshTimeout bounds the directory refresh issued when a job ends.
	DefaultRefreshTimeout = 30 * time.Second
)

// Session results recorded in metrics.SessionsTotal.
const (
	ResultComplete     = "complete"
	ResultFailed       = "failed"
	ResultDisconnected = "disconnected"
	ResultCancelled    = "cancelled"
)

// Listener is notified whenever the active session changes.
// Calls arrive on the session's pump goroutine.
type Listener interface {
	SessionUpdated(s *provision.Session)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(s *provision.Session)

// SessionUpdated implements Listener.
func (f ListenerFunc) SessionUpdated(s *provision.Session) { f(s) }

// Option configures a Viewer.
type Option func(*Viewer)

// WithCredentialGrace overrides DefaultCredentialGrace.
func WithCredentialGrace(d time.Duration) Option {
	return func(v *Viewer) {
		if d >= 0 {
			v.grace = d
		}
	}
}

// WithRefreshTimeout overrides DefaultRefreshTimeout.
func WithRefreshTimeout(d time.Duration) Option {
	return func(v *Viewer) {
		if d > 0 {
			v.refreshTimeout = d
		}
	}
}

// WithListener registers a session listener.
func WithListener(l Listener) Option {
	return func(v *Viewer) {
		v.listener = l
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(v *Viewer) {
		v.logger = logger
	}
}

// Viewer holds at most one provisioning session at a time.
type Viewer struct {
	client         storeapi.Client
	syncer         *directory.Synchronizer
	logger         *logrus.Entry
	listener       Listener
	grace          time.Duration
	refreshTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	active   *handle
	shutdown bool
	wg       sync.WaitGroup
}

// handle ties a session to its transport. release tears both down exactly once.
type handle struct {
	session *provision.Session
	logger  *logrus.Entry
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once

	mu        sync.Mutex
	stream    storeapi.Stream
	released  bool
	grace     *time.Timer
	refreshed bool
}

// New creates a Viewer. syncer may be nil, in which case no refresh is issued.
func New(client storeapi.Client, syncer *directory.Synchronizer, opts ...Option) *Viewer {
	ctx, cancel := context.WithCancel(context.Background())
	v := &Viewer{
		client:         client,
		syncer:         syncer,
		grace:          DefaultCredentialGrace,
		refreshTimeout: DefaultRefreshTimeout,
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = logging.NewLogger("viewer")
	}
	return v
}

// Open releases any prior session and starts a new one for the store.
// A dial failure leaves the returned session FAILED and active, and is
// also returned as a STREAM_FAILED error.
func (v *Viewer) Open(ctx context.Context, storeID, storeName string) (*provision.Session, error) {
	if storeID == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "store id is required")
	}

	hctx, hcancel := context.WithCancel(ctx)
	h := &handle{
		logger: v.logger.WithFields(logrus.Fields{"store_id": storeID, "store_name": storeName}),
		ctx:    hctx,
		cancel: hcancel,
		done:   make(chan struct{}),
	}
	notify := func() { v.notify(h.session) }
	h.session = provision.New(storeID, storeName,
		provision.WithLineHandler(func(string) { notify() }),
		provision.WithCredentialsHandler(func(models.Credentials) { notify() }),
		provision.WithStateHandler(func(from, to provision.State) {
			h.logger.WithFields(logrus.Fields{"from": from, "to": to}).Debug("Session state changed")
			notify()
		}),
	)

	v.mu.Lock()
	if v.shutdown {
		v.mu.Unlock()
		hcancel()
		return nil, errors.New(errors.ErrCodeInternal, "viewer is shut down")
	}
	prior := v.active
	v.active = h
	v.mu.Unlock()

	if prior != nil {
		v.release(prior, ResultCancelled)
	}

	h.logger.Debug("Opening provisioning log stream")
	st, err := v.client.OpenStream(hctx, storeID)
	if err != nil {
		if h.isReleased() {
			close(h.done)
			return h.session, errors.StreamFailed(storeID, err)
		}
		h.logger.WithError(err).Warn("Failed to connect to provisioning log stream")
		h.session.TransportError(err)
		v.release(h, ResultFailed)
		close(h.done)
		return h.session, errors.StreamFailed(storeID, err)
	}

	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		_ = st.Close()
		close(h.done)
		return h.session, nil
	}
	h.stream = st
	h.mu.Unlock()

	h.session.Connected()
	go v.pump(h)
	go func() {
		select {
		case <-hctx.Done():
			v.release(h, ResultCancelled)
		case <-h.done:
		}
	}()

	return h.session, nil
}

// Active returns the current session, or nil.
func (v *Viewer) Active() *provision.Session {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.active == nil {
		return nil
	}
	return v.active.session
}

// Done returns a channel closed once the active session stops reading its
// stream. Without an active session the channel is already closed.
func (v *Viewer) Done() <-chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.active == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return v.active.done
}

// Close tears down the active session's transport regardless of its state
// and forgets it. It does not wait for the pump to exit.
func (v *Viewer) Close() {
	v.mu.Lock()
	h := v.active
	v.active = nil
	v.mu.Unlock()

	if h != nil {
		v.release(h, ResultCancelled)
	}
}

// Shutdown closes the active session and waits for background work to stop.
func (v *Viewer) Shutdown() {
	v.mu.Lock()
	v.shutdown = true
	h := v.active
	v.active = nil
	v.mu.Unlock()

	if h != nil {
		v.release(h, ResultCancelled)
		<-h.done
	}
	v.cancel()
	v.wg.Wait()
}

// pump is the only driver of h.session once the stream is open.
func (v *Viewer) pump(h *handle) {
	defer close(h.done)

	sess := h.session
	for {
		frame, err := h.stream.Next()
		if err != nil {
			if h.isReleased() {
				return
			}
			if stderrors.Is(err, io.EOF) {
				h.logger.Debug("Provisioning log stream closed by server")
				wasTerminal := sess.Terminal()
				sess.Closed()
				if !wasTerminal {
					v.refresh(h)
				}
			} else {
				h.logger.WithError(err).Warn("Provisioning log stream failed")
				sess.TransportError(err)
			}
			v.release(h, resultOf(sess))
			return
		}

		ev := stream.Decode(frame)
		metrics.StreamFramesTotal.WithLabelValues(ev.Kind.String()).Inc()

		wasTerminal := sess.Terminal()
		sess.Handle(ev)

		switch sess.State() {
		case provision.StateComplete:
			if !wasTerminal {
				h.logger.Info("Store provisioning complete")
				v.refresh(h)
			}
			if _, ok := sess.Credentials(); ok {
				v.release(h, ResultComplete)
				return
			}
			if !wasTerminal {
				h.armGrace(v.grace, func() { v.release(h, ResultComplete) })
			}
		case provision.StateFailed:
			h.logger.Warn("Store provisioning failed")
			v.refresh(h)
			v.release(h, ResultFailed)
			return
		}
	}
}

// refresh asks the synchronizer for the authoritative store list, once per session.
func (v *Viewer) refresh(h *handle) {
	if v.syncer == nil {
		return
	}

	h.mu.Lock()
	if h.refreshed {
		h.mu.Unlock()
		return
	}
	h.refreshed = true
	h.mu.Unlock()

	v.mu.Lock()
	if v.shutdown {
		v.mu.Unlock()
		return
	}
	v.wg.Add(1)
	v.mu.Unlock()

	go func() {
		defer v.wg.Done()
		ctx, cancel := context.WithTimeout(v.ctx, v.refreshTimeout)
		defer cancel()
		// Failures are logged by the synchronizer; the directory keeps its last state.
		_, _ = v.syncer.ListStores(ctx)
	}()
}

func (v *Viewer) release(h *handle, result string) {
	h.once.Do(func() {
		h.mu.Lock()
		h.released = true
		st := h.stream
		if h.grace != nil {
			h.grace.Stop()
		}
		h.mu.Unlock()

		h.cancel()
		if st != nil {
			if err := st.Close(); err != nil {
				h.logger.WithError(err).Debug("Error closing log stream")
			}
		}
		if result == ResultCancelled && h.session.Terminal() {
			result = resultOf(h.session)
		}
		metrics.SessionsTotal.WithLabelValues(result).Inc()
		h.logger.WithField("result", result).Debug("Provisioning session released")
	})
}

func (v *Viewer) notify(s *provision.Session) {
	if v.listener != nil && s != nil {
		v.listener.SessionUpdated(s)
	}
}

func (h *handle) isReleased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

func (h *handle) armGrace(d time.Duration, fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released || h.grace != nil {
		return
	}
	h.grace = time.AfterFunc(d, fn)
}

func resultOf(s *provision.Session) string {
	switch s.State() {
	case provision.StateComplete:
		return ResultComplete
	case provision.StateFailed:
		return ResultFailed
	}
	if s.Disconnected() {
		return ResultDisconnected
	}
	return ResultCancelled
}
