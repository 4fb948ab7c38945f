// Package testutil provides fakes and fixtures shared by storefront tests.
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/storefront/internal/mockapi"
	"github.com/grovetools/storefront/pkg/models"
	"github.com/grovetools/storefront/pkg/storeapi"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// SessionToken is the session cookie value accepted by StartMockService.
const SessionToken = "test-session-token"

// RandomString generates a random hex string of the given length
func RandomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)[:length]
}

// RandomStoreName returns a valid, unique store name.
func RandomStoreName() string {
	return "store-" + RandomString(8)
}

// StartMockService runs the mock orchestration service on an httptest server
// and returns it with a client authenticated against it.
func StartMockService(t *testing.T, script mockapi.Script) (*mockapi.Server, *storeapi.RemoteClient) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc := mockapi.New(logrus.NewEntry(logger), storeapi.DefaultCookieName, SessionToken)
	svc.SetScript(script)
	ts := httptest.NewServer(svc.Handler())
	t.Cleanup(ts.Close)

	client, err := storeapi.NewRemoteClient(ts.URL, storeapi.Auth{Token: SessionToken},
		storeapi.WithTimeout(5*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return svc, client
}

// FakeClient is a scripted storeapi.Client that records its calls.
type FakeClient struct {
	mu sync.Mutex

	// Stores is returned by ListStores.
	Stores []models.Store
	// ListErr, CreateErr and OpenErr fail the matching call when set.
	ListErr   error
	CreateErr error
	OpenErr   error
	// Created is returned by CreateStore; when its ID is empty one is generated.
	Created models.Store
	// Frames are replayed by streams returned from OpenStream.
	Frames []string
	// ListHook runs inside ListStores before it returns, for interleaving tests.
	ListHook func()

	listCalls   int
	createCalls int
	openCalls   int
	streams     []*FakeStream
}

var _ storeapi.Client = (*FakeClient)(nil)

// ListStores implements storeapi.Client.
func (c *FakeClient) ListStores(ctx context.Context) ([]models.Store, error) {
	c.mu.Lock()
	c.listCalls++
	hook := c.ListHook
	stores := append([]models.Store(nil), c.Stores...)
	err := c.ListErr
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return stores, nil
}

// CreateStore implements storeapi.Client.
func (c *FakeClient) CreateStore(ctx context.Context, name string) (models.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createCalls++
	if c.CreateErr != nil {
		return models.Store{}, c.CreateErr
	}
	created := c.Created
	if created.ID == "" {
		created.ID = RandomString(12)
	}
	if created.Name == "" {
		created.Name = name
	}
	if created.Status == "" {
		created.Status = models.StatusProvisioning
	}
	return created, nil
}

// OpenStream implements storeapi.Client.
func (c *FakeClient) OpenStream(ctx context.Context, storeID string) (storeapi.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openCalls++
	if c.OpenErr != nil {
		return nil, c.OpenErr
	}
	s := NewFakeStream(c.Frames...)
	c.streams = append(c.streams, s)
	return s, nil
}

// Close implements storeapi.Client.
func (c *FakeClient) Close() error { return nil }

// ListCalls returns how many times ListStores was called.
func (c *FakeClient) ListCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listCalls
}

// CreateCalls returns how many times CreateStore was called.
func (c *FakeClient) CreateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createCalls
}

// OpenCalls returns how many times OpenStream was called.
func (c *FakeClient) OpenCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openCalls
}

// Streams returns every stream handed out so far.
func (c *FakeClient) Streams() []*FakeStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*FakeStream(nil), c.streams...)
}

// FakeStream replays frames, then blocks until closed or returns io.EOF
// once EndWith has been called.
type FakeStream struct {
	frames chan string
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	endErr error
	closed bool
}

// NewFakeStream returns a stream that will deliver frames in order.
func NewFakeStream(frames ...string) *FakeStream {
	s := &FakeStream{
		frames: make(chan string, len(frames)+16),
		done:   make(chan struct{}),
	}
	for _, f := range frames {
		s.frames <- f
	}
	return s
}

// Push queues another frame.
func (s *FakeStream) Push(frame string) {
	s.frames <- frame
}

// EndWith makes Next return err once the queued frames are drained.
func (s *FakeStream) EndWith(err error) {
	s.mu.Lock()
	s.endErr = err
	s.mu.Unlock()
	close(s.frames)
}

// Next implements storeapi.Stream.
func (s *FakeStream) Next() (string, error) {
	select {
	case <-s.done:
		return "", io.ErrClosedPipe
	case f, ok := <-s.frames:
		if !ok {
			s.mu.Lock()
			defer s.mu.Unlock()
			return "", s.endErr
		}
		return f, nil
	}
}

// Close implements storeapi.Stream.
func (s *FakeStream) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}

// Closed reports whether Close was called.
func (s *FakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
