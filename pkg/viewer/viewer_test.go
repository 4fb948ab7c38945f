package viewer

import (
	"context"
	stderrors "errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/storefront/errors"
	"github.com/grovetools/storefront/internal/mockapi"
	"github.com/grovetools/storefront/pkg/directory"
	"github.com/grovetools/storefront/pkg/models"
	"github.com/grovetools/storefront/pkg/provision"
	"github.com/grovetools/storefront/pkg/stream"
	"github.com/grovetools/storefront/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

const credsJSON = `{"url": "http://demo.localhost", "admin_user": "user", "admin_password": "password"}`

func quietLogger() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

func newViewer(t *testing.T, client *testutil.FakeClient, opts ...Option) *Viewer {
	t.Helper()
	syncer := directory.NewSynchronizer(client, directory.New(), directory.WithLogger(quietLogger()))
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	v := New(client, syncer, opts...)
	t.Cleanup(v.Shutdown)
	return v
}

func TestOpenRunsToCompleteWithTrailingCredentials(t *testing.T) {
	client := &testutil.FakeClient{Frames: []string{"Installing chart", stream.SentinelComplete, credsJSON}}
	v := newViewer(t, client)

	sess, err := v.Open(context.Background(), "s1", "demo")
	require.NoError(t, err)
	assert.Same(t, sess, v.Active())

	require.Eventually(t, func() bool {
		_, ok := sess.Credentials()
		return ok
	}, waitFor, tick)

	assert.Equal(t, provision.StateComplete, sess.State())
	assert.Equal(t, []string{provision.LineConnected, "Installing chart"}, sess.Lines())

	creds, _ := sess.Credentials()
	assert.Equal(t, "http://demo.localhost", creds.URL)
	assert.Equal(t, "user", creds.AdminUser)

	require.Eventually(t, func() bool { return client.Streams()[0].Closed() }, waitFor, tick)
	require.Eventually(t, func() bool { return client.ListCalls() == 1 }, waitFor, tick)
}

func TestCredentialsBeforeSentinel(t *testing.T) {
	client := &testutil.FakeClient{Frames: []string{credsJSON, "done", stream.SentinelComplete}}
	v := newViewer(t, client)

	sess, err := v.Open(context.Background(), "s1", "demo")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sess.State() == provision.StateComplete }, waitFor, tick)
	_, ok := sess.Credentials()
	assert.True(t, ok)
	assert.NotContains(t, sess.Lines(), credsJSON)
	require.Eventually(t, func() bool { return client.Streams()[0].Closed() }, waitFor, tick)
}

func TestCompleteWithoutCredentialsClosesAfterGrace(t *testing.T) {
	client := &testutil.FakeClient{Frames: []string{stream.SentinelComplete}}
	v := newViewer(t, client, WithCredentialGrace(20*time.Millisecond))

	sess, err := v.Open(context.Background(), "s1", "demo")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return client.Streams()[0].Closed() }, waitFor, tick)
	assert.Equal(t, provision.StateComplete, sess.State())
	_, ok := sess.Credentials()
	assert.False(t, ok)
	assert.Same(t, sess, v.Active(), "a finished session stays visible until closed")
}

func TestFailedSentinelRefreshesAndCloses(t *testing.T) {
	client := &testutil.FakeClient{Frames: []string{"helm error", stream.SentinelFailed, credsJSON}}
	v := newViewer(t, client)

	sess, err := v.Open(context.Background(), "s1", "demo")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return client.Streams()[0].Closed() }, waitFor, tick)
	assert.Equal(t, provision.StateFailed, sess.State())
	_, ok := sess.Credentials()
	assert.False(t, ok)
	require.Eventually(t, func() bool { return client.ListCalls() == 1 }, waitFor, tick)
}

func TestCloseWithoutSentinelMarksDisconnected(t *testing.T) {
	client := &testutil.FakeClient{Frames: []string{"Store is already READY"}}
	v := newViewer(t, client)

	sess, err := v.Open(context.Background(), "s1", "demo")
	require.NoError(t, err)
	client.Streams()[0].EndWith(io.EOF)

	require.Eventually(t, sess.Disconnected, waitFor, tick)
	assert.Equal(t, provision.StateProvisioning, sess.State())
	lines := sess.Lines()
	assert.Equal(t, provision.LineClosed, lines[len(lines)-1])
	require.Eventually(t, func() bool { return client.ListCalls() == 1 }, waitFor, tick)
}

func TestTransportErrorFailsSessionOnce(t *testing.T) {
	client := &testutil.FakeClient{Frames: []string{"step"}}
	v := newViewer(t, client)

	sess, err := v.Open(context.Background(), "s1", "demo")
	require.NoError(t, err)
	client.Streams()[0].EndWith(stderrors.New("connection reset"))

	require.Eventually(t, func() bool { return sess.State() == provision.StateFailed }, waitFor, tick)
	count := 0
	for _, l := range sess.Lines() {
		if l == provision.LineTransport {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Never(t, func() bool { return client.ListCalls() > 0 }, 50*time.Millisecond, tick)
}

func TestOpenDialFailure(t *testing.T) {
	client := &testutil.FakeClient{OpenErr: stderrors.New("dial refused")}
	v := newViewer(t, client)

	sess, err := v.Open(context.Background(), "s1", "demo")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeStreamFailed))
	require.NotNil(t, sess)
	assert.Equal(t, provision.StateFailed, sess.State())
	assert.Equal(t, []string{provision.LineTransport}, sess.Lines())
	assert.Same(t, sess, v.Active())
}

func TestOpenRequiresStoreID(t *testing.T) {
	v := newViewer(t, &testutil.FakeClient{})
	_, err := v.Open(context.Background(), "", "demo")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestOpenReplacesPriorSession(t *testing.T) {
	client := &testutil.FakeClient{Frames: []string{"working"}}
	v := newViewer(t, client)

	first, err := v.Open(context.Background(), "s1", "one")
	require.NoError(t, err)
	second, err := v.Open(context.Background(), "s2", "two")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Same(t, second, v.Active())
	require.Eventually(t, func() bool { return client.Streams()[0].Closed() }, waitFor, tick)
	assert.False(t, client.Streams()[1].Closed())
}

func TestCloseMidStream(t *testing.T) {
	client := &testutil.FakeClient{Frames: []string{"working"}}
	v := newViewer(t, client)

	sess, err := v.Open(context.Background(), "s1", "demo")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(sess.Lines()) == 2 }, waitFor, tick)

	v.Close()

	assert.Nil(t, v.Active())
	assert.True(t, client.Streams()[0].Closed())
	assert.Never(t, func() bool { return len(sess.Lines()) != 2 }, 50*time.Millisecond, tick)
	assert.False(t, sess.Terminal())
	assert.Equal(t, 0, client.ListCalls())
}

func TestCancelledContextReleasesSession(t *testing.T) {
	client := &testutil.FakeClient{Frames: []string{"working"}}
	v := newViewer(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := v.Open(ctx, "s1", "demo")
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool { return client.Streams()[0].Closed() }, waitFor, tick)
}

type recordingListener struct {
	mu     sync.Mutex
	states []provision.State
}

func (r *recordingListener) SessionUpdated(s *provision.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s.State())
}

func (r *recordingListener) seen(state provision.State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s == state {
			return true
		}
	}
	return false
}

func TestListenerReceivesUpdates(t *testing.T) {
	client := &testutil.FakeClient{Frames: []string{"a", stream.SentinelComplete, credsJSON}}
	l := &recordingListener{}
	v := newViewer(t, client, WithListener(l))

	_, err := v.Open(context.Background(), "s1", "demo")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return l.seen(provision.StateComplete) }, waitFor, tick)
	assert.True(t, l.seen(provision.StateProvisioning))
}

func TestEndToEndAgainstMockService(t *testing.T) {
	svc, client := testutil.StartMockService(t, mockapi.Script{Lines: []string{"installing", "deployed"}})
	dir := directory.New()
	syncer := directory.NewSynchronizer(client, dir, directory.WithLogger(quietLogger()))
	v := New(client, syncer, WithLogger(quietLogger()))
	t.Cleanup(v.Shutdown)

	created, err := syncer.CreateStore(context.Background(), "e2e-shop")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProvisioning, created.Status)

	sess, err := v.Open(context.Background(), created.ID, created.Name)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := sess.Credentials()
		return ok && sess.State() == provision.StateComplete
	}, 5*time.Second, 10*time.Millisecond)

	assert.Contains(t, sess.Lines(), "installing")
	assert.Contains(t, sess.Lines(), "deployed")

	require.Eventually(t, func() bool {
		s, ok := dir.Get(created.ID)
		return ok && s.Status == models.StatusReady
	}, 5*time.Second, 10*time.Millisecond)

	s, _ := dir.Get(created.ID)
	assert.Equal(t, "http://e2e-shop.localhost", s.URL)
	assert.GreaterOrEqual(t, svc.ListCalls(), 1)
}

func TestDoneClosesAfterRelease(t *testing.T) {
	client := &testutil.FakeClient{Frames: []string{"line", stream.SentinelFailed}}
	v := newViewer(t, client)

	select {
	case <-v.Done():
	default:
		t.Fatal("Done should be closed without an active session")
	}

	_, err := v.Open(context.Background(), "s1", "demo")
	require.NoError(t, err)

	select {
	case <-v.Done():
	case <-time.After(waitFor):
		t.Fatal("session did not finish")
	}
	assert.Equal(t, provision.StateFailed, v.Active().State())
}
