package provision

import (
	"fmt"
	"testing"

	"github.com/grovetools/storefront/pkg/models"
	"github.com/grovetools/storefront/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(s *Session, frames ...string) {
	for _, f := range frames {
		s.Handle(stream.Decode(f))
	}
}

func TestNewSessionStartsConnecting(t *testing.T) {
	s := New("id-1", "shop-a")
	assert.Equal(t, StateConnecting, s.State())
	assert.Empty(t, s.Lines())
	assert.Equal(t, "id-1", s.StoreID())
	assert.Equal(t, "shop-a", s.StoreName())
	_, ok := s.Credentials()
	assert.False(t, ok)
}

func TestLinesKeepArrivalOrder(t *testing.T) {
	s := New("id-1", "shop-a")
	s.Connected()
	feed(s, "a", "b", "c")

	assert.Equal(t, StateProvisioning, s.State())
	assert.Equal(t, []string{LineConnected, "a", "b", "c"}, s.Lines())
}

func TestCredentialsThenComplete(t *testing.T) {
	var got []models.Credentials
	s := New("id-1", "shop-a", WithCredentialsHandler(func(c models.Credentials) {
		got = append(got, c)
	}))
	s.Connected()

	creds := `{"url":"https://s1.example","admin_user":"admin","admin_password":"x"}`
	feed(s, "Starting job")
	feed(s, creds)

	c, ok := s.Credentials()
	require.True(t, ok, "credentials should be set after the payload frame")
	assert.Equal(t, "https://s1.example", c.URL)
	assert.Equal(t, StateProvisioning, s.State(), "credentials alone do not complete the session")

	feed(s, "PROVISIONING_COMPLETE")
	assert.Equal(t, StateComplete, s.State())
	assert.Contains(t, s.Lines(), "Starting job")
	assert.NotContains(t, s.Lines(), creds)
	assert.Len(t, got, 1)
}

func TestCompleteThenCredentials(t *testing.T) {
	var calls int
	s := New("id-1", "shop-a", WithCredentialsHandler(func(models.Credentials) { calls++ }))
	s.Connected()

	feed(s, "Store provisioned successfully!", "PROVISIONING_COMPLETE")
	require.Equal(t, StateComplete, s.State())

	feed(s, `{"url":"http://shop-a.localhost","admin_user":"user","admin_password":"pw"}`)
	c, ok := s.Credentials()
	require.True(t, ok, "credentials trailing the sentinel must still be accepted")
	assert.Equal(t, "user", c.AdminUser)
	assert.Equal(t, StateComplete, s.State())
	assert.Equal(t, 1, calls)
}

func TestCredentialsSetAtMostOnce(t *testing.T) {
	var calls int
	s := New("id-1", "shop-a", WithCredentialsHandler(func(models.Credentials) { calls++ }))
	s.Connected()
	feed(s,
		`{"url":"https://first.example","admin_user":"a"}`,
		`{"url":"https://second.example","admin_user":"b"}`,
	)

	c, _ := s.Credentials()
	assert.Equal(t, "https://first.example", c.URL)
	assert.Equal(t, 1, calls)
}

func TestTerminalStateIgnoresFurtherEvents(t *testing.T) {
	s := New("id-1", "shop-a")
	s.Connected()
	feed(s, "PROVISIONING_FAILED")
	require.Equal(t, StateFailed, s.State())

	before := s.Lines()
	feed(s, "late line", "PROVISIONING_COMPLETE", `{"url":"u","admin_user":"a"}`)
	s.TransportError(fmt.Errorf("boom"))
	s.Closed()

	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, before, s.Lines())
	_, ok := s.Credentials()
	assert.False(t, ok, "a failed session does not accept credentials")
	assert.False(t, s.Disconnected())
}

func TestTransportErrorBeforeSentinel(t *testing.T) {
	s := New("id-1", "shop-a")
	s.Connected()
	feed(s, "Starting job")

	s.TransportError(fmt.Errorf("connection reset"))
	s.TransportError(fmt.Errorf("connection reset again"))

	assert.Equal(t, StateFailed, s.State())
	count := 0
	for _, l := range s.Lines() {
		if l == LineTransport {
			count++
		}
	}
	assert.Equal(t, 1, count, "diagnostic line is appended exactly once")
}

func TestTransportErrorWhileConnecting(t *testing.T) {
	s := New("id-1", "shop-a")
	s.TransportError(fmt.Errorf("dial tcp: connection refused"))
	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, []string{LineTransport}, s.Lines())
}

func TestClosedWithoutSentinel(t *testing.T) {
	s := New("id-1", "shop-a")
	s.Connected()
	feed(s, "Store is already READY")
	s.Closed()
	s.Closed()

	assert.Equal(t, StateProvisioning, s.State(), "an ambiguous close is not terminal")
	assert.True(t, s.Disconnected())
	assert.Equal(t, []string{LineConnected, "Store is already READY", LineClosed}, s.Lines())
}

func TestClosedAfterCompleteAddsNothing(t *testing.T) {
	s := New("id-1", "shop-a")
	s.Connected()
	feed(s, "PROVISIONING_COMPLETE")
	s.Closed()

	assert.Equal(t, []string{LineConnected}, s.Lines())
	assert.False(t, s.Disconnected())
}

func TestFrameWhileConnectingImpliesConnected(t *testing.T) {
	s := New("id-1", "shop-a")
	feed(s, "early")
	assert.Equal(t, StateProvisioning, s.State())
	assert.Equal(t, []string{LineConnected, "early"}, s.Lines())
}

func TestStateHandlerObservesTransitions(t *testing.T) {
	var transitions []string
	var lines []string
	s := New("id-1", "shop-a",
		WithStateHandler(func(from, to State) {
			transitions = append(transitions, string(from)+"->"+string(to))
		}),
		WithLineHandler(func(line string) { lines = append(lines, line) }),
	)
	s.Connected()
	feed(s, "a", "PROVISIONING_COMPLETE")

	assert.Equal(t, []string{"CONNECTING->PROVISIONING", "PROVISIONING->COMPLETE"}, transitions)
	assert.Equal(t, []string{LineConnected, "a"}, lines)
}

func TestLinesReturnsCopy(t *testing.T) {
	s := New("id-1", "shop-a")
	s.Connected()
	lines := s.Lines()
	lines[0] = "mutated"
	assert.Equal(t, LineConnected, s.Lines()[0])
}
