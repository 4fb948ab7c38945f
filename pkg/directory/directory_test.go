package directory

import (
	"testing"
	"time"

	"github.com/grovetools/storefront/errors"
	"github.com/grovetools/storefront/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func store(id, name string, status models.StoreStatus) models.Store {
	return models.Store{ID: id, Name: name, Status: status}
}

func ids(stores []models.Store) []string {
	out := make([]string, 0, len(stores))
	for _, s := range stores {
		out = append(out, s.ID)
	}
	return out
}

func TestRefreshReplacesContents(t *testing.T) {
	d := New()
	d.Refresh([]models.Store{
		store("1", "alpha", models.StatusReady),
		store("2", "beta", models.StatusProvisioning),
	}, d.Revision())
	assert.Equal(t, []string{"1", "2"}, ids(d.List()))

	d.Refresh([]models.Store{store("2", "beta", models.StatusReady)}, d.Revision())
	assert.Equal(t, []string{"2"}, ids(d.List()))

	got, ok := d.Get("2")
	require.True(t, ok)
	assert.Equal(t, models.StatusReady, got.Status)
}

func TestRefreshPreservesFirstInsertionOrder(t *testing.T) {
	d := New()
	d.Refresh([]models.Store{store("b", "b", models.StatusReady), store("a", "a", models.StatusReady)}, d.Revision())
	d.Refresh([]models.Store{
		store("a", "a", models.StatusReady),
		store("c", "c", models.StatusReady),
		store("b", "b", models.StatusReady),
	}, d.Revision())

	assert.Equal(t, []string{"b", "a", "c"}, ids(d.List()))
}

func TestRefreshNormalizesAccessFields(t *testing.T) {
	d := New()
	d.Refresh([]models.Store{{
		ID:        "1",
		Name:      "alpha",
		Status:    models.StatusProvisioning,
		URL:       "http://alpha.localhost",
		AdminUser: "user",
	}}, d.Revision())

	got, _ := d.Get("1")
	assert.Empty(t, got.URL)
	assert.Empty(t, got.AdminUser)
}

func TestInsertForcesProvisioning(t *testing.T) {
	d := New()
	d.Insert(models.Store{ID: "1", Name: "alpha", Status: models.StatusReady, URL: "http://x"})

	got, ok := d.Get("1")
	require.True(t, ok)
	assert.Equal(t, models.StatusProvisioning, got.Status)
	assert.Empty(t, got.URL)
	assert.Equal(t, 1, d.Len())
}

func TestInsertKeepsConfirmedData(t *testing.T) {
	d := New()
	d.Refresh([]models.Store{{ID: "1", Name: "alpha", Status: models.StatusReady, URL: "http://alpha"}}, d.Revision())

	d.Insert(store("1", "alpha", models.StatusProvisioning))

	got, _ := d.Get("1")
	assert.Equal(t, models.StatusReady, got.Status)
	assert.Equal(t, "http://alpha", got.URL)
	assert.Equal(t, 1, d.Len())
}

func TestInsertTwiceKeepsOneEntry(t *testing.T) {
	d := New()
	d.Insert(store("1", "alpha", models.StatusProvisioning))
	d.Insert(store("1", "alpha", models.StatusProvisioning))
	assert.Equal(t, 1, d.Len())
}

func TestRefreshKeepsOptimisticEntryInsertedAfterIssue(t *testing.T) {
	d := New()
	d.Refresh([]models.Store{store("old", "old", models.StatusReady)}, d.Revision())

	issuedAt := d.Revision()
	// Creation completes while the list request is in flight.
	d.Insert(store("new", "fresh", models.StatusProvisioning))
	d.Refresh([]models.Store{store("old", "old", models.StatusReady)}, issuedAt)

	assert.Equal(t, []string{"old", "new"}, ids(d.List()))
}

func TestRefreshKeepsOptimisticEntryMissingFromLaggingResponse(t *testing.T) {
	d := New()
	d.Insert(store("new", "fresh", models.StatusProvisioning))

	// The service has not listed the new store yet.
	for i := 0; i < 3; i++ {
		d.Refresh(nil, d.Revision())
	}

	got, ok := d.Get("new")
	require.True(t, ok)
	assert.Equal(t, models.StatusProvisioning, got.Status)
	assert.Equal(t, 1, d.Len())
}

func TestRefreshIgnoresResponseOlderThanLastWrite(t *testing.T) {
	d := New()
	staleIssue := d.Revision()
	d.Refresh([]models.Store{store("1", "alpha", models.StatusReady)}, d.Revision())

	// A slower request issued earlier still reports PROVISIONING.
	d.Refresh([]models.Store{store("1", "alpha", models.StatusProvisioning)}, staleIssue)
	got, _ := d.Get("1")
	assert.Equal(t, models.StatusReady, got.Status)

	d.Refresh(nil, staleIssue)
	assert.Equal(t, 1, d.Len())
}

func TestRefreshConfirmsOptimisticEntry(t *testing.T) {
	d := New()
	issuedAt := d.Revision()
	d.Insert(store("1", "alpha", models.StatusProvisioning))
	d.Refresh([]models.Store{store("1", "alpha", models.StatusReady)}, issuedAt)

	got, _ := d.Get("1")
	assert.Equal(t, models.StatusReady, got.Status)

	// Once confirmed, a later response without it removes it.
	d.Refresh(nil, d.Revision())
	assert.Equal(t, 0, d.Len())
}

func TestMatch(t *testing.T) {
	d := New()
	d.Refresh([]models.Store{
		store("1", "shop-one", models.StatusReady),
		store("2", "shop-two", models.StatusReady),
		store("3", "blog", models.StatusReady),
	}, d.Revision())

	matched, err := d.Match("shop-*")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids(matched))

	all, err := d.Match()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = d.Match("[")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	d := New()
	ch := d.Subscribe()
	defer d.Unsubscribe(ch)

	d.Insert(store("1", "alpha", models.StatusProvisioning))

	select {
	case u := <-ch:
		assert.Equal(t, UpdateInserted, u.Type)
		assert.Equal(t, []string{"1"}, ids(u.Stores))
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	d := New()
	ch := d.Subscribe()
	d.Unsubscribe(ch)
	d.Unsubscribe(ch)

	_, ok := <-ch
	assert.False(t, ok)
}
