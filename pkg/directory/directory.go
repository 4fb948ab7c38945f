// Package directory holds the client-side view of the stores owned by the
// current session and keeps it in sync with the orchestration service.
package directory

import (
	"sync"

	"github.com/grovetools/storefront/errors"
	"github.com/grovetools/storefront/pkg/metrics"
	"github.com/grovetools/storefront/pkg/models"
	"github.com/moby/patternmatcher"
)

// UpdateType defines what kind of change was applied to the directory.
type UpdateType string

const (
	UpdateRefreshed UpdateType = "refreshed"
	UpdateInserted  UpdateType = "inserted"
)

// Update is broadcast to subscribers after every mutation.
type Update struct {
	Type   UpdateType
	Stores []models.Store // Snapshot in directory order
}

type entry struct {
	store     models.Store
	confirmed bool   // Seen in at least one refresh response
	revision  uint64 // Directory revision of the last write
}

// Directory is an ordered, id-keyed collection of stores.
// It is thread-safe and supports pub/sub for change notifications.
type Directory struct {
	mu          sync.RWMutex
	order       []string
	entries     map[string]*entry
	revision    uint64
	subscribers map[chan Update]struct{}
}

// New creates an empty Directory.
func New() *Directory {
	return &Directory{
		entries:     make(map[string]*entry),
		subscribers: make(map[chan Update]struct{}),
	}
}

// Revision returns the current mutation counter. Capture it before issuing a
// list request and pass it to Refresh.
func (d *Directory) Revision() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.revision
}

// Get returns the store with the given id.
func (d *Directory) Get(id string) (models.Store, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[id]
	if !ok {
		return models.Store{}, false
	}
	return e.store, true
}

// List returns the stores in first-insertion order.
func (d *Directory) List() []models.Store {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshotLocked()
}

// Len returns the number of stores.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

// Match returns the stores whose name matches any of the glob patterns.
// With no patterns every store is returned.
func (d *Directory) Match(patterns ...string) ([]models.Store, error) {
	stores := d.List()
	if len(patterns) == 0 {
		return stores, nil
	}

	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid store pattern")
	}

	matched := make([]models.Store, 0, len(stores))
	for _, s := range stores {
		ok, err := pm.MatchesOrParentMatches(s.Name)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid store pattern")
		}
		if ok {
			matched = append(matched, s)
		}
	}
	return matched, nil
}

// Insert adds an optimistic entry for a freshly created store. The entry is
// forced to PROVISIONING and stays unconfirmed until a refresh reports it.
// An id that a refresh already confirmed keeps its confirmed data.
func (d *Directory) Insert(store models.Store) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.revision++
	if existing, ok := d.entries[store.ID]; ok && existing.confirmed {
		return
	}

	store.Status = models.StatusProvisioning
	store = store.Normalize()

	if existing, ok := d.entries[store.ID]; ok {
		existing.store = store
		existing.revision = d.revision
	} else {
		d.entries[store.ID] = &entry{store: store, revision: d.revision}
		d.order = append(d.order, store.ID)
	}

	d.broadcastLocked(UpdateInserted)
}

// Refresh merges an authoritative list response. issuedAt is the Revision
// observed before the request was sent. Returned stores are upserted and
// confirmed. Unconfirmed entries are never dropped by a response that omits
// them, since the service may not list a new store yet. Entries written after
// issuedAt are left alone: the response is older than what they hold.
func (d *Directory) Refresh(stores []models.Store, issuedAt uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.revision++
	seen := make(map[string]struct{}, len(stores))
	for _, s := range stores {
		if s.ID == "" {
			continue
		}
		s = s.Normalize()
		seen[s.ID] = struct{}{}
		if existing, ok := d.entries[s.ID]; ok {
			if existing.confirmed && existing.revision > issuedAt {
				continue
			}
			existing.store = s
			existing.confirmed = true
			existing.revision = d.revision
			continue
		}
		d.entries[s.ID] = &entry{store: s, confirmed: true, revision: d.revision}
		d.order = append(d.order, s.ID)
	}

	kept := d.order[:0]
	for _, id := range d.order {
		e := d.entries[id]
		if _, ok := seen[id]; ok || !e.confirmed || e.revision > issuedAt {
			kept = append(kept, id)
			continue
		}
		delete(d.entries, id)
	}
	d.order = kept

	d.broadcastLocked(UpdateRefreshed)
}

// Subscribe creates a new subscription channel for directory updates.
func (d *Directory) Subscribe() chan Update {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan Update, 100) // Buffered
	d.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (d *Directory) Unsubscribe(ch chan Update) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[ch]; !ok {
		return
	}
	delete(d.subscribers, ch)
	close(ch)
}

func (d *Directory) snapshotLocked() []models.Store {
	result := make([]models.Store, 0, len(d.order))
	for _, id := range d.order {
		result = append(result, d.entries[id].store)
	}
	return result
}

func (d *Directory) broadcastLocked(t UpdateType) {
	metrics.DirectoryStores.Set(float64(len(d.order)))

	u := Update{Type: t, Stores: d.snapshotLocked()}
	for ch := range d.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send so a slow subscriber never stalls a refresh
		}
	}
}
