package directory

import (
	"context"
	"fmt"

	"github.com/grovetools/storefront/errors"
	"github.com/grovetools/storefront/logging"
	"github.com/grovetools/storefront/pkg/metrics"
	"github.com/grovetools/storefront/pkg/models"
	"github.com/grovetools/storefront/pkg/storeapi"
	"github.com/sirupsen/logrus"
)

// Synchronizer is the only writer of a Directory. It issues list and create
// requests and merges their results.
type Synchronizer struct {
	client storeapi.Client
	dir    *Directory
	logger *logrus.Entry
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger overrides the component logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// NewSynchronizer creates a Synchronizer writing into dir.
func NewSynchronizer(client storeapi.Client, dir *Directory, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		client: client,
		dir:    dir,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger("directory")
	}
	return s
}

// Directory returns the directory this synchronizer writes into.
func (s *Synchronizer) Directory() *Directory {
	return s.dir
}

// ListStores fetches the authoritative store list and merges it into the
// directory. On failure the directory is left untouched.
func (s *Synchronizer) ListStores(ctx context.Context) ([]models.Store, error) {
	issuedAt := s.dir.Revision()

	stores, err := s.client.ListStores(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to refresh store directory")
		return nil, errors.RefreshFailed(err)
	}

	s.dir.Refresh(stores, issuedAt)
	s.logger.WithField("count", len(stores)).Debug("Store directory refreshed")
	return s.dir.List(), nil
}

// CreateStore validates name, requests a new store and inserts the
// service's record as an optimistic PROVISIONING entry.
func (s *Synchronizer) CreateStore(ctx context.Context, name string) (models.Store, error) {
	if err := models.ValidateStoreName(name); err != nil {
		metrics.APIRequestsTotal.WithLabelValues("create_store", metrics.OutcomeRejected).Inc()
		return models.Store{}, errors.InvalidStoreName(name, err.Error())
	}

	store, err := s.client.CreateStore(ctx, name)
	if err != nil {
		s.logger.WithError(err).WithField("name", name).Warn("Failed to create store")
		return models.Store{}, errors.CreateFailed(name, err)
	}
	if store.ID == "" {
		return models.Store{}, errors.CreateFailed(name, fmt.Errorf("response did not include a store id"))
	}

	s.dir.Insert(store)
	inserted, _ := s.dir.Get(store.ID)

	s.logger.WithFields(logrus.Fields{
		"id":   store.ID,
		"name": store.Name,
	}).Info("Store created")
	return inserted, nil
}
