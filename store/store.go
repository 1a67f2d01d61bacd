// Package store provides the SQL-backed implementation of the query
// abstraction: a fluent builder that renders parameterized PostgreSQL, a
// batched relationship loader that executes eager-load plans, and a model
// registry describing tables and their relations.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrUnknownModel is returned when a query targets an unregistered model.
var ErrUnknownModel = errors.New("store: unknown model")

// Store owns the database handle and the model registry. It is safe for
// concurrent use.
type Store struct {
	db  *sql.DB
	log *zap.Logger

	mu     sync.RWMutex
	models map[string]*Model
}

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a logger; queries are logged at debug level.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// New creates a Store around an open database handle.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		log:    zap.NewNop(),
		models: make(map[string]*Model),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterModel adds a model to the registry. The primary key defaults to
// "id" when unset.
func (s *Store) RegisterModel(m *Model) error {
	if m.Name == "" || m.Table == "" {
		return fmt.Errorf("store: model requires a name and a table")
	}
	if m.PrimaryKey == "" {
		m.PrimaryKey = "id"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[m.Name] = m
	return nil
}

// Model looks up a registered model by name.
func (s *Store) Model(name string) (*Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[name]
	return m, ok
}

// Query starts a builder for a registered model.
func (s *Store) Query(model string) (*Builder, error) {
	m, ok := s.Model(model)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	return newBuilder(s, m), nil
}
