package kv

import (
	"context"
	"strings"

	"NYCU-SDC/survey-wizard-backend/internal"
)

// Store is the read/write contract every survey page relies on. Get returns
// internal.ErrKeyNotFound for a missing key; Delete of a missing key is a no-op.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
)

func ParseBackend(value string) (Backend, bool) {
	switch Backend(strings.ToLower(strings.TrimSpace(value))) {
	case BackendMemory:
		return BackendMemory, true
	case BackendRedis:
		return BackendRedis, true
	case BackendPostgres:
		return BackendPostgres, true
	}
	return "", false
}

// Scoped prefixes every key with a namespace, giving each browser session its
// own view of the shared backend.
type Scoped struct {
	store  Store
	prefix string
}

func NewScoped(store Store, namespace string) *Scoped {
	return &Scoped{
		store:  store,
		prefix: namespace + ":",
	}
}

func (s *Scoped) Get(ctx context.Context, key string) ([]byte, error) {
	return s.store.Get(ctx, s.prefix+key)
}

func (s *Scoped) Set(ctx context.Context, key string, value []byte) error {
	return s.store.Set(ctx, s.prefix+key, value)
}

func (s *Scoped) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, s.prefix+key)
}

// SessionScoped namespaces keys by the session id carried in the request
// context, so one shared backend serves every browser.
type SessionScoped struct {
	store Store
}

func NewSessionScoped(store Store) *SessionScoped {
	return &SessionScoped{store: store}
}

func (s *SessionScoped) scope(ctx context.Context) (*Scoped, error) {
	sessionID, ok := internal.GetSessionIDFromContext(ctx)
	if !ok {
		return nil, internal.ErrMissingSession
	}
	return NewScoped(s.store, "session:"+sessionID), nil
}

func (s *SessionScoped) Get(ctx context.Context, key string) ([]byte, error) {
	scoped, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	return scoped.Get(ctx, key)
}

func (s *SessionScoped) Set(ctx context.Context, key string, value []byte) error {
	scoped, err := s.scope(ctx)
	if err != nil {
		return err
	}
	return scoped.Set(ctx, key, value)
}

func (s *SessionScoped) Delete(ctx context.Context, key string) error {
	scoped, err := s.scope(ctx)
	if err != nil {
		return err
	}
	return scoped.Delete(ctx, key)
}
