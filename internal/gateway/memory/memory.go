// Package memory provides an in-memory Gateway implementation. It is the
// default backend for local runs and the workhorse for store tests, with
// one-shot failure injection to exercise the degraded paths.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/gateway"
)

type Store struct {
	mu          sync.Mutex
	payload     []byte
	initialized bool
	lastGood    []core.Transaction

	nextLoadErr error
	nextSaveErr error
}

func New() *Store {
	return &Store{}
}

// FailNextLoad makes the next Load report err alongside its fallback data.
func (s *Store) FailNextLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLoadErr = err
}

// FailNextSave makes the next Save fail with err.
func (s *Store) FailNextSave(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSaveErr = err
}

// Load implements gateway.Gateway.
func (s *Store) Load(ctx context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.nextLoadErr; err != nil {
		s.nextLoadErr = nil
		return copyOf(s.lastGood), err
	}
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) ([]core.Transaction, error) {
	if !s.initialized || s.payload == nil {
		seed, err := gateway.Seed()
		if err != nil {
			return nil, err
		}
		blob, err := gateway.Encode(seed)
		if err != nil {
			return nil, err
		}
		s.payload = blob
		s.initialized = true
		s.lastGood = seed
		slog.InfoContext(ctx, "Seeded in-memory store from default dataset", "count", len(seed))
		return copyOf(seed), nil
	}

	all, err := gateway.Decode(s.payload)
	if err != nil {
		// Corrupt blob: fall back to the last good collection.
		slog.WarnContext(ctx, "Persisted blob unreadable, using last good collection", "error", err)
		return copyOf(s.lastGood), nil
	}
	s.lastGood = all
	return copyOf(all), nil
}

// Save implements gateway.Gateway.
func (s *Store) Save(ctx context.Context, all []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.nextSaveErr; err != nil {
		s.nextSaveErr = nil
		return err
	}

	blob, err := gateway.Encode(all)
	if err != nil {
		return err
	}
	s.payload = blob
	s.initialized = true
	s.lastGood = copyOf(all)
	return nil
}

// Reset implements gateway.Gateway.
func (s *Store) Reset(ctx context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.payload = nil
	s.initialized = false
	s.lastGood = nil
	return s.loadLocked(ctx)
}

func copyOf(in []core.Transaction) []core.Transaction {
	if in == nil {
		return []core.Transaction{}
	}
	out := make([]core.Transaction, len(in))
	copy(out, in)
	return out
}
