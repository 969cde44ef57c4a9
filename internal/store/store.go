// Package store holds the live transaction collection and the active
// filter state, and funnels every mutation through the persistence
// gateway. It replaces the ambient global state of a browser store with
// an explicit container: controlled mutation entry points, a revision
// counter for the pipeline's memoization, and a plain observer mechanism
// for reactive consumers.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/gateway"
)

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
)

// State is the store lifecycle state. The error message is orthogonal:
// an operation can fail while the store stays ready.
type State string

// EventPublisher is the optional sink for mutation events. A nil
// publisher disables eventing entirely.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

// Snapshot is an immutable view of the store. Transactions is the live
// internal slice: mutations always build a fresh slice, so holders may
// read it freely but must never modify it. Rev changes exactly when the
// collection changes; filter changes leave it alone so that
// collection-only selectors stay cached.
type Snapshot struct {
	Rev          uint64
	State        State
	Err          string
	Transactions []core.Transaction
	Filters      core.Filters
}

// FilterPatch carries partial filter updates; nil fields are left as-is.
type FilterPatch struct {
	Categories *[]string
	Type       *core.TypeFilter
}

type Store struct {
	gw     gateway.Gateway
	events EventPublisher

	mu      sync.Mutex
	txs     []core.Transaction
	filters core.Filters
	state   State
	errMsg  string
	rev     uint64
	subs    map[int]func(Snapshot)
	nextSub int

	// saveMu serializes gateway writes; savedRev drops stale writes so
	// that an older state can never overwrite a newer one.
	saveMu   sync.Mutex
	savedRev uint64
}

func New(gw gateway.Gateway, events EventPublisher) *Store {
	return &Store{
		gw:      gw,
		events:  events,
		txs:     []core.Transaction{},
		filters: core.DefaultFilters(),
		state:   StateLoading,
		subs:    make(map[int]func(Snapshot)),
	}
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Rev:          s.rev,
		State:        s.state,
		Err:          s.errMsg,
		Transactions: s.txs,
		Filters:      s.filters,
	}
}

// Subscribe registers an observer called synchronously after every state
// change. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notifyLocked() (Snapshot, []func(Snapshot)) {
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	return snap, fns
}

func dispatch(snap Snapshot, fns []func(Snapshot)) {
	for _, fn := range fns {
		fn(snap)
	}
}

// Load fetches the persisted collection through the gateway. On failure
// the store still becomes ready, with whatever fallback the gateway
// returned and the error recorded.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateLoading
	s.errMsg = ""
	snap, fns := s.notifyLocked()
	s.mu.Unlock()
	dispatch(snap, fns)

	all, err := s.gw.Load(ctx)

	s.mu.Lock()
	s.state = StateReady
	if all == nil {
		all = []core.Transaction{}
	}
	s.txs = all
	s.rev++
	if err != nil {
		s.errMsg = "failed to load transactions"
		slog.ErrorContext(ctx, "Load failed", "error", err, "fallback_count", len(all))
	}
	snap, fns = s.notifyLocked()
	s.mu.Unlock()
	dispatch(snap, fns)

	return err
}

// Add validates and prepends a transaction (most-recent-first is the
// display invariant), then persists the whole collection. A zero ID gets
// a fresh millisecond-based one. On persistence failure the optimistic
// in-memory state stays in place and the error is recorded; callers see
// the error, not a rollback.
func (s *Store) Add(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	if t.ID == 0 {
		t.ID = s.freshIDLocked()
	} else if s.existsLocked(t.ID) {
		s.mu.Unlock()
		return core.Transaction{}, core.ErrDuplicateID
	}

	next := make([]core.Transaction, 0, len(s.txs)+1)
	next = append(next, t)
	next = append(next, s.txs...)
	s.txs = next
	s.rev++
	rev := s.rev
	snap, fns := s.notifyLocked()
	s.mu.Unlock()
	dispatch(snap, fns)

	if err := s.persist(ctx, rev, next); err != nil {
		return t, err
	}

	s.publish(ctx, amqp.NewCreatedEvent(t.ID))
	return t, nil
}

// Remove deletes a transaction by ID and persists. Removing an absent ID
// is a no-op, not an error, which also makes Remove idempotent.
func (s *Store) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	next := make([]core.Transaction, 0, len(s.txs))
	for _, t := range s.txs {
		if t.ID != id {
			next = append(next, t)
		}
	}
	if len(next) == len(s.txs) {
		s.mu.Unlock()
		return nil
	}
	s.txs = next
	s.rev++
	rev := s.rev
	snap, fns := s.notifyLocked()
	s.mu.Unlock()
	dispatch(snap, fns)

	if err := s.persist(ctx, rev, next); err != nil {
		return err
	}

	s.publish(ctx, amqp.NewDeletedEvent(id))
	return nil
}

// SetFilters merges the patch into the current filter state. Filters are
// session-only: nothing is persisted, and the collection revision does
// not move, so collection-keyed selectors keep their cached results.
func (s *Store) SetFilters(patch FilterPatch) error {
	s.mu.Lock()
	if patch.Type != nil {
		if !patch.Type.Valid() {
			s.mu.Unlock()
			return fmt.Errorf("invalid type filter %q", string(*patch.Type))
		}
		s.filters.Type = *patch.Type
	}
	if patch.Categories != nil {
		s.filters.Categories = append([]string(nil), (*patch.Categories)...)
	}
	snap, fns := s.notifyLocked()
	s.mu.Unlock()
	dispatch(snap, fns)
	return nil
}

// Reset clears persisted state through the gateway and replaces the
// collection with the re-seeded default dataset.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateLoading
	s.errMsg = ""
	snap, fns := s.notifyLocked()
	s.mu.Unlock()
	dispatch(snap, fns)

	all, err := s.gw.Reset(ctx)

	s.mu.Lock()
	s.state = StateReady
	if err != nil {
		s.errMsg = "failed to reset transactions"
		slog.ErrorContext(ctx, "Reset failed", "error", err)
	} else {
		if all == nil {
			all = []core.Transaction{}
		}
		s.txs = all
		s.rev++
	}
	snap, fns = s.notifyLocked()
	s.mu.Unlock()
	dispatch(snap, fns)

	return err
}

// ClearError clears the recorded error message.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.errMsg = ""
	snap, fns := s.notifyLocked()
	s.mu.Unlock()
	dispatch(snap, fns)
}

func (s *Store) persist(ctx context.Context, rev uint64, all []core.Transaction) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	// A newer state already reached the gateway; persisting this one
	// would roll it back.
	if rev <= s.savedRev {
		return nil
	}

	if err := s.gw.Save(ctx, all); err != nil {
		s.mu.Lock()
		s.errMsg = "failed to save transactions"
		snap, fns := s.notifyLocked()
		s.mu.Unlock()
		dispatch(snap, fns)
		return fmt.Errorf("persist collection: %w", err)
	}

	s.savedRev = rev
	return nil
}

func (s *Store) publish(ctx context.Context, ev *amqp.TransactionEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionEvent(ctx, ev); err != nil {
		// Best effort: the mutation already succeeded locally.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"event", string(ev.Event), "id", ev.ID, "error", err)
	}
}

func (s *Store) existsLocked(id int64) bool {
	for _, t := range s.txs {
		if t.ID == id {
			return true
		}
	}
	return false
}

// freshIDLocked assigns a millisecond-timestamp ID, bumped past any
// collision. Monotonic enough for a single-user log.
func (s *Store) freshIDLocked() int64 {
	id := time.Now().UnixMilli()
	for s.existsLocked(id) {
		id++
	}
	return id
}
