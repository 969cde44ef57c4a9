// Package sqlite persists the transaction blob in an embedded SQLite
// database. The whole collection lives in a single snapshots row keyed by
// gateway.KeyData; a second row under gateway.KeyInitialized marks that
// first-time seeding has happened.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/gateway"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB

	mu       sync.Mutex
	lastGood []core.Transaction
	haveGood bool
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements gateway.Gateway. Read or decode failures degrade to the
// last good collection (empty when there is none) instead of surfacing an
// error: a broken blob must not take the dashboard down.
func (r *Repository) Load(ctx context.Context) ([]core.Transaction, error) {
	seeded, err := r.hasKey(ctx, gateway.KeyInitialized)
	if err != nil {
		slog.WarnContext(ctx, "Seeding flag unreadable, using last good collection", "error", err)
		return r.fallback(), nil
	}

	if !seeded {
		return r.seed(ctx)
	}

	payload, err := r.getPayload(ctx, gateway.KeyData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Initialized but the blob row is gone; re-seed.
			return r.seed(ctx)
		}
		slog.WarnContext(ctx, "Persisted blob unreadable, using last good collection", "error", err)
		return r.fallback(), nil
	}

	all, err := gateway.Decode(payload)
	if err != nil {
		slog.WarnContext(ctx, "Persisted blob corrupt, using last good collection", "error", err)
		return r.fallback(), nil
	}

	r.remember(all)
	return all, nil
}

// Save implements gateway.Gateway. It also sets the seeding flag so that
// an explicitly saved empty collection is not mistaken for a fresh
// database on the next Load.
func (r *Repository) Save(ctx context.Context, all []core.Transaction) error {
	blob, err := gateway.Encode(all)
	if err != nil {
		return err
	}

	if err := r.putPayload(ctx, gateway.KeyData, blob); err != nil {
		return fmt.Errorf("save transactions: %w", err)
	}
	if err := r.putPayload(ctx, gateway.KeyInitialized, []byte("true")); err != nil {
		return fmt.Errorf("mark initialized: %w", err)
	}

	r.remember(all)
	slog.DebugContext(ctx, "Collection persisted", "count", len(all), "bytes", len(blob))
	return nil
}

// Reset implements gateway.Gateway.
func (r *Repository) Reset(ctx context.Context) ([]core.Transaction, error) {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE key IN (?, ?)`,
		gateway.KeyData, gateway.KeyInitialized)
	if err != nil {
		return nil, fmt.Errorf("clear snapshots: %w", err)
	}

	r.mu.Lock()
	r.lastGood = nil
	r.haveGood = false
	r.mu.Unlock()

	slog.InfoContext(ctx, "Persisted state cleared, re-seeding")
	return r.seed(ctx)
}

func (r *Repository) seed(ctx context.Context) ([]core.Transaction, error) {
	all, err := gateway.Seed()
	if err != nil {
		return nil, err
	}
	if err := r.Save(ctx, all); err != nil {
		return nil, fmt.Errorf("persist seed dataset: %w", err)
	}
	slog.InfoContext(ctx, "Seeded database from default dataset", "count", len(all))
	return all, nil
}

func (r *Repository) fallback() []core.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.haveGood {
		return []core.Transaction{}
	}
	out := make([]core.Transaction, len(r.lastGood))
	copy(out, r.lastGood)
	return out
}

func (r *Repository) remember(all []core.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastGood = append([]core.Transaction(nil), all...)
	r.haveGood = true
}

func (r *Repository) hasKey(ctx context.Context, key string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM snapshots WHERE key = ?`, key).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository) getPayload(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE key = ?`, key).Scan(&payload)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (r *Repository) putPayload(ctx context.Context, key string, payload []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO snapshots (key, payload, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`,
		key, payload)
	return err
}
