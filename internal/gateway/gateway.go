// Package gateway defines the persistence boundary for the transaction
// collection. The contract is intentionally coarse: the whole collection
// is read and written as one serialized blob, last-write-wins, which is
// fine for a personal transaction log.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"bilancio/assets"
	"bilancio/internal/core"
)

// Storage keys for the persisted blob and the first-time seeding flag.
// The flag distinguishes "never initialized" from "initialized but now
// empty".
const (
	KeyData        = "transactions_data"
	KeyInitialized = "transactions_initialized"
)

// Gateway is the port the transaction store persists through.
type Gateway interface {
	// Load returns the persisted collection. The first-ever call seeds
	// from the bundled default dataset, persists it, and returns it.
	// Read failures degrade to the last successfully persisted
	// collection, or to an empty one; they never panic.
	Load(ctx context.Context) ([]core.Transaction, error)

	// Save serializes and persists the full collection, overwriting any
	// prior blob. Idempotent, last-write-wins, no merge semantics.
	Save(ctx context.Context, all []core.Transaction) error

	// Reset clears persisted state and re-seeds from the bundled
	// default dataset, equivalent to a first-ever Load.
	Reset(ctx context.Context) ([]core.Transaction, error)
}

// Encode serializes the collection to its persisted blob form.
func Encode(all []core.Transaction) ([]byte, error) {
	if all == nil {
		all = []core.Transaction{}
	}
	data, err := json.Marshal(all)
	if err != nil {
		return nil, fmt.Errorf("encode transactions: %w", err)
	}
	return data, nil
}

// Decode deserializes a persisted blob back into a collection.
func Decode(blob []byte) ([]core.Transaction, error) {
	var all []core.Transaction
	if err := json.Unmarshal(blob, &all); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	return all, nil
}

// Seed returns the bundled default dataset.
func Seed() ([]core.Transaction, error) {
	data, err := assets.DataFS.ReadFile("data/transactions.json")
	if err != nil {
		return nil, fmt.Errorf("read seed dataset: %w", err)
	}
	return Decode(data)
}
