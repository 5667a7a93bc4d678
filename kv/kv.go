/*
Package kv defines the persistence contract for the ledger and rule engines.

PURPOSE:
  All engine state is serialized as JSON blobs keyed by a stable namespace:
  one key for the debtor collection, one key per rule collection. The Store
  interface is the only thing the engines know about persistence; SQLite and
  in-memory implementations live under store/.

CORRUPTION POLICY:
  A blob that fails to unmarshal is treated as an empty collection: the
  error is logged, the offending key is removed, and the caller receives the
  zero value. Higher-level logic always sees a well-typed, possibly-empty
  collection and never crashes on bad stored state.

KEY NAMESPACE:
  debtors                 Ledger Store debtor collection
  interest/rules          Interest rules
  interest/bindings       Debtor-to-rule interest bindings
  contracts               Recurring payment contracts
  incentive/rules         Early-payment incentive rules
  incentive/applications  Incentive application records
  splits                  Multi-party debts

SEE ALSO:
  - store/sqlite: Production implementation
  - store/memory: In-memory implementation for tests
*/
package kv

import (
	"context"
	"encoding/json"
	"log"
)

// Store is an async key-value store holding JSON blobs.
// Get returns (nil, nil) when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Well-known collection keys.
const (
	KeyDebtors               = "debtors"
	KeyInterestRules         = "interest/rules"
	KeyInterestBindings      = "interest/bindings"
	KeyContracts             = "contracts"
	KeyIncentiveRules        = "incentive/rules"
	KeyIncentiveApplications = "incentive/applications"
	KeySplits                = "splits"
)

// LoadJSON reads and unmarshals the collection at key. An absent key yields
// the zero value. A corrupted blob is logged, the key removed, and the zero
// value returned; storage-level read failures are still propagated.
func LoadJSON[T any](ctx context.Context, store Store, key string) (T, error) {
	var out T

	raw, err := store.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if raw == nil {
		return out, nil
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		log.Printf("[Store] Corrupted blob at %q, resetting: %v", key, err)
		if rmErr := store.Remove(ctx, key); rmErr != nil {
			log.Printf("[Store] Failed to remove corrupted key %q: %v", key, rmErr)
		}
		var zero T
		return zero, nil
	}
	return out, nil
}

// SaveJSON marshals and writes the collection at key.
func SaveJSON[T any](ctx context.Context, store Store, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, raw)
}
