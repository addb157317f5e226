package ports

import "context"

// UpdateFunc receives the current value of a key (found is false when the key
// is absent) and returns the value to store. Returning an error aborts the
// update and leaves the key untouched.
type UpdateFunc func(current []byte, found bool) ([]byte, error)

// LedgerStore is the persistent key-value ledger. Every method acts on a
// single key; there is no multi-key transaction.
type LedgerStore interface {
	// Get returns domain.ErrKeyNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Update is an atomic read-modify-write of one key.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	// Scan returns every key with the given prefix, in key order.
	Scan(ctx context.Context, prefix string) ([]string, error)
}
