package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/vncsmyrnk/curation/internal/core/domain"
	"github.com/vncsmyrnk/curation/internal/core/ports"
)

// escrowRecord is the value of escrow_<listId>. Total never exceeds
// math.MaxUint64.
type escrowRecord struct {
	Stakes map[string]uint64 `json:"stakes"`
	Carry  uint64            `json:"carry,omitempty"`
}

func (e *escrowRecord) total() uint64 {
	sum := e.Carry
	for _, amount := range e.Stakes {
		sum += amount
	}
	return sum
}

func (e *escrowRecord) add(amount uint64) error {
	if e.total() > math.MaxUint64-amount {
		return errBalanceOverflow
	}
	return nil
}

type escrowRepository struct {
	store ports.LedgerStore
}

func NewEscrowRepository(store ports.LedgerStore) ports.EscrowRepository {
	return &escrowRepository{store: store}
}

func (r *escrowRepository) AddStake(ctx context.Context, listID, staker string, amount uint64) error {
	err := r.update(ctx, listID, func(e *escrowRecord) error {
		if err := e.add(amount); err != nil {
			return err
		}
		e.Stakes[staker] += amount
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add stake of %s to %s: %w", staker, listID, err)
	}
	return nil
}

func (r *escrowRepository) TakeStake(ctx context.Context, listID, staker string) (uint64, error) {
	var taken uint64
	err := r.update(ctx, listID, func(e *escrowRecord) error {
		taken = e.Stakes[staker]
		if taken == 0 {
			return domain.ErrInsufficientBalance
		}
		delete(e.Stakes, staker)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return taken, nil
}

func (r *escrowRepository) StakeOf(ctx context.Context, listID, staker string) (uint64, error) {
	e, err := r.get(ctx, listID)
	if err != nil {
		return 0, err
	}
	return e.Stakes[staker], nil
}

func (r *escrowRepository) Drain(ctx context.Context, listID string) (uint64, error) {
	var drained uint64
	err := r.update(ctx, listID, func(e *escrowRecord) error {
		drained = e.total()
		e.Stakes = map[string]uint64{}
		e.Carry = 0
		return nil
	})
	if err != nil {
		return 0, err
	}
	return drained, nil
}

func (r *escrowRepository) Carry(ctx context.Context, listID string, amount uint64) error {
	err := r.update(ctx, listID, func(e *escrowRecord) error {
		if err := e.add(amount); err != nil {
			return err
		}
		e.Carry += amount
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to carry %d into %s: %w", amount, listID, err)
	}
	return nil
}

func (r *escrowRepository) Balance(ctx context.Context, listID string) (uint64, error) {
	e, err := r.get(ctx, listID)
	if err != nil {
		return 0, err
	}
	return e.total(), nil
}

func (r *escrowRepository) get(ctx context.Context, listID string) (*escrowRecord, error) {
	key := EscrowKey(listID)
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return &escrowRecord{Stakes: map[string]uint64{}}, nil
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return decodeEscrow(key, raw)
}

func (r *escrowRepository) update(ctx context.Context, listID string, fn func(e *escrowRecord) error) error {
	key := EscrowKey(listID)
	return r.store.Update(ctx, key, func(cur []byte, found bool) ([]byte, error) {
		e := &escrowRecord{Stakes: map[string]uint64{}}
		if found {
			var err error
			if e, err = decodeEscrow(key, cur); err != nil {
				return nil, err
			}
		}
		if err := fn(e); err != nil {
			return nil, err
		}
		return json.Marshal(e)
	})
}

func decodeEscrow(key string, raw []byte) (*escrowRecord, error) {
	var e escrowRecord
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedRecord, key, err)
	}
	if e.Stakes == nil {
		e.Stakes = map[string]uint64{}
	}
	return &e, nil
}
