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

var errBalanceOverflow = errors.New("balance overflow")

// balances implements the amount-valued keys: rewards, house accounts and
// the local wallet ledger.
type balances struct {
	store ports.LedgerStore
}

func (b balances) get(ctx context.Context, key string) (uint64, error) {
	raw, err := b.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return decodeAmount(key, raw)
}

func (b balances) credit(ctx context.Context, key string, amount uint64) error {
	err := b.store.Update(ctx, key, func(cur []byte, found bool) ([]byte, error) {
		var balance uint64
		if found {
			var err error
			if balance, err = decodeAmount(key, cur); err != nil {
				return nil, err
			}
		}
		if balance > math.MaxUint64-amount {
			return nil, errBalanceOverflow
		}
		return json.Marshal(balance + amount)
	})
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", key, err)
	}
	return nil
}

// take zeroes the balance and returns what it held. A zero balance fails
// with domain.ErrInsufficientBalance and nothing is written.
func (b balances) take(ctx context.Context, key string) (uint64, error) {
	var taken uint64
	err := b.store.Update(ctx, key, func(cur []byte, found bool) ([]byte, error) {
		taken = 0
		if found {
			var err error
			if taken, err = decodeAmount(key, cur); err != nil {
				return nil, err
			}
		}
		if taken == 0 {
			return nil, domain.ErrInsufficientBalance
		}
		return json.Marshal(uint64(0))
	})
	if err != nil {
		return 0, err
	}
	return taken, nil
}

func decodeAmount(key string, raw []byte) (uint64, error) {
	var amount uint64
	if err := json.Unmarshal(raw, &amount); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrMalformedRecord, key, err)
	}
	return amount, nil
}

type rewardRepository struct{ balances }

func NewRewardRepository(store ports.LedgerStore) ports.RewardRepository {
	return &rewardRepository{balances{store: store}}
}

func (r *rewardRepository) Credit(ctx context.Context, account string, amount uint64) error {
	return r.credit(ctx, RewardKey(account), amount)
}

func (r *rewardRepository) Take(ctx context.Context, account string) (uint64, error) {
	return r.take(ctx, RewardKey(account))
}

func (r *rewardRepository) Balance(ctx context.Context, account string) (uint64, error) {
	return r.get(ctx, RewardKey(account))
}

func (r *rewardRepository) CreditHouse(ctx context.Context, account string, amount uint64) error {
	return r.credit(ctx, HouseKey(account), amount)
}

func (r *rewardRepository) HouseBalance(ctx context.Context, account string) (uint64, error) {
	return r.get(ctx, HouseKey(account))
}

// WalletPayer pays out by crediting wallet_<account> on the same ledger. It
// stands in for an on-chain transfer in local deployments.
type WalletPayer struct{ balances }

func NewWalletPayer(store ports.LedgerStore) *WalletPayer {
	return &WalletPayer{balances{store: store}}
}

func (p *WalletPayer) Transfer(ctx context.Context, account string, amount uint64) error {
	return p.credit(ctx, WalletKey(account), amount)
}

func (p *WalletPayer) WalletBalance(ctx context.Context, account string) (uint64, error) {
	return p.get(ctx, WalletKey(account))
}
