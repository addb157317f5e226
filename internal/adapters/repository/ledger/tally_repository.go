package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vncsmyrnk/curation/internal/core/domain"
	"github.com/vncsmyrnk/curation/internal/core/ports"
)

type tallyRepository struct {
	store  ports.LedgerStore
	scheme ports.HomomorphicScheme
}

func NewTallyRepository(store ports.LedgerStore, scheme ports.HomomorphicScheme) ports.TallyRepository {
	return &tallyRepository{
		store:  store,
		scheme: scheme,
	}
}

func (r *tallyRepository) Get(ctx context.Context, listID string) (domain.Ciphertext, error) {
	raw, err := r.store.Get(ctx, TallyKey(listID))
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return nil, domain.ErrNoTally
		}
		return nil, fmt.Errorf("failed to get tally for %s: %w", listID, err)
	}
	var handle domain.Ciphertext
	if err := json.Unmarshal(raw, &handle); err != nil {
		return nil, fmt.Errorf("%w: tally %s: %v", domain.ErrMalformedRecord, listID, err)
	}
	return handle, nil
}

func (r *tallyRepository) Combine(ctx context.Context, listID string, increment domain.Ciphertext) error {
	err := r.store.Update(ctx, TallyKey(listID), func(cur []byte, found bool) ([]byte, error) {
		if !found {
			if err := r.scheme.Validate(increment); err != nil {
				return nil, err
			}
			return json.Marshal(increment)
		}
		var existing domain.Ciphertext
		if err := json.Unmarshal(cur, &existing); err != nil {
			return nil, fmt.Errorf("%w: tally %s: %v", domain.ErrMalformedRecord, listID, err)
		}
		sum, err := r.scheme.Add(existing, increment)
		if err != nil {
			return nil, err
		}
		return json.Marshal(sum)
	})
	if err != nil {
		return fmt.Errorf("failed to combine tally for %s: %w", listID, err)
	}
	return nil
}
