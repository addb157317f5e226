package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/vncsmyrnk/curation/internal/core/domain"
	"github.com/vncsmyrnk/curation/internal/core/ports"
)

type listRepository struct {
	store ports.LedgerStore
}

func NewListRepository(store ports.LedgerStore) ports.ListRepository {
	return &listRepository{
		store: store,
	}
}

func (r *listRepository) GetIndex(ctx context.Context) ([]string, error) {
	raw, err := r.store.Get(ctx, IndexKey)
	if err != nil {
		return nil, err
	}
	return decodeIndex(raw)
}

// AppendIndex adds id to the index in a single atomic update. An unparsable
// index is replaced rather than blocking every future create.
func (r *listRepository) AppendIndex(ctx context.Context, id string) error {
	err := r.store.Update(ctx, IndexKey, func(cur []byte, found bool) ([]byte, error) {
		var ids []string
		if found {
			parsed, err := decodeIndex(cur)
			if err == nil {
				ids = parsed
			}
		}
		if slices.Contains(ids, id) {
			return json.Marshal(ids)
		}
		return json.Marshal(append(ids, id))
	})
	if err != nil {
		return fmt.Errorf("failed to append %s to index: %w", id, err)
	}
	return nil
}

func (r *listRepository) GetByID(ctx context.Context, id string) (*domain.List, error) {
	raw, err := r.store.Get(ctx, ListKey(id))
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return nil, domain.ErrListNotFound
		}
		return nil, fmt.Errorf("failed to get list %s: %w", id, err)
	}
	return decodeList(id, raw)
}

func (r *listRepository) Save(ctx context.Context, list *domain.List) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode list: %w", err)
	}
	if err := r.store.Set(ctx, ListKey(list.ID), raw); err != nil {
		return fmt.Errorf("failed to save list %s: %w", list.ID, err)
	}
	return nil
}

func (r *listRepository) UpdateByID(ctx context.Context, id string, fn func(list *domain.List) error) (*domain.List, error) {
	var updated *domain.List
	err := r.store.Update(ctx, ListKey(id), func(cur []byte, found bool) ([]byte, error) {
		if !found {
			return nil, domain.ErrListNotFound
		}
		list, err := decodeList(id, cur)
		if err != nil {
			return nil, err
		}
		if err := fn(list); err != nil {
			return nil, err
		}
		updated = list
		return json.Marshal(list)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *listRepository) RecordIDs(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, listPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == IndexKey {
			continue
		}
		ids = append(ids, strings.TrimPrefix(k, listPrefix))
	}
	return ids, nil
}

func decodeIndex(raw []byte) ([]string, error) {
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("%w: index: %v", domain.ErrMalformedRecord, err)
	}
	return ids, nil
}

func decodeList(id string, raw []byte) (*domain.List, error) {
	var list domain.List
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", domain.ErrMalformedRecord, id, err)
	}
	// records written without an id field are keyed by it
	if list.ID == "" {
		list.ID = id
	}
	return &list, nil
}
