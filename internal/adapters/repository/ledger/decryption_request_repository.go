package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vncsmyrnk/curation/internal/core/domain"
	"github.com/vncsmyrnk/curation/internal/core/ports"
)

type decryptionRequestRepository struct {
	store ports.LedgerStore
	now   func() time.Time
}

func NewDecryptionRequestRepository(store ports.LedgerStore) ports.DecryptionRequestRepository {
	return &decryptionRequestRepository{
		store: store,
		now:   time.Now,
	}
}

func (r *decryptionRequestRepository) Create(ctx context.Context, req *domain.DecryptionRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	if err := r.store.Set(ctx, RequestKey(req.ID), raw); err != nil {
		return fmt.Errorf("failed to save request %s: %w", req.ID, err)
	}
	return nil
}

func (r *decryptionRequestRepository) Get(ctx context.Context, id string) (*domain.DecryptionRequest, error) {
	raw, err := r.store.Get(ctx, RequestKey(id))
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return nil, domain.ErrUnknownRequest
		}
		return nil, fmt.Errorf("failed to get request %s: %w", id, err)
	}
	return decodeRequest(id, raw)
}

func (r *decryptionRequestRepository) MarkSettled(ctx context.Context, id string, decryptedCount uint64) (*domain.DecryptionRequest, error) {
	var settled *domain.DecryptionRequest
	err := r.store.Update(ctx, RequestKey(id), func(cur []byte, found bool) ([]byte, error) {
		if !found {
			return nil, domain.ErrUnknownRequest
		}
		req, err := decodeRequest(id, cur)
		if err != nil {
			return nil, err
		}
		if err := ensurePending(req); err != nil {
			return nil, err
		}
		now := r.now()
		req.Status = domain.RequestSettled
		req.SettledAt = &now
		req.DecryptedCount = decryptedCount
		settled = req
		return json.Marshal(req)
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

func (r *decryptionRequestRepository) MarkFailed(ctx context.Context, id, reason string) (*domain.DecryptionRequest, error) {
	var failed *domain.DecryptionRequest
	err := r.store.Update(ctx, RequestKey(id), func(cur []byte, found bool) ([]byte, error) {
		if !found {
			return nil, domain.ErrUnknownRequest
		}
		req, err := decodeRequest(id, cur)
		if err != nil {
			return nil, err
		}
		if err := ensurePending(req); err != nil {
			return nil, err
		}
		now := r.now()
		req.Status = domain.RequestFailed
		req.SettledAt = &now
		req.FailureReason = reason
		failed = req
		return json.Marshal(req)
	})
	if err != nil {
		return nil, err
	}
	return failed, nil
}

func ensurePending(req *domain.DecryptionRequest) error {
	switch req.Status {
	case domain.RequestSettled:
		return domain.ErrRequestAlreadySettled
	case domain.RequestFailed:
		return domain.ErrRequestFailed
	}
	return nil
}

func (r *decryptionRequestRepository) Pending(ctx context.Context) ([]*domain.DecryptionRequest, error) {
	keys, err := r.store.Scan(ctx, requestPrefix)
	if err != nil {
		return nil, err
	}
	var pending []*domain.DecryptionRequest
	for _, k := range keys {
		raw, err := r.store.Get(ctx, k)
		if err != nil {
			continue
		}
		req, err := decodeRequest(k, raw)
		if err != nil {
			continue
		}
		if req.Status == domain.RequestPending {
			pending = append(pending, req)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].RequestedAt.Before(pending[j].RequestedAt)
	})
	return pending, nil
}

func decodeRequest(id string, raw []byte) (*domain.DecryptionRequest, error) {
	var req domain.DecryptionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("%w: request %s: %v", domain.ErrMalformedRecord, id, err)
	}
	return &req, nil
}
