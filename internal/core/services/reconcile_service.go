package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/vncsmyrnk/curation/internal/core/domain"
	"github.com/vncsmyrnk/curation/internal/core/ports"
)

type reconcileService struct {
	repo      ports.ListRepository
	snapshot  ports.ListService
	publisher ports.EventPublisher
}

func NewReconcileService(repo ports.ListRepository, snapshot ports.ListService, publisher ports.EventPublisher) ports.ReconcileService {
	return &reconcileService{
		repo:      repo,
		snapshot:  snapshot,
		publisher: publisher,
	}
}

type orphanCheck struct {
	id  string
	err error
}

// Reconcile indexes list records that were saved but never made it into the
// index. Malformed records are reported and left out.
func (s *reconcileService) Reconcile(ctx context.Context) (*domain.ReconcileReport, error) {
	recordIDs, err := s.repo.RecordIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan list records: %w", err)
	}

	indexed, err := s.repo.GetIndex(ctx)
	if err != nil && !errors.Is(err, domain.ErrKeyNotFound) && !errors.Is(err, domain.ErrMalformedRecord) {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	report := &domain.ReconcileReport{
		Scanned:   len(recordIDs),
		Indexed:   len(indexed),
		Repaired:  []string{},
		Malformed: []string{},
	}

	var candidates []string
	for _, id := range recordIDs {
		if !slices.Contains(indexed, id) {
			candidates = append(candidates, id)
		}
	}

	var wg sync.WaitGroup
	results := make(chan orphanCheck, len(candidates))
	for _, id := range candidates {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := s.repo.GetByID(ctx, id)
			results <- orphanCheck{id: id, err: err}
		}(id)
	}
	wg.Wait()
	close(results)

	readable := make(map[string]bool, len(candidates))
	for res := range results {
		switch {
		case res.err == nil:
			readable[res.id] = true
		case errors.Is(res.err, domain.ErrMalformedRecord):
			report.Malformed = append(report.Malformed, res.id)
		default:
			return nil, fmt.Errorf("failed to read list %s: %w", res.id, res.err)
		}
	}

	// append in scan order so repeated sweeps build the same index
	for _, id := range candidates {
		if !readable[id] {
			continue
		}
		if err := s.repo.AppendIndex(ctx, id); err != nil {
			return report, err
		}
		report.Repaired = append(report.Repaired, id)
		s.publisher.Publish(ctx, domain.NewEvent(domain.EventListReconciled, domain.ListReconciledEvent{ListID: id}))
	}
	slices.Sort(report.Malformed)

	if len(report.Repaired) > 0 {
		s.snapshot.Invalidate(ctx)
	}
	return report, nil
}
