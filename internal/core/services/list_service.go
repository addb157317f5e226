package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vncsmyrnk/curation/internal/core/domain"
	"github.com/vncsmyrnk/curation/internal/core/ports"
)

type listService struct {
	repo      ports.ListRepository
	cache     ports.SnapshotCache
	publisher ports.EventPublisher
	logger    zerolog.Logger
	now       func() time.Time

	// generation is bumped by every Invalidate. A snapshot is cached only if
	// no invalidation happened while it was being built.
	mu         sync.Mutex
	generation uint64
}

func NewListService(repo ports.ListRepository, cache ports.SnapshotCache, publisher ports.EventPublisher, logger zerolog.Logger) ports.ListService {
	return &listService{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// ListAll returns every indexed list ordered by totalVotes, highest first,
// ties in index order. Unreadable entries are skipped, never fatal; only a
// cancelled context fails the call.
func (s *listService) ListAll(ctx context.Context) ([]domain.List, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cached, ok, err := s.cache.GetSnapshot(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("snapshot cache read failed")
	} else if ok {
		return cached, nil
	}

	s.mu.Lock()
	generation := s.generation
	s.mu.Unlock()

	lists, err := s.buildSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return lists, nil
	}
	if err := s.cache.SetSnapshot(ctx, lists); err != nil {
		s.logger.Warn().Err(err).Msg("snapshot cache write failed")
	}
	return lists, nil
}

func (s *listService) buildSnapshot(ctx context.Context) ([]domain.List, error) {
	lists := []domain.List{}

	ids, err := s.repo.GetIndex(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.skip(ctx, domain.ListIndexKey, err)
		}
		return lists, nil
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		list, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.skip(ctx, domain.ListRecordKey(id), err)
			continue
		}
		lists = append(lists, *list)
	}

	sort.SliceStable(lists, func(i, j int) bool {
		return lists[i].TotalVotes > lists[j].TotalVotes
	})
	return lists, nil
}

func (s *listService) skip(ctx context.Context, key string, err error) {
	s.logger.Warn().Str("key", key).Err(err).Msg("skipping unreadable record")
	s.publisher.Publish(ctx, domain.NewEvent(domain.EventRecordSkipped, domain.RecordSkippedEvent{
		Key:    key,
		Reason: err.Error(),
	}))
}

func (s *listService) GetList(ctx context.Context, id string) (*domain.List, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *listService) CreateList(ctx context.Context, input ports.CreateListInput) (*domain.List, error) {
	if input.CreatorID == "" {
		return nil, domain.ErrNoSession
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domain.ErrTitleRequired
	}

	now := s.now()
	list := &domain.List{
		ID:          domain.NewListID(now),
		Title:       title,
		Description: input.Description,
		Creator:     input.CreatorID,
		CreatedAt:   now.Unix(),
		TotalVotes:  0,
	}

	if err := s.repo.Save(ctx, list); err != nil {
		return nil, err
	}

	if err := s.repo.AppendIndex(ctx, list.ID); err != nil {
		// the record stays reachable by key; the reconcile sweep indexes it
		s.logger.Error().Err(err).Str("list_id", list.ID).Msg("list saved but not indexed")
		return nil, fmt.Errorf("list %s saved but not indexed: %w", list.ID, err)
	}

	s.Invalidate(ctx)
	s.publisher.Publish(ctx, domain.NewEvent(domain.EventListCreated, domain.ListCreatedEvent{
		ListID:  list.ID,
		Creator: list.Creator,
	}))

	return list, nil
}

func (s *listService) Invalidate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("snapshot cache invalidation failed")
	}
}
