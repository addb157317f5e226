package ports

import (
	"context"

	"github.com/vncsmyrnk/curation/internal/core/domain"
)

type ListRepository interface {
	// GetIndex returns domain.ErrKeyNotFound when no index has been written
	// and wraps domain.ErrMalformedRecord when it cannot be parsed.
	GetIndex(ctx context.Context) ([]string, error)
	AppendIndex(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.List, error)
	Save(ctx context.Context, list *domain.List) error
	// UpdateByID atomically rewrites one record through fn.
	UpdateByID(ctx context.Context, id string, fn func(list *domain.List) error) (*domain.List, error)
	// RecordIDs lists the ids of every stored record, indexed or not.
	RecordIDs(ctx context.Context) ([]string, error)
}

type CreateListInput struct {
	Title       string
	Description string
	CreatorID   string
}

type ListService interface {
	ListAll(ctx context.Context) ([]domain.List, error)
	GetList(ctx context.Context, id string) (*domain.List, error)
	CreateList(ctx context.Context, input CreateListInput) (*domain.List, error)
	// Invalidate drops the cached snapshot so the next ListAll re-reads the ledger.
	Invalidate(ctx context.Context)
}

type SnapshotCache interface {
	GetSnapshot(ctx context.Context) ([]domain.List, bool, error)
	SetSnapshot(ctx context.Context, lists []domain.List) error
	Invalidate(ctx context.Context) error
}

type ReconcileService interface {
	Reconcile(ctx context.Context) (*domain.ReconcileReport, error)
}
