package ports

import (
	"context"

	"github.com/vncsmyrnk/curation/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event)
}
