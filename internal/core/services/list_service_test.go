package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/curation/internal/adapters/cache/memory"
	"github.com/vncsmyrnk/curation/internal/core/domain"
	"github.com/vncsmyrnk/curation/internal/core/ports"
)

func seedList(t *testing.T, f *fixture, id string, votes int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.listRepo.Save(ctx, &domain.List{ID: id, Title: id, Creator: "seed", TotalVotes: votes}))
	require.NoError(t, f.listRepo.AppendIndex(ctx, id))
}

func TestCreateListThenListAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.lists.CreateList(ctx, ports.CreateListInput{
		Title:       "  Best synths  ",
		Description: "analog only",
		CreatorID:   "0xabc",
	})
	require.NoError(t, err)
	assert.Equal(t, "Best synths", created.Title)
	assert.Equal(t, "0xabc", created.Creator)
	assert.Zero(t, created.TotalVotes)

	lists, err := f.lists.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, *created, lists[0])

	require.Len(t, f.publisher.ofType(domain.EventListCreated), 1)
}

func TestCreateListValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   ports.CreateListInput
		wantErr error
	}{
		{"no session", ports.CreateListInput{Title: "t"}, domain.ErrNoSession},
		{"empty title", ports.CreateListInput{Title: "", CreatorID: "a"}, domain.ErrTitleRequired},
		{"blank title", ports.CreateListInput{Title: " \t ", CreatorID: "a"}, domain.ErrTitleRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			_, err := f.lists.CreateList(ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)

			keys, err := f.store.Scan(ctx, "list_")
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestListAllSortsByVotesStable(t *testing.T) {
	f := newFixture(t)
	seedList(t, f, "a", 1)
	seedList(t, f, "b", 3)
	seedList(t, f, "c", 1)
	seedList(t, f, "d", 3)

	lists, err := f.lists.ListAll(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, l := range lists {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
}

func TestListAllWithoutIndex(t *testing.T) {
	f := newFixture(t)

	lists, err := f.lists.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, lists)
	assert.Empty(t, lists)
	assert.Empty(t, f.publisher.ofType(domain.EventRecordSkipped))
}

func TestListAllUnparsableIndex(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Set(context.Background(), domain.ListIndexKey, []byte("{not json")))

	lists, err := f.lists.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lists)

	skipped := f.publisher.ofType(domain.EventRecordSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, domain.ListIndexKey, skipped[0].Data.(domain.RecordSkippedEvent).Key)
}

func TestListAllSkipsMissingAndMalformedRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedList(t, f, "good", 2)
	require.NoError(t, f.store.Set(ctx, "list_bad", []byte(`{"id": 7`)))
	ids, _ := json.Marshal([]string{"good", "bad", "gone"})
	require.NoError(t, f.store.Set(ctx, domain.ListIndexKey, ids))

	lists, err := f.lists.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, "good", lists[0].ID)

	var keys []string
	for _, e := range f.publisher.ofType(domain.EventRecordSkipped) {
		keys = append(keys, e.Data.(domain.RecordSkippedEvent).Key)
	}
	assert.Equal(t, []string{"list_bad", "list_gone"}, keys)
}

func TestListAllServesSnapshotUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedList(t, f, "a", 0)

	first, err := f.lists.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// a write that bypasses the service is not seen until invalidation
	seedList(t, f, "b", 5)
	cached, err := f.lists.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	f.lists.Invalidate(ctx)
	fresh, err := f.lists.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	assert.Equal(t, "b", fresh[0].ID)
}

func TestListAllCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.lists.ListAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetList(t *testing.T) {
	f := newFixture(t)
	created := f.createList(t, "one", "alice")

	got, err := f.lists.GetList(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = f.lists.GetList(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrListNotFound)
}

func TestListAllAfterRecordLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.lists.CreateList(ctx, ports.CreateListInput{Title: "kept", CreatorID: "alice"})
	require.NoError(t, err)
	lost, err := f.lists.CreateList(ctx, ports.CreateListInput{Title: "lost", CreatorID: "alice"})
	require.NoError(t, err)

	f.store.Delete(domain.ListRecordKey(lost.ID))
	f.lists.Invalidate(ctx)

	lists, err := f.lists.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, created.ID, lists[0].ID)
	require.Len(t, f.publisher.ofType(domain.EventRecordSkipped), 1)
}

// gatedIndexRepo reads the index once, then holds the first ListAll until
// release is closed.
type gatedIndexRepo struct {
	ports.ListRepository
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (r *gatedIndexRepo) GetIndex(ctx context.Context) ([]string, error) {
	ids, err := r.ListRepository.GetIndex(ctx)
	r.once.Do(func() {
		close(r.read)
		<-r.release
	})
	return ids, err
}

func TestListAllDoesNotCacheSnapshotOverlappingCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := &gatedIndexRepo{
		ListRepository: f.listRepo,
		read:           make(chan struct{}),
		release:        make(chan struct{}),
	}
	lists := NewListService(repo, memory.NewSnapshotCache(0, nil), f.publisher, zerolog.Nop())

	stale := make(chan []domain.List, 1)
	go func() {
		got, err := lists.ListAll(ctx)
		assert.NoError(t, err)
		stale <- got
	}()

	<-repo.read
	created, err := lists.CreateList(ctx, ports.CreateListInput{Title: "late", CreatorID: "alice"})
	require.NoError(t, err)
	close(repo.release)
	assert.Empty(t, <-stale)

	got, err := lists.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, created.ID, got[0].ID)
}
