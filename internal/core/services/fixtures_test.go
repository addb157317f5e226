package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/curation/internal/adapters/cache/memory"
	kvmemory "github.com/vncsmyrnk/curation/internal/adapters/kv/memory"
	"github.com/vncsmyrnk/curation/internal/adapters/oracle"
	"github.com/vncsmyrnk/curation/internal/adapters/repository/ledger"
	"github.com/vncsmyrnk/curation/internal/core/domain"
	"github.com/vncsmyrnk/curation/internal/core/ports"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) ofType(t domain.EventType) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// fakePayer records transfers and can be told to decline them.
type fakePayer struct {
	mu        sync.Mutex
	reject    bool
	transfers map[string]uint64
}

func (p *fakePayer) Transfer(_ context.Context, account string, amount uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reject {
		return domain.ErrApprovalRejected
	}
	if p.transfers == nil {
		p.transfers = make(map[string]uint64)
	}
	p.transfers[account] += amount
	return nil
}

// manualOracle holds handlers until the test fires them.
type manualOracle struct {
	mu       sync.Mutex
	next     int
	handlers map[string]ports.DecryptionHandlers
	handles  map[string]domain.Ciphertext
}

func (o *manualOracle) RequestDecryption(_ context.Context, handle domain.Ciphertext, h ports.DecryptionHandlers) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.handlers == nil {
		o.handlers = make(map[string]ports.DecryptionHandlers)
		o.handles = make(map[string]domain.Ciphertext)
	}
	o.next++
	id := fmt.Sprintf("req-%d", o.next)
	o.handlers[id] = h
	o.handles[id] = handle
	return id, nil
}

type fixture struct {
	store     *kvmemory.Store
	keys      *oracle.Keys
	publisher *recordingPublisher
	payer     *fakePayer
	oracle    *manualOracle

	listRepo ports.ListRepository
	tallies  ports.TallyRepository
	escrow   ports.EscrowRepository
	rewards  ports.RewardRepository
	requests ports.DecryptionRequestRepository

	lists      ports.ListService
	votes      ports.VoteService
	settlement ports.SettlementService
	reconcile  ports.ReconcileService
}

var (
	testKeysOnce sync.Once
	testKeys     *oracle.Keys
)

// sharedKeys generates one small key per test binary; Paillier key
// generation dominates test time otherwise.
func sharedKeys(t *testing.T) *oracle.Keys {
	t.Helper()
	testKeysOnce.Do(func() {
		k, err := oracle.GenerateKeys(512)
		if err == nil {
			testKeys = k
		}
	})
	require.NotNil(t, testKeys)
	return testKeys
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     kvmemory.NewStore(),
		keys:      sharedKeys(t),
		publisher: &recordingPublisher{},
		payer:     &fakePayer{},
		oracle:    &manualOracle{},
	}
	scheme := &f.keys.Tally.PublicKey

	f.listRepo = ledger.NewListRepository(f.store)
	f.tallies = ledger.NewTallyRepository(f.store, scheme)
	f.escrow = ledger.NewEscrowRepository(f.store)
	f.rewards = ledger.NewRewardRepository(f.store)
	f.requests = ledger.NewDecryptionRequestRepository(f.store)

	f.lists = NewListService(f.listRepo, memory.NewSnapshotCache(0, nil), f.publisher, zerolog.Nop())
	f.votes = NewVoteService(VoteDependencies{
		Lists:     f.listRepo,
		Tallies:   f.tallies,
		Escrow:    f.escrow,
		Scheme:    scheme,
		Snapshot:  f.lists,
		Publisher: f.publisher,
	}, true)
	f.settlement = NewSettlementService(SettlementDependencies{
		Lists:     f.listRepo,
		Tallies:   f.tallies,
		Escrow:    f.escrow,
		Rewards:   f.rewards,
		Requests:  f.requests,
		Oracle:    f.oracle,
		Verifier:  oracle.NewEd25519Verifier(f.keys.VerifyingKey()),
		Payer:     f.payer,
		Snapshot:  f.lists,
		Publisher: f.publisher,
		Logger:    zerolog.Nop(),
	}, SettlementAccounts{Treasury: "treasury", Pool: "pool"})
	f.reconcile = NewReconcileService(f.listRepo, f.lists, f.publisher)
	return f
}

func (f *fixture) createList(t *testing.T, title, creator string) *domain.List {
	t.Helper()
	list, err := f.lists.CreateList(context.Background(), ports.CreateListInput{
		Title:     title,
		CreatorID: creator,
	})
	require.NoError(t, err)
	return list
}

// decryptAndSign plays the oracle for a pending request.
func (f *fixture) decryptAndSign(t *testing.T, requestID string) (cleartext, proof []byte) {
	t.Helper()
	f.oracle.mu.Lock()
	handle := f.oracle.handles[requestID]
	f.oracle.mu.Unlock()

	count, err := f.keys.Tally.Decrypt(handle)
	require.NoError(t, err)
	cleartext = domain.EncodeCleartext(count.Uint64())
	return cleartext, oracle.Sign(f.keys.Signing, requestID, cleartext)
}

func encrypt(t *testing.T, f *fixture, n uint64) domain.Ciphertext {
	t.Helper()
	c, err := f.keys.Tally.EncryptCount(n)
	require.NoError(t, err)
	return c
}

var nopLogger = zerolog.Nop()

type nopCache struct{}

func (nopCache) GetSnapshot(context.Context) ([]domain.List, bool, error) { return nil, false, nil }
func (nopCache) SetSnapshot(context.Context, []domain.List) error         { return nil }
func (nopCache) Invalidate(context.Context) error                         { return nil }
