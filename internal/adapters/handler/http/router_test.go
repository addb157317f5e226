package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/curation/internal/adapters/cache/memory"
	"github.com/vncsmyrnk/curation/internal/adapters/events"
	kvmemory "github.com/vncsmyrnk/curation/internal/adapters/kv/memory"
	"github.com/vncsmyrnk/curation/internal/adapters/metrics"
	"github.com/vncsmyrnk/curation/internal/adapters/oracle"
	"github.com/vncsmyrnk/curation/internal/adapters/repository/ledger"
	"github.com/vncsmyrnk/curation/internal/core/domain"
	"github.com/vncsmyrnk/curation/internal/core/ports"
	"github.com/vncsmyrnk/curation/internal/core/services"
)

// holdingOracle records requests and never answers; tests post the
// callback over HTTP.
type holdingOracle struct {
	mu      sync.Mutex
	handles map[string]domain.Ciphertext
}

func (o *holdingOracle) RequestDecryption(_ context.Context, handle domain.Ciphertext, _ ports.DecryptionHandlers) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := uuid.NewString()
	o.handles[id] = handle
	return id, nil
}

func (o *holdingOracle) handle(id string) domain.Ciphertext {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.handles[id]
}

type switchablePayer struct {
	inner  ports.Payer
	reject atomic.Bool
}

func (p *switchablePayer) Transfer(ctx context.Context, account string, amount uint64) error {
	if p.reject.Load() {
		return domain.ErrApprovalRejected
	}
	return p.inner.Transfer(ctx, account, amount)
}

var (
	keysOnce sync.Once
	keys     *oracle.Keys
)

type testApp struct {
	server   *httptest.Server
	sessions ports.SessionService
	keys     *oracle.Keys
	oracle   *holdingOracle
	payer    *switchablePayer
	wallet   *ledger.WalletPayer
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	keysOnce.Do(func() {
		keys, _ = oracle.GenerateKeys(512)
	})
	require.NotNil(t, keys)

	store := kvmemory.NewStore()
	scheme := &keys.Tally.PublicKey
	logger := zerolog.Nop()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	bus := events.NewBus(logger)
	bus.SubscribeAll(m.HandleEvent)

	app := &testApp{
		sessions: services.NewSessionService("test-secret", time.Hour),
		keys:     keys,
		oracle:   &holdingOracle{handles: make(map[string]domain.Ciphertext)},
		wallet:   ledger.NewWalletPayer(store),
	}
	app.payer = &switchablePayer{inner: app.wallet}

	listRepo := ledger.NewListRepository(store)
	tallies := ledger.NewTallyRepository(store, scheme)
	escrow := ledger.NewEscrowRepository(store)

	lists := services.NewListService(listRepo, memory.NewSnapshotCache(0, m.ObserveCache), bus, logger)
	votes := services.NewVoteService(services.VoteDependencies{
		Lists: listRepo, Tallies: tallies, Escrow: escrow,
		Scheme: scheme, Snapshot: lists, Publisher: bus,
	}, true)
	settlement := services.NewSettlementService(services.SettlementDependencies{
		Lists: listRepo, Tallies: tallies, Escrow: escrow,
		Rewards:  ledger.NewRewardRepository(store),
		Requests: ledger.NewDecryptionRequestRepository(store),
		Oracle:   app.oracle,
		Verifier: oracle.NewEd25519Verifier(keys.VerifyingKey()),
		Payer:    app.payer, Snapshot: lists, Publisher: bus, Logger: logger,
	}, services.SettlementAccounts{Treasury: "treasury", Pool: "pool"})
	tracker := services.NewOperationTracker(time.Minute)

	handler := NewHandler(Handlers{
		Lists:      NewListHandler(lists, tracker),
		Votes:      NewVoteHandler(votes, tracker),
		Settlement: NewSettlementHandler(settlement, tracker),
		Operations: NewOperationHandler(tracker),
	}, RouterOptions{
		Sessions:    app.sessions,
		Logger:      logger,
		CORSOrigins: []string{"http://localhost:3000"},
		Metrics:     m,
		Gatherer:    registry,
	})

	app.server = httptest.NewServer(handler)
	t.Cleanup(app.server.Close)
	return app
}

func (a *testApp) token(t *testing.T, account string) string {
	t.Helper()
	token, err := a.sessions.Issue(account)
	require.NoError(t, err)
	return token
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: token})
	}
	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (a *testApp) createList(t *testing.T, token, title string) domain.List {
	t.Helper()
	resp := a.do(t, http.MethodPost, "/api/lists", token, map[string]string{"title": title})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[domain.List](t, resp)
}

func TestHealthz(t *testing.T) {
	app := setupTestApp(t)
	resp := app.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateListRequiresSession(t *testing.T) {
	app := setupTestApp(t)

	resp := app.do(t, http.MethodPost, "/api/lists", "", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = app.do(t, http.MethodPost, "/api/lists", "forged", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	lists := decode[[]domain.List](t, app.do(t, http.MethodGet, "/api/lists", "", nil))
	assert.Empty(t, lists)
}

func TestCreateAndListWithOperationStatus(t *testing.T) {
	app := setupTestApp(t)
	token := app.token(t, "alice")

	resp := app.do(t, http.MethodPost, "/api/lists", token, map[string]string{"title": "Jazz", "description": "modal"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	opID := resp.Header.Get(operationHeader)
	require.NotEmpty(t, opID)
	created := decode[domain.List](t, resp)
	assert.Equal(t, "alice", created.Creator)

	op := decode[ports.Operation](t, app.do(t, http.MethodGet, "/api/operations/"+opID, "", nil))
	assert.Equal(t, ports.OperationSuccess, op.Status)

	lists := decode[[]domain.List](t, app.do(t, http.MethodGet, "/api/lists", "", nil))
	require.Len(t, lists, 1)
	assert.Equal(t, created.ID, lists[0].ID)
	assert.Zero(t, lists[0].TotalVotes)

	got := decode[domain.List](t, app.do(t, http.MethodGet, "/api/lists/"+created.ID, "", nil))
	assert.Equal(t, created, got)

	resp = app.do(t, http.MethodGet, "/api/lists/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = app.do(t, http.MethodPost, "/api/lists", token, map[string]string{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	op = decode[ports.Operation](t, app.do(t, http.MethodGet, "/api/operations/"+resp.Header.Get(operationHeader), "", nil))
	assert.Equal(t, ports.OperationError, op.Status)
}

func TestSimpleVote(t *testing.T) {
	app := setupTestApp(t)
	list := app.createList(t, app.token(t, "alice"), "l")

	resp := app.do(t, http.MethodPost, "/api/lists/"+list.ID+"/votes", app.token(t, "bob"), map[string]any{"mode": "simple"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, float64(1), body["total_votes"])

	resp = app.do(t, http.MethodPost, "/api/lists/"+list.ID+"/votes", app.token(t, "bob"), map[string]any{"mode": "bogus"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDecryptionSettlementAndClaimFlow(t *testing.T) {
	app := setupTestApp(t)
	alice, bob := app.token(t, "alice"), app.token(t, "bob")
	list := app.createList(t, alice, "l")

	resp := app.do(t, http.MethodPost, "/api/lists/"+list.ID+"/decryptions", alice, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = app.do(t, http.MethodPost, "/api/lists/"+list.ID+"/votes", bob, map[string]any{"stake": 100})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	stake := decode[amountResponse](t, app.do(t, http.MethodGet, "/api/lists/"+list.ID+"/stake", bob, nil))
	assert.Equal(t, uint64(100), stake.Amount)

	resp = app.do(t, http.MethodPost, "/api/lists/"+list.ID+"/decryptions", alice, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	requestID := decode[map[string]string](t, resp)["request_id"]
	require.NotEmpty(t, requestID)

	pending := decode[[]domain.DecryptionRequest](t, app.do(t, http.MethodGet, "/api/decryptions", "", nil))
	require.Len(t, pending, 1)

	count, err := app.keys.Tally.Decrypt(app.oracle.handle(requestID))
	require.NoError(t, err)
	cleartext := domain.EncodeCleartext(count.Uint64())

	resp = app.do(t, http.MethodPost, "/api/oracle/callback", "", oracleCallbackRequest{
		RequestID: requestID,
		Cleartext: domain.EncodeCleartext(99),
		Proof:     oracle.Sign(app.keys.Signing, requestID, cleartext),
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	callback := oracleCallbackRequest{
		RequestID: requestID,
		Cleartext: cleartext,
		Proof:     oracle.Sign(app.keys.Signing, requestID, cleartext),
	}
	resp = app.do(t, http.MethodPost, "/api/oracle/callback", "", callback)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = app.do(t, http.MethodPost, "/api/oracle/callback", "", callback)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	lists := decode[[]domain.List](t, app.do(t, http.MethodGet, "/api/lists", "", nil))
	assert.Equal(t, int64(1), lists[0].TotalVotes)

	rewards := decode[amountResponse](t, app.do(t, http.MethodGet, "/api/rewards", alice, nil))
	assert.Equal(t, uint64(10), rewards.Amount)

	app.payer.reject.Store(true)
	resp = app.do(t, http.MethodPost, "/api/rewards/claim", alice, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	msg := new(bytes.Buffer)
	_, _ = msg.ReadFrom(resp.Body)
	assert.Contains(t, msg.String(), "declined in your wallet")

	app.payer.reject.Store(false)
	claimed := decode[amountResponse](t, app.do(t, http.MethodPost, "/api/rewards/claim", alice, nil))
	assert.Equal(t, uint64(10), claimed.Amount)
	resp = app.do(t, http.MethodPost, "/api/rewards/claim", alice, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	wallet, err := app.wallet.WalletBalance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), wallet)

	// the settlement spent bob's stake
	resp = app.do(t, http.MethodDelete, "/api/lists/"+list.ID+"/stake", bob, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	stake = decode[amountResponse](t, app.do(t, http.MethodGet, "/api/lists/"+list.ID+"/stake", bob, nil))
	assert.Zero(t, stake.Amount)

	// house balances are not claimable by a session that shares their name
	resp = app.do(t, http.MethodPost, "/api/rewards/claim", app.token(t, "pool"), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	poolWallet, err := app.wallet.WalletBalance(context.Background(), "pool")
	require.NoError(t, err)
	assert.Zero(t, poolWallet)
}

func TestWithdrawBeforeSettlementLeavesNothingToSplit(t *testing.T) {
	app := setupTestApp(t)
	alice, bob := app.token(t, "alice"), app.token(t, "bob")
	list := app.createList(t, alice, "l")

	resp := app.do(t, http.MethodPost, "/api/lists/"+list.ID+"/votes", bob, map[string]any{"stake": 100})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	withdrawn := decode[amountResponse](t, app.do(t, http.MethodDelete, "/api/lists/"+list.ID+"/stake", bob, nil))
	assert.Equal(t, uint64(100), withdrawn.Amount)

	resp = app.do(t, http.MethodPost, "/api/lists/"+list.ID+"/decryptions", alice, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	requestID := decode[map[string]string](t, resp)["request_id"]
	count, err := app.keys.Tally.Decrypt(app.oracle.handle(requestID))
	require.NoError(t, err)
	cleartext := domain.EncodeCleartext(count.Uint64())
	resp = app.do(t, http.MethodPost, "/api/oracle/callback", "", oracleCallbackRequest{
		RequestID: requestID,
		Cleartext: cleartext,
		Proof:     oracle.Sign(app.keys.Signing, requestID, cleartext),
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	rewards := decode[amountResponse](t, app.do(t, http.MethodGet, "/api/rewards", alice, nil))
	assert.Zero(t, rewards.Amount)
	wallet, err := app.wallet.WalletBalance(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), wallet)
}

func TestVoteRejectsClientCiphertext(t *testing.T) {
	app := setupTestApp(t)
	alice, bob := app.token(t, "alice"), app.token(t, "bob")
	list := app.createList(t, alice, "l")

	thousand, err := app.keys.Tally.EncryptCount(1000)
	require.NoError(t, err)
	resp := app.do(t, http.MethodPost, "/api/lists/"+list.ID+"/votes", bob, map[string]any{"stake": 5, "encrypted_vote": []byte(thousand)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// nothing was combined, so there is no tally to decrypt yet
	resp = app.do(t, http.MethodPost, "/api/lists/"+list.ID+"/decryptions", alice, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	stake := decode[amountResponse](t, app.do(t, http.MethodGet, "/api/lists/"+list.ID+"/stake", bob, nil))
	assert.Zero(t, stake.Amount)
}

func TestMetricsEndpoint(t *testing.T) {
	app := setupTestApp(t)
	app.createList(t, app.token(t, "alice"), "l")

	resp := app.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := new(bytes.Buffer)
	_, _ = body.ReadFrom(resp.Body)
	assert.Contains(t, body.String(), `curation_events_total{type="list.created"} 1`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNoSession, http.StatusUnauthorized},
		{domain.ErrListNotFound, http.StatusNotFound},
		{domain.ErrInvalidProof, http.StatusForbidden},
		{domain.ErrApprovalRejected, http.StatusConflict},
		{domain.ErrInsufficientBalance, http.StatusConflict},
		{domain.ErrTitleRequired, http.StatusBadRequest},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
