package ports

import (
	"context"

	"github.com/vncsmyrnk/curation/internal/core/domain"
)

// EscrowRepository holds the stake pool of each list: every staker's share
// plus any carried amount owned by nobody. Stakes and the pool live in one
// record, so a withdrawal and a settlement can never both pay the same funds.
type EscrowRepository interface {
	AddStake(ctx context.Context, listID, staker string, amount uint64) error
	// TakeStake removes the staker's share from the pool in one update. A
	// zero share returns domain.ErrInsufficientBalance.
	TakeStake(ctx context.Context, listID, staker string) (uint64, error)
	StakeOf(ctx context.Context, listID, staker string) (uint64, error)
	// Drain empties the pool, stakes and carry alike, and returns its total.
	Drain(ctx context.Context, listID string) (uint64, error)
	// Carry adds an amount that belongs to no staker; the next Drain pays it.
	Carry(ctx context.Context, listID string, amount uint64) error
	Balance(ctx context.Context, listID string) (uint64, error)
}

// RewardRepository keeps claimable balances of user accounts apart from
// house accounts (treasury and pool), which no session can claim.
type RewardRepository interface {
	Credit(ctx context.Context, account string, amount uint64) error
	// Take reads and zeroes the balance in one update. A zero balance
	// returns domain.ErrInsufficientBalance.
	Take(ctx context.Context, account string) (uint64, error)
	Balance(ctx context.Context, account string) (uint64, error)
	CreditHouse(ctx context.Context, account string, amount uint64) error
	HouseBalance(ctx context.Context, account string) (uint64, error)
}

type DecryptionRequestRepository interface {
	Create(ctx context.Context, req *domain.DecryptionRequest) error
	Get(ctx context.Context, id string) (*domain.DecryptionRequest, error)
	// MarkSettled moves a pending request to settled. It returns
	// domain.ErrUnknownRequest or domain.ErrRequestAlreadySettled otherwise.
	MarkSettled(ctx context.Context, id string, decryptedCount uint64) (*domain.DecryptionRequest, error)
	// MarkFailed closes a pending request the oracle could not decrypt.
	MarkFailed(ctx context.Context, id, reason string) (*domain.DecryptionRequest, error)
	Pending(ctx context.Context) ([]*domain.DecryptionRequest, error)
}

// DecryptionCallback is invoked by the oracle, possibly much later, with the
// cleartext tally and a proof over it.
type DecryptionCallback func(ctx context.Context, requestID string, cleartext, proof []byte) error

// DecryptionFailure is invoked instead of the callback when the oracle
// cannot produce a cleartext for the request.
type DecryptionFailure func(ctx context.Context, requestID string, reason error) error

// DecryptionHandlers receive the outcome of one request. Exactly one of
// them is invoked.
type DecryptionHandlers struct {
	Decrypted DecryptionCallback
	Failed    DecryptionFailure
}

type DecryptionOracle interface {
	RequestDecryption(ctx context.Context, handle domain.Ciphertext, handlers DecryptionHandlers) (string, error)
}

type ProofVerifier interface {
	Verify(requestID string, cleartext, proof []byte) error
}

// Payer moves funds out to an account. Implementations return
// domain.ErrApprovalRejected when the transfer is declined.
type Payer interface {
	Transfer(ctx context.Context, account string, amount uint64) error
}

type SettlementService interface {
	RequestTallyDecryption(ctx context.Context, listID, requester string) (*domain.DecryptionRequest, error)
	OnTallyDecrypted(ctx context.Context, requestID string, cleartext, proof []byte) error
	SettleRewards(ctx context.Context, listID string, decryptedCount uint64) (*domain.Settlement, error)
	ClaimRewards(ctx context.Context, account string) (uint64, error)
	WithdrawStake(ctx context.Context, account, listID string) (uint64, error)
	RewardBalance(ctx context.Context, account string) (uint64, error)
	StakeOf(ctx context.Context, account, listID string) (uint64, error)
	HouseBalance(ctx context.Context, account string) (uint64, error)
	PendingRequests(ctx context.Context) ([]*domain.DecryptionRequest, error)
}
