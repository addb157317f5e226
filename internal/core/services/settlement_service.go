package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/vncsmyrnk/curation/internal/core/domain"
	"github.com/vncsmyrnk/curation/internal/core/ports"
)

var errStaleTally = errors.New("stale tally")

type SettlementDependencies struct {
	Lists     ports.ListRepository
	Tallies   ports.TallyRepository
	Escrow    ports.EscrowRepository
	Rewards   ports.RewardRepository
	Requests  ports.DecryptionRequestRepository
	Oracle    ports.DecryptionOracle
	Verifier  ports.ProofVerifier
	Payer     ports.Payer
	Snapshot  ports.ListService
	Publisher ports.EventPublisher
	Logger    zerolog.Logger
}

// SettlementAccounts name the house accounts that receive the treasury and
// pool shares of every settlement. House balances are not claimable.
type SettlementAccounts struct {
	Treasury string
	Pool     string
}

type settlementService struct {
	SettlementDependencies
	accounts SettlementAccounts
	now      func() time.Time
}

func NewSettlementService(deps SettlementDependencies, accounts SettlementAccounts) ports.SettlementService {
	return &settlementService{
		SettlementDependencies: deps,
		accounts:               accounts,
		now:                    time.Now,
	}
}

// RequestTallyDecryption submits the list tally to the oracle. The request
// is recorded before the callback is allowed to run, so an oracle answering
// immediately still finds it pending.
func (s *settlementService) RequestTallyDecryption(ctx context.Context, listID, requester string) (*domain.DecryptionRequest, error) {
	if requester == "" {
		return nil, domain.ErrNoSession
	}
	if _, err := s.Lists.GetByID(ctx, listID); err != nil {
		return nil, err
	}
	handle, err := s.Tallies.Get(ctx, listID)
	if err != nil {
		return nil, err
	}

	registered := make(chan struct{})
	defer close(registered)

	requestID, err := s.Oracle.RequestDecryption(ctx, handle, ports.DecryptionHandlers{
		Decrypted: func(cbCtx context.Context, id string, cleartext, proof []byte) error {
			<-registered
			return s.OnTallyDecrypted(cbCtx, id, cleartext, proof)
		},
		Failed: func(cbCtx context.Context, id string, reason error) error {
			<-registered
			return s.onDecryptionFailed(cbCtx, id, reason)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request decryption for %s: %w", listID, err)
	}

	req := &domain.DecryptionRequest{
		ID:          requestID,
		ListID:      listID,
		Requester:   requester,
		Status:      domain.RequestPending,
		RequestedAt: s.now(),
	}
	if err := s.Requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.Publisher.Publish(ctx, domain.NewEvent(domain.EventDecryptionRequested, domain.DecryptionRequestedEvent{
		ListID:    listID,
		RequestID: requestID,
	}))
	return req, nil
}

// OnTallyDecrypted is the oracle callback. Nothing is written unless the
// proof verifies, and each request settles at most once.
func (s *settlementService) OnTallyDecrypted(ctx context.Context, requestID string, cleartext, proof []byte) error {
	if err := s.Verifier.Verify(requestID, cleartext, proof); err != nil {
		s.Logger.Warn().Str("request_id", requestID).Err(err).Msg("rejected decryption callback")
		return err
	}

	count, err := domain.DecodeCleartext(cleartext)
	if err != nil {
		return err
	}
	if count > math.MaxInt64 {
		return fmt.Errorf("%w: count %d out of range", domain.ErrMalformedCleartext, count)
	}

	req, err := s.Requests.MarkSettled(ctx, requestID, count)
	if err != nil {
		return err
	}

	// the request is closed from here on; failures below cannot be replayed
	applied := true
	_, err = s.Lists.UpdateByID(ctx, req.ListID, func(list *domain.List) error {
		if !list.ApplyTally(int64(count), req.RequestedAt) {
			applied = false
			return errStaleTally
		}
		return nil
	})
	switch {
	case errors.Is(err, errStaleTally):
		s.Logger.Info().Str("request_id", requestID).Str("list_id", req.ListID).Msg("newer tally already applied; keeping it")
	case err != nil:
		err = fmt.Errorf("failed to record decrypted count for %s: %w", req.ListID, err)
		s.settlementFailed(ctx, req, "record_count", err)
		return err
	default:
		s.Snapshot.Invalidate(ctx)
	}

	s.Publisher.Publish(ctx, domain.NewEvent(domain.EventDecryptionCompleted, domain.DecryptionCompletedEvent{
		ListID:         req.ListID,
		RequestID:      requestID,
		DecryptedCount: count,
		Applied:        applied,
	}))

	if _, err := s.SettleRewards(ctx, req.ListID, count); err != nil {
		s.settlementFailed(ctx, req, "settle_rewards", err)
		return err
	}
	return nil
}

func (s *settlementService) settlementFailed(ctx context.Context, req *domain.DecryptionRequest, stage string, err error) {
	s.Logger.Error().Err(err).Str("request_id", req.ID).Str("list_id", req.ListID).Str("stage", stage).Msg("settlement incomplete after verified callback")
	s.Publisher.Publish(ctx, domain.NewEvent(domain.EventSettlementFailed, domain.SettlementFailedEvent{
		ListID:    req.ListID,
		RequestID: req.ID,
		Stage:     stage,
		Reason:    err.Error(),
	}))
}

// onDecryptionFailed closes a request the oracle could not decrypt, so it no
// longer sits in the pending table.
func (s *settlementService) onDecryptionFailed(ctx context.Context, requestID string, reason error) error {
	req, err := s.Requests.MarkFailed(ctx, requestID, reason.Error())
	if err != nil {
		return err
	}
	s.Logger.Warn().Err(reason).Str("request_id", requestID).Str("list_id", req.ListID).Msg("decryption failed")
	s.Publisher.Publish(ctx, domain.NewEvent(domain.EventDecryptionFailed, domain.DecryptionFailedEvent{
		ListID:    req.ListID,
		RequestID: requestID,
		Reason:    reason.Error(),
	}))
	return nil
}

// SettleRewards drains the list escrow into the creator, treasury and pool
// reward balances. The pool is a single shared account, not split per staker.
func (s *settlementService) SettleRewards(ctx context.Context, listID string, decryptedCount uint64) (*domain.Settlement, error) {
	list, err := s.Lists.GetByID(ctx, listID)
	if err != nil {
		return nil, err
	}

	total, err := s.Escrow.Drain(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to drain escrow for %s: %w", listID, err)
	}

	creatorShare, treasuryShare, poolShare := domain.SplitRewards(total)
	credits := []struct {
		account string
		amount  uint64
		credit  func(ctx context.Context, account string, amount uint64) error
	}{
		{list.Creator, creatorShare, s.Rewards.Credit},
		{s.accounts.Treasury, treasuryShare, s.Rewards.CreditHouse},
		{s.accounts.Pool, poolShare, s.Rewards.CreditHouse},
	}

	var credited uint64
	for _, c := range credits {
		if c.amount == 0 {
			continue
		}
		if err := c.credit(ctx, c.account, c.amount); err != nil {
			s.restoreEscrow(ctx, listID, total-credited)
			return nil, fmt.Errorf("failed to credit %s: %w", c.account, err)
		}
		credited += c.amount
	}

	settlement := &domain.Settlement{
		ListID:         listID,
		DecryptedCount: decryptedCount,
		Total:          total,
		CreatorShare:   creatorShare,
		TreasuryShare:  treasuryShare,
		PoolShare:      poolShare,
		SettledAt:      s.now(),
	}

	s.Publisher.Publish(ctx, domain.NewEvent(domain.EventRewardsSettled, domain.RewardsSettledEvent{
		Settlement: *settlement,
	}))
	return settlement, nil
}

func (s *settlementService) restoreEscrow(ctx context.Context, listID string, amount uint64) {
	if amount == 0 {
		return
	}
	if err := s.Escrow.Carry(ctx, listID, amount); err != nil {
		s.Logger.Error().Err(err).Str("list_id", listID).Uint64("amount", amount).Msg("failed to restore escrow after partial settlement")
	}
}

// ClaimRewards zeroes the balance before paying out. A failed transfer puts
// the amount back.
func (s *settlementService) ClaimRewards(ctx context.Context, account string) (uint64, error) {
	if account == "" {
		return 0, domain.ErrNoSession
	}

	amount, err := s.Rewards.Take(ctx, account)
	if err != nil {
		return 0, err
	}

	if err := s.Payer.Transfer(ctx, account, amount); err != nil {
		if cerr := s.Rewards.Credit(ctx, account, amount); cerr != nil {
			s.Logger.Error().Err(cerr).Str("account", account).Uint64("amount", amount).Msg("failed to restore reward after rejected transfer")
		}
		return 0, err
	}

	s.Publisher.Publish(ctx, domain.NewEvent(domain.EventRewardClaimed, domain.RewardClaimedEvent{
		Account: account,
		Amount:  amount,
	}))
	return amount, nil
}

// WithdrawStake takes the account's share out of the list pool and pays it.
// Once a settlement has drained the pool the stake is spent and there is
// nothing left to withdraw.
func (s *settlementService) WithdrawStake(ctx context.Context, account, listID string) (uint64, error) {
	if account == "" {
		return 0, domain.ErrNoSession
	}

	amount, err := s.Escrow.TakeStake(ctx, listID, account)
	if err != nil {
		return 0, err
	}

	if err := s.Payer.Transfer(ctx, account, amount); err != nil {
		if cerr := s.Escrow.AddStake(ctx, listID, account, amount); cerr != nil {
			s.Logger.Error().Err(cerr).Str("account", account).Str("list_id", listID).Uint64("amount", amount).Msg("failed to restore stake after rejected transfer")
		}
		return 0, err
	}

	s.Publisher.Publish(ctx, domain.NewEvent(domain.EventStakeWithdrawn, domain.StakeWithdrawnEvent{
		Account: account,
		ListID:  listID,
		Amount:  amount,
	}))
	return amount, nil
}

func (s *settlementService) RewardBalance(ctx context.Context, account string) (uint64, error) {
	if account == "" {
		return 0, domain.ErrNoSession
	}
	return s.Rewards.Balance(ctx, account)
}

func (s *settlementService) StakeOf(ctx context.Context, account, listID string) (uint64, error) {
	if account == "" {
		return 0, domain.ErrNoSession
	}
	return s.Escrow.StakeOf(ctx, listID, account)
}

func (s *settlementService) HouseBalance(ctx context.Context, account string) (uint64, error) {
	return s.Rewards.HouseBalance(ctx, account)
}

func (s *settlementService) PendingRequests(ctx context.Context) ([]*domain.DecryptionRequest, error) {
	return s.Requests.Pending(ctx)
}
