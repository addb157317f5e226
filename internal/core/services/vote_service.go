package services

import (
	"context"
	"fmt"

	"github.com/vncsmyrnk/curation/internal/core/domain"
	"github.com/vncsmyrnk/curation/internal/core/ports"
)

type VoteDependencies struct {
	Lists     ports.ListRepository
	Tallies   ports.TallyRepository
	Escrow    ports.EscrowRepository
	Scheme    ports.HomomorphicScheme
	Snapshot  ports.ListService
	Publisher ports.EventPublisher
}

type voteService struct {
	VoteDependencies
	simpleEnabled bool
}

func NewVoteService(deps VoteDependencies, enableSimpleVoting bool) ports.VoteService {
	return &voteService{
		VoteDependencies: deps,
		simpleEnabled:    enableSimpleVoting,
	}
}

// Vote combines an encryption of exactly one into the list tally. The node
// encrypts the increment itself; totalVotes is left alone until a decryption
// settles it.
func (s *voteService) Vote(ctx context.Context, input ports.VoteInput) error {
	if input.VoterID == "" {
		return domain.ErrNoSession
	}
	if _, err := s.Lists.GetByID(ctx, input.ListID); err != nil {
		return err
	}

	increment, err := s.Scheme.EncryptCount(1)
	if err != nil {
		return fmt.Errorf("failed to encrypt vote: %w", err)
	}

	if err := s.Tallies.Combine(ctx, input.ListID, increment); err != nil {
		return err
	}

	if err := s.recordStake(ctx, input); err != nil {
		return err
	}

	s.Publisher.Publish(ctx, domain.NewEvent(domain.EventVoteRecorded, domain.VoteRecordedEvent{
		Voter:  input.VoterID,
		ListID: input.ListID,
		Stake:  input.Stake,
		Path:   domain.VoteHomomorphic,
	}))
	return nil
}

// VoteSimple is a plain get, increment, set on the record. Two concurrent
// votes can both read the same count and one of them is lost.
func (s *voteService) VoteSimple(ctx context.Context, input ports.VoteInput) (*domain.List, error) {
	if !s.simpleEnabled {
		return nil, domain.ErrSimpleVotingDisabled
	}
	if input.VoterID == "" {
		return nil, domain.ErrNoSession
	}

	list, err := s.Lists.GetByID(ctx, input.ListID)
	if err != nil {
		return nil, err
	}
	list.TotalVotes++
	if err := s.Lists.Save(ctx, list); err != nil {
		return nil, err
	}

	if err := s.recordStake(ctx, input); err != nil {
		return nil, err
	}

	s.Snapshot.Invalidate(ctx)
	s.Publisher.Publish(ctx, domain.NewEvent(domain.EventVoteRecorded, domain.VoteRecordedEvent{
		Voter:  input.VoterID,
		ListID: input.ListID,
		Stake:  input.Stake,
		Path:   domain.VoteSimple,
	}))
	return list, nil
}

func (s *voteService) recordStake(ctx context.Context, input ports.VoteInput) error {
	if input.Stake == 0 {
		return nil
	}
	return s.Escrow.AddStake(ctx, input.ListID, input.VoterID, input.Stake)
}
