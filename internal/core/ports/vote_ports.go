package ports

import (
	"context"

	"github.com/vncsmyrnk/curation/internal/core/domain"
)

type TallyRepository interface {
	// Get returns domain.ErrNoTally when no vote has been combined yet.
	Get(ctx context.Context, listID string) (domain.Ciphertext, error)
	// Combine homomorphically adds increment into the list tally in one
	// atomic update. The first increment initializes the tally.
	Combine(ctx context.Context, listID string, increment domain.Ciphertext) error
}

// HomomorphicScheme is the public half of the additive encryption used for
// tallies. Decryption lives behind the DecryptionOracle.
type HomomorphicScheme interface {
	EncryptCount(n uint64) (domain.Ciphertext, error)
	Add(a, b domain.Ciphertext) (domain.Ciphertext, error)
	Validate(c domain.Ciphertext) error
}

type VoteInput struct {
	ListID  string
	VoterID string
	Stake   uint64
}

type VoteService interface {
	Vote(ctx context.Context, input VoteInput) error
	// VoteSimple is the non-authoritative demo path; see domain.VoteSimple.
	VoteSimple(ctx context.Context, input VoteInput) (*domain.List, error)
}
