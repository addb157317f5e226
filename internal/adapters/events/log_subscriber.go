package events

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vncsmyrnk/curation/internal/core/domain"
)

// LogHandler writes each event as one structured log line. Skipped records
// and failed decryptions are warnings, a settlement left incomplete is an
// error, and everything else is info.
func LogHandler(logger zerolog.Logger) HandlerFunc {
	return func(ctx context.Context, event domain.Event) {
		evt := logger.Info()
		switch event.Type {
		case domain.EventRecordSkipped, domain.EventDecryptionFailed:
			evt = logger.Warn()
		case domain.EventSettlementFailed:
			evt = logger.Error()
		}
		evt = evt.Str("event", string(event.Type)).Time("at", event.Timestamp)

		switch d := event.Data.(type) {
		case domain.ListCreatedEvent:
			evt = evt.Str("list_id", d.ListID).Str("creator", d.Creator)
		case domain.VoteRecordedEvent:
			evt = evt.Str("list_id", d.ListID).Str("voter", d.Voter).Uint64("stake", d.Stake).Str("path", string(d.Path))
		case domain.DecryptionRequestedEvent:
			evt = evt.Str("list_id", d.ListID).Str("request_id", d.RequestID)
		case domain.DecryptionCompletedEvent:
			evt = evt.Str("list_id", d.ListID).Str("request_id", d.RequestID).Uint64("decrypted_count", d.DecryptedCount).Bool("applied", d.Applied)
		case domain.DecryptionFailedEvent:
			evt = evt.Str("list_id", d.ListID).Str("request_id", d.RequestID).Str("reason", d.Reason)
		case domain.SettlementFailedEvent:
			evt = evt.Str("list_id", d.ListID).Str("request_id", d.RequestID).Str("stage", d.Stage).Str("reason", d.Reason)
		case domain.RewardsSettledEvent:
			s := d.Settlement
			evt = evt.Str("list_id", s.ListID).
				Uint64("total", s.Total).
				Uint64("creator_share", s.CreatorShare).
				Uint64("treasury_share", s.TreasuryShare).
				Uint64("pool_share", s.PoolShare)
		case domain.RewardClaimedEvent:
			evt = evt.Str("account", d.Account).Uint64("amount", d.Amount)
		case domain.StakeWithdrawnEvent:
			evt = evt.Str("account", d.Account).Str("list_id", d.ListID).Uint64("amount", d.Amount)
		case domain.RecordSkippedEvent:
			evt = evt.Str("key", d.Key).Str("reason", d.Reason)
		case domain.ListReconciledEvent:
			evt = evt.Str("list_id", d.ListID)
		}
		evt.Msg("event")
	}
}
