package domain

import "time"

type EventType string

const (
	EventListCreated         EventType = "list.created"
	EventVoteRecorded        EventType = "vote.recorded"
	EventDecryptionRequested EventType = "decryption.requested"
	EventDecryptionCompleted EventType = "decryption.completed"
	EventDecryptionFailed    EventType = "decryption.failed"
	EventSettlementFailed    EventType = "settlement.failed"
	EventRewardsSettled      EventType = "rewards.settled"
	EventRewardClaimed       EventType = "reward.claimed"
	EventStakeWithdrawn      EventType = "stake.withdrawn"
	EventRecordSkipped       EventType = "record.skipped"
	EventListReconciled      EventType = "list.reconciled"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      any
}

func NewEvent(eventType EventType, data any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

type ListCreatedEvent struct {
	ListID  string
	Creator string
}

type VoteRecordedEvent struct {
	Voter  string
	ListID string
	Stake  uint64
	Path   VotePath
}

type DecryptionRequestedEvent struct {
	ListID    string
	RequestID string
}

type DecryptionCompletedEvent struct {
	ListID         string
	RequestID      string
	DecryptedCount uint64
	// Applied is false when a newer decryption already set totalVotes.
	Applied bool
}

type DecryptionFailedEvent struct {
	ListID    string
	RequestID string
	Reason    string
}

// SettlementFailedEvent reports a verified callback whose request was closed
// but whose list update or reward split did not complete.
type SettlementFailedEvent struct {
	ListID    string
	RequestID string
	Stage     string
	Reason    string
}

type RewardsSettledEvent struct {
	Settlement Settlement
}

type RewardClaimedEvent struct {
	Account string
	Amount  uint64
}

type StakeWithdrawnEvent struct {
	Account string
	ListID  string
	Amount  uint64
}

// RecordSkippedEvent reports a stored payload that could not be read or
// parsed and was left out of a listing.
type RecordSkippedEvent struct {
	Key    string
	Reason string
}

type ListReconciledEvent struct {
	ListID string
}
