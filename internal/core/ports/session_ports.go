package ports

import (
	"time"
)

type SessionService interface {
	// Issue returns a signed access token whose subject is the account.
	Issue(account string) (string, error)
	// Verify returns the account of a valid token.
	Verify(token string) (string, error)
}

type OperationStatus string

const (
	OperationPending OperationStatus = "pending"
	OperationSuccess OperationStatus = "success"
	OperationError   OperationStatus = "error"
)

type Operation struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Status    OperationStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OperationTracker keeps transient write status that clears itself after a
// fixed delay once the operation finishes.
type OperationTracker interface {
	Begin(kind string) string
	Finish(id string, err error)
	Get(id string) (Operation, bool)
}
