package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ledger keys of the list index and of each list record.
const (
	ListIndexKey     = "list_keys"
	ListRecordPrefix = "list_"
)

func ListRecordKey(id string) string { return ListRecordPrefix + id }

// List is one curated list as stored under list_<id>.
type List struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Creator     string `json:"creator"`
	CreatedAt   int64  `json:"createdAt"`
	TotalVotes  int64  `json:"totalVotes"`
	// TalliedAt is the request time, in unix nanoseconds, of the decryption
	// that produced TotalVotes.
	TalliedAt int64 `json:"talliedAt,omitempty"`
}

// ApplyTally records a decrypted count unless a later request has already
// been applied. Callbacks may arrive in any order.
func (l *List) ApplyTally(count int64, requestedAt time.Time) bool {
	stamp := requestedAt.UnixNano()
	if stamp <= l.TalliedAt {
		return false
	}
	l.TotalVotes = count
	l.TalliedAt = stamp
	return true
}

// NewListID returns "<unix millis>-<random hex>".
func NewListID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}

// Ciphertext is an opaque encrypted tally handle or encrypted vote increment.
type Ciphertext []byte
