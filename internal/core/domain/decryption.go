package domain

import (
	"encoding/binary"
	"math/big"
	"time"
)

type RequestStatus string

const (
	RequestPending RequestStatus = "pending"
	RequestSettled RequestStatus = "settled"
	// RequestFailed marks a request the oracle could not decrypt.
	RequestFailed RequestStatus = "failed"
)

// DecryptionRequest maps an oracle request id to the list whose tally was
// submitted. Requests stay pending until the oracle calls back; there is no
// timeout.
type DecryptionRequest struct {
	ID             string        `json:"id"`
	ListID         string        `json:"listId"`
	Requester      string        `json:"requester"`
	Status         RequestStatus `json:"status"`
	RequestedAt    time.Time     `json:"requestedAt"`
	SettledAt      *time.Time    `json:"settledAt,omitempty"`
	DecryptedCount uint64        `json:"decryptedCount,omitempty"`
	FailureReason  string        `json:"failureReason,omitempty"`
}

// CleartextSize is the width of a decrypted tally: a big-endian uint256.
const CleartextSize = 32

func EncodeCleartext(count uint64) []byte {
	out := make([]byte, CleartextSize)
	binary.BigEndian.PutUint64(out[CleartextSize-8:], count)
	return out
}

// DecodeCleartext reads a big-endian unsigned integer of up to 32 bytes that
// must fit in a uint64.
func DecodeCleartext(b []byte) (uint64, error) {
	if len(b) == 0 || len(b) > CleartextSize {
		return 0, ErrMalformedCleartext
	}
	n := new(big.Int).SetBytes(b)
	if !n.IsUint64() {
		return 0, ErrMalformedCleartext
	}
	return n.Uint64(), nil
}
