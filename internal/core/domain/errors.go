package domain

import "errors"

var (
	ErrKeyNotFound           = errors.New("key not found")
	ErrListNotFound          = errors.New("list not found")
	ErrTitleRequired         = errors.New("title is required")
	ErrMalformedRecord       = errors.New("malformed stored record")
	ErrNoSession             = errors.New("no wallet session established")
	ErrApprovalRejected      = errors.New("request was declined by the account holder")
	ErrNoTally               = errors.New("list has no encrypted tally yet")
	ErrInvalidCiphertext     = errors.New("invalid ciphertext")
	ErrCiphertextNotAccepted = errors.New("votes are encrypted by the node; client ciphertexts are not accepted")
	ErrInvalidProof          = errors.New("decryption proof verification failed")
	ErrMalformedCleartext    = errors.New("malformed decrypted cleartext")
	ErrUnknownRequest        = errors.New("unknown decryption request")
	ErrRequestAlreadySettled = errors.New("decryption request already settled")
	ErrRequestFailed         = errors.New("decryption request failed")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrSimpleVotingDisabled  = errors.New("simplified voting path is disabled")
	ErrInvalidSession        = errors.New("invalid session token")
	ErrInternal              = errors.New("internal server error")
)
