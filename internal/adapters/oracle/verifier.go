package oracle

import (
	"crypto/ed25519"

	"github.com/vncsmyrnk/curation/internal/core/domain"
)

// Sign produces the proof attached to a decryption result.
func Sign(key ed25519.PrivateKey, requestID string, cleartext []byte) []byte {
	return ed25519.Sign(key, proofMessage(requestID, cleartext))
}

type Ed25519Verifier struct {
	key ed25519.PublicKey
}

func NewEd25519Verifier(key ed25519.PublicKey) *Ed25519Verifier {
	return &Ed25519Verifier{key: key}
}

// Verify fails closed: anything but a valid signature by the oracle key over
// this request id and cleartext is rejected.
func (v *Ed25519Verifier) Verify(requestID string, cleartext, proof []byte) error {
	if len(v.key) != ed25519.PublicKeySize || len(proof) != ed25519.SignatureSize {
		return domain.ErrInvalidProof
	}
	if !ed25519.Verify(v.key, proofMessage(requestID, cleartext), proof) {
		return domain.ErrInvalidProof
	}
	return nil
}

func proofMessage(requestID string, cleartext []byte) []byte {
	msg := make([]byte, 0, len(requestID)+1+len(cleartext))
	msg = append(msg, requestID...)
	msg = append(msg, 0)
	return append(msg, cleartext...)
}
