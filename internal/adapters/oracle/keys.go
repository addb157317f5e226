// Package oracle is a local decryption oracle. It holds the tally private key,
// decrypts submitted handles asynchronously and signs each result so the
// callback receiver can verify it before trusting the cleartext.
package oracle

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/vncsmyrnk/curation/internal/adapters/fhe"
)

type Keys struct {
	Tally   *fhe.PrivateKey
	Signing ed25519.PrivateKey
}

type keyFile struct {
	PaillierP   string `json:"paillier_p"`
	PaillierQ   string `json:"paillier_q"`
	SigningSeed string `json:"signing_seed"`
}

// GenerateKeys creates fresh tally and signing keys.
func GenerateKeys(bits int) (*Keys, error) {
	tally, err := fhe.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tally key: %w", err)
	}
	_, signing, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return &Keys{Tally: tally, Signing: signing}, nil
}

// LoadOrCreateKeys loads the oracle keys from path, generating and saving
// them with 0600 permissions when the file is missing or empty. Tallies can
// only be decrypted by the key they were encrypted under, so the file must
// survive restarts.
func LoadOrCreateKeys(path string, bits int) (*Keys, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0) {
		keys, err := GenerateKeys(bits)
		if err != nil {
			return nil, err
		}
		if err := saveKeys(path, keys); err != nil {
			return nil, err
		}
		return keys, nil
	}
	if err != nil {
		return nil, err
	}
	if info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("key file %s must not be accessible by group or others", path)
	}
	return loadKeys(path)
}

// VerifyingKey returns the public key callbacks are checked against.
func (k *Keys) VerifyingKey() ed25519.PublicKey {
	return k.Signing.Public().(ed25519.PublicKey)
}

func saveKeys(path string, keys *Keys) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	raw, err := json.Marshal(keyFile{
		PaillierP:   keys.Tally.P.Text(16),
		PaillierQ:   keys.Tally.Q.Text(16),
		SigningSeed: hex.EncodeToString(keys.Signing.Seed()),
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

func loadKeys(path string) (*Keys, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return nil, fmt.Errorf("failed to parse key file: %w", err)
	}

	p, okP := new(big.Int).SetString(kf.PaillierP, 16)
	q, okQ := new(big.Int).SetString(kf.PaillierQ, 16)
	if !okP || !okQ {
		return nil, errors.New("key file has invalid tally primes")
	}
	tally, err := fhe.NewPrivateKey(p, q)
	if err != nil {
		return nil, err
	}

	seed, err := hex.DecodeString(kf.SigningSeed)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, errors.New("key file has invalid signing seed")
	}

	return &Keys{Tally: tally, Signing: ed25519.NewKeyFromSeed(seed)}, nil
}
