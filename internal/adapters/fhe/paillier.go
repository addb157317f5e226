// Package fhe provides an additively homomorphic encryption scheme for vote
// tallies. It is the local stand-in for the external FHE runtime: a Paillier
// cryptosystem where multiplying ciphertexts adds the plaintexts.
package fhe

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/vncsmyrnk/curation/internal/core/domain"
)

const DefaultKeyBits = 2048

var one = big.NewInt(1)

type PublicKey struct {
	N        *big.Int
	nSquared *big.Int
}

type PrivateKey struct {
	PublicKey
	P, Q   *big.Int
	lambda *big.Int
	mu     *big.Int
}

// GenerateKey creates a key with a modulus of the given size in bits.
func GenerateKey(random io.Reader, bits int) (*PrivateKey, error) {
	if bits < 128 {
		return nil, fmt.Errorf("key size %d too small", bits)
	}
	for {
		p, err := rand.Prime(random, bits/2)
		if err != nil {
			return nil, err
		}
		q, err := rand.Prime(random, bits/2)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}
		key, err := NewPrivateKey(p, q)
		if err != nil {
			continue
		}
		return key, nil
	}
}

// NewPrivateKey rebuilds a key from its two primes.
func NewPrivateKey(p, q *big.Int) (*PrivateKey, error) {
	n := new(big.Int).Mul(p, q)
	pMinus := new(big.Int).Sub(p, one)
	qMinus := new(big.Int).Sub(q, one)

	// gcd(pq, (p-1)(q-1)) must be 1 for g = n+1 to work
	phi := new(big.Int).Mul(pMinus, qMinus)
	if new(big.Int).GCD(nil, nil, n, phi).Cmp(one) != 0 {
		return nil, errors.New("primes not suitable for paillier")
	}

	gcd := new(big.Int).GCD(nil, nil, pMinus, qMinus)
	lambda := new(big.Int).Div(phi, gcd)
	mu := new(big.Int).ModInverse(lambda, n)
	if mu == nil {
		return nil, errors.New("lambda not invertible mod n")
	}

	return &PrivateKey{
		PublicKey: *NewPublicKey(n),
		P:         p,
		Q:         q,
		lambda:    lambda,
		mu:        mu,
	}, nil
}

func NewPublicKey(n *big.Int) *PublicKey {
	return &PublicKey{
		N:        n,
		nSquared: new(big.Int).Mul(n, n),
	}
}

// Encrypt computes (1 + m*n) * r^n mod n^2 with a fresh random r.
func (pk *PublicKey) Encrypt(random io.Reader, m *big.Int) (domain.Ciphertext, error) {
	if m.Sign() < 0 || m.Cmp(pk.N) >= 0 {
		return nil, errors.New("plaintext out of range")
	}
	r, err := randomUnit(random, pk.N)
	if err != nil {
		return nil, err
	}
	gm := new(big.Int).Mul(m, pk.N)
	gm.Add(gm, one)
	gm.Mod(gm, pk.nSquared)
	rn := new(big.Int).Exp(r, pk.N, pk.nSquared)
	c := gm.Mul(gm, rn)
	c.Mod(c, pk.nSquared)
	return domain.Ciphertext(c.Bytes()), nil
}

// EncryptCount encrypts a vote count with crypto/rand.
func (pk *PublicKey) EncryptCount(n uint64) (domain.Ciphertext, error) {
	return pk.Encrypt(rand.Reader, new(big.Int).SetUint64(n))
}

// Add returns a ciphertext of the sum of the two plaintexts.
func (pk *PublicKey) Add(a, b domain.Ciphertext) (domain.Ciphertext, error) {
	ca, err := pk.parse(a)
	if err != nil {
		return nil, err
	}
	cb, err := pk.parse(b)
	if err != nil {
		return nil, err
	}
	sum := new(big.Int).Mul(ca, cb)
	sum.Mod(sum, pk.nSquared)
	return domain.Ciphertext(sum.Bytes()), nil
}

// Validate reports domain.ErrInvalidCiphertext for values outside Z*_{n^2}.
func (pk *PublicKey) Validate(c domain.Ciphertext) error {
	_, err := pk.parse(c)
	return err
}

func (sk *PrivateKey) Decrypt(c domain.Ciphertext) (*big.Int, error) {
	x, err := sk.parse(c)
	if err != nil {
		return nil, err
	}
	// L(c^lambda mod n^2) * mu mod n, with L(u) = (u-1)/n
	u := new(big.Int).Exp(x, sk.lambda, sk.nSquared)
	u.Sub(u, one)
	u.Div(u, sk.N)
	u.Mul(u, sk.mu)
	return u.Mod(u, sk.N), nil
}

func (pk *PublicKey) parse(c domain.Ciphertext) (*big.Int, error) {
	if len(c) == 0 {
		return nil, domain.ErrInvalidCiphertext
	}
	x := new(big.Int).SetBytes(c)
	if x.Sign() <= 0 || x.Cmp(pk.nSquared) >= 0 {
		return nil, domain.ErrInvalidCiphertext
	}
	return x, nil
}

func randomUnit(random io.Reader, n *big.Int) (*big.Int, error) {
	for {
		r, err := rand.Int(random, n)
		if err != nil {
			return nil, err
		}
		if r.Sign() > 0 && new(big.Int).GCD(nil, nil, r, n).Cmp(one) == 0 {
			return r, nil
		}
	}
}
