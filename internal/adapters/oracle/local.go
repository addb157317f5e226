package oracle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vncsmyrnk/curation/internal/core/domain"
	"github.com/vncsmyrnk/curation/internal/core/ports"
)

var (
	ErrOracleClosed    = errors.New("oracle closed")
	ErrTallyOutOfRange = errors.New("decrypted tally does not fit in 64 bits")
)

// LocalOracle decrypts on its own goroutines and calls back after Delay.
// Requests still waiting when Close is called are dropped and stay pending
// on the ledger.
type LocalOracle struct {
	keys   *Keys
	delay  time.Duration
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewLocalOracle(keys *Keys, delay time.Duration, logger zerolog.Logger) *LocalOracle {
	return &LocalOracle{
		keys:   keys,
		delay:  delay,
		logger: logger.With().Str("component", "oracle").Logger(),
		stopCh: make(chan struct{}),
	}
}

// Scheme exposes the public encryption key for tallies.
func (o *LocalOracle) Scheme() ports.HomomorphicScheme {
	return &o.keys.Tally.PublicKey
}

func (o *LocalOracle) Verifier() *Ed25519Verifier {
	return NewEd25519Verifier(o.keys.VerifyingKey())
}

func (o *LocalOracle) RequestDecryption(ctx context.Context, handle domain.Ciphertext, handlers ports.DecryptionHandlers) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return "", ErrOracleClosed
	}

	requestID := uuid.NewString()
	o.wg.Add(1)
	go o.fulfil(requestID, handle, handlers)
	return requestID, nil
}

func (o *LocalOracle) fulfil(requestID string, handle domain.Ciphertext, handlers ports.DecryptionHandlers) {
	defer o.wg.Done()

	if o.delay > 0 {
		timer := time.NewTimer(o.delay)
		defer timer.Stop()
		select {
		case <-o.stopCh:
			return
		case <-timer.C:
		}
	} else {
		select {
		case <-o.stopCh:
			return
		default:
		}
	}

	count, err := o.keys.Tally.Decrypt(handle)
	if err == nil && !count.IsUint64() {
		err = ErrTallyOutOfRange
	}
	if err != nil {
		o.logger.Error().Err(err).Str("request_id", requestID).Msg("failed to decrypt tally")
		if handlers.Failed == nil {
			return
		}
		if ferr := handlers.Failed(context.Background(), requestID, err); ferr != nil {
			o.logger.Warn().Err(ferr).Str("request_id", requestID).Msg("decryption failure handler failed")
		}
		return
	}
	cleartext := domain.EncodeCleartext(count.Uint64())
	proof := Sign(o.keys.Signing, requestID, cleartext)

	if err := handlers.Decrypted(context.Background(), requestID, cleartext, proof); err != nil {
		o.logger.Warn().Err(err).Str("request_id", requestID).Msg("decryption callback failed")
	}
}

// Close stops outstanding requests and waits for running callbacks.
func (o *LocalOracle) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.stopCh)
	o.mu.Unlock()
	o.wg.Wait()
}
