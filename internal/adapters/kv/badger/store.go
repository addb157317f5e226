// Package badger implements the ledger store on an embedded Badger database.
// An empty data directory opens an in-memory database.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/vncsmyrnk/curation/internal/core/domain"
	"github.com/vncsmyrnk/curation/internal/core/ports"
)

const maxUpdateRetries = 16

type Store struct {
	db     *badger.DB
	logger zerolog.Logger
}

type StoreOptionFunc func(*storeOptions)

type storeOptions struct {
	dataDir string
	logger  zerolog.Logger
}

// WithDataDir stores data on disk under dir.
func WithDataDir(dir string) StoreOptionFunc {
	return func(o *storeOptions) {
		o.dataDir = dir
	}
}

func WithLogger(logger zerolog.Logger) StoreOptionFunc {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

func Open(opts ...StoreOptionFunc) (*Store, error) {
	o := storeOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	var badgerOpts badger.Options
	if o.dataDir == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(o.dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		badgerOpts = badger.DefaultOptions(o.dataDir)
	}
	badgerOpts = badgerOpts.
		WithLogger(&badgerLogger{logger: o.logger}).
		// INFO is noisy on open/close
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Store{db: db, logger: o.logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Update runs fn inside a read-write transaction. Badger detects conflicting
// concurrent writers at commit, in which case fn is run again against the
// fresh value.
func (s *Store) Update(ctx context.Context, key string, fn ports.UpdateFunc) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			var current []byte
			found := true
			item, err := txn.Get([]byte(key))
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				found = false
			case err != nil:
				return err
			default:
				current, err = item.ValueCopy(nil)
				if err != nil {
					return err
				}
			}
			next, err := fn(current, found)
			if err != nil {
				return err
			}
			return txn.Set([]byte(key), next)
		})
		if errors.Is(err, badger.ErrConflict) && attempt < maxUpdateRetries {
			s.logger.Debug().Str("key", key).Int("attempt", attempt).Msg("badger update conflict, retrying")
			continue
		}
		return err
	}
}

func (s *Store) Scan(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		p := []byte(prefix)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: p})
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", prefix, err)
	}
	return keys, nil
}

// badgerLogger routes badger's internal logging to zerolog.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error().Str("component", "badger").Msgf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn().Str("component", "badger").Msgf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info().Str("component", "badger").Msgf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug().Str("component", "badger").Msgf(format, args...)
}
