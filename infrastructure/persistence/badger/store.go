// Package badger persists records in BadgerDB so the development index
// survives restarts.
package badger

import (
	"context"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/aymericbeaumet/loupe/domain/trie"
	apperrors "github.com/aymericbeaumet/loupe/pkg/errors"
)

const recordPrefix = "record/"

// Observer is notified of every store operation.
type Observer interface {
	ObserveStore(operation string, err error)
}

// Options configures the store.
type Options struct {
	// Dir is the directory for BadgerDB data files. Required unless
	// InMemory is set.
	Dir string

	// InMemory keeps everything in memory, for tests.
	InMemory bool

	Logger   *zap.Logger
	Observer Observer
}

// RecordStore keeps records keyed by id.
type RecordStore struct {
	db       *badgerdb.DB
	observer Observer
	logger   *zap.Logger
}

// Open opens or creates the store.
func Open(opts Options) (*RecordStore, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, apperrors.NewValidationError("index data dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dbOpts := badgerdb.DefaultOptions(opts.Dir).WithLogger(zapLogger{logger.Sugar()})
	if opts.InMemory {
		dbOpts = badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(zapLogger{logger.Sugar()})
	}
	db, err := badgerdb.Open(dbOpts)
	if err != nil {
		return nil, apperrors.NewStorageError("open", err)
	}
	return &RecordStore{db: db, observer: opts.Observer, logger: logger}, nil
}

func key(id string) []byte {
	return []byte(recordPrefix + id)
}

// Put writes records in one batch. A record with an existing id replaces
// it.
func (s *RecordStore) Put(ctx context.Context, records []trie.Record) (err error) {
	defer func() { s.observe("put", err) }()
	if err := ctx.Err(); err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, r := range records {
		value, err := r.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode record %q: %w", r.ID, err)
		}
		if err := wb.Set(key(r.ID), value); err != nil {
			return apperrors.NewStorageError("put", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return apperrors.NewStorageError("put", err)
	}
	return nil
}

// Get returns the record with the given id.
func (s *RecordStore) Get(ctx context.Context, id string) (r trie.Record, err error) {
	defer func() { s.observe("get", err) }()
	if err := ctx.Err(); err != nil {
		return trie.Record{}, err
	}

	var value []byte
	err = s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return trie.Record{}, apperrors.NewNotFoundError("record " + id)
	}
	if err != nil {
		return trie.Record{}, apperrors.NewStorageError("get", err)
	}
	return trie.ParseRecord(value)
}

// Each calls fn for every record in key order. It stops at the first error
// returned by fn or when ctx is done.
func (s *RecordStore) Each(ctx context.Context, fn func(trie.Record) error) (err error) {
	defer func() { s.observe("scan", err) }()

	prefix := []byte(recordPrefix)
	return s.db.View(func(txn *badgerdb.Txn) error {
		iterOpts := badgerdb.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return apperrors.NewStorageError("scan", err)
			}
			r, err := trie.ParseRecord(value)
			if err != nil {
				s.logger.Warn("Skipping unreadable record",
					zap.ByteString("key", it.Item().KeyCopy(nil)),
					zap.Error(err),
				)
				continue
			}
			if err := fn(r); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a record. Deleting a missing record is not an error.
func (s *RecordStore) Delete(ctx context.Context, id string) (err error) {
	defer func() { s.observe("delete", err) }()
	if err := ctx.Err(); err != nil {
		return err
	}
	err = s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(key(id))
	})
	if err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
		return apperrors.NewStorageError("delete", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *RecordStore) Close() error {
	return s.db.Close()
}

func (s *RecordStore) observe(op string, err error) {
	if s.observer != nil {
		s.observer.ObserveStore(op, err)
	}
}

// zapLogger routes badger logs through zap, dropping debug output.
type zapLogger struct{ s *zap.SugaredLogger }

func (l zapLogger) Errorf(f string, v ...interface{})   { l.s.Errorf("badger: "+f, v...) }
func (l zapLogger) Warningf(f string, v ...interface{}) { l.s.Warnf("badger: "+f, v...) }
func (l zapLogger) Infof(f string, v ...interface{})    { l.s.Debugf("badger: "+f, v...) }
func (l zapLogger) Debugf(string, ...interface{})       {}
