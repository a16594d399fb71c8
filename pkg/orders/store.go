// Package orders persists finalized call orders in BadgerDB. The store is
// the bridge's Submitter: every confirmed order lands here before the call
// closes, and survives process restarts.
package orders

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tommyd2377/voice-ai-system/pkg/bridge"
)

// ErrNotFound is returned when an order ID does not exist in the store.
var ErrNotFound = errors.New("orders: not found")

const keyPrefix = "order:"

// Record is one stored order. Encoded with msgpack on disk.
type Record struct {
	// ID is the store-assigned order identifier.
	ID string `msgpack:"id"`

	// CallSid identifies the call the order came from.
	CallSid string `msgpack:"call_sid"`

	// CallerFrom is the caller's phone number, when known.
	CallerFrom string `msgpack:"caller_from,omitempty"`

	// Payload is the finalized tool-call arguments.
	Payload map[string]any `msgpack:"payload"`

	// CreatedAt is when the bridge accepted the order.
	CreatedAt time.Time `msgpack:"created_at"`
}

// Options configures the store.
type Options struct {
	// Dir is the directory for BadgerDB data files. Required unless
	// InMemory is set.
	Dir string

	// InMemory runs BadgerDB without disk persistence. For tests.
	InMemory bool

	// Logger receives store log output. Defaults to slog.Default.
	Logger *slog.Logger
}

// Store is a BadgerDB-backed order store.
type Store struct {
	db  *badger.DB
	log *slog.Logger
}

// Open opens the order store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("orders: Options.Dir is required for on-disk mode")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	dbOpts := badger.DefaultOptions(opts.Dir).
		WithLogger(badgerLogger{log: opts.Logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("orders: open: %w", err)
	}
	return &Store{db: db, log: opts.Logger}, nil
}

// Submit implements bridge.Submitter: assign an ID and persist the order.
func (s *Store) Submit(ctx context.Context, order *bridge.Order) error {
	rec := &Record{
		ID:         uuid.NewString(),
		CallSid:    order.CallSid,
		CallerFrom: order.CallerFrom,
		Payload:    order.Payload,
		CreatedAt:  order.CreatedAt,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if err := s.Put(ctx, rec); err != nil {
		return err
	}
	s.log.Info("order stored", "order_id", rec.ID, "call_sid", rec.CallSid)
	return nil
}

// Put writes a record under its ID. Overwrites any existing record.
func (s *Store) Put(_ context.Context, rec *Record) error {
	if rec.ID == "" {
		return errors.New("orders: record has no ID")
	}
	val, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("orders: encode %s: %w", rec.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+rec.ID), val)
	})
	if err != nil {
		return fmt.Errorf("orders: put %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves one record by ID.
func (s *Store) Get(_ context.Context, id string) (*Record, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orders: get %s: %w", id, err)
	}
	return decodeRecord(val)
}

// Delete removes a record. No error if the ID does not exist.
func (s *Store) Delete(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// All iterates over every stored record in key order.
func (s *Store) All(_ context.Context) iter.Seq2[*Record, error] {
	prefix := []byte(keyPrefix)
	return func(yield func(*Record, error) bool) {
		err := s.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = prefix
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				val, err := it.Item().ValueCopy(nil)
				if err != nil {
					if !yield(nil, err) {
						return nil
					}
					continue
				}
				rec, err := decodeRecord(val)
				if !yield(rec, err) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

// ByCall returns all records for one call SID, oldest first.
func (s *Store) ByCall(ctx context.Context, callSid string) ([]*Record, error) {
	var recs []*Record
	for rec, err := range s.All(ctx) {
		if err != nil {
			return nil, err
		}
		if rec.CallSid == callSid {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func decodeRecord(val []byte) (*Record, error) {
	rec := &Record{}
	if err := msgpack.Unmarshal(val, rec); err != nil {
		return nil, fmt.Errorf("orders: decode: %w", err)
	}
	return rec, nil
}

// badgerLogger routes badger's own output through slog, dropping the
// chatty info and debug levels.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.log.Error(fmt.Sprintf(f, v...)) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.log.Warn(fmt.Sprintf(f, v...)) }
func (l badgerLogger) Infof(string, ...interface{})        {}
func (l badgerLogger) Debugf(string, ...interface{})       {}
