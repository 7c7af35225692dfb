package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

const keyPrefix = "rated/"

// BadgerOptions configures a BadgerStore.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool

	// Logger receives badger's own log output at debug level.
	Logger *slog.Logger
}

// BadgerStore keeps session records under rated/<dataset>/<user>/<unixnano>.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens the database.
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("persistence: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{logger: opts.Logger})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func recordKey(r *SessionRecord) []byte {
	return fmt.Appendf(nil, "%s%s/%s/%020d", keyPrefix, r.Dataset, r.Username, endedAt(r).UnixNano())
}

// Save stores record as JSON. An existing key is never overwritten.
func (s *BadgerStore) Save(ctx context.Context, record *SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := record.Validate(); err != nil {
		return err
	}
	endedAt(record)
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := recordKey(record)
		for {
			_, err := txn.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				break
			}
			if err != nil {
				return err
			}
			record.EndedAt = record.EndedAt.Add(1)
			key = recordKey(record)
			if data, err = json.Marshal(record); err != nil {
				return err
			}
		}
		return txn.Set(key, data)
	})
}

// List returns the records of dataset ordered by end time. An empty dataset
// lists everything.
func (s *BadgerStore) List(ctx context.Context, dataset string) ([]*SessionRecord, error) {
	prefix := []byte(keyPrefix)
	if dataset != "" {
		if err := validateName(dataset); err != nil {
			return nil, err
		}
		prefix = fmt.Appendf(nil, "%s%s/", keyPrefix, dataset)
	}

	var records []*SessionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var r SessionRecord
			if err := json.Unmarshal(val, &r); err != nil {
				return fmt.Errorf("corrupt record %s: %w", it.Item().Key(), err)
			}
			records = append(records, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRecords(records)
	return records, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger forwards badger's logging to slog at debug level, warnings and
// errors at their own levels.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) log(level slog.Level, format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Log(context.Background(), level, fmt.Sprintf(format, args...), "component", "badger")
}

func (l badgerLogger) Errorf(f string, v ...any)   { l.log(slog.LevelError, f, v...) }
func (l badgerLogger) Warningf(f string, v ...any) { l.log(slog.LevelWarn, f, v...) }
func (l badgerLogger) Infof(f string, v ...any)    { l.log(slog.LevelDebug, f, v...) }
func (l badgerLogger) Debugf(f string, v ...any)   { l.log(slog.LevelDebug, f, v...) }
