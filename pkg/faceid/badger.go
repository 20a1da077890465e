package faceid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const facePrefix = "face/"

// faceRecord is the msgpack value stored per user.
type faceRecord struct {
	// Seq preserves registry order across reloads.
	Seq        int         `msgpack:"seq"`
	UserID     string      `msgpack:"user_id"`
	Embeddings []Embedding `msgpack:"embeddings"`
}

// BadgerOptions configures a BadgerStore.
type BadgerOptions struct {
	// Dir is the database directory. Required unless InMemory is set.
	Dir string

	// InMemory runs badger without touching disk.
	InMemory bool

	// Logger receives badger warnings and errors. Defaults to slog.Default().
	Logger *slog.Logger
}

// BadgerStore keeps one msgpack record per identity under face/<user_id>.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a badger database.
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("faceid: BadgerOptions.Dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dbOpts := badger.DefaultOptions(opts.Dir).
		WithLogger(badgerLogger{logger.With("component", "faceid.badger")})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Load reads every face record in registry order.
func (s *BadgerStore) Load(ctx context.Context) ([]Identity, error) {
	var recs []faceRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(facePrefix), PrefetchValues: true})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec faceRecord
			if err := msgpack.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Seq < recs[j].Seq })
	ids := make([]Identity, len(recs))
	for i, rec := range recs {
		ids[i] = Identity{UserID: rec.UserID, Embeddings: rec.Embeddings}
	}
	return ids, nil
}

// Save rewrites every record and removes users no longer present, in one
// transaction.
func (s *BadgerStore) Save(ctx context.Context, ids []Identity) error {
	keep := make(map[string]bool, len(ids))
	return s.db.Update(func(txn *badger.Txn) error {
		for i, id := range ids {
			val, err := msgpack.Marshal(faceRecord{Seq: i, UserID: id.UserID, Embeddings: id.Embeddings})
			if err != nil {
				return fmt.Errorf("encode %s: %w", id.UserID, err)
			}
			key := facePrefix + id.UserID
			keep[key] = true
			if err := txn.Set([]byte(key), val); err != nil {
				return err
			}
		}

		var stale [][]byte
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(facePrefix)})
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if !keep[string(key)] && strings.HasPrefix(string(key), facePrefix) {
				stale = append(stale, key)
			}
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return ctx.Err()
	})
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger warnings and errors to slog and drops the
// chatty info/debug output.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(f string, v ...interface{}) {
	b.l.Error(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (b badgerLogger) Warningf(f string, v ...interface{}) {
	b.l.Warn(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}

var _ Store = (*BadgerStore)(nil)
