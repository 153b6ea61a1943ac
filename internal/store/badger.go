package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/park285/cheese-chess/internal/domain"
)

var (
	badgerGamePrefix = []byte("game/")
	badgerSeqKey     = []byte("seq/game")
)

// badgerSeqLease is how many ids the sequence reserves per lease. Leased ids
// left unused at shutdown are skipped, never reused.
const badgerSeqLease = 64

// Badger is an embedded durable game store. Keys are zero-padded so prefix
// iteration yields games in id order.
type Badger struct {
	db  *badger.DB
	seq *badger.Sequence
}

// OpenBadger opens (or creates) a database in dir. An empty dir opens an in-memory database.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	seq, err := db.GetSequence(badgerSeqKey, badgerSeqLease)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("badger sequence: %w", err)
	}
	return &Badger{db: db, seq: seq}, nil
}

func (b *Badger) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	relErr := b.seq.Release()
	return errors.Join(relErr, b.db.Close())
}

func badgerGameKey(id int) []byte { return []byte(fmt.Sprintf("game/%010d", id)) }

func (b *Badger) Create(ctx context.Context, name string) (*domain.GameRecord, error) {
	n, err := b.seq.Next()
	if err != nil {
		return nil, dataAccess("allocate game id", err)
	}
	// sequences start at 0
	rec := domain.NewGameRecord(int(n)+1, name)
	if err := b.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (b *Badger) Load(ctx context.Context, id int) (*domain.GameRecord, error) {
	var rec *domain.GameRecord
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = badgerGet(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (b *Badger) Save(ctx context.Context, rec *domain.GameRecord) error {
	if rec == nil {
		return nilRecord()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode game %d: %w", rec.ID, err)
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerGameKey(rec.ID), data)
	}); err != nil {
		return dataAccess("save game", err)
	}
	return nil
}

// Update relies on badger's optimistic transactions; ErrConflict means another
// writer committed first and fn is retried on the fresh record.
func (b *Badger) Update(ctx context.Context, id int, fn func(*domain.GameRecord) error) (*domain.GameRecord, error) {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		var out *domain.GameRecord
		err := b.db.Update(func(txn *badger.Txn) error {
			rec, err := badgerGet(txn, id)
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode game %d: %w", id, err)
			}
			if err := txn.Set(badgerGameKey(id), data); err != nil {
				return dataAccess("save game", err)
			}
			out = rec
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: game %d: too many concurrent writers", domain.ErrDataAccess, id)
}

func (b *Badger) List(ctx context.Context) ([]*domain.GameRecord, error) {
	out := make([]*domain.GameRecord, 0)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = badgerGamePrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec domain.GameRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode game: %w", err)
			}
			out = append(out, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Clear drops every game key. The sequence key has a different prefix and survives.
func (b *Badger) Clear(ctx context.Context) error {
	if err := b.db.DropPrefix(badgerGamePrefix); err != nil {
		return dataAccess("clear games", err)
	}
	return nil
}

func badgerGet(txn *badger.Txn, id int) (*domain.GameRecord, error) {
	item, err := txn.Get(badgerGameKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, gameNotFound(id)
	}
	if err != nil {
		return nil, dataAccess("load game", err)
	}
	var rec domain.GameRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("decode game %d: %w", id, err)
	}
	return &rec, nil
}
