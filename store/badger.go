package store

import (
	"context"

	"github.com/dgraph-io/badger/v3"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/pkg/errors"
)

const badgerPrefix = "model:"

// Badger stores models in an embedded BadgerDB.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a database at path. An empty path opens an
// in-memory database.
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.NewConnectivityError("badger:"+path, err)
	}
	return &Badger{db: db}, nil
}

func badgerKey(k Key) []byte {
	return []byte(badgerPrefix + k.String())
}

func (b *Badger) Save(ctx context.Context, k Key, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(k), blob)
	})
}

func (b *Badger) Load(ctx context.Context, k Key) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var blob []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(k))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "load model %s", k)
	}
	return blob, true, nil
}

// Keys lists every stored key.
func (b *Badger) Keys() ([]Key, error) {
	var out []Key
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			raw := string(it.Item().Key())[len(badgerPrefix):]
			for i := len(raw) - 1; i >= 0; i-- {
				if raw[i] == '/' {
					out = append(out, Key{Zone: raw[:i], Algorithm: algorithm.Algorithm(raw[i+1:])})
					break
				}
			}
		}
		return nil
	})
	return out, err
}

// Close releases the database.
func (b *Badger) Close() error {
	return b.db.Close()
}
