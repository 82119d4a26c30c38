package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// BadgerKV stores slots in a Badger database.
type BadgerKV struct {
	db       *badger.DB
	mutex    sync.RWMutex
	dbPath   string
	inMemory bool
}

// NewBadgerKV opens (or creates) the database at path. An empty path opens an
// in-memory database that disappears on Close.
func NewBadgerKV(path string) (*BadgerKV, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating badger directory: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithNumGoroutines(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", path, err)
	}
	return &BadgerKV{
		db:       db,
		dbPath:   path,
		inMemory: path == "",
	}, nil
}

func (k *BadgerKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mutex.RLock()
	defer k.mutex.RUnlock()

	var value []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set overwrites key with value and syncs the write to disk.
func (k *BadgerKV) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k.mutex.Lock()
	defer k.mutex.Unlock()

	err := k.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return err
	}
	if k.inMemory {
		return nil
	}
	return k.db.Sync()
}

// Clear drops every key.
func (k *BadgerKV) Clear() error {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	return k.db.DropAll()
}

func (k *BadgerKV) Close() error {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	return k.db.Close()
}
