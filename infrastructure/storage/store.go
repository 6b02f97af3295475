package storage

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"

	"society-live/errors"

	"github.com/dgraph-io/badger/v4"
)

// maxConflictRetries bounds how many times an optimistic transaction is
// re-evaluated after badger reports a write conflict.
const maxConflictRetries = 128

// Open opens the badger database at path. An empty path opens an in-memory DB.
func Open(path string, log *slog.Logger, debug bool) (*badger.DB, error) {
	options := badger.DefaultOptions(path)
	if path == "" {
		options = options.WithInMemory(true)
	}
	if debug {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	log.Info("BadgerDB opened", "path", path, "in_memory", path == "")
	return db, nil
}

// segment encodes an opaque id as "<len>:<id>:". Ids may contain ':', the
// length keeps one id's prefix from matching another id's keys.
func segment(id string) string {
	return strconv.Itoa(len(id)) + ":" + id + ":"
}

// update runs fn in a read-write transaction. Badger commits with
// serializable snapshot isolation: when another transaction committed a key
// fn read, the commit fails with ErrConflict and fn is evaluated again on
// fresh state. This turns every fn into a conditional update.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err := db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return errors.ErrStoreConflict
}

func getJSON(txn *badger.Txn, key string, out any) error {
	item, err := txn.Get([]byte(key))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", errors.ErrNotFound, key)
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set([]byte(key), data)
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// scanJSON decodes every value under prefix, newest key last.
func scanJSON[T any](txn *badger.Txn, prefix string, keep func(T) bool) ([]T, error) {
	var out []T
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
		var v T
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		}); err != nil {
			return nil, err
		}
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out, nil
}
