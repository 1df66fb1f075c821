package localdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/dgraph-io/badger/v4"

	"github.com/raphaelgruber/memcapsule/internal/models"
	"github.com/raphaelgruber/memcapsule/internal/vectorindex"
)

const (
	entryPrefix  = "e/"
	metaPrefix   = "m/"
	vectorPrefix = "v/"
	idMapPrefix  = "i/"
	countPrefix  = "n/"
)

func entryKey(userID, entryID string) []byte { return []byte(entryPrefix + userID + "/" + entryID) }
func entriesPrefix(userID string) []byte     { return []byte(entryPrefix + userID + "/") }
func metaKey(userID string) []byte           { return []byte(metaPrefix + userID) }
func countKey(userID string) []byte          { return []byte(countPrefix + userID) }

func vectorKey(userID string, pos int) []byte {
	return []byte(fmt.Sprintf("%s%s/%010d", vectorPrefix, userID, pos))
}

func idMapKey(userID string, pos int) []byte {
	return []byte(fmt.Sprintf("%s%s/%010d", idMapPrefix, userID, pos))
}

// PutEntry stores a new entry. It returns models.ErrConflict if the id is taken.
func (d *DB) PutEntry(ctx context.Context, entry models.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	key := entryKey(entry.UserID, entry.ID)

	return d.withTxn(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("entry %s: %w", entry.ID, models.ErrConflict)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get entry: %w", err)
		}
		return txn.Set(key, data)
	})
}

// GetEntry returns models.ErrNotFound if the entry does not exist.
func (d *DB) GetEntry(ctx context.Context, userID, entryID string) (models.Entry, error) {
	var entry models.Entry
	err := d.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(userID, entryID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return models.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return models.Entry{}, err
	}
	return entry, nil
}

// LastEntryID returns the greatest entry id of the user, or "" if none.
func (d *DB) LastEntryID(ctx context.Context, userID string) (string, error) {
	prefix := entriesPrefix(userID)
	var last string

	err := d.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(append(bytes.Clone(prefix), 0xFF))
		if it.ValidForPrefix(prefix) {
			last = string(it.Item().Key()[len(prefix):])
		}
		return nil
	})
	return last, err
}

// ListEntries returns the user's entries ordered by id.
func (d *DB) ListEntries(ctx context.Context, userID string) ([]models.Entry, error) {
	prefix := entriesPrefix(userID)
	entries := []models.Entry{}

	err := d.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			var e models.Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("decode entry %s: %w", it.Item().Key(), err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListUsers returns every user id with at least one log entry, sorted.
// The log is authoritative: a user whose metadata was never written is
// still listed.
func (d *DB) ListUsers(ctx context.Context) ([]string, error) {
	prefix := []byte(entryPrefix)
	users := []string{}

	err := d.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); {
			rest := it.Item().Key()[len(prefix):]
			i := bytes.IndexByte(rest, '/')
			if i < 0 {
				it.Next()
				continue
			}
			user := string(rest[:i])
			users = append(users, user)
			// Skip the rest of this user's entries.
			it.Seek(append(entriesPrefix(user), 0xFF))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// LoadMeta reads the user's streak metadata.
func (d *DB) LoadMeta(ctx context.Context, userID string) (models.UserMeta, bool, error) {
	var meta models.UserMeta
	found := false

	err := d.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if err != nil {
		return models.UserMeta{}, false, err
	}
	return meta, found, nil
}

// SaveMeta replaces the user's streak metadata.
func (d *DB) SaveMeta(ctx context.Context, userID string, meta models.UserMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	return d.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(metaKey(userID), data)
	})
}

// LoadVectors reads the user's full index.
func (d *DB) LoadVectors(ctx context.Context, userID string) (vectorindex.Snapshot, bool, error) {
	var snap vectorindex.Snapshot
	found := false

	err := d.withReadTxn(ctx, func(txn *badger.Txn) error {
		n, err := readCount(txn, userID)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		found = true
		snap.Vectors = make([][]float32, 0, n)
		snap.IDs = make([]string, 0, n)

		for pos := 0; pos < n; pos++ {
			vec, err := readVector(txn, userID, pos)
			if err != nil {
				return err
			}
			item, err := txn.Get(idMapKey(userID, pos))
			if err != nil {
				return fmt.Errorf("id map slot %d: %w", pos, err)
			}
			id, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			snap.Vectors = append(snap.Vectors, vec)
			snap.IDs = append(snap.IDs, string(id))
		}
		snap.Dimension = len(snap.Vectors[0])
		return nil
	})
	if err != nil {
		return vectorindex.Snapshot{}, false, err
	}
	return snap, found, nil
}

// AppendVector writes the vector, its id map slot and the new count in one
// transaction. position must equal the current count.
func (d *DB) AppendVector(ctx context.Context, userID string, position int, entryID string, vec []float32) error {
	return d.withTxn(ctx, func(txn *badger.Txn) error {
		n, err := readCount(txn, userID)
		if err != nil {
			return err
		}
		if position != n {
			return fmt.Errorf("position %d, index has %d: %w", position, n, models.ErrConflict)
		}

		if err := txn.Set(vectorKey(userID, position), encodeVector(vec)); err != nil {
			return err
		}
		if err := txn.Set(idMapKey(userID, position), []byte(entryID)); err != nil {
			return err
		}
		return txn.Set(countKey(userID), encodeCount(n+1))
	})
}

// ResetVectors deletes the user's vectors, id map and count.
func (d *DB) ResetVectors(ctx context.Context, userID string) error {
	return d.withTxn(ctx, func(txn *badger.Txn) error {
		for _, prefix := range []string{vectorPrefix, idMapPrefix} {
			if err := deletePrefix(txn, []byte(prefix+userID+"/")); err != nil {
				return err
			}
		}
		return txn.Delete(countKey(userID))
	})
}

func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)

	var keys [][]byte
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func readCount(txn *badger.Txn, userID string) (int, error) {
	item, err := txn.Get(countKey(userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n int
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt vector count for %s", userID)
		}
		n = int(binary.BigEndian.Uint64(val))
		return nil
	})
	return n, err
}

func readVector(txn *badger.Txn, userID string, pos int) ([]float32, error) {
	item, err := txn.Get(vectorKey(userID, pos))
	if err != nil {
		return nil, fmt.Errorf("vector slot %d: %w", pos, err)
	}
	var vec []float32
	err = item.Value(func(val []byte) error {
		vec, err = decodeVector(val)
		return err
	})
	return vec, err
}

func encodeCount(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}

func wrapCommitError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("commit: %w", models.ErrConflict)
	}
	return fmt.Errorf("commit: %w", err)
}
