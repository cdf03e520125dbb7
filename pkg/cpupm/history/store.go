package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/jamesainslie/cpupm/pkg/cpupm/logging"
)

var logger = logging.Get("history")

// Key prefixes.
const (
	prefixEntry = "e:" // e:<unix nanos, zero padded>:<id> -> Entry JSON
	prefixID    = "i:" // i:<id> -> entry key
	prefixMeta  = "m:"
)

// Schema versions:
// 1 - Initial version (entries and id index)
const CurrentSchemaVersion = 1

const schemaKey = prefixMeta + "__schema__"

// Errors returned by Store lookups.
var (
	ErrNotFound  = errors.New("history entry not found")
	ErrAmbiguous = errors.New("history id prefix is ambiguous")
)

// Schema holds database schema information.
type Schema struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the history journal backed by Badger DB.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens or creates a store at path. Entries expire after retention;
// zero keeps them forever.
func Open(path string, retention time.Duration) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	s := &Store{db: db, ttl: retention}
	if s.GetSchema() == nil {
		if err := s.SetSchema(&Schema{Version: CurrentSchemaVersion, UpdatedAt: time.Now()}); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetSchema returns the stored schema, or nil if not set.
func (s *Store) GetSchema() *Schema {
	var schema *Schema

	_ = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(schemaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			schema = &Schema{}
			return json.Unmarshal(val, schema)
		})
	})

	return schema
}

// SetSchema stores the schema version.
func (s *Store) SetSchema(schema *Schema) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(schemaKey), data)
	})
}

func entryKey(e *Entry) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixEntry, e.Timestamp.UnixNano(), e.ID))
}

// Record stores e, assigning an ID and timestamp when unset.
func (s *Store) Record(e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := entryKey(e)

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, data)
		index := badger.NewEntry([]byte(prefixID+e.ID), key)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
			index = index.WithTTL(s.ttl)
		}
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		return txn.SetEntry(index)
	})
	if err != nil {
		return fmt.Errorf("recording history entry: %w", err)
	}

	logger.Debug("recorded entry", "id", e.ID, "operation", e.Operation, "status", e.Status)
	return nil
}

// Get returns the entry whose ID equals or uniquely starts with id.
func (s *Store) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	var entry *Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(prefixID + id)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			keys = append(keys, key)
			if string(it.Item().Key()) == prefixID+id {
				keys = keys[len(keys)-1:]
				break
			}
		}
		switch len(keys) {
		case 0:
			return ErrNotFound
		case 1:
		default:
			return fmt.Errorf("%w: %q matches %d entries", ErrAmbiguous, id, len(keys))
		}

		item, err := txn.Get(keys[0])
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			entry = &Entry{}
			return json.Unmarshal(val, entry)
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns up to limit entries, newest first. A limit of zero or less
// returns everything.
func (s *Store) List(limit int) ([]*Entry, error) {
	var results []*Entry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixEntry)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks from just past the last possible key.
		seek := []byte(prefixEntry + "\xff")
		for it.Seek(seek); it.ValidForPrefix([]byte(prefixEntry)); it.Next() {
			if limit > 0 && len(results) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var e Entry
				if err := json.Unmarshal(val, &e); err != nil {
					return err
				}
				results = append(results, &e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	return results, err
}

// Latest returns the newest entry matching op, or ErrNotFound.
func (s *Store) Latest(op Operation) (*Entry, error) {
	entries, err := s.List(0)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Operation == op {
			return e, nil
		}
	}
	return nil, ErrNotFound
}

// Count returns the number of stored entries.
func (s *Store) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixEntry)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// ShortID returns the first block of a UUID for display.
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
