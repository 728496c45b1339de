//go:generate go run go.uber.org/mock/mockgen -source=record.go -destination=../mocks/mock_record_repository.go -package=mocks
package repositories

import (
	"chat-sync/errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const (
	UserNamespace         = "v1/user"
	ConversationNamespace = "v1/conversation"
	MessageNamespace      = "v1/message"
	MediaNamespace        = "v1/store/media"
)

// Key builds the storage key of one record inside a namespace.
func Key(namespace, id string) string {
	return fmt.Sprintf("%s/%s", namespace, id)
}

type IRecordRepository interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Scan(prefix string, limit *int) ([]Record, error)
}

type Record struct {
	Key   string
	Value []byte
}

type RecordRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRecordRepository(db *badger.DB, log *slog.Logger) IRecordRepository {
	return &RecordRepository{db: db, log: log}
}

// Get returns a copy of the stored value, errors.ErrNotFound if the key is absent.
func (r *RecordRepository) Get(key string) ([]byte, error) {
	var value []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Put writes the value in its own transaction.
// A transaction conflict is reported as errors.ErrConflict so callers can retry.
func (r *RecordRepository) Put(key string, value []byte) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("put %s: %w", key, errors.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (r *RecordRepository) Delete(key string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Scan walks every record whose key starts with prefix, in key order.
// It stops once limit records are collected when limit is set.
func (r *RecordRepository) Scan(prefix string, limit *int) ([]Record, error) {
	var records []Record
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte(prefix)
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(options.Prefix); it.ValidForPrefix(options.Prefix); it.Next() {
			if limit != nil && len(records) == *limit {
				r.log.Debug(fmt.Sprintf("Maximum of %d records reached", *limit))
				break
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			records = append(records, Record{Key: string(item.KeyCopy(nil)), Value: value})
		}
		return nil
	})
	return records, err
}
