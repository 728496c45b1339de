package repositories

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

type IMediaRepository interface {
	StoreMedia(id domain.StoreID, data []byte) error
	GetMedia(id domain.StoreID) ([]byte, error)
	DeleteMedia(id domain.StoreID) error
}

// MediaRepository keeps media blobs under v1/store/media, apart from entity records.
type MediaRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMediaRepository(db *badger.DB, log *slog.Logger) IMediaRepository {
	return &MediaRepository{db: db, log: log}
}

func (m *MediaRepository) StoreMedia(id domain.StoreID, data []byte) error {
	key := []byte(Key(MediaNamespace, string(id)))
	err := m.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return errors.ErrAlreadyExists
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("store media %s: %w", id, err)
	}
	m.log.Debug("Media stored", "store_id", id, "size", len(data))
	return nil
}

func (m *MediaRepository) GetMedia(id domain.StoreID) ([]byte, error) {
	var data []byte
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(Key(MediaNamespace, string(id))))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.ErrNotFound
	}
	return data, err
}

func (m *MediaRepository) DeleteMedia(id domain.StoreID) error {
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(Key(MediaNamespace, string(id))))
	})
}
