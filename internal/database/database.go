package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/store"
)

// NewDatabase creates a new database connection and performs auto-migration.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the blob table. Existing rows are kept.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Blob{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// BlobStore keeps blobs in a SQLite table, one row per key.
type BlobStore struct {
	db *gorm.DB
}

var _ store.BlobStore = (*BlobStore)(nil)

func NewBlobStore(db *gorm.DB) *BlobStore {
	return &BlobStore{db: db}
}

func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	var blob models.Blob
	err := s.db.WithContext(ctx).Where(map[string]any{"key": key}).First(&blob).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not read blob %s: %w", key, err)
	}
	return blob.Data, nil
}

// Put inserts the blob or replaces the existing row for the key.
func (s *BlobStore) Put(ctx context.Context, key string, data []byte) error {
	blob := models.Blob{Key: key, Data: data, Size: len(data)}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "size", "updated_at"}),
	}).Create(&blob).Error
	if err != nil {
		return fmt.Errorf("could not write blob %s: %w", key, err)
	}
	return nil
}
