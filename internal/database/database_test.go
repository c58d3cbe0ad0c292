package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/store"
)

func setupTest(t *testing.T) *BlobStore {
	t.Helper()
	db, err := NewDatabase("file::memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection, so every query sees the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewBlobStore(db)
}

func TestBlobStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing key", func(t *testing.T) {
		s := setupTest(t)

		_, err := s.Get(ctx, "snapshot")

		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("Put then Get", func(t *testing.T) {
		s := setupTest(t)

		require.NoError(t, s.Put(ctx, "snapshot", []byte(`{"version":"2.0.0"}`)))
		got, err := s.Get(ctx, "snapshot")

		require.NoError(t, err)
		assert.Equal(t, `{"version":"2.0.0"}`, string(got))
	})

	t.Run("Put replaces the row", func(t *testing.T) {
		s := setupTest(t)

		require.NoError(t, s.Put(ctx, "snapshot", []byte("first")))
		require.NoError(t, s.Put(ctx, "snapshot", []byte("second version")))
		got, err := s.Get(ctx, "snapshot")

		require.NoError(t, err)
		assert.Equal(t, "second version", string(got))

		var rows []models.Blob
		require.NoError(t, s.db.Find(&rows).Error)
		require.Len(t, rows, 1)
		assert.Equal(t, len("second version"), rows[0].Size)
	})

	t.Run("Keys are independent", func(t *testing.T) {
		s := setupTest(t)

		require.NoError(t, s.Put(ctx, "a", []byte("1")))
		require.NoError(t, s.Put(ctx, "b", []byte("2")))

		a, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "1", string(a))
	})
}
