package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	file, err := Open("file://"+filepath.Join(dir, "db.json"), zap.NewNop())
	require.NoError(t, err)
	sql, err := Open("sqlite://"+filepath.Join(dir, "board.db"), zap.NewNop())
	require.NoError(t, err)

	return map[string]Store{"file": file, "gorm": sql}
}

func TestStore_CreateAndList(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, err := s.Create(ctx, "Alice", "hi")
			require.NoError(t, err)
			assert.NotEmpty(t, first.ID)
			assert.Equal(t, 0, first.Likes)
			assert.False(t, first.CreatedAt.IsZero())

			time.Sleep(2 * time.Millisecond)
			second, err := s.Create(ctx, "Bob", "hello")
			require.NoError(t, err)
			assert.NotEqual(t, first.ID, second.ID)

			records, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, records, 2)
			assert.Equal(t, second.ID, records[0].ID)
			assert.Equal(t, first.ID, records[1].ID)
		})
	}
}

func TestStore_AdjustLikes(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r, err := s.Create(ctx, "Alice", "hi")
			require.NoError(t, err)

			down, err := s.AdjustLikes(ctx, r.ID, -1)
			require.NoError(t, err)
			assert.Equal(t, -1, down.Likes)
			assert.Equal(t, r.ID, down.ID)

			up, err := s.AdjustLikes(ctx, r.ID, 1)
			require.NoError(t, err)
			assert.Equal(t, 0, up.Likes)

			_, err = s.AdjustLikes(ctx, "missing", 1)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r, err := s.Create(ctx, "Alice", "hi")
			require.NoError(t, err)

			gone, err := s.Delete(ctx, r.ID)
			require.NoError(t, err)
			assert.Equal(t, "Alice", gone.Name)

			records, err := s.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, records)

			_, err = s.Delete(ctx, r.ID)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestOpen_RejectsUnknownScheme(t *testing.T) {
	_, err := Open("mysql://root@localhost/board", zap.NewNop())
	assert.Error(t, err)
}
