// Package store persists message-board records.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sujalbistaa/guestboard/internal/db"
	"github.com/sujalbistaa/guestboard/internal/models"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// Store is the record storage collaborator used by the write handlers.
type Store interface {
	// List returns all records, newest first.
	List(ctx context.Context) ([]models.Record, error)
	// Create stores a new record with zero likes and returns it.
	Create(ctx context.Context, name, message string) (models.Record, error)
	// AdjustLikes adds delta to the record's likes and returns the updated record.
	AdjustLikes(ctx context.Context, id string, delta int) (models.Record, error)
	// Delete removes the record and returns it as it was before removal.
	Delete(ctx context.Context, id string) (models.Record, error)
}

// Open picks an implementation from the database URL scheme.
func Open(dbURL string, log *zap.Logger) (Store, error) {
	if path, ok := strings.CutPrefix(dbURL, "file://"); ok {
		log.Info("using json document store", zap.String("path", path))
		return NewFileStore(path)
	}
	conn, err := db.Open(dbURL, log)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return NewGormStore(conn), nil
}
