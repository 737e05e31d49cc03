package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sujalbistaa/guestboard/internal/models"
)

// document is the on-disk layout of a FileStore.
type document struct {
	Entries []models.Record `json:"entries"`
}

// FileStore keeps all records in a single JSON document that is read and
// rewritten whole on every operation.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileStore creates the document at path if it does not exist yet.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, now: time.Now}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.write(document{Entries: []models.Record{}}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) List(ctx context.Context) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	models.SortNewestFirst(doc.Entries)
	return doc.Entries, nil
}

func (s *FileStore) Create(ctx context.Context, name, message string) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return models.Record{}, err
	}
	now := s.now().UTC()
	record := models.Record{
		ID:        uuid.NewString(),
		Name:      name,
		Message:   message,
		Likes:     0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	doc.Entries = append(doc.Entries, record)
	if err := s.write(doc); err != nil {
		return models.Record{}, err
	}
	return record, nil
}

func (s *FileStore) AdjustLikes(ctx context.Context, id string, delta int) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return models.Record{}, err
	}
	for i := range doc.Entries {
		if doc.Entries[i].ID != id {
			continue
		}
		doc.Entries[i].Likes += delta
		doc.Entries[i].UpdatedAt = s.now().UTC()
		if err := s.write(doc); err != nil {
			return models.Record{}, err
		}
		return doc.Entries[i], nil
	}
	return models.Record{}, ErrNotFound
}

func (s *FileStore) Delete(ctx context.Context, id string) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return models.Record{}, err
	}
	for i, r := range doc.Entries {
		if r.ID != id {
			continue
		}
		doc.Entries = append(doc.Entries[:i], doc.Entries[i+1:]...)
		if err := s.write(doc); err != nil {
			return models.Record{}, err
		}
		return r, nil
	}
	return models.Record{}, ErrNotFound
}

func (s *FileStore) read() (document, error) {
	var doc document
	b, err := os.ReadFile(s.path)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return doc, fmt.Errorf("%s: %w", s.path, err)
	}
	return doc, nil
}

// write replaces the document atomically via a temp file and rename.
func (s *FileStore) write(doc document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".board-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
