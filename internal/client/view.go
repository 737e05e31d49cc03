package client

import (
	"sync"

	"github.com/sujalbistaa/guestboard/internal/models"
)

// View is the client-held copy of the board, always newest first.
type View struct {
	mu      sync.RWMutex
	records []models.Record
}

func NewView() *View {
	return &View{}
}

// Replace swaps the whole view for a fresh snapshot.
func (v *View) Replace(records []models.Record) {
	next := make([]models.Record, len(records))
	copy(next, records)
	models.SortNewestFirst(next)

	v.mu.Lock()
	v.records = next
	v.mu.Unlock()
}

// Upsert drops any record with r's id, adds r and re-sorts. Applying the
// same record twice leaves the view unchanged.
func (v *View) Upsert(r models.Record) {
	v.mu.Lock()
	defer v.mu.Unlock()

	next := make([]models.Record, 0, len(v.records)+1)
	for _, e := range v.records {
		if e.ID != r.ID {
			next = append(next, e)
		}
	}
	next = append(next, r)
	models.SortNewestFirst(next)
	v.records = next
}

// Remove deletes the record with id and reports whether it was present.
func (v *View) Remove(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, e := range v.records {
		if e.ID == id {
			v.records = append(v.records[:i:i], v.records[i+1:]...)
			return true
		}
	}
	return false
}

// Records returns a copy of the current view.
func (v *View) Records() []models.Record {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.Record, len(v.records))
	copy(out, v.records)
	return out
}

func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.records)
}
