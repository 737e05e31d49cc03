package models

import (
	"slices"
	"time"
)

// Record is a single visitor message-board entry.
type Record struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Message   string    `gorm:"not null" json:"message"`
	Likes     int       `gorm:"not null;default:0" json:"likes"` // No floor, may go negative
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SortNewestFirst orders records by CreatedAt descending, in place.
// Records with equal timestamps keep their relative order.
func SortNewestFirst(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
