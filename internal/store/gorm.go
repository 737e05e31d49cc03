package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sujalbistaa/guestboard/internal/models"
)

// GormStore keeps records in a SQL database through GORM.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) List(ctx context.Context) ([]models.Record, error) {
	var records []models.Record
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *GormStore) Create(ctx context.Context, name, message string) (models.Record, error) {
	record := models.Record{
		ID:      uuid.NewString(),
		Name:    name,
		Message: message,
		Likes:   0,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return models.Record{}, err
	}
	return record, nil
}

func (s *GormStore) AdjustLikes(ctx context.Context, id string, delta int) (models.Record, error) {
	var record models.Record

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&record, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Model(&record).Update("likes", gorm.Expr("likes + ?", delta)).Error; err != nil {
			return err
		}
		// Re-read so the returned record carries the stored counter.
		return tx.First(&record, "id = ?", id).Error
	})
	if err != nil {
		return models.Record{}, err
	}
	return record, nil
}

func (s *GormStore) Delete(ctx context.Context, id string) (models.Record, error) {
	var record models.Record

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&record, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return tx.Delete(&models.Record{}, "id = ?", id).Error
	})
	if err != nil {
		return models.Record{}, err
	}
	return record, nil
}
