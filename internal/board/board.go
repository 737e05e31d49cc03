// Package board holds the write handlers: they validate an intent, mutate
// the store and publish the resulting record on the bus.
package board

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sujalbistaa/guestboard/internal/events"
	"github.com/sujalbistaa/guestboard/internal/models"
	"github.com/sujalbistaa/guestboard/internal/store"
)

// Intent values carried by the form discriminator field.
const (
	IntentNew      = "new"
	IntentUpVote   = "upVote"
	IntentDownVote = "downVote"
)

var (
	// ErrValidation marks input problems; nothing was stored or published.
	ErrValidation = errors.New("validation failed")
	// ErrUnknownIntent is returned for an intent outside the known set.
	ErrUnknownIntent = errors.New("unknown intent")
)

// ValidationError carries the message shown next to the form.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Publisher is the part of the bus the write handlers need.
type Publisher interface {
	Publish(kind events.Kind, record models.Record)
}

type Service struct {
	store store.Store
	bus   Publisher
	log   *zap.Logger
}

func NewService(s store.Store, bus Publisher, log *zap.Logger) *Service {
	return &Service{store: s, bus: bus, log: log.Named("board")}
}

func (s *Service) List(ctx context.Context) ([]models.Record, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	models.SortNewestFirst(records)
	return records, nil
}

// Create stores a new record and publishes record-created.
func (s *Service) Create(ctx context.Context, name, message string) (models.Record, error) {
	if name == "" || message == "" {
		return models.Record{}, &ValidationError{Msg: "Please fill out all fields"}
	}
	record, err := s.store.Create(ctx, name, message)
	if err != nil {
		s.log.Error("create record", zap.Error(err))
		return models.Record{}, err
	}
	s.bus.Publish(events.RecordCreated, record)
	s.log.Info("record created", zap.String("id", record.ID))
	return record, nil
}

// Vote moves the record's likes by delta (+1 or -1) and publishes
// record-likes-changed.
func (s *Service) Vote(ctx context.Context, id string, delta int) (models.Record, error) {
	if id == "" {
		return models.Record{}, &ValidationError{Msg: "Ups, something went wrong! No Id."}
	}
	if delta != 1 && delta != -1 {
		return models.Record{}, &ValidationError{Msg: "Vote must be +1 or -1"}
	}
	record, err := s.store.AdjustLikes(ctx, id, delta)
	if err != nil {
		s.log.Warn("adjust likes", zap.String("id", id), zap.Int("delta", delta), zap.Error(err))
		return models.Record{}, err
	}
	s.bus.Publish(events.RecordLikesChanged, record)
	return record, nil
}

// Delete removes the record and publishes record-deleted.
func (s *Service) Delete(ctx context.Context, id string) (models.Record, error) {
	if id == "" {
		return models.Record{}, &ValidationError{Msg: "Ups, something went wrong! No Id."}
	}
	record, err := s.store.Delete(ctx, id)
	if err != nil {
		s.log.Warn("delete record", zap.String("id", id), zap.Error(err))
		return models.Record{}, err
	}
	s.bus.Publish(events.RecordDeleted, record)
	s.log.Info("record deleted", zap.String("id", id))
	return record, nil
}

// Action dispatches a form intent. fields holds the submitted form values.
func (s *Service) Action(ctx context.Context, intent string, fields map[string]string) (models.Record, error) {
	switch intent {
	case IntentNew:
		return s.Create(ctx, fields["name"], fields["message"])
	case IntentUpVote:
		return s.Vote(ctx, fields["id"], 1)
	case IntentDownVote:
		return s.Vote(ctx, fields["id"], -1)
	default:
		return models.Record{}, ErrUnknownIntent
	}
}
