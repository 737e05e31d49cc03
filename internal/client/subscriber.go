// Package client keeps a local, live copy of the message board: it loads a
// snapshot, listens on the push stream and merges every pushed record into
// its View.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sujalbistaa/guestboard/internal/events"
	"github.com/sujalbistaa/guestboard/internal/models"
)

const (
	StreamPath   = "/sse"
	SnapshotPath = "/message-board"

	defaultRetry = 3 * time.Second
)

var ErrAlreadyMounted = errors.New("subscriber already mounted")

type Option func(*Subscriber)

func WithHTTPClient(c *http.Client) Option { return func(s *Subscriber) { s.http = c } }
func WithLogger(l *zap.Logger) Option      { return func(s *Subscriber) { s.log = l } }

// WithRetry sets the pause before reconnecting after the server ends the stream.
func WithRetry(d time.Duration) Option { return func(s *Subscriber) { s.retry = d } }

// WithOnChange registers a callback run after each pushed event is merged.
func WithOnChange(fn func(events.Kind, models.Record)) Option {
	return func(s *Subscriber) { s.onChange = fn }
}

// Subscriber owns one push connection and the View it keeps in sync.
type Subscriber struct {
	baseURL  string
	http     *http.Client
	log      *zap.Logger
	retry    time.Duration
	onChange func(events.Kind, models.Record)

	view *View
	// applyMu serializes snapshot replacement with event merging.
	applyMu sync.Mutex

	mu       sync.Mutex
	handlers map[events.Kind]func(models.Record)
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
}

func NewSubscriber(baseURL string, opts ...Option) *Subscriber {
	s := &Subscriber{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		log:     zap.NewNop(),
		retry:   defaultRetry,
		view:    NewView(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Subscriber) View() *View { return s.view }

// Mount opens the push connection, loads the snapshot and starts merging
// events. It returns once the view holds the snapshot.
func (s *Subscriber) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyMounted
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.err = nil
	s.handlers = map[events.Kind]func(models.Record){
		events.RecordCreated:      s.view.Upsert,
		events.RecordLikesChanged: s.view.Upsert,
		events.RecordDeleted:      func(r models.Record) { s.view.Remove(r.ID) },
	}
	s.mu.Unlock()

	// Subscribe before taking the snapshot; an event racing the snapshot is
	// then applied twice, which upsert tolerates.
	resp, err := s.open(ctx)
	if err == nil {
		err = s.Reload(ctx)
		if err != nil {
			resp.Body.Close()
		}
	}
	if err != nil {
		cancel()
		s.mu.Lock()
		s.cancel, s.handlers = nil, nil
		close(s.done)
		s.mu.Unlock()
		return err
	}

	go s.run(ctx, resp)
	return nil
}

// Unmount drops the handlers and closes the connection. It returns the
// error that ended the subscription early, if any.
func (s *Subscriber) Unmount() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel, s.handlers = nil, nil
	return s.err
}

// Done is closed when the subscription stops, either by Unmount or by a
// malformed payload.
func (s *Subscriber) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Reload replaces the view with a fresh snapshot from the server. Pushed
// events arriving meanwhile wait and are merged on top of the snapshot.
func (s *Subscriber) Reload(ctx context.Context) error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	records, err := Snapshot(ctx, s.http, s.baseURL)
	if err != nil {
		return err
	}
	s.view.Replace(records)
	return nil
}

// Snapshot fetches the full, decoded record list.
func Snapshot(ctx context.Context, hc *http.Client, baseURL string) ([]models.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+SnapshotPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("load snapshot: unexpected status %s", resp.Status)
	}

	var body struct {
		Entries []json.RawMessage `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	records := make([]models.Record, 0, len(body.Entries))
	for _, raw := range body.Entries {
		r, err := DecodeRecord(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *Subscriber) open(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+StreamPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: unexpected status %s", resp.Status)
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/event-stream" {
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: unexpected content type %q", mt)
	}
	return resp, nil
}

func (s *Subscriber) run(ctx context.Context, resp *http.Response) {
	var err error
	defer func() {
		s.mu.Lock()
		s.err = err
		close(s.done)
		s.mu.Unlock()
	}()

	for {
		err = ReadFrames(resp.Body, s.handle)
		resp.Body.Close()
		if ctx.Err() != nil {
			err = nil
			return
		}
		if errors.Is(err, ErrMalformedPayload) {
			s.log.Error("stopping subscription", zap.Error(err))
			return
		}
		s.log.Warn("stream ended, reconnecting", zap.Error(err), zap.Duration("retry", s.retry))

		for {
			select {
			case <-ctx.Done():
				err = nil
				return
			case <-time.After(s.retry):
			}
			resp, err = s.open(ctx)
			if err == nil {
				if err = s.Reload(ctx); err == nil {
					break
				}
				resp.Body.Close()
			}
			if errors.Is(err, ErrMalformedPayload) {
				s.log.Error("stopping subscription", zap.Error(err))
				return
			}
			s.log.Warn("reconnect failed", zap.Error(err))
		}
	}
}

func (s *Subscriber) handle(f Frame) error {
	kind := events.Kind(f.Event)

	s.mu.Lock()
	apply, ok := s.handlers[kind]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	r, err := DecodeRecord([]byte(f.Data))
	if err != nil {
		return fmt.Errorf("%s event: %w", kind, err)
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	apply(r)
	if s.onChange != nil {
		s.onChange(kind, r)
	}
	return nil
}
