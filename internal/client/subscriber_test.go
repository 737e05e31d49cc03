package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sujalbistaa/guestboard/internal/board"
	"github.com/sujalbistaa/guestboard/internal/config"
	"github.com/sujalbistaa/guestboard/internal/events"
	httpapi "github.com/sujalbistaa/guestboard/internal/http"
	"github.com/sujalbistaa/guestboard/internal/store"
	"github.com/sujalbistaa/guestboard/internal/stream"
)

func startBoard(t *testing.T) (*httptest.Server, *events.Bus) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)

	log := zap.NewNop()
	bus := events.NewBus(log)
	streams := stream.NewEndpoint(log, 16)
	ctx, cancel := context.WithCancel(context.Background())

	router := gin.New()
	cfg := config.Config{CORSOrigin: "*", StreamBuffer: 16, CreateRateRPS: 100, CreateRateBurst: 100}
	httpapi.SetupRoutes(ctx, router, cfg, board.NewService(st, bus, log), bus, streams, log)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		streams.Close()
		srv.Close()
		cancel()
	})
	return srv, bus
}

func TestSubscriber_CreateThenUpvote(t *testing.T) {
	srv, bus := startBoard(t)
	ctx := context.Background()

	sub := NewSubscriber(srv.URL)
	require.NoError(t, sub.Mount(ctx))
	assert.Equal(t, 0, sub.View().Len())
	assert.Equal(t, 1, bus.Subscribers(events.RecordCreated))

	require.NoError(t, Submit(ctx, srv.Client(), srv.URL, board.IntentNew, url.Values{"name": {"Alice"}, "message": {"hi"}}))
	require.Eventually(t, func() bool { return sub.View().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	id := sub.View().Records()[0].ID
	require.NoError(t, Submit(ctx, srv.Client(), srv.URL, board.IntentUpVote, url.Values{"id": {id}}))
	require.Eventually(t, func() bool { return sub.View().Records()[0].Likes == 1 }, 2*time.Second, 10*time.Millisecond)

	records := sub.View().Records()
	require.Len(t, records, 1)
	assert.Equal(t, "Alice", records[0].Name)

	require.NoError(t, sub.Unmount())
	assert.Eventually(t, func() bool {
		return bus.Subscribers(events.RecordCreated) == 0 && bus.Subscribers(events.RecordLikesChanged) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscriber_LoadsSnapshotAndReloads(t *testing.T) {
	srv, _ := startBoard(t)
	ctx := context.Background()

	require.NoError(t, Submit(ctx, srv.Client(), srv.URL, board.IntentNew, url.Values{"name": {"Bob"}, "message": {"first"}}))

	sub := NewSubscriber(srv.URL)
	require.NoError(t, sub.Mount(ctx))
	defer sub.Unmount()
	assert.Equal(t, 1, sub.View().Len())

	// Simulate local drift, then resynchronise to the server snapshot.
	sub.View().Replace(nil)
	require.NoError(t, sub.Reload(ctx))
	assert.Equal(t, "Bob", sub.View().Records()[0].Name)

	assert.ErrorIs(t, sub.Mount(ctx), ErrAlreadyMounted)
}

func TestSubscriber_SubmitErrors(t *testing.T) {
	srv, _ := startBoard(t)

	err := Submit(context.Background(), srv.Client(), srv.URL, board.IntentNew, url.Values{"name": {""}})
	var ferr *FormError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, http.StatusBadRequest, ferr.Status)
	assert.Equal(t, "Please fill out all fields", ferr.Message)
}

func TestSubscriber_MalformedPayloadStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SnapshotPath:
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"entries":[]}`)
		case StreamPath:
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "event: unrelated\ndata: whatever\n\n")
			fmt.Fprint(w, "event: record-created\ndata: {\"id\":\"r1\"}\n\n")
			w.(http.Flusher).Flush()
			<-r.Context().Done()
		}
	}))
	defer srv.Close()

	sub := NewSubscriber(srv.URL)
	require.NoError(t, sub.Mount(context.Background()))

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop on malformed payload")
	}
	assert.ErrorIs(t, sub.Err(), ErrMalformedPayload)
	assert.Equal(t, 0, sub.View().Len())
	assert.ErrorIs(t, sub.Unmount(), ErrMalformedPayload)
}

func TestSubscriber_ReconnectsAfterServerClose(t *testing.T) {
	opened := make(chan struct{}, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SnapshotPath:
			fmt.Fprint(w, `{"entries":[]}`)
		case StreamPath:
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			select {
			case opened <- struct{}{}:
			default:
			}
			// End the stream right away; the subscriber should come back.
		}
	}))
	defer srv.Close()

	sub := NewSubscriber(srv.URL, WithRetry(10*time.Millisecond))
	require.NoError(t, sub.Mount(context.Background()))

	for i := 0; i < 2; i++ {
		select {
		case <-opened:
		case <-time.After(2 * time.Second):
			t.Fatal("stream was not reopened")
		}
	}
	assert.NoError(t, sub.Unmount())
}

func TestSubscriber_MountFailsOnBadStream(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	sub := NewSubscriber(srv.URL)
	assert.Error(t, sub.Mount(context.Background()))
	assert.NoError(t, sub.Unmount())
}

func TestSubscriber_EventDuringReloadSurvives(t *testing.T) {
	var snapshots atomic.Int32
	reloading := make(chan struct{})
	release := make(chan struct{})
	push := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SnapshotPath:
			if snapshots.Add(1) == 2 {
				close(reloading)
				<-release
			}
			fmt.Fprint(w, `{"entries":[]}`)
		case StreamPath:
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
			select {
			case <-push:
				fmt.Fprint(w, "event: record-created\ndata: {\"id\":\"r1\",\"name\":\"Alice\",\"message\":\"hi\",\"likes\":0,\"createdAt\":\"2024-05-01T10:00:00Z\"}\n\n")
				w.(http.Flusher).Flush()
			case <-r.Context().Done():
				return
			}
			<-r.Context().Done()
		}
	}))
	defer srv.Close()

	sub := NewSubscriber(srv.URL)
	require.NoError(t, sub.Mount(context.Background()))
	defer sub.Unmount()

	reloaded := make(chan error, 1)
	go func() { reloaded <- sub.Reload(context.Background()) }()
	<-reloading

	// The event reaches the client while the older snapshot is in flight.
	close(push)
	time.Sleep(50 * time.Millisecond)
	close(release)
	require.NoError(t, <-reloaded)

	require.Eventually(t, func() bool { return sub.View().Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "r1", sub.View().Records()[0].ID)
}
