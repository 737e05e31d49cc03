// Package stream turns bus events into long-lived server push connections.
//
// A connection is opened with a SetupFunc. The setup receives a SendFunc,
// typically subscribes to the bus and calls send from its handlers, and
// returns the cleanup that releases those subscriptions. Cleanup runs exactly
// once when the client goes away, the write side fails or the endpoint is
// closed, whichever happens first.
package stream

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/sujalbistaa/guestboard/internal/events"
)

type (
	SendFunc    func(kind events.Kind, data string)
	CleanupFunc func()
	SetupFunc   func(send SendFunc) (CleanupFunc, error)
)

// State is the lifecycle position of one push connection.
type State int32

const (
	Opening State = iota
	Open
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Endpoint owns every open push connection of the process.
type Endpoint struct {
	log    *zap.Logger
	buffer int

	mu    sync.Mutex
	conns map[*conn]struct{}

	quit     chan struct{}
	quitOnce sync.Once
}

// NewEndpoint creates an endpoint whose connections each queue at most
// buffer outbound events.
func NewEndpoint(log *zap.Logger, buffer int) *Endpoint {
	if buffer <= 0 {
		buffer = 64
	}
	return &Endpoint{
		log:    log.Named("stream"),
		buffer: buffer,
		conns:  make(map[*conn]struct{}),
		quit:   make(chan struct{}),
	}
}

// Close ends every open connection and refuses new ones.
func (e *Endpoint) Close() {
	e.quitOnce.Do(func() { close(e.quit) })
}

// Connections reports the number of connections that have not closed yet.
func (e *Endpoint) Connections() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conns)
}

func (e *Endpoint) track(c *conn) {
	e.mu.Lock()
	e.conns[c] = struct{}{}
	e.mu.Unlock()
}

func (e *Endpoint) untrack(c *conn) {
	e.mu.Lock()
	delete(e.conns, c)
	e.mu.Unlock()
}

func (e *Endpoint) newConn(transport string) *conn {
	id := ulid.Make()
	return &conn{
		id:    id,
		queue:    make(chan frame, e.buffer),
		done:     make(chan struct{}),
		overflow: make(chan struct{}),
		log:   e.log.With(zap.String("conn", id.String()), zap.String("transport", transport)),
	}
}

type frame struct {
	kind events.Kind
	data string
}

type conn struct {
	id    ulid.ULID
	state atomic.Int32
	queue chan frame
	done  chan struct{}

	// overflow is closed when the queue fills up. The serve loop then ends
	// the connection so the client reconnects and reloads instead of
	// silently missing events.
	overflow     chan struct{}
	overflowOnce sync.Once

	cleanup   CleanupFunc
	closeOnce sync.Once

	log *zap.Logger
}

func (c *conn) State() State { return State(c.state.Load()) }

// send never blocks. When the queue is full the connection is flagged for
// closing and nothing further is queued, so a client never sees a stream
// with a hole in it.
func (c *conn) send(kind events.Kind, data string) {
	if c.State() >= Closing || c.overflowed() {
		return
	}
	select {
	case <-c.done:
	case c.queue <- frame{kind: kind, data: data}:
	default:
		c.overflowOnce.Do(func() {
			c.log.Warn("closing slow connection", zap.String("kind", string(kind)), zap.Int("queued", len(c.queue)))
			close(c.overflow)
		})
	}
}

func (c *conn) overflowed() bool {
	select {
	case <-c.overflow:
		return true
	default:
		return false
	}
}

// close runs cleanup and releases the connection. Only the first call does
// anything, no matter which trigger gets there first.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(Closing))
		if c.cleanup != nil {
			c.cleanup()
		}
		close(c.done)
		c.state.Store(int32(Closed))
		c.log.Debug("connection closed")
	})
}

// BusSetup returns a SetupFunc that forwards the given kinds from bus,
// JSON-encoding the record as the event data.
func BusSetup(bus *events.Bus, log *zap.Logger, kinds ...events.Kind) SetupFunc {
	return func(send SendFunc) (CleanupFunc, error) {
		subs := make([]*events.Subscription, 0, len(kinds))
		for _, kind := range kinds {
			subs = append(subs, bus.Subscribe(kind, func(ev events.Event) {
				b, err := json.Marshal(ev.Record)
				if err != nil {
					log.Error("encode record", zap.String("id", ev.Record.ID), zap.Error(err))
					return
				}
				send(ev.Kind, string(b))
			}))
		}
		return func() {
			for _, sub := range subs {
				bus.Unsubscribe(sub)
			}
		}, nil
	}
}
