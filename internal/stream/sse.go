package stream

import (
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// ServeSSE holds the request open as a text/event-stream until the client
// disconnects or the endpoint is closed.
func (e *Endpoint) ServeSSE(w http.ResponseWriter, r *http.Request, setup SetupFunc) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	select {
	case <-e.quit:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	c := e.newConn("sse")
	cleanup, err := setup(c.send)
	if err != nil {
		c.log.Error("stream setup failed", zap.Error(err))
		http.Error(w, "stream setup failed", http.StatusInternalServerError)
		return
	}
	c.cleanup = cleanup

	e.track(c)
	defer e.untrack(c)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-store, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	c.state.Store(int32(Open))
	c.log.Debug("connection open", zap.String("remote", r.RemoteAddr))

	ctx := r.Context()
	if ctx.Err() != nil {
		c.close()
		return
	}

	for {
		if c.overflowed() {
			c.close()
			return
		}
		select {
		case <-c.overflow:
			c.close()
			return
		case <-ctx.Done():
			c.close()
			return
		case <-e.quit:
			c.close()
			return
		case f := <-c.queue:
			if err := writeFrame(w, f); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				c.close()
				return
			}
			flusher.Flush()
		}
	}
}

// writeFrame emits "event: <kind>\n" followed by "data: <payload>\n\n".
// Multi-line payloads get one data line per line.
func writeFrame(w io.Writer, f frame) error {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(string(f.kind))
	b.WriteString("\n")
	for _, line := range strings.Split(f.data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
