package client

import (
	"bufio"
	"io"
	"strings"
)

// Frame is one dispatched server-sent event.
type Frame struct {
	Event string
	Data  string
}

const maxFrameLine = 1 << 20

// ReadFrames parses a text/event-stream body and calls fn for each event
// until the body ends or fn returns an error. Comment lines and the id and
// retry fields are ignored.
func ReadFrames(r io.Reader, fn func(Frame) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 4096), maxFrameLine)

	var (
		event   string
		data    []string
		hasData bool
	)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if hasData {
				if event == "" {
					event = "message"
				}
				if err := fn(Frame{Event: event, Data: strings.Join(data, "\n")}); err != nil {
					return err
				}
			}
			event, data, hasData = "", data[:0], false
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			data = append(data, value)
			hasData = true
		}
	}
	return sc.Err()
}
