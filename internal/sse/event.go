package sse

import (
	"fmt"
	"io"
	"strings"
)

// Event is one server-sent event. An empty Name produces an unnamed
// event (bare data lines), which browsers deliver as "message".
type Event struct {
	Name string
	Data string
}

// WriteTo writes the wire framing for the event. Multi-line data is
// split into one data: line per newline, per the SSE format.
func (e Event) WriteTo(w io.Writer) error {
	if e.Name != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", e.Name); err != nil {
			return err
		}
	}
	for _, line := range strings.Split(e.Data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}
