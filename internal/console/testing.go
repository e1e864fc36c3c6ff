package console

import (
	"fmt"
	"strings"
	"sync"
)

// Kind identifies the event method that produced a captured line.
type Kind string

const (
	KindHeadline Kind = "headline"
	KindRule     Kind = "rule"
	KindInfo     Kind = "info"
	KindDetail   Kind = "detail"
	KindSuccess  Kind = "success"
	KindWarn     Kind = "warn"
	KindError    Kind = "error"
	KindPanel    Kind = "panel"
)

// Event is a single captured sink emission.
type Event struct {
	Kind Kind
	Text string
}

// Capture records sink events in memory so tests can assert on them.
type Capture struct {
	mu     sync.Mutex
	events []Event
}

// NewCapture returns an empty capturing sink.
func NewCapture() *Capture {
	return &Capture{}
}

func (c *Capture) record(kind Kind, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, Event{Kind: kind, Text: fmt.Sprintf(format, args...)})
}

func (c *Capture) Headline(format string, args ...any) { c.record(KindHeadline, format, args...) }
func (c *Capture) Rule(format string, args ...any)     { c.record(KindRule, format, args...) }
func (c *Capture) Info(format string, args ...any)     { c.record(KindInfo, format, args...) }
func (c *Capture) Detail(format string, args ...any)   { c.record(KindDetail, format, args...) }
func (c *Capture) Success(format string, args ...any)  { c.record(KindSuccess, format, args...) }
func (c *Capture) Warn(format string, args ...any)     { c.record(KindWarn, format, args...) }
func (c *Capture) Error(format string, args ...any)    { c.record(KindError, format, args...) }

func (c *Capture) Panel(title, body string) {
	c.record(KindPanel, "%s\n%s", title, body)
}

func (c *Capture) Blank() {}

// Events returns a copy of everything captured so far.
func (c *Capture) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Contains reports whether any captured event of the given kind contains
// substr. An empty kind matches every event.
func (c *Capture) Contains(kind Kind, substr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.events {
		if kind != "" && ev.Kind != kind {
			continue
		}
		if strings.Contains(ev.Text, substr) {
			return true
		}
	}
	return false
}

// Joined returns all captured text separated by newlines.
func (c *Capture) Joined() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	parts := make([]string, len(c.events))
	for i, ev := range c.events {
		parts[i] = ev.Text
	}
	return strings.Join(parts, "\n")
}

// Reset discards all captured events.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// Nop is a Sink that discards every event.
type Nop struct{}

// NewNop returns a sink that drops all output.
func NewNop() Nop { return Nop{} }

func (Nop) Headline(string, ...any) {}
func (Nop) Rule(string, ...any)     {}
func (Nop) Info(string, ...any)     {}
func (Nop) Detail(string, ...any)   {}
func (Nop) Success(string, ...any)  {}
func (Nop) Warn(string, ...any)     {}
func (Nop) Error(string, ...any)    {}
func (Nop) Panel(string, string)    {}
func (Nop) Blank()                  {}
