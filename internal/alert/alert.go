// Package alert keeps the append-only log of human-readable alert lines and
// streams them to connected UI clients over websockets.
package alert

import (
	"fmt"
	"sync"
	"time"
)

// maxRetained bounds the in-memory alert history served to new clients.
const maxRetained = 200

// Entry is one timestamped alert line.
type Entry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Line renders the entry the way the UI log displays it.
func (e Entry) Line() string {
	return fmt.Sprintf("[%s] %s", e.Time.Format("15:04:05"), e.Message)
}

// Log is the append-only alert log. Writers are the sensor loops, reporter
// and evidence path; readers are the control API and the websocket hub.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	hub     *Hub
	now     func() time.Time
}

// NewLog creates an alert log. hub may be nil when no UI stream is wanted.
func NewLog(hub *Hub) *Log {
	return &Log{hub: hub, now: time.Now}
}

// Add appends one alert line and pushes it to connected clients.
func (l *Log) Add(msg string) {
	e := Entry{Time: l.now(), Message: msg}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	if len(l.entries) > maxRetained {
		l.entries = l.entries[len(l.entries)-maxRetained:]
	}
	l.mu.Unlock()

	if l.hub != nil {
		l.hub.Broadcast(Message{Type: "alert", Alert: &e})
	}
}

// Addf is Add with formatting.
func (l *Log) Addf(format string, args ...any) {
	l.Add(fmt.Sprintf(format, args...))
}

// Recent returns up to n most recent entries, oldest first.
func (l *Log) Recent(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Entry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}
