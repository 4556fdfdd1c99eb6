// Package statuslog is the status-log sink collaborator (spec §6):
// a buffered queue of status messages, flushed to the structured
// logger only when the supervisor loop observes a healthy child
// (per §4.4 watch step 4 — "opportunistically flush buffered status
// logs").
package statuslog

import (
	"sync"

	"github.com/pathcl/osquery/pkg/logging"
)

// Message is one buffered status line, tagged with the severity the
// caller intends it to be logged at.
type Message struct {
	Level logging.Level
	Text  string
}

// Sink buffers status messages produced anywhere in the worker and
// flushes them through a *logging.Logger on RelayStatusLogs.
type Sink struct {
	mu  sync.Mutex
	buf []Message
	log *logging.Logger
}

// NewSink constructs a Sink that flushes through log.
func NewSink(log *logging.Logger) *Sink {
	return &Sink{log: log}
}

// Buffer appends a message without logging it yet.
func (s *Sink) Buffer(level logging.Level, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, Message{Level: level, Text: text})
}

// RelayStatusLogs flushes every buffered message to the logger, in
// order, and clears the buffer.
func (s *Sink) RelayStatusLogs() {
	s.mu.Lock()
	pending := s.buf
	s.buf = nil
	s.mu.Unlock()

	if s.log == nil {
		return
	}
	for _, m := range pending {
		switch m.Level {
		case logging.DEBUG:
			s.log.Debug(m.Text)
		case logging.WARN:
			s.log.Warn(m.Text)
		case logging.ERROR:
			s.log.Error(m.Text)
		default:
			s.log.Info(m.Text)
		}
	}
}

// Pending returns the number of buffered, not-yet-flushed messages.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}
