// Package notify carries short user-visible notices (the toast equivalent)
// from stores and flows to whatever front end is attached.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Level constants recognised by front ends.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notice is one transient, non-blocking message.
type Notice struct {
	Level   Level
	Message string
}

// Success builds a success notice.
func Success(msg string) Notice { return Notice{Level: LevelSuccess, Message: msg} }

// Error builds an error notice.
func Error(msg string) Notice { return Notice{Level: LevelError, Message: msg} }

// Info builds an informational notice.
func Info(msg string) Notice { return Notice{Level: LevelInfo, Message: msg} }

// Sink describes a destination capable of showing notices.
type Sink interface {
	Notify(n Notice)
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(n Notice)

// Notify implements the Sink interface.
func (f SinkFunc) Notify(n Notice) {
	if f == nil {
		return
	}
	f(n)
}

// Discard drops every notice.
var Discard Sink = SinkFunc(nil)

// Multi fans a notice out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(n Notice) {
		for _, s := range sinks {
			if s != nil {
				s.Notify(n)
			}
		}
	})
}

// Recorder keeps every notice it receives. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify implements the Sink interface.
func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Drain returns and forgets everything recorded so far.
func (r *Recorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notices
	r.notices = nil
	return out
}

// Count returns how many notices of level were recorded.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.notices {
		if x.Level == level {
			n++
		}
	}
	return n
}

// LogSink writes notices to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// Notify implements the Sink interface.
func (s LogSink) Notify(n Notice) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "notice", "notice_level", string(n.Level), "message", n.Message)
}
