package library

import (
	"log/slog"
	"time"
)

type settings struct {
	logger   *slog.Logger
	now      func() time.Time
	recorder Recorder
}

// Option configures an AccountStore or a Librarian.
type Option func(*settings)

// WithLogger sets the logger used for load-time warnings and mutations.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now when computing due dates and fines.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRecorder attaches a loan ledger to the Librarian. AccountStore ignores it.
func WithRecorder(r Recorder) Option {
	return func(s *settings) {
		s.recorder = r
	}
}

func newSettings(opts []Option) settings {
	s := settings{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
