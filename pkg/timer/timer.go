package timer

import (
	"time"
)

// Logger is satisfied by *slog.Logger and logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
}

// Track returns a function that, when executed, logs the duration at debug level.
// Usage: defer timer.Track(logger, "FunctionName")()
func Track(log Logger, name string) func() {
	start := time.Now()
	return func() {
		if log == nil {
			return
		}
		log.Debug("timing", "op", name, "duration_ms", time.Since(start).Milliseconds())
	}
}

// Stopwatch measures multiple steps within one function.
type Stopwatch struct {
	log   Logger
	name  string
	start time.Time
	last  time.Time
}

// NewStopwatch starts the clock.
func NewStopwatch(log Logger, name string) *Stopwatch {
	now := time.Now()
	return &Stopwatch{log: log, name: name, start: now, last: now}
}

// Lap logs the time taken since the last Lap call and returns it.
func (s *Stopwatch) Lap(step string) time.Duration {
	now := time.Now()
	elapsed := now.Sub(s.last)
	s.last = now
	if s.log != nil {
		s.log.Debug("timing step", "op", s.name, "step", step,
			"duration_ms", elapsed.Milliseconds(), "total_ms", now.Sub(s.start).Milliseconds())
	}
	return elapsed
}
