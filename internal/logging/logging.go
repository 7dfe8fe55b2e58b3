package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const ringCap = 1000

// Entry is one captured log line, queryable through the log.recent action.
type Entry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

type ring struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *ring) add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	if len(r.entries) > ringCap {
		r.entries = r.entries[len(r.entries)-ringCap:]
	}
}

func (r *ring) recent(limit int, level string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	filtered := r.entries
	if level != "" {
		filtered = make([]Entry, 0, len(r.entries))
		for _, e := range r.entries {
			if e.Level == level {
				filtered = append(filtered, e)
			}
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	out := make([]Entry, len(filtered))
	copy(out, filtered)
	return out
}

var capture = &ring{}

type captureHook struct{}

func (captureHook) Run(e *zerolog.Event, level zerolog.Level, message string) {
	if level == zerolog.NoLevel {
		return
	}
	capture.add(Entry{Time: time.Now(), Level: level.String(), Message: message})
}

// Setup installs the process-wide console logger at the named level.
func Setup(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger().Hook(captureHook{})
	return nil
}

// SetLevel changes the global level at runtime. Unknown names are rejected.
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("unknown log level %q", level)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Info().Str("component", "logging").Str("level", lvl.String()).Msg("log level changed")
	return nil
}

func Level() string {
	return zerolog.GlobalLevel().String()
}

// Recent returns up to limit captured entries, newest last, optionally
// filtered by level name.
func Recent(limit int, level string) []Entry {
	return capture.recent(limit, level)
}
