package thinking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Kazilsky/Petal/internal/bus"
	"github.com/Kazilsky/Petal/internal/llm"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// ErrIntervalOutOfRange rejects interval changes outside [10s, 1h]. The
// previous interval stays in effect.
var ErrIntervalOutOfRange = errors.New("thinking interval must be between 10 and 3600 seconds")

const (
	StateDisabled  = "disabled"
	StateScheduled = "scheduled"
	StateRunning   = "running"
)

// Scheduler owns the multi-channel message buffer and the timer-driven
// thinking cycle. It never calls platform SDKs itself: cycle results are
// handed to the registered callback.
type Scheduler struct {
	mu        sync.Mutex
	buffer    []bus.ChatMessage
	bufferCap int
	interval  int
	state     string

	cron  *cron.Cron
	entry cron.EntryID

	completer llm.Completer
	opts      llm.Options
	agentName string
	// normalize is the same tag-strip normalization the response path
	// applies to model output; injected to keep the dependency one-way.
	normalize func(string) string
	onResult  func(Result)
}

func NewScheduler(completer llm.Completer, opts llm.Options, agentName string, bufferCap, intervalSeconds int, normalize func(string) string) *Scheduler {
	if normalize == nil {
		normalize = func(s string) string { return s }
	}
	return &Scheduler{
		bufferCap: bufferCap,
		interval:  intervalSeconds,
		state:     StateDisabled,
		cron:      cron.New(cron.WithSeconds()),
		completer: completer,
		opts:      opts,
		agentName: agentName,
		normalize: normalize,
	}
}

// SetNormalize replaces the output normalization hook. The action
// processor is constructed after the scheduler, so the hook arrives late.
func (s *Scheduler) SetNormalize(fn func(string) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.normalize = fn
	}
}

// SetOnResult registers the collaborator receiving cycle results.
func (s *Scheduler) SetOnResult(fn func(Result)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResult = fn
}

// Start arms the cycle timer: disabled -> scheduled. Starting an already
// scheduled scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDisabled {
		return
	}
	s.armLocked()
	s.cron.Start()
	s.state = StateScheduled
	log.Info().Str("component", "thinking").Int("interval", s.interval).Msg("thinking scheduler started")
}

// Stop cancels any armed timer: * -> disabled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisabled {
		return
	}
	s.disarmLocked()
	s.state = StateDisabled
	log.Info().Str("component", "thinking").Msg("thinking scheduler stopped")
}

// SetInterval validates the new period and, when currently armed, cancels
// the pending timer before rearming so cycles never double up.
func (s *Scheduler) SetInterval(seconds int) error {
	if seconds < 10 || seconds > 3600 {
		return fmt.Errorf("%w: got %d", ErrIntervalOutOfRange, seconds)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = seconds
	if s.state != StateDisabled {
		s.disarmLocked()
		s.armLocked()
	}
	log.Info().Str("component", "thinking").Int("interval", seconds).Msg("thinking interval changed")
	return nil
}

func (s *Scheduler) Interval() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Enabled() bool {
	return s.State() != StateDisabled
}

// armLocked registers the cycle with the cron runner. Callers hold s.mu.
func (s *Scheduler) armLocked() {
	spec := fmt.Sprintf("@every %ds", s.interval)
	entry, err := s.cron.AddFunc(spec, s.runCycle)
	if err != nil {
		log.Error().Str("component", "thinking").Err(err).Str("spec", spec).Msg("arm thinking timer failed")
		return
	}
	s.entry = entry
}

func (s *Scheduler) disarmLocked() {
	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.entry = 0
	}
}

// runCycle is the timer entry point: scheduled -> running -> scheduled.
// Any cycle failure degrades to NOTHING; the schedule continues.
func (s *Scheduler) runCycle() {
	s.mu.Lock()
	if s.state != StateScheduled {
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	onResult := s.onResult
	s.mu.Unlock()

	result := s.Think(context.Background())

	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateScheduled
	}
	s.mu.Unlock()

	if onResult != nil {
		onResult(result)
	}
}
