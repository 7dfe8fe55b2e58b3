package action

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Kazilsky/Petal/internal/logging"
	"github.com/Kazilsky/Petal/internal/memory"
	"github.com/Kazilsky/Petal/internal/system"
	"github.com/Kazilsky/Petal/internal/thinking"
	"github.com/rs/zerolog/log"
)

var tagRe = regexp.MustCompile(`(?s)\[AI_ACTION:([A-Za-z0-9_.]+)\](.*?)\[/AI_ACTION\]`)

// ErrUnknownAction is the typed failure for a name outside the dispatch
// table; it never escapes as a panic.
type ErrUnknownAction struct{ Name string }

func (e ErrUnknownAction) Error() string {
	return fmt.Sprintf("unknown action %q", e.Name)
}

// Result reports one action invocation. Failed invocations are logged and
// reported, never retried.
type Result struct {
	Success bool
	Err     error
}

type handler func(params map[string]any) error

// Processor extracts embedded action tags from model output, dispatches
// them and strips every matched tag from the visible text. It holds no
// state of its own; effects go through the injected collaborators.
type Processor struct {
	mem      *memory.Store
	sched    *thinking.Scheduler
	ctl      *system.Control
	handlers map[string]handler
}

func NewProcessor(mem *memory.Store, sched *thinking.Scheduler, ctl *system.Control) *Processor {
	p := &Processor{mem: mem, sched: sched, ctl: ctl}
	p.handlers = map[string]handler{
		"log":           p.handleLog,
		"noteSet":       p.handleNoteSet,
		"noteUnset":     p.handleNoteUnset,
		"ignore":        p.handleIgnore,
		"unignore":      p.handleUnignore,
		"ignoreList":    p.handleIgnoreList,
		"mode.get":      p.handleModeGet,
		"mode.set":      p.handleModeSet,
		"log.level.set": p.handleLogLevelSet,
		"log.recent":    p.handleLogRecent,
		"dream.on":      p.handleDreamOn,
		"dream.off":     p.handleDreamOff,
		"dream.tick":    p.handleDreamTick,
		"dream.status":  p.handleDreamStatus,
		"channels":      p.handleChannels,
		"messages":      p.handleMessages,
	}
	return p
}

// Register adds or replaces a named handler. Used by collaborators that
// contribute actions of their own.
func (p *Processor) Register(name string, fn func(params map[string]any) error) {
	p.handlers[name] = fn
}

// Process executes every embedded tag in order and returns the text with
// all tags removed and whitespace normalized. An empty return means "no
// response", not an empty message. A malformed tag never aborts the
// remaining ones.
func (p *Processor) Process(text string) string {
	for _, m := range tagRe.FindAllStringSubmatch(text, -1) {
		name, body := m[1], m[2]

		params, parsed := RepairJSON(body)
		res := p.Execute(name, params)

		switch {
		case !parsed:
			log.Warn().Str("component", "action").Str("action", name).Msg("action params unparseable, invocation failed")
		case !res.Success:
			log.Warn().Str("component", "action").Str("action", name).Err(res.Err).Msg("action failed")
		default:
			log.Debug().Str("component", "action").Str("action", name).Msg("action executed")
		}
	}

	return Normalize(tagRe.ReplaceAllString(text, ""))
}

// Execute dispatches one invocation by name. Unknown names yield a typed
// failure result.
func (p *Processor) Execute(name string, params map[string]any) Result {
	fn, ok := p.handlers[name]
	if !ok {
		return Result{Success: false, Err: ErrUnknownAction{Name: name}}
	}
	if params == nil {
		params = map[string]any{}
	}
	if err := fn(params); err != nil {
		return Result{Success: false, Err: err}
	}
	return Result{Success: true}
}

func stringParam(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

func intParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func (p *Processor) handleLog(params map[string]any) error {
	msg := stringParam(params, "message")
	if msg == "" {
		return fmt.Errorf("log: missing message")
	}
	log.Info().Str("component", "action").Msgf("[AI LOG] %s", msg)
	return nil
}

func (p *Processor) handleNoteSet(params map[string]any) error {
	name := stringParam(params, "name")
	prompt := stringParam(params, "prompt")
	if name == "" || prompt == "" {
		return fmt.Errorf("noteSet: name and prompt are required")
	}
	p.mem.SetNote(name, prompt)
	if msg := stringParam(params, "message"); msg != "" {
		log.Info().Str("component", "action").Str("note", name).Msgf("[AI NOTE.SET] %s", msg)
	}
	return nil
}

func (p *Processor) handleNoteUnset(params map[string]any) error {
	name := stringParam(params, "name")
	if name == "" {
		return fmt.Errorf("noteUnset: missing name")
	}
	// Unsetting an absent note is a no-op, not an error.
	p.mem.UnsetNote(name)
	return nil
}

func (p *Processor) handleIgnore(params map[string]any) error {
	name := stringParam(params, "username")
	if name == "" {
		return fmt.Errorf("ignore: missing username")
	}
	p.mem.IgnoreUser(name)
	return nil
}

func (p *Processor) handleUnignore(params map[string]any) error {
	name := stringParam(params, "username")
	if name == "" {
		return fmt.Errorf("unignore: missing username")
	}
	p.mem.UnignoreUser(name)
	return nil
}

func (p *Processor) handleIgnoreList(map[string]any) error {
	log.Info().Str("component", "action").Strs("ignored", p.mem.IgnoredUsers()).Msg("ignore list")
	return nil
}

func (p *Processor) handleModeGet(map[string]any) error {
	if p.ctl == nil {
		return fmt.Errorf("mode.get: system control unavailable")
	}
	log.Info().Str("component", "action").Str("mode", string(p.ctl.Mode())).Msg("response mode")
	return nil
}

func (p *Processor) handleModeSet(params map[string]any) error {
	if p.ctl == nil {
		return fmt.Errorf("mode.set: system control unavailable")
	}
	return p.ctl.SetMode(stringParam(params, "mode"))
}

func (p *Processor) handleLogLevelSet(params map[string]any) error {
	return logging.SetLevel(stringParam(params, "level"))
}

func (p *Processor) handleLogRecent(params map[string]any) error {
	limit, ok := intParam(params, "limit")
	if !ok {
		limit = 20
	}
	entries := logging.Recent(limit, stringParam(params, "level"))
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("[%s] %s %s", e.Time.Format("15:04:05"), e.Level, e.Message)
	}
	log.Info().Str("component", "action").Int("count", len(entries)).Msg("recent logs:\n" + strings.Join(lines, "\n"))
	return nil
}

func (p *Processor) handleDreamOn(params map[string]any) error {
	if p.sched == nil {
		return fmt.Errorf("dream.on: scheduler unavailable")
	}
	p.sched.Start()
	if p.ctl != nil {
		p.ctl.SetThinkingEnabled(true)
	}
	if msg := stringParam(params, "message"); msg != "" {
		log.Info().Str("component", "action").Msgf("[AI DREAM.ON] %s", msg)
	}
	return nil
}

func (p *Processor) handleDreamOff(params map[string]any) error {
	if p.sched == nil {
		return fmt.Errorf("dream.off: scheduler unavailable")
	}
	p.sched.Stop()
	if p.ctl != nil {
		p.ctl.SetThinkingEnabled(false)
	}
	if msg := stringParam(params, "message"); msg != "" {
		log.Info().Str("component", "action").Msgf("[AI DREAM.OFF] %s", msg)
	}
	return nil
}

func (p *Processor) handleDreamTick(params map[string]any) error {
	if p.sched == nil {
		return fmt.Errorf("dream.tick: scheduler unavailable")
	}
	seconds, ok := intParam(params, "tick")
	if !ok {
		return fmt.Errorf("dream.tick: missing tick")
	}
	if err := p.sched.SetInterval(seconds); err != nil {
		return err
	}
	if p.ctl != nil {
		p.ctl.SetThinkingInterval(seconds)
	}
	return nil
}

func (p *Processor) handleDreamStatus(map[string]any) error {
	if p.sched == nil {
		return fmt.Errorf("dream.status: scheduler unavailable")
	}
	log.Info().Str("component", "action").
		Str("state", p.sched.State()).
		Int("interval", p.sched.Interval()).
		Int("buffered", p.sched.BufferLen()).
		Msg("thinking status")
	return nil
}

func (p *Processor) handleChannels(map[string]any) error {
	if p.sched == nil {
		return fmt.Errorf("channels: scheduler unavailable")
	}
	summaries := p.sched.ChannelSummaries()
	lines := make([]string, len(summaries))
	for i, cs := range summaries {
		lines[i] = fmt.Sprintf("%s: %d messages, last %s", cs.Key(), cs.Count, cs.LastActivity.Format("15:04:05"))
	}
	log.Info().Str("component", "action").Int("channels", len(summaries)).Msg("known channels:\n" + strings.Join(lines, "\n"))
	return nil
}

func (p *Processor) handleMessages(params map[string]any) error {
	if p.sched == nil {
		return fmt.Errorf("messages: scheduler unavailable")
	}
	limit, ok := intParam(params, "limit")
	if !ok {
		limit = 10
	}
	msgs := p.sched.Messages(
		stringParam(params, "platform"),
		stringParam(params, "channelId"),
		stringParam(params, "username"),
		limit,
	)
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = fmt.Sprintf("[%s %s/%s] %s: %s", m.Timestamp.Format("15:04:05"), m.Platform, m.ChannelID, m.Username, m.Content)
	}
	log.Info().Str("component", "action").Int("count", len(msgs)).Msg("buffered messages:\n" + strings.Join(lines, "\n"))
	return nil
}
