package gate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Kazilsky/Petal/internal/bus"
	"github.com/Kazilsky/Petal/internal/llm"
	"github.com/Kazilsky/Petal/internal/memory"
	"github.com/Kazilsky/Petal/internal/system"
	"github.com/rs/zerolog/log"
)

// garbageRe matches messages that are pure punctuation or ellipsis.
var garbageRe = regexp.MustCompile(`^[\s.,!?…:;()\-+*^'"]+$`)

// oneWordAcks is the closed set of throwaway acknowledgements that never
// warrant a reply, even from a privileged user.
var oneWordAcks = map[string]struct{}{
	"ok": {}, "okay": {}, "lol": {}, "kek": {}, "+1": {}, "-1": {},
	"yes": {}, "no": {}, "да": {}, "нет": {}, "ок": {}, "лол": {},
	"ага": {}, "угу": {}, "хм": {}, "hmm": {}, "hm": {},
}

// Gate decides, per inbound message, whether the agent responds at all.
// Steps 1-3 are pure; step 4 asks the completion capability for a quick
// yes/no classification and fails closed on any error.
type Gate struct {
	mem       *memory.Store
	ctl       *system.Control
	completer llm.Completer
	opts      llm.Options
	agentName string
	mentions  []*regexp.Regexp
	history   int
}

func New(mem *memory.Store, ctl *system.Control, completer llm.Completer, opts llm.Options, agentName string, mentionTriggers []string, historyWindow int) (*Gate, error) {
	g := &Gate{
		mem:       mem,
		ctl:       ctl,
		completer: completer,
		opts:      opts,
		agentName: agentName,
		history:   historyWindow,
	}
	for _, pattern := range mentionTriggers {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile mention trigger %q: %w", pattern, err)
		}
		g.mentions = append(g.mentions, re)
	}
	return g, nil
}

// ShouldRespond applies the decision ladder in order; the first match
// wins. The garbage check deliberately precedes the mention check, so a
// garbage-only message stays silent even when it happens to contain a
// trigger substring.
func (g *Gate) ShouldRespond(ctx context.Context, msg bus.ChatMessage, recent []bus.ChatMessage) bool {
	if g.mem.IsIgnored(msg.Username) {
		return false
	}
	if isGarbage(msg.Content) {
		return false
	}

	mentioned := g.isMentioned(msg.Content)

	if g.ctl != nil {
		switch g.ctl.Mode() {
		case system.ModeMentionOnly:
			return mentioned
		case system.ModeAlwaysRespond:
			return true
		}
	}

	if mentioned {
		return true
	}
	return g.classify(ctx, msg, recent)
}

func isGarbage(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return true
	}
	if garbageRe.MatchString(trimmed) {
		return true
	}
	_, ok := oneWordAcks[strings.ToLower(trimmed)]
	return ok
}

func (g *Gate) isMentioned(content string) bool {
	for _, re := range g.mentions {
		if re.MatchString(content) {
			return true
		}
	}
	return false
}

// classify runs the cheap yes/no model call. The reply counts as yes only
// when it starts with "YES" (case-insensitive); a failed call means
// silence, not noise.
func (g *Gate) classify(ctx context.Context, msg bus.ChatMessage, recent []bus.ChatMessage) bool {
	if g.completer == nil {
		return false
	}

	var history strings.Builder
	window := recent
	if g.history > 0 && len(window) > g.history {
		window = window[len(window)-g.history:]
	}
	for _, m := range window {
		fmt.Fprintf(&history, "%s: %s\n", m.Username, m.Content)
	}

	instruction := fmt.Sprintf(`Ты — фильтр сообщений для ассистента по имени %s.
Реши, должна ли она ответить на последнее сообщение, учитывая контекст.
Ответь строго одним словом: YES или NO.`, g.agentName)

	turns := []memory.Turn{
		{Role: memory.RoleSystem, Content: instruction},
		{Role: memory.RoleUser, Content: fmt.Sprintf("Недавний чат:\n%s\nНовое сообщение от %s: %s", history.String(), msg.Username, msg.Content)},
	}

	reply, err := g.completer.Complete(ctx, turns, g.opts)
	if err != nil {
		log.Debug().Str("component", "gate").Err(err).Msg("classification failed, staying silent")
		return false
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(reply)), "YES")
}
