package thinking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Kazilsky/Petal/internal/bus"
	"github.com/Kazilsky/Petal/internal/memory"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const (
	ActionSay     = "SAY"
	ActionNothing = "NOTHING"

	previewMessages   = 8
	previewContentMax = 200
)

// Result is the outcome of one thinking cycle: at most one channel to
// speak into, or silence.
type Result struct {
	Action    string
	ChannelID string
	Platform  string
	Content   string
}

func nothing() Result {
	return Result{Action: ActionNothing}
}

// Think materializes a snapshot of the buffer, asks the completion
// capability to pick at most one channel (or silence) and returns the
// decision. Every failure path degrades to NOTHING.
func (s *Scheduler) Think(ctx context.Context) Result {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return nothing()
	}
	groups := s.channelSummariesLocked()
	snapshot := make([]bus.ChatMessage, len(s.buffer))
	copy(snapshot, s.buffer)
	s.mu.Unlock()

	turns := buildThinkingPrompt(s.agentName, groups, snapshot)

	reply, err := s.completer.Complete(ctx, turns, s.opts)
	if err != nil {
		log.Warn().Str("component", "thinking").Err(err).Msg("thinking completion failed")
		return nothing()
	}

	return s.parseReply(reply, groups)
}

// parseReply reads the structured decision. The platform is always
// resolved from the grouping; a platform the model reports is never
// trusted. An unknown or missing channel falls back to NOTHING.
func (s *Scheduler) parseReply(reply string, groups []ChannelSummary) Result {
	body, ok := extractObject(reply)
	if !ok {
		log.Warn().Str("component", "thinking").Msg("thinking reply not parseable, staying silent")
		return nothing()
	}

	action := strings.ToUpper(strings.TrimSpace(body.Get("action").String()))
	if action != ActionSay {
		return nothing()
	}

	channelKey := strings.TrimSpace(body.Get("channel").String())
	var chosen *ChannelSummary
	for i := range groups {
		if groups[i].Key() == channelKey || groups[i].ChannelID == channelKey {
			chosen = &groups[i]
			break
		}
	}
	if chosen == nil {
		log.Warn().Str("component", "thinking").Str("channel", channelKey).Msg("thinking picked unknown channel, staying silent")
		return nothing()
	}

	content := s.normalize(body.Get("content").String())
	if content == "" {
		return nothing()
	}

	return Result{
		Action:    ActionSay,
		ChannelID: chosen.ChannelID,
		Platform:  chosen.Platform,
		Content:   content,
	}
}

func extractObject(reply string) (gjson.Result, bool) {
	s := strings.TrimSpace(reply)
	if first, last := strings.Index(s, "{"), strings.LastIndex(s, "}"); first != -1 && last > first {
		s = s[first : last+1]
	}
	if !gjson.Valid(s) {
		return gjson.Result{}, false
	}
	parsed := gjson.Parse(s)
	if !parsed.IsObject() {
		return gjson.Result{}, false
	}
	return parsed, true
}

func buildThinkingPrompt(agentName string, groups []ChannelSummary, snapshot []bus.ChatMessage) []memory.Turn {
	var sb strings.Builder
	now := time.Now()

	for _, g := range groups {
		fmt.Fprintf(&sb, "## %s (messages: %d, last activity: %s ago)\n",
			g.Key(), g.Count, now.Sub(g.LastActivity).Round(time.Second))

		var recent []bus.ChatMessage
		for _, m := range snapshot {
			if m.Platform == g.Platform && m.ChannelID == g.ChannelID {
				recent = append(recent, m)
			}
		}
		if len(recent) > previewMessages {
			recent = recent[len(recent)-previewMessages:]
		}
		for _, m := range recent {
			content := m.Content
			if len(content) > previewContentMax {
				content = content[:previewContentMax] + "..."
			}
			fmt.Fprintf(&sb, "[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Username, content)
		}
		sb.WriteString("\n")
	}

	system := fmt.Sprintf(`Ты — %s, AI с модулем саморефлексии. Текущее время: %s.

Ниже — недавние сообщения по всем каналам. Реши, стоит ли вмешаться:
выбери ровно один канал и текст сообщения, либо промолчи. Не врывайся в
затихшие разговоры без причины; присоединяйся только если это уместно.

Ответь строго одним JSON-объектом:
{"action":"SAY","channel":"<platform:channelId>","content":"<текст>"}
или
{"action":"NOTHING"}`, agentName, now.Format("Monday, 2 January 2006 15:04:05"))

	return []memory.Turn{
		{Role: memory.RoleSystem, Content: system},
		{Role: memory.RoleUser, Content: "История сообщений:\n\n" + sb.String()},
	}
}
