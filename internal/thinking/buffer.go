package thinking

import (
	"sort"
	"strings"
	"time"

	"github.com/Kazilsky/Petal/internal/bus"
)

// ChannelSummary is one distinct platform+channel pair seen in the buffer.
type ChannelSummary struct {
	Platform     string
	ChannelID    string
	Count        int
	LastActivity time.Time
}

func (c ChannelSummary) Key() string {
	return c.Platform + ":" + c.ChannelID
}

// AddMessage appends to the rolling buffer, evicting the oldest entries
// past the cap. Every inbound and outbound message lands here regardless
// of the response gate's decision.
func (s *Scheduler) AddMessage(msg bus.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = append(s.buffer, msg)
	if len(s.buffer) > s.bufferCap {
		s.buffer = s.buffer[len(s.buffer)-s.bufferCap:]
	}
}

func (s *Scheduler) BufferLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// Messages returns buffered messages matching the non-empty filters,
// newest last, at most limit entries (0 = no limit).
func (s *Scheduler) Messages(platform, channelID, username string, limit int) []bus.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []bus.ChatMessage
	for _, m := range s.buffer {
		if platform != "" && m.Platform != platform {
			continue
		}
		if channelID != "" && m.ChannelID != channelID {
			continue
		}
		if username != "" && !strings.EqualFold(m.Username, username) {
			continue
		}
		out = append(out, m)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// ChannelSummaries lists the distinct platform+channel pairs currently in
// the buffer with message counts and last-activity timestamps.
func (s *Scheduler) ChannelSummaries() []ChannelSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelSummariesLocked()
}

func (s *Scheduler) channelSummariesLocked() []ChannelSummary {
	byKey := make(map[string]*ChannelSummary)
	for _, m := range s.buffer {
		key := m.Platform + ":" + m.ChannelID
		cs, ok := byKey[key]
		if !ok {
			cs = &ChannelSummary{Platform: m.Platform, ChannelID: m.ChannelID}
			byKey[key] = cs
		}
		cs.Count++
		if m.Timestamp.After(cs.LastActivity) {
			cs.LastActivity = m.Timestamp
		}
	}

	out := make([]ChannelSummary, 0, len(byKey))
	for _, cs := range byKey {
		out = append(out, *cs)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Key() < out[b].Key() })
	return out
}
