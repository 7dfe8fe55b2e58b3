package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ImportanceThreshold is the promotion cutoff: an exchange becomes a
// durable fact only when its importance is strictly above this value.
const ImportanceThreshold = 0.65

const defaultTopK = 3

// Store owns the short-term turn window, the persisted fact store, the
// named notes and the ignore list. One instance per process, passed by
// reference to every consumer.
type Store struct {
	mu        sync.Mutex
	turns     []Turn
	window    int
	notes     map[string]string
	ignored   map[string]struct{}
	facts     []Fact
	factsPath string
}

// NewStore loads the fact file at factsPath; a missing or corrupt file
// yields an empty store, not an error. window caps the turn slice (FIFO).
func NewStore(factsPath string, window int) *Store {
	s := &Store{
		window:    window,
		notes:     make(map[string]string),
		ignored:   make(map[string]struct{}),
		factsPath: factsPath,
	}
	s.facts = loadFacts(factsPath)
	return s
}

// UpdateTurn records one completed exchange: a channel-tag system turn, the
// user turn and the assistant turn, trimming the window FIFO. Importance
// above the threshold promotes the exchange to a durable fact; a failed
// fact write is logged and swallowed so memory degradation never breaks
// the response path.
func (s *Store) UpdateTurn(channelID, userText, agentText string, importance float64, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns,
		Turn{Role: RoleSystem, Content: fmt.Sprintf("Info: User=%s, Chan=%s", username, channelID)},
		Turn{Role: RoleUser, Content: userText, Username: username},
		Turn{Role: RoleAssistant, Content: agentText},
	)
	if len(s.turns) > s.window {
		s.turns = s.turns[len(s.turns)-s.window:]
	}

	if importance <= ImportanceThreshold {
		return
	}

	s.facts = append(s.facts, Fact{
		Content:   userText + " -> " + agentText,
		Keywords:  deriveKeywords(userText, agentText),
		CreatedAt: time.Now().UnixMilli(),
	})
	if err := saveFacts(s.factsPath, s.facts); err != nil {
		log.Error().Str("component", "memory").Err(err).Msg("fact store write failed, memory not persisted this turn")
	}
}

// Context returns the prompt-ready memory block: the notes turn (if any
// notes exist), the relevant-facts turn for the most recent user message,
// then the last limit*2 turns, in that fixed order.
func (s *Store) Context(limit int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	recent := s.turns
	if n := limit * 2; len(recent) > n {
		recent = recent[len(recent)-n:]
	}

	var lastUser string
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Role == RoleUser {
			lastUser = recent[i].Content
			break
		}
	}

	var ctx []Turn
	if notes := s.notesBlock(); notes != "" {
		ctx = append(ctx, Turn{Role: RoleSystem, Content: "Важные инструкции:\n" + notes})
	}
	if facts := s.findRelevantFacts(lastUser, defaultTopK); len(facts) > 0 {
		ctx = append(ctx, Turn{Role: RoleSystem, Content: "Вспомогательная информация из памяти:\n" + strings.Join(facts, "\n")})
	}
	return append(ctx, recent...)
}

func (s *Store) notesBlock() string {
	if len(s.notes) == 0 {
		return ""
	}
	names := make([]string, 0, len(s.notes))
	for name := range s.notes {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, "["+name+"]: "+s.notes[name])
	}
	return strings.Join(lines, "\n")
}

// SetNote upserts a named instruction fragment.
func (s *Store) SetNote(name, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[name] = text
}

// UnsetNote removes a note; removing an absent name is a no-op and
// reports false.
func (s *Store) UnsetNote(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[name]; !ok {
		return false
	}
	delete(s.notes, name)
	return true
}

func (s *Store) Note(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.notes[name]
	return text, ok
}

func (s *Store) IgnoreUser(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignored[strings.ToLower(name)] = struct{}{}
}

func (s *Store) UnignoreUser(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ignored, strings.ToLower(name))
}

func (s *Store) IsIgnored(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ignored[strings.ToLower(name)]
	return ok
}

func (s *Store) IgnoredUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]string, 0, len(s.ignored))
	for name := range s.ignored {
		users = append(users, name)
	}
	sort.Strings(users)
	return users
}

// TurnCount reports the current window length.
func (s *Store) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// FactCount reports the durable fact count.
func (s *Store) FactCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.facts)
}

// FindRelevantFacts scores every fact against the query and returns the
// content of the best topK matches.
func (s *Store) FindRelevantFacts(query string, topK int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findRelevantFacts(query, topK)
}
