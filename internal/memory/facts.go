package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

var wordSplit = regexp.MustCompile(`[\s,.!?]+`)

// deriveKeywords tokenizes both sides of an exchange into case-folded
// words longer than three runes, deduplicated, order preserved.
func deriveKeywords(userText, agentText string) []string {
	seen := make(map[string]struct{})
	var keywords []string
	for _, text := range []string{userText, agentText} {
		for _, w := range wordSplit.Split(strings.ToLower(text), -1) {
			if len([]rune(w)) <= 3 {
				continue
			}
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			keywords = append(keywords, w)
		}
	}
	return keywords
}

type scoredFact struct {
	index int
	score float64
}

// findRelevantFacts is a linear scan: +1 per keyword-set hit, +0.5 per raw
// substring hit in the fact content; facts scoring above 0.5 are ranked by
// score, newer first on ties. Callers hold s.mu.
func (s *Store) findRelevantFacts(query string, topK int) []string {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	var words []string
	for _, w := range wordSplit.Split(strings.ToLower(query), -1) {
		if len([]rune(w)) > 3 {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return nil
	}

	var scored []scoredFact
	for i, fact := range s.facts {
		keywords := make(map[string]struct{}, len(fact.Keywords))
		for _, k := range fact.Keywords {
			keywords[k] = struct{}{}
		}
		contentLower := strings.ToLower(fact.Content)

		var score float64
		for _, w := range words {
			if _, ok := keywords[w]; ok {
				score++
			}
			if strings.Contains(contentLower, w) {
				score += 0.5
			}
		}
		if score > 0.5 {
			scored = append(scored, scoredFact{index: i, score: score})
		}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		if scored[a].score != scored[b].score {
			return scored[a].score > scored[b].score
		}
		// Append-only store: a later index is a newer fact.
		return scored[a].index > scored[b].index
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	out := make([]string, len(scored))
	for i, sf := range scored {
		out[i] = s.facts[sf.index].Content
	}
	return out
}

func loadFacts(path string) []Fact {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Str("component", "memory").Err(err).Msg("fact store unreadable, starting empty")
		}
		return nil
	}
	var file factFile
	if err := json.Unmarshal(data, &file); err != nil {
		log.Warn().Str("component", "memory").Err(err).Msg("fact store corrupt, starting empty")
		return nil
	}
	return file.Facts
}

// saveFacts rewrites the whole document. All mutation is serialized by the
// store mutex, so plain write-then-rename suffices.
func saveFacts(path string, facts []Fact) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create fact store dir: %w", err)
	}
	data, err := json.MarshalIndent(factFile{Facts: facts}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fact store: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write fact store: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace fact store: %w", err)
	}
	return nil
}
