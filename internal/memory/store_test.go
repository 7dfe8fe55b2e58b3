package memory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUpdateTurnWindowTrim(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "facts.json"), 9)

	for i := 0; i < 10; i++ {
		s.UpdateTurn("chat1", "hello", "hi", 0, "alice")
	}
	if got := s.TurnCount(); got != 9 {
		t.Fatalf("TurnCount=%d, want window cap 9", got)
	}
}

func TestUpdateTurnFactPromotion(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "facts.json"), 100)

	s.UpdateTurn("chat1", "remember my birthday is in June", "noted", 0.65, "alice")
	if got := s.FactCount(); got != 0 {
		t.Fatalf("FactCount=%d after importance 0.65, threshold must be strict", got)
	}

	s.UpdateTurn("chat1", "remember my birthday is in June", "noted", 0.66, "alice")
	if got := s.FactCount(); got != 1 {
		t.Fatalf("FactCount=%d after importance 0.66, want 1", got)
	}
}

func TestFactPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "facts.json")

	s1 := NewStore(path, 100)
	s1.UpdateTurn("chat1", "favorite editor is helix", "noted", 0.9, "alice")

	s2 := NewStore(path, 100)
	if got := s2.FactCount(); got != 1 {
		t.Fatalf("reloaded FactCount=%d, want 1", got)
	}
	facts := s2.FindRelevantFacts("what is my favorite editor", 3)
	if len(facts) != 1 || !strings.Contains(facts[0], "helix") {
		t.Fatalf("reloaded facts=%v", facts)
	}
}

func TestCorruptFactFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facts.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path, 100)
	if got := s.FactCount(); got != 0 {
		t.Fatalf("FactCount=%d from corrupt file, want 0", got)
	}
}

func TestContextOrdering(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "facts.json"), 100)
	s.SetNote("style", "answer briefly")
	s.UpdateTurn("chat1", "project deadline is on friday", "noted", 0.9, "alice")
	s.UpdateTurn("chat1", "when is the project deadline?", "friday", 0, "alice")

	ctx := s.Context(20)
	if len(ctx) < 3 {
		t.Fatalf("context too short: %d turns", len(ctx))
	}
	if !strings.Contains(ctx[0].Content, "Важные инструкции") {
		t.Fatalf("first turn should be notes, got %q", ctx[0].Content)
	}
	if !strings.Contains(ctx[1].Content, "Вспомогательная информация") {
		t.Fatalf("second turn should be facts, got %q", ctx[1].Content)
	}
	last := ctx[len(ctx)-1]
	if last.Role != RoleAssistant {
		t.Fatalf("last turn role=%s, want assistant", last.Role)
	}
}

func TestContextLimit(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "facts.json"), 400)
	for i := 0; i < 30; i++ {
		s.UpdateTurn("chat1", "msg", "ok", 0, "alice")
	}
	ctx := s.Context(5)
	if len(ctx) != 10 {
		t.Fatalf("Context(5) returned %d turns, want limit*2", len(ctx))
	}
}

func TestNotes(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "facts.json"), 100)

	s.SetNote("style", "be brief")
	s.SetNote("style", "be verbose")
	if text, ok := s.Note("style"); !ok || text != "be verbose" {
		t.Fatalf("Note=%q,%v after upsert", text, ok)
	}

	if !s.UnsetNote("style") {
		t.Fatal("UnsetNote on existing note should report true")
	}
	if s.UnsetNote("style") {
		t.Fatal("UnsetNote on absent note should report false")
	}
}

func TestIgnoreListCaseFolded(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "facts.json"), 100)

	s.IgnoreUser("Spammer")
	if !s.IsIgnored("spammer") || !s.IsIgnored("SPAMMER") {
		t.Fatal("ignore list must be case-insensitive")
	}

	s.UnignoreUser("SPAMMER")
	if s.IsIgnored("spammer") {
		t.Fatal("user still ignored after unignore")
	}
	if got := len(s.IgnoredUsers()); got != 0 {
		t.Fatalf("IgnoredUsers len=%d, want 0", got)
	}
}

func TestFindRelevantFacts(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "facts.json"), 100)
	s.UpdateTurn("c", "любимый редактор алисы это helix", "запомнила", 0.9, "alice")
	s.UpdateTurn("c", "проект petal написан на golang", "запомнила", 0.9, "alice")
	s.UpdateTurn("c", "сервер работает на порту 3000", "запомнила", 0.9, "alice")

	if got := s.FindRelevantFacts("", 3); got != nil {
		t.Fatalf("empty query should return nil, got %v", got)
	}
	if got := s.FindRelevantFacts("а и о", 3); got != nil {
		t.Fatalf("query with only short words should return nil, got %v", got)
	}

	facts := s.FindRelevantFacts("какой редактор у алисы?", 3)
	if len(facts) == 0 || !strings.Contains(facts[0], "helix") {
		t.Fatalf("facts=%v, want the editor fact first", facts)
	}
	for _, f := range facts {
		if strings.Contains(f, "порту 3000") {
			t.Fatalf("unrelated fact leaked into results: %v", facts)
		}
	}
}

func TestFindRelevantFactsNewerFirstOnTie(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "facts.json"), 100)
	s.UpdateTurn("c", "встреча команды запланирована", "ок first", 0.9, "alice")
	s.UpdateTurn("c", "встреча команды запланирована", "ок second", 0.9, "alice")

	facts := s.FindRelevantFacts("когда встреча команды?", 1)
	if len(facts) != 1 || !strings.Contains(facts[0], "second") {
		t.Fatalf("facts=%v, want the newer fact on a tie", facts)
	}
}
