package gate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Kazilsky/Petal/internal/bus"
	"github.com/Kazilsky/Petal/internal/llm"
	"github.com/Kazilsky/Petal/internal/memory"
	"github.com/Kazilsky/Petal/internal/system"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(ctx context.Context, turns []memory.Turn, opts llm.Options) (string, error) {
	f.calls++
	return f.reply, f.err
}

func newTestGate(t *testing.T, completer llm.Completer) (*Gate, *memory.Store, *system.Control) {
	t.Helper()
	dir := t.TempDir()
	mem := memory.NewStore(filepath.Join(dir, "facts.json"), 100)
	ctl := system.NewControl(filepath.Join(dir, "system_config.json"))
	g, err := New(mem, ctl, completer, llm.Options{Model: "test"}, "Petal", []string{`(?i)\bpetal\b`, `(?i)петал`}, 6)
	if err != nil {
		t.Fatalf("New gate: %v", err)
	}
	return g, mem, ctl
}

func msg(content, username string) bus.ChatMessage {
	return bus.NewChatMessage(content, username, "chat1", "telegram")
}

func TestIgnoredUserAlwaysSilent(t *testing.T) {
	g, mem, ctl := newTestGate(t, &fakeCompleter{reply: "YES"})
	mem.IgnoreUser("troll")
	if err := ctl.SetMode("always_respond"); err != nil {
		t.Fatal(err)
	}

	if g.ShouldRespond(context.Background(), msg("petal, are you there?", "troll"), nil) {
		t.Fatal("ignored user must stay silent even in always_respond mode")
	}
}

func TestGarbageFilter(t *testing.T) {
	g, _, _ := newTestGate(t, &fakeCompleter{reply: "YES"})

	cases := []string{"", "   ", "...", "?!", "ok", "лол", "+1", "Хм"}
	for _, content := range cases {
		if g.ShouldRespond(context.Background(), msg(content, "alice"), nil) {
			t.Fatalf("garbage %q passed the gate", content)
		}
	}
}

func TestGarbagePrecedesMention(t *testing.T) {
	fake := &fakeCompleter{reply: "YES"}
	g, _, _ := newTestGate(t, fake)

	// Nothing but punctuation stays silent even with a trigger substring.
	if g.ShouldRespond(context.Background(), msg("...", "alice"), nil) {
		t.Fatal("punctuation-only message passed")
	}
	if fake.calls != 0 {
		t.Fatal("garbage must never reach classification")
	}
}

func TestMentionShortCircuits(t *testing.T) {
	fake := &fakeCompleter{reply: "NO"}
	g, _, _ := newTestGate(t, fake)

	if !g.ShouldRespond(context.Background(), msg("эй, Петал, привет!", "alice"), nil) {
		t.Fatal("mention must force a response")
	}
	if fake.calls != 0 {
		t.Fatal("mention must bypass classification")
	}
}

func TestModeMentionOnly(t *testing.T) {
	fake := &fakeCompleter{reply: "YES"}
	g, _, ctl := newTestGate(t, fake)
	if err := ctl.SetMode("mention_only"); err != nil {
		t.Fatal(err)
	}

	if g.ShouldRespond(context.Background(), msg("interesting question about go", "alice"), nil) {
		t.Fatal("mention_only must stay silent without a mention")
	}
	if !g.ShouldRespond(context.Background(), msg("petal what do you think", "alice"), nil) {
		t.Fatal("mention_only must respond to a mention")
	}
	if fake.calls != 0 {
		t.Fatal("mention_only never classifies")
	}
}

func TestModeAlwaysRespond(t *testing.T) {
	fake := &fakeCompleter{reply: "NO"}
	g, _, ctl := newTestGate(t, fake)
	if err := ctl.SetMode("always_respond"); err != nil {
		t.Fatal(err)
	}

	if !g.ShouldRespond(context.Background(), msg("random chatter", "alice"), nil) {
		t.Fatal("always_respond must respond")
	}
	if fake.calls != 0 {
		t.Fatal("always_respond never classifies")
	}
}

func TestClassification(t *testing.T) {
	cases := []struct {
		reply string
		want  bool
	}{
		{"YES", true},
		{"yes", true},
		{" Yes, she should reply.", true},
		{"NO", false},
		{"maybe", false},
	}
	for _, tc := range cases {
		g, _, _ := newTestGate(t, &fakeCompleter{reply: tc.reply})
		got := g.ShouldRespond(context.Background(), msg("а что вы думаете про генерики?", "alice"), nil)
		if got != tc.want {
			t.Fatalf("reply %q: ShouldRespond=%v, want %v", tc.reply, got, tc.want)
		}
	}
}

func TestClassificationFailsClosed(t *testing.T) {
	g, _, _ := newTestGate(t, &fakeCompleter{err: errors.New("provider down")})
	if g.ShouldRespond(context.Background(), msg("а что вы думаете про генерики?", "alice"), nil) {
		t.Fatal("classification error must mean silence")
	}
}
