package action

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Kazilsky/Petal/internal/memory"
	"github.com/Kazilsky/Petal/internal/system"
)

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	dir := t.TempDir()
	mem := memory.NewStore(filepath.Join(dir, "facts.json"), 100)
	ctl := system.NewControl(filepath.Join(dir, "system_config.json"))
	return NewProcessor(mem, nil, ctl)
}

func TestProcessNoTags(t *testing.T) {
	p := newTestProcessor(t)
	if got := p.Process("plain answer, nothing embedded"); got != "plain answer, nothing embedded" {
		t.Fatalf("Process=%q", got)
	}
}

func TestProcessStripsAndDispatches(t *testing.T) {
	p := newTestProcessor(t)

	var calls []map[string]any
	p.Register("probe", func(params map[string]any) error {
		calls = append(calls, params)
		return nil
	})

	got := p.Process(`hello [AI_ACTION:probe]{"message":"hi"}[/AI_ACTION] world`)
	if got != "hello world" {
		t.Fatalf("Process=%q, want tags stripped", got)
	}
	if len(calls) != 1 {
		t.Fatalf("handler called %d times, want 1", len(calls))
	}
	if msg, _ := calls[0]["message"].(string); msg != "hi" {
		t.Fatalf("params=%v", calls[0])
	}
}

func TestProcessMultipleTagsInOrder(t *testing.T) {
	p := newTestProcessor(t)

	var order []string
	p.Register("first", func(map[string]any) error { order = append(order, "first"); return nil })
	p.Register("second", func(map[string]any) error { order = append(order, "second"); return nil })

	got := p.Process("[AI_ACTION:first]{}[/AI_ACTION]ok[AI_ACTION:second]{}[/AI_ACTION]")
	if got != "ok" {
		t.Fatalf("Process=%q", got)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("dispatch order=%v", order)
	}
}

func TestProcessRepairedParams(t *testing.T) {
	p := newTestProcessor(t)

	var got map[string]any
	p.Register("probe", func(params map[string]any) error { got = params; return nil })

	p.Process(`[AI_ACTION:probe]{{"name":"x","prompt":"y"}}[/AI_ACTION]`)
	if got == nil {
		t.Fatal("handler not invoked")
	}
	if name, _ := got["name"].(string); name != "x" {
		t.Fatalf("params=%v, doubled braces not repaired", got)
	}
}

func TestProcessMalformedTagDoesNotAbortRest(t *testing.T) {
	p := newTestProcessor(t)

	invoked := false
	p.Register("probe", func(map[string]any) error { invoked = true; return nil })

	got := p.Process("[AI_ACTION:probe]total garbage[/AI_ACTION]after")
	if got != "after" {
		t.Fatalf("Process=%q", got)
	}
	// A malformed body still dispatches with empty params.
	if !invoked {
		t.Fatal("handler should run even with unparseable params")
	}
}

func TestExecuteUnknownAction(t *testing.T) {
	p := newTestProcessor(t)

	res := p.Execute("definitelyNotAnAction", nil)
	if res.Success {
		t.Fatal("unknown action must fail")
	}
	var unknown ErrUnknownAction
	if !errors.As(res.Err, &unknown) || unknown.Name != "definitelyNotAnAction" {
		t.Fatalf("err=%v, want ErrUnknownAction", res.Err)
	}
}

func TestNoteActions(t *testing.T) {
	dir := t.TempDir()
	mem := memory.NewStore(filepath.Join(dir, "facts.json"), 100)
	p := NewProcessor(mem, nil, nil)

	res := p.Execute("noteSet", map[string]any{"name": "style", "prompt": "be brief"})
	if !res.Success {
		t.Fatalf("noteSet failed: %v", res.Err)
	}
	if text, ok := mem.Note("style"); !ok || text != "be brief" {
		t.Fatalf("note=%q,%v", text, ok)
	}

	if res := p.Execute("noteSet", map[string]any{"name": "style"}); res.Success {
		t.Fatal("noteSet without prompt must fail")
	}

	if res := p.Execute("noteUnset", map[string]any{"name": "absent"}); !res.Success {
		t.Fatalf("noteUnset on absent note must succeed: %v", res.Err)
	}
}

func TestIgnoreActions(t *testing.T) {
	dir := t.TempDir()
	mem := memory.NewStore(filepath.Join(dir, "facts.json"), 100)
	p := NewProcessor(mem, nil, nil)

	if res := p.Execute("ignore", map[string]any{"username": "spammer"}); !res.Success {
		t.Fatalf("ignore failed: %v", res.Err)
	}
	if !mem.IsIgnored("spammer") {
		t.Fatal("user not ignored after action")
	}
	if res := p.Execute("unignore", map[string]any{"username": "spammer"}); !res.Success {
		t.Fatalf("unignore failed: %v", res.Err)
	}
	if mem.IsIgnored("spammer") {
		t.Fatal("user still ignored")
	}
}

func TestModeActions(t *testing.T) {
	p := newTestProcessor(t)

	if res := p.Execute("mode.set", map[string]any{"mode": "mention_only"}); !res.Success {
		t.Fatalf("mode.set failed: %v", res.Err)
	}
	if res := p.Execute("mode.set", map[string]any{"mode": "bogus"}); res.Success {
		t.Fatal("mode.set with unknown mode must fail")
	}
	if res := p.Execute("mode.get", nil); !res.Success {
		t.Fatalf("mode.get failed: %v", res.Err)
	}
}

func TestDreamActionsWithoutScheduler(t *testing.T) {
	p := newTestProcessor(t)

	for _, name := range []string{"dream.on", "dream.off", "dream.status"} {
		if res := p.Execute(name, nil); res.Success {
			t.Fatalf("%s without a scheduler must fail", name)
		}
	}
	if res := p.Execute("dream.tick", map[string]any{"tick": "30"}); res.Success {
		t.Fatal("dream.tick without a scheduler must fail")
	}
}

func TestIntParam(t *testing.T) {
	params := map[string]any{"a": float64(30), "b": "45", "c": " 60 ", "d": "nope", "e": true}
	cases := []struct {
		key    string
		want   int
		wantOK bool
	}{
		{"a", 30, true},
		{"b", 45, true},
		{"c", 60, true},
		{"d", 0, false},
		{"e", 0, false},
		{"missing", 0, false},
	}
	for _, tc := range cases {
		got, ok := intParam(params, tc.key)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("intParam(%q)=(%d,%v), want (%d,%v)", tc.key, got, ok, tc.want, tc.wantOK)
		}
	}
}
