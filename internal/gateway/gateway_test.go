package gateway

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Kazilsky/Petal/internal/bus"
	"github.com/Kazilsky/Petal/internal/config"
	"github.com/Kazilsky/Petal/internal/llm"
	"github.com/Kazilsky/Petal/internal/memory"
)

type scriptedCompleter struct {
	replies []string
	opts    []llm.Options
}

func (f *scriptedCompleter) Complete(ctx context.Context, turns []memory.Turn, opts llm.Options) (string, error) {
	f.opts = append(f.opts, opts)
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

func newTestGateway(t *testing.T, replies ...string) (*Gateway, *scriptedCompleter) {
	t.Helper()
	t.Setenv("PETAL_CONFIG_DIR", t.TempDir())

	cfg := config.Default()
	cfg.Memory.FactsPath = filepath.Join(config.ConfigDir(), "data", "facts.json")
	cfg.Thinking.Enabled = false

	fake := &scriptedCompleter{replies: replies}
	gw, err := New(cfg, Options{Completer: fake})
	if err != nil {
		t.Fatalf("New gateway: %v", err)
	}
	return gw, fake
}

func inbound(content string) bus.ChatMessage {
	return bus.NewChatMessage(content, "alice", "chat1", "telegram")
}

func TestRespondSync(t *testing.T) {
	gw, _ := newTestGateway(t, "привет, alice!")

	reply, err := gw.RespondSync(context.Background(), inbound("привет, Петал"))
	if err != nil {
		t.Fatalf("RespondSync: %v", err)
	}
	if reply != "привет, alice!" {
		t.Fatalf("reply=%q", reply)
	}
	if got := gw.mem.TurnCount(); got != 3 {
		t.Fatalf("TurnCount=%d, want the exchange recorded", got)
	}
}

func TestRespondSyncIgnoredUser(t *testing.T) {
	gw, fake := newTestGateway(t, "never sent")
	gw.mem.IgnoreUser("alice")

	reply, err := gw.RespondSync(context.Background(), inbound("hi"))
	if err != nil || reply != "" {
		t.Fatalf("reply=%q err=%v, ignored user must get silence", reply, err)
	}
	if len(fake.opts) != 0 {
		t.Fatal("ignored user must never reach completion")
	}
}

func TestRespondSilenceMarker(t *testing.T) {
	gw, _ := newTestGateway(t, "[NO_RESPONSE]")

	reply, err := gw.RespondSync(context.Background(), inbound("скучное сообщение"))
	if err != nil {
		t.Fatalf("RespondSync: %v", err)
	}
	if reply != "" {
		t.Fatalf("reply=%q, want silence", reply)
	}
	// The exchange is still recorded even when the agent stays silent.
	if got := gw.mem.TurnCount(); got != 3 {
		t.Fatalf("TurnCount=%d", got)
	}
}

func TestRespondExtractsImportance(t *testing.T) {
	gw, _ := newTestGateway(t, "запомнила: день рождения в июне [MEMORY:0.9]")

	reply, err := gw.RespondSync(context.Background(), inbound("мой день рождения в июне"))
	if err != nil {
		t.Fatalf("RespondSync: %v", err)
	}
	if reply != "запомнила: день рождения в июне" {
		t.Fatalf("reply=%q, marker must be stripped", reply)
	}
	if got := gw.mem.FactCount(); got != 1 {
		t.Fatalf("FactCount=%d, importance 0.9 must promote a fact", got)
	}
}

func TestRespondExecutesActions(t *testing.T) {
	gw, _ := newTestGateway(t, "сделано\n[AI_ACTION:noteSet]{\"name\":\"style\",\"prompt\":\"be brief\"}[/AI_ACTION]")

	reply, err := gw.RespondSync(context.Background(), inbound("запиши себе: отвечай кратко"))
	if err != nil {
		t.Fatalf("RespondSync: %v", err)
	}
	if reply != "сделано" {
		t.Fatalf("reply=%q, tag must be stripped", reply)
	}
	if text, ok := gw.mem.Note("style"); !ok || text != "be brief" {
		t.Fatalf("note=%q,%v, action not executed", text, ok)
	}
}

func TestMoodDrivenTemperature(t *testing.T) {
	gw, fake := newTestGateway(t, "ответ")

	if _, err := gw.RespondSync(context.Background(), inbound("обычный вопрос")); err != nil {
		t.Fatal(err)
	}
	if got := fake.opts[0].Temperature; got != config.DefaultTemperature {
		t.Fatalf("neutral temperature=%v", got)
	}

	if _, err := gw.RespondSync(context.Background(), inbound("спасибо, это круто! супер, отлично ❤")); err != nil {
		t.Fatal(err)
	}
	if got := fake.opts[1].Temperature; got != config.DefaultPositiveTemp {
		t.Fatalf("positive temperature=%v", got)
	}
}

func TestHandleInboundGateAndDelivery(t *testing.T) {
	// First reply answers the mention; the buffered message count grows by
	// the inbound message plus the mirrored reply.
	gw, _ := newTestGateway(t, "привет!")

	gw.handleInbound(context.Background(), inbound("Петал, привет!"))

	select {
	case out := <-gw.bus.Outbound:
		if out.Platform != "telegram" || out.ChannelID != "chat1" || out.Content != "привет!" {
			t.Fatalf("outbound %+v", out)
		}
	default:
		t.Fatal("mentioned message must produce an outbound reply")
	}
	if got := gw.sched.BufferLen(); got != 2 {
		t.Fatalf("BufferLen=%d, want inbound + mirrored reply", got)
	}
}

func TestHandleInboundGateDeclines(t *testing.T) {
	gw, fake := newTestGateway(t, "never sent")

	gw.handleInbound(context.Background(), inbound("..."))

	select {
	case out := <-gw.bus.Outbound:
		t.Fatalf("unexpected outbound %+v", out)
	default:
	}
	if len(fake.opts) != 0 {
		t.Fatal("garbage must never reach completion")
	}
	if got := gw.sched.BufferLen(); got != 1 {
		t.Fatalf("BufferLen=%d, declined messages still feed the buffer", got)
	}
}

func TestStatus(t *testing.T) {
	gw, _ := newTestGateway(t, "ок")
	st := gw.Status()
	if st["mood"] != "neutral" {
		t.Fatalf("mood=%v", st["mood"])
	}
	if st["responseMode"] != "ai_decides" {
		t.Fatalf("responseMode=%v", st["responseMode"])
	}
}
