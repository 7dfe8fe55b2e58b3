package gateway

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Kazilsky/Petal/internal/action"
	"github.com/Kazilsky/Petal/internal/bus"
	"github.com/Kazilsky/Petal/internal/channel"
	"github.com/Kazilsky/Petal/internal/config"
	"github.com/Kazilsky/Petal/internal/gate"
	"github.com/Kazilsky/Petal/internal/llm"
	"github.com/Kazilsky/Petal/internal/memory"
	"github.com/Kazilsky/Petal/internal/mood"
	"github.com/Kazilsky/Petal/internal/prompt"
	"github.com/Kazilsky/Petal/internal/system"
	"github.com/Kazilsky/Petal/internal/thinking"
	"github.com/rs/zerolog/log"
)

const fallbackReply = "🔧 Ошибка обработки запроса, попробуйте ещё раз."

// Options overrides collaborators for tests. A nil Completer means the
// real provider client.
type Options struct {
	Completer llm.Completer
}

// Gateway wires the conversation core together: inbound messages flow
// bus -> gate -> prompt -> completion -> actions -> memory -> outbound.
type Gateway struct {
	cfg       *config.Config
	bus       *bus.MessageBus
	mem       *memory.Store
	moods     *mood.Engine
	ctl       *system.Control
	completer llm.Completer
	sched     *thinking.Scheduler
	actions   *action.Processor
	gate      *gate.Gate
	assembler *prompt.Assembler
	channels  *channel.Manager
}

func New(cfg *config.Config, opts Options) (*Gateway, error) {
	completer := opts.Completer
	if completer == nil {
		completer = llm.NewClient(cfg.Provider)
	}

	g := &Gateway{
		cfg:       cfg,
		bus:       bus.NewMessageBus(cfg.Gateway.BufSize),
		mem:       memory.NewStore(cfg.Memory.FactsPath, cfg.Memory.TurnWindow),
		moods:     mood.NewEngine(),
		ctl:       system.NewControl(filepath.Join(config.ConfigDir(), "system_config.json")),
		completer: completer,
	}

	for _, user := range cfg.Gate.IgnoredUsers {
		g.mem.IgnoreUser(user)
	}

	g.sched = thinking.NewScheduler(
		completer,
		llm.Options{Model: cfg.Provider.ThinkingModel, Temperature: cfg.Provider.Temperature, MaxTokens: cfg.Provider.MaxTokens},
		cfg.Agent.Name,
		cfg.Thinking.BufferCap,
		g.ctl.ThinkingInterval(),
		nil, // set below, after the action processor exists
	)
	g.actions = action.NewProcessor(g.mem, g.sched, g.ctl)
	g.sched.SetNormalize(g.actions.Process)
	g.sched.SetOnResult(g.handleThinkingResult)

	var err error
	g.gate, err = gate.New(
		g.mem, g.ctl, completer,
		llm.Options{Model: cfg.Provider.ClassifyModel, Temperature: 0.1, MaxTokens: 10},
		cfg.Agent.Name, cfg.Gate.MentionTriggers, cfg.Gate.HistoryWindow,
	)
	if err != nil {
		return nil, fmt.Errorf("init response gate: %w", err)
	}

	g.assembler = prompt.NewAssembler(cfg.Agent, g.moods, g.mem, cfg.Memory.ContextLimit)

	g.channels, err = channel.NewManager(cfg.Channels, g.bus, g.RespondSync)
	if err != nil {
		return nil, fmt.Errorf("init channels: %w", err)
	}

	return g, nil
}

// Run starts the channels, the outbound dispatcher and the thinking
// scheduler, then consumes inbound messages until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	if err := g.channels.StartAll(ctx); err != nil {
		return err
	}
	go g.bus.DispatchOutbound(ctx)

	if g.cfg.Thinking.Enabled && g.ctl.ThinkingEnabled() {
		g.sched.Start()
	}

	log.Info().Str("component", "gateway").
		Strs("channels", g.channels.EnabledChannels()).
		Str("model", g.cfg.Provider.Model).
		Msg("gateway running")

	g.processLoop(ctx)

	g.sched.Stop()
	if err := g.channels.StopAll(); err != nil {
		return err
	}
	return nil
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-g.bus.Inbound:
			g.handleInbound(ctx, msg)
		}
	}
}

func (g *Gateway) handleInbound(ctx context.Context, msg bus.ChatMessage) {
	g.sched.AddMessage(msg)

	recent := g.sched.Messages(msg.Platform, msg.ChannelID, "", g.cfg.Gate.HistoryWindow)
	if !g.gate.ShouldRespond(ctx, msg, recent) {
		log.Debug().Str("component", "gateway").
			Str("user", msg.Username).Str("channel", msg.ChannelID).
			Msg("gate declined")
		return
	}

	reply, err := g.respond(ctx, msg)
	if err != nil {
		log.Error().Str("component", "gateway").Err(err).Msg("response failed")
		reply = fallbackReply
	}
	if reply == "" {
		return
	}
	g.deliver(msg.Platform, msg.ChannelID, reply)
}

// respond runs the full response ladder for one message and returns the
// final outbound text; empty means the agent chose silence.
func (g *Gateway) respond(ctx context.Context, msg bus.ChatMessage) (string, error) {
	g.moods.Analyze(msg.Content)

	turns := g.assembler.Build(msg.Content, msg.ChannelID, msg.Username)
	raw, err := g.completer.Complete(ctx, turns, g.responseOptions())
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}

	clean, importance := action.ExtractImportance(raw)
	processed := g.actions.Process(clean)

	if action.IsSilence(processed) {
		g.mem.UpdateTurn(msg.ChannelID, msg.Content, action.StripSilenceMarkers(processed), importance, msg.Username)
		return "", nil
	}

	g.mem.UpdateTurn(msg.ChannelID, msg.Content, processed, importance, msg.Username)
	return processed, nil
}

// responseOptions picks the sampling temperature from the current mood:
// a positive mood answers warmer than the configured baseline.
func (g *Gateway) responseOptions() llm.Options {
	temp := g.cfg.Provider.Temperature
	if g.moods.Base() == mood.Positive {
		temp = config.DefaultPositiveTemp
	}
	return llm.Options{
		Model:       g.cfg.Provider.Model,
		Temperature: temp,
		MaxTokens:   g.cfg.Provider.MaxTokens,
	}
}

// RespondSync is the request/response entry used by the HTTP channel: no
// gate beyond the ignore list, the caller waits for the reply inline.
func (g *Gateway) RespondSync(ctx context.Context, msg bus.ChatMessage) (string, error) {
	if g.mem.IsIgnored(msg.Username) {
		return "", nil
	}
	g.sched.AddMessage(msg)

	reply, err := g.respond(ctx, msg)
	if err != nil {
		return "", err
	}
	if reply != "" {
		g.sched.AddMessage(bus.ChatMessage{
			Content:   reply,
			Username:  g.cfg.Agent.Name,
			ChannelID: msg.ChannelID,
			Platform:  msg.Platform,
		})
	}
	return reply, nil
}

// handleThinkingResult delivers a spontaneous message decided by the
// thinking cycle. The content has already been through action processing
// via the scheduler's normalize hook; importance never promotes facts on
// this path.
func (g *Gateway) handleThinkingResult(res thinking.Result) {
	if res.Action != thinking.ActionSay || res.Content == "" {
		return
	}
	log.Info().Str("component", "gateway").
		Str("channel", res.ChannelID).Str("platform", res.Platform).
		Msg("autonomous message")
	g.deliver(res.Platform, res.ChannelID, res.Content)
}

func (g *Gateway) deliver(platform, channelID, content string) {
	g.bus.Outbound <- bus.OutboundMessage{
		Platform:  platform,
		ChannelID: channelID,
		Content:   content,
	}
	// The agent's own messages stay visible to the thinking cycle.
	g.sched.AddMessage(bus.ChatMessage{
		Content:   content,
		Username:  g.cfg.Agent.Name,
		ChannelID: channelID,
		Platform:  platform,
	})
}

// Status reports a snapshot of the running core.
func (g *Gateway) Status() map[string]any {
	return map[string]any{
		"mood":             string(g.moods.Base()),
		"responseMode":     string(g.ctl.Mode()),
		"thinkingState":    g.sched.State(),
		"thinkingInterval": g.sched.Interval(),
		"turns":            g.mem.TurnCount(),
		"facts":            g.mem.FactCount(),
		"channels":         g.channels.EnabledChannels(),
	}
}
