package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Kazilsky/Petal/internal/bus"
	"github.com/Kazilsky/Petal/internal/config"
	"github.com/rs/zerolog/log"
)

const httpChannelName = "http"

type chatRequest struct {
	Message  string `json:"message"`
	Username string `json:"username"`
	Channel  string `json:"channel"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// HTTPChannel serves a synchronous chat endpoint. Unlike the streaming
// platforms it waits for the reply inline instead of going through the
// outbound bus.
type HTTPChannel struct {
	port    int
	apiKey  string
	respond Responder
	server  *http.Server
}

func NewHTTPChannel(cfg config.HTTPConfig, _ *bus.MessageBus, respond Responder) *HTTPChannel {
	return &HTTPChannel{port: cfg.Port, apiKey: cfg.APIKey, respond: respond}
}

func (h *HTTPChannel) Name() string { return httpChannelName }

func (h *HTTPChannel) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/chat", h.handleChat)

	h.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", h.port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Info().Str("component", "http").Int("port", h.port).Msg("http channel listening")
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Str("component", "http").Err(err).Msg("http server stopped")
		}
	}()
	return nil
}

func (h *HTTPChannel) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *HTTPChannel) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+h.apiKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.Username == "" {
		req.Username = "anonymous"
	}
	if req.Channel == "" {
		req.Channel = "api"
	}

	msg := bus.NewChatMessage(req.Message, req.Username, req.Channel, httpChannelName)
	reply, err := h.respond(r.Context(), msg)
	if err != nil {
		log.Error().Str("component", "http").Err(err).Msg("chat request failed")
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{Reply: reply})
}

// Send is a no-op: replies are returned inline from /chat.
func (h *HTTPChannel) Send(msg bus.OutboundMessage) error { return nil }

func (h *HTTPChannel) Stop() error {
	if h.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.server.Shutdown(ctx)
}
