package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"tweet-quiz-service/internal/app"
	"tweet-quiz-service/internal/auth"
)

// WSConfig holds the collaborators shared by every connection.
type WSConfig struct {
	Items    app.ItemRepository
	Profiles app.ProfileService
	// NewCache returns the device-scoped cache for a connection.
	NewCache func(deviceID string) app.LocalCache
	// NewSessionStore is optional; nil keeps provider sessions in memory only.
	NewSessionStore func(deviceID string) auth.SessionStore

	OAuth    *oauth2.Config
	Verifier auth.TokenVerifier
	Registry *auth.Registry

	Target         string
	RateLimit      rate.Limit
	Burst          int
	AllowedOrigins []string
	Logger         *slog.Logger
}

type WSHandler struct {
	cfg      WSConfig
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(cfg WSConfig) *WSHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = rate.Inf
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &WSHandler{
		cfg: cfg,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type guessPayload struct {
	Claim bool `json:"claim"`
}

type removeFavoritePayload struct {
	ID string `json:"id"`
}

type newsletterPayload struct {
	Email string `json:"email"`
}

type credentialPayload struct {
	Credential string `json:"credential"`
}

// decodeAction maps an inbound message onto an App action.
func decodeAction(in inboundMessage) (app.Action, error) {
	act := app.Action{Kind: app.ActionKind(in.Type)}
	switch act.Kind {
	case app.ActionGuess:
		var p guessPayload
		if err := unmarshalPayload(in.Payload, &p); err != nil {
			return app.Action{}, err
		}
		act.Claim = p.Claim
	case app.ActionRemoveFavorite:
		var p removeFavoritePayload
		if err := unmarshalPayload(in.Payload, &p); err != nil {
			return app.Action{}, err
		}
		act.ID = p.ID
	case app.ActionNewsletter:
		var p newsletterPayload
		if err := unmarshalPayload(in.Payload, &p); err != nil {
			return app.Action{}, err
		}
		act.Email = p.Email
	case app.ActionCredential:
		var p credentialPayload
		if err := unmarshalPayload(in.Payload, &p); err != nil {
			return app.Action{}, err
		}
		act.Credential = p.Credential
	}
	return act, nil
}

func unmarshalPayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// ServeWS upgrades the request and runs one App for the lifetime of the connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	items, err := h.cfg.Items.Items(r.Context())
	if err != nil {
		h.log.Error("load content failed", slog.Any("error", err))
		http.Error(w, "content unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	log := h.log.With(slog.String("device", deviceID))
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := make(chan outboundMessage[any], 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write error", slog.Any("error", err))
				cancel()
				return
			}
		}
	}()

	presenter := &wsPresenter{send: send, done: writerDone}
	presenter.emit("hello", helloPayload{DeviceID: deviceID})

	var provider *auth.Provider
	if h.cfg.OAuth != nil || h.cfg.Verifier != nil {
		opts := auth.Options{OAuth: h.cfg.OAuth, Verifier: h.cfg.Verifier, Registry: h.cfg.Registry}
		if h.cfg.NewSessionStore != nil {
			opts.Store = h.cfg.NewSessionStore(deviceID)
		}
		provider = auth.NewProvider(opts)
		if h.cfg.Registry != nil {
			defer h.cfg.Registry.Forget(provider)
		}
	}

	appCfg := app.Config{
		Items:     items,
		Profiles:  h.cfg.Profiles,
		Cache:     h.cfg.NewCache(deviceID),
		Presenter: presenter,
		Target:    h.cfg.Target,
		Logger:    log,
		Rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if provider != nil {
		appCfg.Provider = provider
	}
	quiz := app.New(appCfg)

	actions := make(chan app.Action)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := quiz.Run(ctx, actions); err != nil && ctx.Err() == nil {
			log.Warn("app stopped", slog.Any("error", err))
		}
	}()

	limiter := rate.NewLimiter(h.cfg.RateLimit, h.cfg.Burst)
	reply := func(msg string) {
		select {
		case send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}:
		case <-writerDone:
		}
	}

read:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !limiter.Allow() {
			reply("rate limit exceeded")
			continue
		}
		act, err := decodeAction(inbound)
		if err != nil {
			reply("invalid " + inbound.Type + " payload")
			continue
		}
		select {
		case actions <- act:
		case <-runDone:
			break read
		}
	}

	close(actions)
	<-runDone
	close(send)
	<-writerDone
}
