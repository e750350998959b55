package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"majority-rules-service/internal/app"
	"majority-rules-service/internal/broadcast"
	redisinfra "majority-rules-service/internal/infra/redis"
)

// WSHandler upgrades connections, registers them with the broadcast
// registry, and relays start/answer requests into the game service.
type WSHandler struct {
	service  *app.GameService
	registry *broadcast.Registry
	presence *redisinfra.Presence // optional
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, registry *broadcast.Registry, presence *redisinfra.Presence) *WSHandler {
	return &WSHandler{
		service:  service,
		registry: registry,
		presence: presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	RoundID    string   `json:"roundId"`
	QuestionID string   `json:"questionId"`
	Duration   int      `json:"duration"`
	Players    []string `json:"players"`
	Options    []string `json:"options"`
}

type answerPayload struct {
	RoundID string `json:"roundId"`
	Answer  string `json:"answer"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// wsChannel adapts one websocket connection to broadcast.Channel. All
// writes to the underlying connection go through a single writer
// goroutine draining send.
type wsChannel struct {
	send   chan any
	closed chan struct{}
}

func newWSChannel(buffer int) *wsChannel {
	return &wsChannel{send: make(chan any, buffer), closed: make(chan struct{})}
}

func (c *wsChannel) Send(ctx context.Context, event any) error {
	select {
	case c.send <- event:
		return nil
	case <-c.closed:
		return errors.New("channel closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeWS wires a client into its room for the lifetime of the socket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	playerID := r.URL.Query().Get("playerId")
	displayName := r.URL.Query().Get("name")
	if room == "" || playerID == "" || displayName == "" {
		http.Error(w, "missing room, playerId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	ch := newWSChannel(64)
	defer close(ch.closed)

	go func() {
		for {
			select {
			case event := <-ch.send:
				if err := conn.WriteJSON(event); err != nil {
					log.Debug().Err(err).Str("room", room).Msg("ws write failed")
					return
				}
			case <-ch.closed:
				return
			}
		}
	}()

	if err := h.service.Join(ctx, room, playerID, displayName); err != nil {
		_ = ch.Send(ctx, outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	h.registry.Connect(room, ch)
	defer h.registry.Disconnect(room, ch)

	if h.presence != nil {
		if err := h.presence.Connect(ctx, room, playerID); err != nil {
			log.Warn().Err(err).Str("room", room).Msg("presence mark failed")
		}
		defer func() {
			if err := h.presence.Disconnect(context.Background(), room, playerID); err != nil {
				log.Warn().Err(err).Str("room", room).Msg("presence clear failed")
			}
		}()
	}

	_ = ch.Send(ctx, outboundMessage{Type: "joined", Payload: map[string]string{"room": room, "playerId": playerID}})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "start":
			h.handleStart(ctx, room, ch, inbound.Payload)
		case "answer":
			h.handleAnswer(ctx, playerID, ch, inbound.Payload)
		case "leaderboard":
			h.handleLeaderboard(ctx, room, ch)
		default:
			_ = ch.Send(ctx, outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}
}

func (h *WSHandler) handleStart(ctx context.Context, room string, ch *wsChannel, raw json.RawMessage) {
	var payload startPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		_ = ch.Send(ctx, outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid start payload"}})
		return
	}
	if payload.RoundID == "" {
		payload.RoundID = uuid.NewString()
	}
	if len(payload.Players) == 0 && h.presence != nil {
		// Default the player set to everyone currently in the room.
		members, err := h.presence.Members(ctx, room)
		if err != nil {
			log.Warn().Err(err).Str("room", room).Msg("presence lookup failed")
		} else {
			payload.Players = members
		}
	}

	err := h.service.StartRound(ctx, app.StartRoundRequest{
		GameID:     room,
		RoundID:    payload.RoundID,
		QuestionID: payload.QuestionID,
		Duration:   payload.Duration,
		Players:    payload.Players,
		Options:    payload.Options,
	})
	if err != nil {
		_ = ch.Send(ctx, outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	_ = ch.Send(ctx, outboundMessage{Type: "roundAccepted", Payload: map[string]string{"roundId": payload.RoundID}})
}

func (h *WSHandler) handleAnswer(ctx context.Context, playerID string, ch *wsChannel, raw json.RawMessage) {
	var payload answerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		_ = ch.Send(ctx, outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
		return
	}
	if err := h.service.SubmitAnswer(ctx, payload.RoundID, playerID, payload.Answer); err != nil {
		_ = ch.Send(ctx, outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	_ = ch.Send(ctx, outboundMessage{Type: "answerAccepted", Payload: map[string]string{"roundId": payload.RoundID}})
}

func (h *WSHandler) handleLeaderboard(ctx context.Context, room string, ch *wsChannel) {
	rows, err := h.service.Leaderboard(ctx, room)
	if err != nil {
		_ = ch.Send(ctx, outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	_ = ch.Send(ctx, outboundMessage{Type: "leaderboard", Payload: rows})
}
