package ws

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/pointdeck/pointdeck-backend/internal/game"
	"github.com/pointdeck/pointdeck-backend/internal/hub"
	"github.com/pointdeck/pointdeck-backend/internal/room"
	"github.com/pointdeck/pointdeck-backend/internal/types"
)

// Handler upgrades a socket and attaches it to the room actor. The acting
// identity is fixed at connection time from the query parameters; every
// inbound frame is forwarded under that identity.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("room")
		name := r.URL.Query().Get("name")
		token := r.URL.Query().Get("token")
		if key == "" || name == "" {
			http.Error(w, "missing room or name", http.StatusBadRequest)
			return
		}

		// Ensure rather than Get: the room may be durably present but
		// evicted from memory; the actor rehydrates itself.
		actor := h.Ensure(key)

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan room.Event, 16)
		clientID := randID(8)
		reply := make(chan room.JoinResult, 1)
		actor.Inbox() <- room.Join{
			ClientID: clientID, User: name, Token: token,
			Outbox: out, Reply: reply,
		}
		res := <-reply
		if !res.OK {
			// Unknown room and bad token look identical on purpose.
			conn.Close(websocket.StatusPolicyViolation, "join refused")
			return
		}
		defer func() { actor.Inbox() <- room.Leave{ClientID: clientID, User: name} }()

		log.Debug("socket attached", zap.String("room", key), zap.String("user", name))

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for ev := range out {
				payload, err := json.Marshal(types.ServerEnvelope{Type: ev.EventType(), Data: ev})
				if err != nil {
					log.Error("marshal event", zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, 5*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}
			cmd, ok := toCommand(cm)
			if !ok {
				writeError(r.Context(), conn, "unknown type")
				continue
			}
			actor.Inbox() <- room.FromClient{User: name, Cmd: cmd}
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(types.ServerEnvelope{
		Type: "error",
		Data: room.ErrorEvent{Error: msg},
	})
	_ = conn.Write(ctx, websocket.MessageText, payload)
}

func toCommand(m types.ClientMessage) (room.Command, bool) {
	switch m.Type {
	case "vote":
		return room.SubmitVote{Value: m.Value, Structured: m.Structured}, true
	case "revealVotes":
		return room.RevealVotes{}, true
	case "resetVotes":
		return room.ResetVotes{}, true
	case "nextTicket":
		return room.NextTicket{}, true
	case "addTicket":
		if m.Ticket == nil {
			return nil, false
		}
		return room.AddTicket{Ticket: *m.Ticket}, true
	case "updateTicket":
		if m.TicketID == "" || m.Updates == nil {
			return nil, false
		}
		return room.UpdateTicket{TicketID: m.TicketID, Updates: *m.Updates}, true
	case "deleteTicket":
		if m.TicketID == "" {
			return nil, false
		}
		return room.DeleteTicket{TicketID: m.TicketID}, true
	case "completeTicket":
		return room.CompleteTicket{Outcome: m.Outcome}, true
	case "startGame":
		return room.StartGame{Type: game.Type(m.GameType)}, true
	case "submitGameMove":
		return room.SubmitGameMove{Value: m.Value}, true
	case "endGame":
		return room.EndGame{}, true
	case "startTimer":
		return room.StartTimer{}, true
	case "pauseTimer":
		return room.PauseTimer{}, true
	case "resetTimer":
		return room.ResetTimer{}, true
	default:
		return nil, false
	}
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			b[i] = 'x'
			continue
		}
		b[i] = charset[n.Int64()]
	}
	return string(b)
}
