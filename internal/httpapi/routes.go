package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pointdeck/pointdeck-backend/internal/hub"
	"github.com/pointdeck/pointdeck-backend/internal/room"
	"github.com/pointdeck/pointdeck-backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, st room.Store, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/rooms", CreateRoom(h, st, log))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, log))
	return r
}
