package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"

	"go.uber.org/zap"

	"github.com/pointdeck/pointdeck-backend/internal/hub"
	"github.com/pointdeck/pointdeck-backend/internal/room"
)

func GenerateKey() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	key := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		key[i] = charset[num.Int64()]
	}
	return string(key), nil
}

type createRoomRequest struct {
	Moderator string         `json:"moderator"`
	Settings  *room.Settings `json:"settings,omitempty"`
}

// CreateRoom mints a fresh room key, writes the room with default (or
// supplied) settings to the store and spawns its actor.
func CreateRoom(h *hub.Hub, st room.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Moderator == "" {
			http.Error(w, "moderator required", http.StatusBadRequest)
			return
		}

		var key string
		for {
			k, err := GenerateKey()
			if err != nil {
				http.Error(w, "failed to generate key", http.StatusInternalServerError)
				return
			}
			existing, err := st.LoadRoom(r.Context(), k)
			if err != nil {
				log.Error("check room key", zap.Error(err))
				http.Error(w, "store unavailable", http.StatusInternalServerError)
				return
			}
			if existing == nil {
				key = k
				break
			}
			log.Debug("room key collision, regenerating", zap.String("key", k))
		}

		d := room.NewData(key, req.Moderator)
		if req.Settings != nil {
			d.Settings = *req.Settings
		}
		if err := st.CreateRoom(r.Context(), d); err != nil {
			log.Error("create room", zap.Error(err))
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}
		h.Ensure(key)
		log.Info("room created", zap.String("room", key), zap.String("moderator", req.Moderator))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Key string `json:"key"`
		}{Key: key})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
