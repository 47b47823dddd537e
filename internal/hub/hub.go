package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/pointdeck/pointdeck-backend/internal/room"
)

type HubMsg interface{ isHubMsg() }

// EnsureRoom returns the live actor for a room key, spawning (and thereby
// rehydrating) one if the room was evicted or never loaded. The actor
// itself decides whether the room exists durably.
type EnsureRoom struct {
	Key   string
	Reply chan *room.Actor
}

type GetRoom struct {
	Key   string
	Reply chan *room.Actor
}

type RemoveRoom struct {
	Key string
}

type ShutdownHub struct{}

func (EnsureRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Hub is the supervisor: one goroutine owning the room-key → actor map.
// Actors for distinct rooms run fully independently; the hub only routes.
type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Actor
	deps   room.Deps
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, deps room.Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Actor),
		deps:   deps,
		log:    deps.Log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Ensure is a convenience wrapper around the EnsureRoom message.
func (h *Hub) Ensure(key string) *room.Actor {
	reply := make(chan *room.Actor, 1)
	h.inbox <- EnsureRoom{Key: key, Reply: reply}
	return <-reply
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureRoom:
				a := h.rooms[msg.Key]
				if a == nil {
					a = room.NewActor(h.ctx, msg.Key, h.deps)
					h.rooms[msg.Key] = a
					h.log.Info("room actor spawned", zap.String("room", msg.Key))
				}
				msg.Reply <- a

			case GetRoom:
				msg.Reply <- h.rooms[msg.Key] // may be nil

			case RemoveRoom:
				if a := h.rooms[msg.Key]; a != nil {
					a.Inbox() <- room.Shutdown{}
					delete(h.rooms, msg.Key)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for key, a := range h.rooms {
		a.Inbox() <- room.Shutdown{}
		delete(h.rooms, key)
	}
	h.cancel()
}
