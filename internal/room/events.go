package room

import (
	"encoding/json"

	"github.com/pointdeck/pointdeck-backend/internal/game"
)

// Event is the closed union of room-wide broadcasts. The websocket writer
// wraps each one in a {type, data} envelope keyed by EventType.
type Event interface{ EventType() string }

type NextTicketEvent struct {
	Ticket *Ticket  `json:"ticket"`
	Queue  []Ticket `json:"queue"`
}

type TicketAddedEvent struct {
	Ticket Ticket   `json:"ticket"`
	Queue  []Ticket `json:"queue"`
}

type TicketUpdatedEvent struct {
	Ticket Ticket   `json:"ticket"`
	Queue  []Ticket `json:"queue"`
}

type TicketDeletedEvent struct {
	TicketID string   `json:"ticketId"`
	Queue    []Ticket `json:"queue"`
}

type TicketCompletedEvent struct {
	Ticket Ticket   `json:"ticket"`
	Queue  []Ticket `json:"queue"`
}

type VoteSubmittedEvent struct {
	User      string `json:"user"`
	VoteCount int    `json:"voteCount"`
}

type VotesRevealedEvent struct {
	Votes         map[string]string `json:"votes"`
	JudgeScore    *float64          `json:"judgeScore,omitempty"`
	JudgeMetadata json.RawMessage   `json:"judgeMetadata,omitempty"`
}

type VotesResetEvent struct{}

type GameStartedEvent struct {
	Session   game.Session `json:"gameSession"`
	StartedBy string       `json:"startedBy"`
}

type GameMoveEvent struct {
	Session game.Session `json:"gameSession"`
	User    string       `json:"user"`
}

type GameEndedEvent struct {
	Session game.Session `json:"gameSession"`
	EndedBy string       `json:"endedBy"`
}

type TimerStartedEvent struct {
	Timer TimerState `json:"timerState"`
}

type TimerPausedEvent struct {
	Timer TimerState `json:"timerState"`
}

type TimerResetEvent struct {
	Timer TimerState `json:"timerState"`
}

type PresenceEvent struct {
	Users     []string        `json:"users"`
	Connected map[string]bool `json:"connectedUsers"`
}

type ErrorEvent struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// RoomStateEvent is the catch-up snapshot pushed to a freshly attached
// socket only; it never goes through the room-wide broadcast.
type RoomStateEvent struct {
	Key           string            `json:"key"`
	Moderator     string            `json:"moderator"`
	Settings      Settings          `json:"settings"`
	Users         []string          `json:"users"`
	Connected     map[string]bool   `json:"connectedUsers"`
	Votes         map[string]string `json:"votes"`
	ShowVotes     bool              `json:"showVotes"`
	CurrentTicket *Ticket           `json:"currentTicket"`
	Queue         []Ticket          `json:"queue"`
	Timer         TimerState        `json:"timerState"`
	GameSession   json.RawMessage   `json:"gameSession,omitempty"`
	JudgeScore    *float64          `json:"judgeScore,omitempty"`
	JudgeMetadata json.RawMessage   `json:"judgeMetadata,omitempty"`
	SessionToken  string            `json:"sessionToken,omitempty"`
}

func (NextTicketEvent) EventType() string      { return "nextTicket" }
func (TicketAddedEvent) EventType() string     { return "ticketAdded" }
func (TicketUpdatedEvent) EventType() string   { return "ticketUpdated" }
func (TicketDeletedEvent) EventType() string   { return "ticketDeleted" }
func (TicketCompletedEvent) EventType() string { return "ticketCompleted" }
func (VoteSubmittedEvent) EventType() string   { return "voteSubmitted" }
func (VotesRevealedEvent) EventType() string   { return "votesRevealed" }
func (VotesResetEvent) EventType() string      { return "votesReset" }
func (GameStartedEvent) EventType() string     { return "gameStarted" }
func (GameMoveEvent) EventType() string        { return "gameMoveSubmitted" }
func (GameEndedEvent) EventType() string       { return "gameEnded" }
func (TimerStartedEvent) EventType() string    { return "timerStarted" }
func (TimerPausedEvent) EventType() string     { return "timerPaused" }
func (TimerResetEvent) EventType() string      { return "timerReset" }
func (PresenceEvent) EventType() string        { return "presence" }
func (ErrorEvent) EventType() string           { return "error" }
func (RoomStateEvent) EventType() string       { return "roomState" }
