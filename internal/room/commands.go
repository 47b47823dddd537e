package room

import (
	"encoding/json"

	"github.com/pointdeck/pointdeck-backend/internal/game"
)

// Command is the closed union of client actions a room actor can process.
// The websocket layer decodes the wire envelope into exactly one of these.
type Command interface{ isCommand() }

type SubmitVote struct {
	Value      string
	Structured json.RawMessage
}

type RevealVotes struct{}

type ResetVotes struct{}

type NextTicket struct{}

type AddTicket struct{ Ticket Ticket }

type UpdateTicket struct {
	TicketID string
	Updates  TicketUpdate
}

type DeleteTicket struct{ TicketID string }

type CompleteTicket struct{ Outcome string }

type StartGame struct{ Type game.Type }

type SubmitGameMove struct{ Value string }

type EndGame struct{}

type StartTimer struct{}

type PauseTimer struct{}

type ResetTimer struct{}

func (SubmitVote) isCommand()     {}
func (RevealVotes) isCommand()    {}
func (ResetVotes) isCommand()     {}
func (NextTicket) isCommand()     {}
func (AddTicket) isCommand()      {}
func (UpdateTicket) isCommand()   {}
func (DeleteTicket) isCommand()   {}
func (CompleteTicket) isCommand() {}
func (StartGame) isCommand()      {}
func (SubmitGameMove) isCommand() {}
func (EndGame) isCommand()        {}
func (StartTimer) isCommand()     {}
func (PauseTimer) isCommand()     {}
func (ResetTimer) isCommand()     {}
