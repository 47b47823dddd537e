// Package types defines the wire-level message shapes exchanged with
// clients. Inbound frames carry a type tag plus the fields that variant
// uses; the websocket layer converts them into the room command union.
package types

import (
	"encoding/json"

	"github.com/pointdeck/pointdeck-backend/internal/room"
)

// Client -> Server frame types:
//
//	vote            value, structured?
//	revealVotes     {}
//	resetVotes      {}
//	nextTicket      {}
//	addTicket       ticket
//	updateTicket    ticketId, updates
//	deleteTicket    ticketId
//	completeTicket  outcome?
//	startGame       gameType
//	submitGameMove  value
//	endGame         {}
//	startTimer / pauseTimer / resetTimer {}
type ClientMessage struct {
	Type       string             `json:"type"`
	Value      string             `json:"value,omitempty"`
	Structured json.RawMessage    `json:"structured,omitempty"`
	Ticket     *room.Ticket       `json:"ticket,omitempty"`
	TicketID   string             `json:"ticketId,omitempty"`
	Updates    *room.TicketUpdate `json:"updates,omitempty"`
	Outcome    string             `json:"outcome,omitempty"`
	GameType   string             `json:"gameType,omitempty"`
}

// ServerEnvelope wraps every outbound event: the tag comes from the
// event's EventType, the payload is the event struct itself.
type ServerEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}
