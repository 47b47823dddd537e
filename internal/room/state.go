package room

import (
	"encoding/json"
	"time"
)

type TicketStatus string

const (
	TicketPending    TicketStatus = "pending"
	TicketInProgress TicketStatus = "in_progress"
	TicketBlocked    TicketStatus = "blocked"
	TicketCompleted  TicketStatus = "completed"
)

type ExternalService string

const (
	ServiceNone   ExternalService = "none"
	ServiceJira   ExternalService = "jira"
	ServiceLinear ExternalService = "linear"
	ServiceGitHub ExternalService = "github"
)

// Ticket is one queued work item. ID is the durable-store primary key;
// TicketID is the human key ("PROJ-123" or a generated "INTERNAL-n").
type Ticket struct {
	ID                      int64           `json:"id"`
	TicketID                string          `json:"ticketId"`
	Title                   string          `json:"title"`
	Description             string          `json:"description,omitempty"`
	Status                  TicketStatus    `json:"status"`
	Ordinal                 int             `json:"ordinal"`
	Outcome                 string          `json:"outcome,omitempty"`
	CreatedAt               time.Time       `json:"createdAt"`
	CompletedAt             *time.Time      `json:"completedAt,omitempty"`
	ExternalService         ExternalService `json:"externalService"`
	ExternalServiceID       string          `json:"externalServiceId,omitempty"`
	ExternalServiceMetadata json.RawMessage `json:"externalServiceMetadata,omitempty"`
}

// TicketUpdate carries the mutable ticket fields; nil means "leave as is".
type TicketUpdate struct {
	TicketID    *string       `json:"ticketId,omitempty"`
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *TicketStatus `json:"status,omitempty"`
	Ordinal     *int          `json:"ordinal,omitempty"`
	Outcome     *string       `json:"outcome,omitempty"`
}

type Settings struct {
	EnableTicketQueue            bool            `json:"enableTicketQueue"`
	AllowOthersToManageQueue     bool            `json:"allowOthersToManageQueue"`
	AllowOthersToShowEstimates   bool            `json:"allowOthersToShowEstimates"`
	AllowOthersToDeleteEstimates bool            `json:"allowOthersToDeleteEstimates"`
	AnonymousVotes               bool            `json:"anonymousVotes"`
	PreserveVotesOnAdvance       bool            `json:"preserveVotesOnAdvance"`
	EstimateOptions              []float64       `json:"estimateOptions,omitempty"`
	JudgeAlgorithm               string          `json:"judgeAlgorithm,omitempty"`
	Extra                        json.RawMessage `json:"extra,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		EnableTicketQueue:          true,
		AllowOthersToShowEstimates: true,
		EstimateOptions:            []float64{1, 2, 3, 5, 8, 13, 21},
		JudgeAlgorithm:             "average",
	}
}

// TimerState is the persisted countdown record. Seconds is only meaningful
// at rest; while Running the true elapsed value is derived from
// LastUpdateMs (see CalculateSeconds).
type TimerState struct {
	Running               bool  `json:"running"`
	Seconds               int   `json:"seconds"`
	LastUpdateMs          int64 `json:"lastUpdateTime"`
	TargetDurationSec     int   `json:"targetDurationSeconds"`
	RoundAnchorSec        int   `json:"roundAnchorSeconds"`
	AutoResetOnVotesReset bool  `json:"autoResetOnVotesReset"`
}

// Data is the authoritative per-room snapshot. It is owned exclusively by
// the room Actor; nothing else mutates it.
type Data struct {
	Key             string
	Moderator       string
	Settings        Settings
	Users           []string
	ConnectedUsers  map[string]bool
	Votes           map[string]string
	StructuredVotes map[string]json.RawMessage
	ShowVotes       bool
	CurrentTicket   *Ticket
	Tickets         []Ticket
	Timer           TimerState
	GameSession     json.RawMessage // serialized most-recent game session
	JudgeScore      *float64
	JudgeMetadata   json.RawMessage
}

func NewData(key, moderator string) *Data {
	return &Data{
		Key:             key,
		Moderator:       moderator,
		Settings:        DefaultSettings(),
		Users:           []string{},
		ConnectedUsers:  map[string]bool{},
		Votes:           map[string]string{},
		StructuredVotes: map[string]json.RawMessage{},
		Timer:           EnsureTimerState(TimerState{}),
	}
}

func (d *Data) hasUser(name string) bool {
	for _, u := range d.Users {
		if u == name {
			return true
		}
	}
	return false
}

func (d *Data) ticketByID(ticketID string) *Ticket {
	for i := range d.Tickets {
		if d.Tickets[i].TicketID == ticketID {
			return &d.Tickets[i]
		}
	}
	return nil
}
