package room

import (
	"context"
	"encoding/json"
	"time"
)

// Store is the durable per-room persistence the actor writes through to.
// A missing room loads as (nil, nil) so callers can treat absence as a
// quiet no-op.
type Store interface {
	LoadRoom(ctx context.Context, key string) (*Data, error)
	CreateRoom(ctx context.Context, d *Data) error
	SaveMeta(ctx context.Context, d *Data) error

	InsertTicket(ctx context.Context, roomKey string, t *Ticket) error
	SaveTickets(ctx context.Context, roomKey string, ts ...Ticket) error
	DeleteTicket(ctx context.Context, roomKey string, id int64) error
	NextTicketKey(ctx context.Context, roomKey string, service ExternalService) (string, error)

	SaveLiveVote(ctx context.Context, roomKey, user, value string, structured json.RawMessage) error
	ClearLiveVotes(ctx context.Context, roomKey string) error
	RecordVoteHistory(ctx context.Context, roomKey string, ticketPK int64, votes map[string]string, structured map[string]json.RawMessage, at time.Time) error

	// EnsureToken returns the reconnect token for a user, minting one on
	// first join. existed reports whether a token was already on file.
	EnsureToken(ctx context.Context, roomKey, user string) (token string, existed bool, err error)
}

// RoundSummary is what the statistics sink receives after each revealed
// round, fire-and-forget.
type RoundSummary struct {
	RoomKey     string
	Ticket      *Ticket
	Votes       map[string]string
	JudgeScore  *float64
	CompletedAt time.Time
}

type StatsSink interface {
	RoundCompleted(ctx context.Context, s RoundSummary)
}

// TrackerAdapter pushes a final estimate back to the external issue
// tracker a ticket is linked to.
type TrackerAdapter interface {
	PushEstimate(ctx context.Context, roomKey string, t Ticket, score float64) error
}

type NopStatsSink struct{}

func (NopStatsSink) RoundCompleted(context.Context, RoundSummary) {}

type NopTrackerAdapter struct{}

func (NopTrackerAdapter) PushEstimate(context.Context, string, Ticket, float64) error { return nil }
