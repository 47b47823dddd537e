package store

import (
	"time"
)

// RoomMeta is the one-per-room row holding everything outside the ticket
// queue: settings blob, reveal flag, judge result, timer record, pointer to
// the active ticket and the serialized mini-game session.
type RoomMeta struct {
	Key                 string `gorm:"primaryKey;size:64"`
	Moderator           string
	ShowVotes           bool
	Settings            []byte `gorm:"type:jsonb"`
	Users               []byte `gorm:"type:jsonb"`
	JudgeScore          *float64
	JudgeMetadata       []byte `gorm:"type:jsonb"`
	TimerRunning        bool
	TimerSeconds        int
	TimerLastUpdateMs   int64
	TimerTargetSec      int
	TimerRoundAnchorSec int
	TimerAutoReset      bool
	CurrentTicketID     *int64
	GameSession         []byte `gorm:"type:jsonb"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type TicketRow struct {
	ID                      int64  `gorm:"primaryKey;autoIncrement"`
	RoomKey                 string `gorm:"size:64;uniqueIndex:uq_room_ticket,priority:1;index:idx_room_status_ordinal,priority:1"`
	TicketID                string `gorm:"size:128;uniqueIndex:uq_room_ticket,priority:2"`
	Title                   string
	Description             string
	Status                  string `gorm:"size:16;index:idx_room_status_ordinal,priority:2"`
	Ordinal                 int    `gorm:"index:idx_room_status_ordinal,priority:3"`
	Outcome                 string
	CreatedAt               time.Time
	CompletedAt             *time.Time
	ExternalService         string `gorm:"size:16;index:idx_external_ref,priority:1"`
	ExternalServiceID       string `gorm:"size:128;index:idx_external_ref,priority:2"`
	ExternalServiceMetadata []byte `gorm:"type:jsonb"`
}

// VoteHistoryRow is the per-ticket vote archive written when a round is
// flushed; one row per (ticket, user).
type VoteHistoryRow struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	RoomKey    string `gorm:"size:64;index"`
	TicketPK   int64  `gorm:"uniqueIndex:uq_ticket_user,priority:1"`
	User       string `gorm:"size:128;uniqueIndex:uq_ticket_user,priority:2"`
	Value      string
	Structured []byte `gorm:"type:jsonb"`
	RecordedAt time.Time
}

type LiveVoteRow struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	RoomKey    string `gorm:"size:64;uniqueIndex:uq_live_room_user,priority:1"`
	User       string `gorm:"size:128;uniqueIndex:uq_live_room_user,priority:2"`
	Value      string
	Structured []byte `gorm:"type:jsonb"`
}

// SessionTokenRow admits reconnecting sockets without a full rejoin.
type SessionTokenRow struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	RoomKey   string `gorm:"size:64;uniqueIndex:uq_token_room_user,priority:1"`
	User      string `gorm:"size:128;uniqueIndex:uq_token_room_user,priority:2"`
	Token     string `gorm:"size:64"`
	CreatedAt time.Time
}
