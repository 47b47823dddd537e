package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/pointdeck/pointdeck-backend/internal/room"
)

// Store is the gorm-backed durable store. Each method touches a single
// room's rows; there are no cross-room transactions.
type Store struct {
	db *gorm.DB
}

func NewPostgres(host, user, password, name string, port int) (*Store, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, name, port)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing gorm handle; used by tests with alternate drivers.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&RoomMeta{}, &TicketRow{}, &VoteHistoryRow{}, &LiveVoteRow{}, &SessionTokenRow{})
}

func (s *Store) LoadRoom(ctx context.Context, key string) (*room.Data, error) {
	var meta RoomMeta
	err := s.db.WithContext(ctx).First(&meta, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	d := &room.Data{
		Key:       meta.Key,
		Moderator: meta.Moderator,
		ShowVotes: meta.ShowVotes,
		Timer: room.TimerState{
			Running:               meta.TimerRunning,
			Seconds:               meta.TimerSeconds,
			LastUpdateMs:          meta.TimerLastUpdateMs,
			TargetDurationSec:     meta.TimerTargetSec,
			RoundAnchorSec:        meta.TimerRoundAnchorSec,
			AutoResetOnVotesReset: meta.TimerAutoReset,
		},
		JudgeScore:      meta.JudgeScore,
		JudgeMetadata:   meta.JudgeMetadata,
		GameSession:     meta.GameSession,
		ConnectedUsers:  map[string]bool{},
		Votes:           map[string]string{},
		StructuredVotes: map[string]json.RawMessage{},
	}
	if len(meta.Settings) > 0 {
		if err := json.Unmarshal(meta.Settings, &d.Settings); err != nil {
			return nil, fmt.Errorf("settings blob for %s: %w", key, err)
		}
	} else {
		d.Settings = room.DefaultSettings()
	}
	if len(meta.Users) > 0 {
		if err := json.Unmarshal(meta.Users, &d.Users); err != nil {
			return nil, fmt.Errorf("users blob for %s: %w", key, err)
		}
	}

	var rows []TicketRow
	if err := s.db.WithContext(ctx).Where("room_key = ?", key).Order("ordinal").Find(&rows).Error; err != nil {
		return nil, err
	}
	d.Tickets = make([]room.Ticket, len(rows))
	for i, r := range rows {
		d.Tickets[i] = ticketFromRow(r)
		if meta.CurrentTicketID != nil && r.ID == *meta.CurrentTicketID {
			cp := d.Tickets[i]
			d.CurrentTicket = &cp
		}
	}

	var votes []LiveVoteRow
	if err := s.db.WithContext(ctx).Where("room_key = ?", key).Find(&votes).Error; err != nil {
		return nil, err
	}
	for _, v := range votes {
		d.Votes[v.User] = v.Value
		if len(v.Structured) > 0 {
			d.StructuredVotes[v.User] = v.Structured
		}
	}
	return d, nil
}

func (s *Store) CreateRoom(ctx context.Context, d *room.Data) error {
	meta, err := metaFromData(d)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&meta).Error
}

func (s *Store) SaveMeta(ctx context.Context, d *room.Data) error {
	meta, err := metaFromData(d)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			UpdateAll: true,
		}).
		Create(&meta).Error
}

func (s *Store) InsertTicket(ctx context.Context, roomKey string, t *room.Ticket) error {
	row := rowFromTicket(roomKey, *t)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	t.ID = row.ID
	return nil
}

func (s *Store) SaveTickets(ctx context.Context, roomKey string, ts ...room.Ticket) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range ts {
			row := rowFromTicket(roomKey, t)
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) DeleteTicket(ctx context.Context, roomKey string, id int64) error {
	return s.db.WithContext(ctx).
		Where("room_key = ? AND id = ?", roomKey, id).
		Delete(&TicketRow{}).Error
}

// NextTicketKey mints the next human key in the auto-naming sequence for a
// service ("INTERNAL-7", "JIRA-3", ...), scanning the room's existing keys
// for the highest suffix.
func (s *Store) NextTicketKey(ctx context.Context, roomKey string, service room.ExternalService) (string, error) {
	prefix := "INTERNAL-"
	if service != "" && service != room.ServiceNone {
		prefix = strings.ToUpper(string(service)) + "-"
	}
	var keys []string
	err := s.db.WithContext(ctx).Model(&TicketRow{}).
		Where("room_key = ? AND ticket_id LIKE ?", roomKey, prefix+"%").
		Pluck("ticket_id", &keys).Error
	if err != nil {
		return "", err
	}
	max := 0
	for _, k := range keys {
		if n, err := strconv.Atoi(strings.TrimPrefix(k, prefix)); err == nil && n > max {
			max = n
		}
	}
	return prefix + strconv.Itoa(max+1), nil
}

func (s *Store) SaveLiveVote(ctx context.Context, roomKey, user, value string, structured json.RawMessage) error {
	row := LiveVoteRow{RoomKey: roomKey, User: user, Value: value, Structured: structured}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_key"}, {Name: "user"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "structured"}),
		}).
		Create(&row).Error
}

func (s *Store) ClearLiveVotes(ctx context.Context, roomKey string) error {
	return s.db.WithContext(ctx).Where("room_key = ?", roomKey).Delete(&LiveVoteRow{}).Error
}

func (s *Store) RecordVoteHistory(ctx context.Context, roomKey string, ticketPK int64, votes map[string]string, structured map[string]json.RawMessage, at time.Time) error {
	if len(votes) == 0 {
		return nil
	}
	rows := make([]VoteHistoryRow, 0, len(votes))
	for user, value := range votes {
		rows = append(rows, VoteHistoryRow{
			RoomKey:    roomKey,
			TicketPK:   ticketPK,
			User:       user,
			Value:      value,
			Structured: structured[user],
			RecordedAt: at,
		})
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticket_pk"}, {Name: "user"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "structured", "recorded_at"}),
		}).
		Create(&rows).Error
}

func (s *Store) EnsureToken(ctx context.Context, roomKey, user string) (string, bool, error) {
	var row SessionTokenRow
	err := s.db.WithContext(ctx).First(&row, "room_key = ? AND \"user\" = ?", roomKey, user).Error
	if err == nil {
		return row.Token, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, err
	}
	token, err := newToken()
	if err != nil {
		return "", false, err
	}
	row = SessionTokenRow{RoomKey: roomKey, User: user, Token: token}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", false, err
	}
	return token, false, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func metaFromData(d *room.Data) (RoomMeta, error) {
	settings, err := json.Marshal(d.Settings)
	if err != nil {
		return RoomMeta{}, err
	}
	users, err := json.Marshal(d.Users)
	if err != nil {
		return RoomMeta{}, err
	}
	meta := RoomMeta{
		Key:                 d.Key,
		Moderator:           d.Moderator,
		ShowVotes:           d.ShowVotes,
		Settings:            settings,
		Users:               users,
		JudgeScore:          d.JudgeScore,
		JudgeMetadata:       d.JudgeMetadata,
		TimerRunning:        d.Timer.Running,
		TimerSeconds:        d.Timer.Seconds,
		TimerLastUpdateMs:   d.Timer.LastUpdateMs,
		TimerTargetSec:      d.Timer.TargetDurationSec,
		TimerRoundAnchorSec: d.Timer.RoundAnchorSec,
		TimerAutoReset:      d.Timer.AutoResetOnVotesReset,
		GameSession:         d.GameSession,
	}
	if d.CurrentTicket != nil {
		id := d.CurrentTicket.ID
		meta.CurrentTicketID = &id
	}
	return meta, nil
}

func ticketFromRow(r TicketRow) room.Ticket {
	return room.Ticket{
		ID:                      r.ID,
		TicketID:                r.TicketID,
		Title:                   r.Title,
		Description:             r.Description,
		Status:                  room.TicketStatus(r.Status),
		Ordinal:                 r.Ordinal,
		Outcome:                 r.Outcome,
		CreatedAt:               r.CreatedAt,
		CompletedAt:             r.CompletedAt,
		ExternalService:         room.ExternalService(r.ExternalService),
		ExternalServiceID:       r.ExternalServiceID,
		ExternalServiceMetadata: r.ExternalServiceMetadata,
	}
}

func rowFromTicket(roomKey string, t room.Ticket) TicketRow {
	return TicketRow{
		ID:                      t.ID,
		RoomKey:                 roomKey,
		TicketID:                t.TicketID,
		Title:                   t.Title,
		Description:             t.Description,
		Status:                  string(t.Status),
		Ordinal:                 t.Ordinal,
		Outcome:                 t.Outcome,
		CreatedAt:               t.CreatedAt,
		CompletedAt:             t.CompletedAt,
		ExternalService:         string(t.ExternalService),
		ExternalServiceID:       t.ExternalServiceID,
		ExternalServiceMetadata: t.ExternalServiceMetadata,
	}
}
