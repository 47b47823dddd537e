package game

import (
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

var ErrUnknownType = errors.New("unknown game type")
var ErrNoActiveGame = errors.New("no active game")
var ErrNotYourTurn = errors.New("not your turn")
var ErrInvalidMove = errors.New("invalid move")

type Type string

const (
	TypeGuessNumber Type = "guess-the-number"
	TypeWordChain   Type = "word-chain"
	TypeEmojiStory  Type = "emoji-story"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

const (
	MaxRounds     = 5
	maxMoves      = 30
	maxEvents     = 10
	movesPerRound = 6

	guessMin          = 1
	guessMax          = 20
	guessCloseRange   = 2
	guessAttemptLimit = 10
)

type Move struct {
	User  string    `json:"user"`
	Value string    `json:"value"`
	At    time.Time `json:"at"`
}

// Session is the broadcast/persisted view of one mini-game.
type Session struct {
	Type         Type           `json:"type"`
	StartedBy    string         `json:"startedBy"`
	StartedAt    time.Time      `json:"startedAt"`
	Round        int            `json:"round"`
	Status       Status         `json:"status"`
	Participants []string       `json:"participants"`
	Leaderboard  map[string]int `json:"leaderboard"`
	Moves        []Move         `json:"moves"`
	Events       []string       `json:"events"`
	Winner       string         `json:"winner,omitempty"`
	EndReason    string         `json:"endReason,omitempty"`
}

// State is the full game aggregate: the shareable Session plus transient
// per-type state (hidden target, chain word). It belongs to exactly one
// room actor; nothing here is package-level, so concurrent rooms cannot
// bleed into each other.
type State struct {
	Session Session

	target       int
	attempts     int
	lastWord     string
	movesInRound int
	rng          *rand.Rand
}

func New(t Type, startedBy string, participants []string, now time.Time, seed int64) (*State, error) {
	switch t {
	case TypeGuessNumber, TypeWordChain, TypeEmojiStory:
	default:
		return nil, ErrUnknownType
	}
	s := &State{
		Session: Session{
			Type:         t,
			StartedBy:    startedBy,
			StartedAt:    now,
			Round:        1,
			Status:       StatusActive,
			Participants: append([]string(nil), participants...),
			Leaderboard:  make(map[string]int, len(participants)),
			Moves:        []Move{},
			Events:       []string{},
		},
		rng: rand.New(rand.NewSource(seed)),
	}
	for _, p := range participants {
		s.Session.Leaderboard[p] = 0
	}
	if t == TypeGuessNumber {
		s.target = s.rng.Intn(guessMax) + guessMin
	}
	s.logEvent(startedBy + " started " + string(t))
	return s, nil
}

// Resume rebuilds a State from a persisted session after actor eviction.
// Transient per-type state does not survive: an active guess round draws a
// fresh target and a word chain restarts from its next accepted word.
func Resume(sess Session, seed int64) *State {
	s := &State{Session: sess, rng: rand.New(rand.NewSource(seed))}
	if sess.Status == StatusActive && sess.Type == TypeGuessNumber {
		s.target = s.rng.Intn(guessMax) + guessMin
	}
	return s
}

func (s *State) Active() bool {
	return s != nil && s.Session.Status == StatusActive
}

// Submit applies one move. Validation failures (empty input, malformed or
// out-of-range values, out-of-turn moves) return sentinel errors and leave
// the session untouched; a broken word chain is a valid move worth zero.
func (s *State) Submit(user, value string, now time.Time) error {
	if !s.Active() {
		return ErrNoActiveGame
	}
	if strings.TrimSpace(value) == "" {
		return ErrInvalidMove
	}
	if len(s.Session.Participants) > 1 {
		if n := len(s.Session.Moves); n > 0 && s.Session.Moves[n-1].User == user {
			return ErrNotYourTurn
		}
	}

	switch s.Session.Type {
	case TypeGuessNumber:
		return s.submitGuess(user, value, now)
	case TypeWordChain:
		return s.submitWord(user, value, now)
	case TypeEmojiStory:
		return s.submitEmoji(user, value, now)
	}
	return ErrInvalidMove
}

func (s *State) submitGuess(user, value string, now time.Time) error {
	guess, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || guess < guessMin || guess > guessMax {
		return ErrInvalidMove
	}
	s.recordMove(user, value, now)
	s.attempts++

	switch {
	case guess == s.target:
		s.addScore(user, 3)
		s.logEvent(user + " guessed " + strconv.Itoa(s.target) + " exactly (+3)")
		s.advanceRound()
	case abs(guess-s.target) <= guessCloseRange:
		s.addScore(user, 1)
		s.logEvent(user + " is close (+1)")
	}

	if s.Active() && s.attempts >= guessAttemptLimit {
		s.logEvent("the number was " + strconv.Itoa(s.target))
		s.advanceRound()
	}
	return nil
}

func (s *State) submitWord(user, value string, now time.Time) error {
	word := normalizeWord(value)
	s.recordMove(user, value, now)

	accepted := len(word) >= 2 &&
		(s.lastWord == "" || word[0] == s.lastWord[len(s.lastWord)-1])
	if accepted {
		s.addScore(user, 2)
		s.lastWord = word
	} else {
		s.logEvent(user + " broke the chain")
	}

	s.movesInRound++
	if s.Active() && s.movesInRound >= movesPerRound {
		s.advanceRound()
	}
	return nil
}

func (s *State) submitEmoji(user, value string, now time.Time) error {
	n, ok := emojiClusterCount(value)
	if !ok || n < 1 || n > 6 {
		return ErrInvalidMove
	}
	s.recordMove(user, value, now)
	s.addScore(user, 1)

	s.movesInRound++
	if s.Active() && s.movesInRound >= movesPerRound {
		s.advanceRound()
	}
	return nil
}

// End force-completes the session, fixes the winner and drops transient
// per-type state.
func (s *State) End(reason string) {
	if !s.Active() {
		return
	}
	s.Session.Status = StatusCompleted
	s.Session.EndReason = reason
	s.Session.Winner = winner(s.Session.Leaderboard)
	s.target = 0
	s.attempts = 0
	s.lastWord = ""
	s.movesInRound = 0
	s.logEvent("game over (" + reason + ")")
}

func (s *State) advanceRound() {
	s.Session.Round++
	s.attempts = 0
	s.movesInRound = 0
	if s.Session.Type == TypeGuessNumber {
		s.target = s.rng.Intn(guessMax) + guessMin
	}
	if s.Session.Round > MaxRounds {
		s.End("round-limit")
		return
	}
	s.logEvent("round " + strconv.Itoa(s.Session.Round))
}

func (s *State) recordMove(user, value string, now time.Time) {
	s.Session.Moves = append(s.Session.Moves, Move{User: user, Value: value, At: now})
	if len(s.Session.Moves) > maxMoves {
		s.Session.Moves = s.Session.Moves[len(s.Session.Moves)-maxMoves:]
	}
}

func (s *State) logEvent(msg string) {
	s.Session.Events = append(s.Session.Events, msg)
	if len(s.Session.Events) > maxEvents {
		s.Session.Events = s.Session.Events[len(s.Session.Events)-maxEvents:]
	}
}

func (s *State) addScore(user string, points int) {
	s.Session.Leaderboard[user] += points
}

// winner returns the participant holding the strictly highest score, or ""
// when the top score is shared.
func winner(leaderboard map[string]int) string {
	best := ""
	bestScore := -1 << 31
	tied := false
	for user, score := range leaderboard {
		switch {
		case score > bestScore:
			best, bestScore, tied = user, score, false
		case score == bestScore:
			tied = true
		}
	}
	if tied {
		return ""
	}
	return best
}

func normalizeWord(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
