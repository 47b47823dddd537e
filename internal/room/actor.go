package room

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/pointdeck/pointdeck-backend/internal/game"
)

// Msg is the closed union of mailbox messages a room actor drains, strictly
// one at a time. This serialization is what makes every room invariant
// (single in-progress ticket, unique ordinals, one active game) hold.
type Msg interface{ isRoomMsg() }

type Join struct {
	ClientID string
	User     string
	Token    string
	Outbox   chan Event
	Reply    chan JoinResult
}

type JoinResult struct {
	OK bool
}

type Leave struct {
	ClientID string
	User     string
}

type FromClient struct {
	User string
	Cmd  Command
}

// GetView reflects internal state without data races; test hook.
type GetView struct {
	Reply chan View
}

type Shutdown struct{}

func (Join) isRoomMsg()       {}
func (Leave) isRoomMsg()      {}
func (FromClient) isRoomMsg() {}
func (GetView) isRoomMsg()    {}
func (Shutdown) isRoomMsg()   {}

type View struct {
	Exists     bool
	NumClients int
	Data       Data
	Game       *game.Session
}

type attachedClient struct {
	user   string
	outbox chan Event
}

// Deps bundles the actor's collaborators. Nil fields get no-op defaults.
type Deps struct {
	Store   Store
	Stats   StatsSink
	Tracker TrackerAdapter
	Log     *zap.Logger
	Now     func() time.Time
	Seed    func() int64
}

// Actor owns one room: it rehydrates the snapshot from the store on start,
// processes inbound messages in arrival order, persists before it
// broadcasts, and fans changes out to the attached sockets.
type Actor struct {
	key     string
	inbox   chan Msg
	store   Store
	stats   StatsSink
	tracker TrackerAdapter
	log     *zap.Logger

	data    *Data
	game    *game.State
	clients map[string]attachedClient

	ctx    context.Context
	cancel context.CancelFunc
	bgCtx  context.Context
	now    func() time.Time
	seed   func() int64
}

func NewActor(parent context.Context, key string, deps Deps) *Actor {
	ctx, cancel := context.WithCancel(parent)
	a := &Actor{
		key:     key,
		inbox:   make(chan Msg, 64),
		store:   deps.Store,
		stats:   deps.Stats,
		tracker: deps.Tracker,
		log:     deps.Log,
		clients: make(map[string]attachedClient),
		ctx:     ctx,
		cancel:  cancel,
		bgCtx:   context.WithoutCancel(ctx),
		now:     deps.Now,
		seed:    deps.Seed,
	}
	if a.stats == nil {
		a.stats = NopStatsSink{}
	}
	if a.tracker == nil {
		a.tracker = NopTrackerAdapter{}
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.seed == nil {
		a.seed = func() int64 { return time.Now().UnixNano() }
	}
	a.log = a.log.With(zap.String("room", key))

	go a.loop()
	return a
}

func (a *Actor) Inbox() chan<- Msg { return a.inbox }

func (a *Actor) loop() {
	a.hydrate()

	for {
		select {
		case <-a.ctx.Done():
			a.shutdown()
			return

		case m := <-a.inbox:
			switch msg := m.(type) {
			case Join:
				if a.data == nil {
					// The room may have been created after this actor
					// spawned for a not-yet-existing key.
					a.hydrate()
				}
				a.handleJoin(msg)

			case Leave:
				a.handleLeave(msg)

			case FromClient:
				if a.data == nil {
					a.hydrate()
				}
				if a.data == nil {
					// Unknown room: quiet no-op, no existence oracle.
					break
				}
				a.dispatch(msg.User, msg.Cmd)

			case GetView:
				v := View{NumClients: len(a.clients)}
				if a.data != nil {
					v.Exists = true
					v.Data = *a.data
				}
				if a.game != nil {
					sess := a.game.Session
					v.Game = &sess
				}
				msg.Reply <- v

			case Shutdown:
				a.shutdown()
				return
			}
		}
	}
}

// hydrate loads the snapshot from the durable store. The actor may have
// been evicted at any point; everything it needs must come back from here.
// Retried on demand while the room has no durable row yet.
func (a *Actor) hydrate() {
	d, err := a.store.LoadRoom(a.ctx, a.key)
	if err != nil {
		a.log.Error("hydrate room", zap.Error(err))
		return
	}
	if d == nil {
		return
	}
	d.Timer = EnsureTimerState(d.Timer)
	if d.ConnectedUsers == nil {
		d.ConnectedUsers = map[string]bool{}
	}
	if d.Votes == nil {
		d.Votes = map[string]string{}
	}
	if d.StructuredVotes == nil {
		d.StructuredVotes = map[string]json.RawMessage{}
	}
	a.data = d

	if len(d.GameSession) > 0 {
		var sess game.Session
		if err := json.Unmarshal(d.GameSession, &sess); err != nil {
			a.log.Warn("stale game session blob", zap.Error(err))
		} else {
			a.game = game.Resume(sess, a.seed())
		}
	}
	a.log.Info("room hydrated",
		zap.Int("tickets", len(d.Tickets)), zap.Int("users", len(d.Users)))
}

func (a *Actor) dispatch(user string, cmd Command) {
	switch c := cmd.(type) {
	case SubmitVote:
		a.handleSubmitVote(user, c)
	case RevealVotes:
		a.handleRevealVotes(user)
	case ResetVotes:
		a.handleResetVotes(user)
	case NextTicket:
		a.handleNextTicket(user)
	case AddTicket:
		a.handleAddTicket(user, c.Ticket)
	case UpdateTicket:
		a.handleUpdateTicket(user, c.TicketID, c.Updates)
	case DeleteTicket:
		a.handleDeleteTicket(user, c.TicketID)
	case CompleteTicket:
		a.handleCompleteTicket(user, c.Outcome)
	case StartGame:
		a.handleStartGame(user, c.Type)
	case SubmitGameMove:
		a.handleGameMove(user, c.Value)
	case EndGame:
		a.handleEndGame(user)
	case StartTimer:
		a.handleTimer(user, "start")
	case PauseTimer:
		a.handleTimer(user, "pause")
	case ResetTimer:
		a.handleTimer(user, "reset")
	}
}

// Permission gates, applied uniformly by every mutating handler. Denied
// actions are quiet drops: a non-privileged caller who mistimed a click
// learns nothing.

func (a *Actor) canManageQueue(user string) bool {
	if a.data == nil || !a.data.Settings.EnableTicketQueue {
		return false
	}
	return user == a.data.Moderator || a.data.Settings.AllowOthersToManageQueue
}

func (a *Actor) canReveal(user string) bool {
	return user == a.data.Moderator || a.data.Settings.AllowOthersToShowEstimates
}

func (a *Actor) canReset(user string) bool {
	return user == a.data.Moderator || a.data.Settings.AllowOthersToDeleteEstimates
}

func (a *Actor) handleJoin(msg Join) {
	if a.data == nil {
		msg.Reply <- JoinResult{OK: false}
		return
	}
	token, existed, err := a.store.EnsureToken(a.ctx, a.key, msg.User)
	if err != nil {
		a.log.Error("ensure token", zap.Error(err))
		msg.Reply <- JoinResult{OK: false}
		return
	}
	if existed && msg.Token != token {
		a.log.Debug("token mismatch", zap.String("user", msg.User))
		msg.Reply <- JoinResult{OK: false}
		return
	}

	a.clients[msg.ClientID] = attachedClient{user: msg.User, outbox: msg.Outbox}
	d := a.data
	if !d.hasUser(msg.User) {
		d.Users = append(d.Users, msg.User)
	}
	d.ConnectedUsers[msg.User] = true
	if err := a.store.SaveMeta(a.ctx, d); err != nil {
		a.log.Error("save meta", zap.Error(err))
	}

	msg.Reply <- JoinResult{OK: true}
	msg.Outbox <- a.snapshotEvent(token)
	a.broadcast(PresenceEvent{Users: d.Users, Connected: d.ConnectedUsers})
}

func (a *Actor) handleLeave(msg Leave) {
	c, ok := a.clients[msg.ClientID]
	if !ok {
		return
	}
	delete(a.clients, msg.ClientID)
	close(c.outbox) // releases the socket's writer goroutine
	if a.data == nil {
		return
	}
	// Only mark the user offline once their last socket is gone.
	for _, other := range a.clients {
		if other.user == c.user {
			return
		}
	}
	a.data.ConnectedUsers[c.user] = false
	if err := a.store.SaveMeta(a.ctx, a.data); err != nil {
		a.log.Error("save meta", zap.Error(err))
	}
	a.broadcast(PresenceEvent{Users: a.data.Users, Connected: a.data.ConnectedUsers})
}

func (a *Actor) handleSubmitVote(user string, c SubmitVote) {
	d := a.data
	if !d.submitVote(user, c.Value, c.Structured) {
		return
	}
	if err := a.store.SaveLiveVote(a.ctx, d.Key, user, c.Value, c.Structured); err != nil {
		a.log.Error("save vote", zap.Error(err))
		return
	}
	shown := user
	if d.Settings.AnonymousVotes {
		shown = anonymousLabel(d.Users, user)
	}
	a.broadcast(VoteSubmittedEvent{User: shown, VoteCount: len(d.Votes)})
}

func (a *Actor) handleRevealVotes(user string) {
	d := a.data
	if !a.canReveal(user) || d.ShowVotes {
		return
	}
	d.ShowVotes = true
	d.JudgeScore, d.JudgeMetadata = d.computeJudgeScore()
	if err := a.store.SaveMeta(a.ctx, d); err != nil {
		a.log.Error("save meta", zap.Error(err))
		return
	}
	a.broadcast(VotesRevealedEvent{
		Votes:         d.projectedVotes(),
		JudgeScore:    d.JudgeScore,
		JudgeMetadata: d.JudgeMetadata,
	})
}

func (a *Actor) handleResetVotes(user string) {
	d := a.data
	if !a.canReset(user) {
		return
	}
	if err := a.store.ClearLiveVotes(a.ctx, d.Key); err != nil {
		a.log.Error("clear votes", zap.Error(err))
		return
	}
	d.clearVotes()
	if d.Timer.AutoResetOnVotesReset {
		d.Timer.RoundAnchorSec = CalculateSeconds(d.Timer, a.now().UnixMilli())
	}
	if err := a.store.SaveMeta(a.ctx, d); err != nil {
		a.log.Error("save meta", zap.Error(err))
		return
	}
	a.broadcast(VotesResetEvent{})
}

func (a *Actor) handleStartGame(user string, t game.Type) {
	if a.game.Active() {
		a.broadcast(ErrorEvent{Error: "a game is already active", Reason: "permission"})
		return
	}
	gs, err := game.New(t, user, a.data.Users, a.now(), a.seed())
	if err != nil {
		return
	}
	a.game = gs
	if !a.persistGame() {
		return
	}
	a.broadcast(GameStartedEvent{Session: gs.Session, StartedBy: user})
}

func (a *Actor) handleGameMove(user, value string) {
	if err := a.game.Submit(user, value, a.now()); err != nil {
		// Expected client-side validation; a no-op is indistinguishable
		// from a dropped frame.
		a.log.Debug("game move rejected", zap.String("user", user), zap.Error(err))
		return
	}
	if !a.persistGame() {
		return
	}
	a.broadcast(GameMoveEvent{Session: a.game.Session, User: user})
	if a.game.Session.Status == game.StatusCompleted {
		a.broadcast(GameEndedEvent{Session: a.game.Session, EndedBy: user})
	}
}

func (a *Actor) handleEndGame(user string) {
	if !a.game.Active() {
		return
	}
	if user != a.data.Moderator && !a.data.Settings.AllowOthersToManageQueue {
		return
	}
	a.game.End("manual")
	if !a.persistGame() {
		return
	}
	a.broadcast(GameEndedEvent{Session: a.game.Session, EndedBy: user})
}

func (a *Actor) persistGame() bool {
	blob, err := json.Marshal(a.game.Session)
	if err != nil {
		a.log.Error("marshal game session", zap.Error(err))
		return false
	}
	a.data.GameSession = blob
	if err := a.store.SaveMeta(a.ctx, a.data); err != nil {
		a.log.Error("save meta", zap.Error(err))
		return false
	}
	return true
}

func (a *Actor) handleTimer(user, op string) {
	d := a.data
	nowMs := a.now().UnixMilli()
	var ev Event
	switch op {
	case "start":
		d.Timer = startTimer(d.Timer, nowMs)
		ev = TimerStartedEvent{Timer: d.Timer}
	case "pause":
		d.Timer = pauseTimer(d.Timer, nowMs)
		ev = TimerPausedEvent{Timer: d.Timer}
	case "reset":
		d.Timer = resetTimer(d.Timer, nowMs)
		ev = TimerResetEvent{Timer: d.Timer}
	}
	if err := a.store.SaveMeta(a.ctx, d); err != nil {
		a.log.Error("save meta", zap.Error(err))
		return
	}
	a.broadcast(ev)
}

// snapshotEvent builds the catch-up payload for a newly attached socket.
// Vote values stay hidden until the round is revealed; the keys still show
// who has voted.
func (a *Actor) snapshotEvent(token string) RoomStateEvent {
	d := a.data
	votes := d.projectedVotes()
	if !d.ShowVotes {
		for k := range votes {
			votes[k] = ""
		}
	}
	return RoomStateEvent{
		Key:           d.Key,
		Moderator:     d.Moderator,
		Settings:      d.Settings,
		Users:         d.Users,
		Connected:     d.ConnectedUsers,
		Votes:         votes,
		ShowVotes:     d.ShowVotes,
		CurrentTicket: d.CurrentTicket,
		Queue:         queueView(d.Tickets),
		Timer:         d.Timer,
		GameSession:   d.GameSession,
		JudgeScore:    d.JudgeScore,
		JudgeMetadata: d.JudgeMetadata,
		SessionToken:  token,
	}
}

// broadcast fans an event out to every attached socket in processing
// order. A client whose outbox is full is dropped rather than allowed to
// stall the room.
func (a *Actor) broadcast(ev Event) {
	for id, c := range a.clients {
		select {
		case c.outbox <- ev:
		default:
			a.log.Warn("dropping slow client", zap.String("client", id))
			close(c.outbox)
			delete(a.clients, id)
		}
	}
}

func (a *Actor) shutdown() {
	for id, c := range a.clients {
		close(c.outbox)
		delete(a.clients, id)
	}
	a.cancel()
}
