package room

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pointdeck/pointdeck-backend/internal/game"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory Store for actor tests; it persists the same
// shapes the gorm store does so rehydration paths can be exercised.
type memStore struct {
	mu        sync.Mutex
	rooms     map[string]*Data
	tickets   map[string][]Ticket
	liveVotes map[string]map[string]string
	tokens    map[string]string
	history   map[int64]map[string]string
	nextID    int64
}

func newMemStore() *memStore {
	return &memStore{
		rooms:     map[string]*Data{},
		tickets:   map[string][]Ticket{},
		liveVotes: map[string]map[string]string{},
		tokens:    map[string]string{},
		history:   map[int64]map[string]string{},
	}
}

func (m *memStore) LoadRoom(_ context.Context, key string) (*Data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rooms[key]
	if !ok {
		return nil, nil
	}
	cp := *d
	cp.Users = append([]string(nil), d.Users...)
	cp.ConnectedUsers = map[string]bool{}
	cp.Votes = map[string]string{}
	cp.StructuredVotes = map[string]json.RawMessage{}
	for u, v := range m.liveVotes[key] {
		cp.Votes[u] = v
	}
	cp.Tickets = append([]Ticket(nil), m.tickets[key]...)
	if d.CurrentTicket != nil {
		for _, tk := range cp.Tickets {
			if tk.ID == d.CurrentTicket.ID {
				t := tk
				cp.CurrentTicket = &t
				break
			}
		}
	}
	return &cp, nil
}

func (m *memStore) CreateRoom(_ context.Context, d *Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.rooms[d.Key] = &cp
	m.tickets[d.Key] = append([]Ticket(nil), d.Tickets...)
	return nil
}

func (m *memStore) SaveMeta(_ context.Context, d *Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	cp.Tickets = nil
	m.rooms[d.Key] = &cp
	return nil
}

func (m *memStore) InsertTicket(_ context.Context, roomKey string, t *Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	m.tickets[roomKey] = append(m.tickets[roomKey], *t)
	return nil
}

func (m *memStore) SaveTickets(_ context.Context, roomKey string, ts ...Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range ts {
		for i := range m.tickets[roomKey] {
			if m.tickets[roomKey][i].ID == t.ID {
				m.tickets[roomKey][i] = t
				break
			}
		}
	}
	return nil
}

func (m *memStore) DeleteTicket(_ context.Context, roomKey string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tickets[roomKey]
	for i := range rows {
		if rows[i].ID == id {
			m.tickets[roomKey] = append(rows[:i], rows[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memStore) NextTicketKey(_ context.Context, roomKey string, service ExternalService) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return "INTERNAL-" + strconv.Itoa(highestAutoSeq(m.tickets[roomKey])+1), nil
}

func (m *memStore) SaveLiveVote(_ context.Context, roomKey, user, value string, _ json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.liveVotes[roomKey] == nil {
		m.liveVotes[roomKey] = map[string]string{}
	}
	m.liveVotes[roomKey][user] = value
	return nil
}

func (m *memStore) ClearLiveVotes(_ context.Context, roomKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.liveVotes, roomKey)
	return nil
}

func (m *memStore) RecordVoteHistory(_ context.Context, _ string, ticketPK int64, votes map[string]string, _ map[string]json.RawMessage, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := map[string]string{}
	for u, v := range votes {
		cp[u] = v
	}
	m.history[ticketPK] = cp
	return nil
}

func (m *memStore) EnsureToken(_ context.Context, roomKey, user string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := roomKey + "/" + user
	if tok, ok := m.tokens[k]; ok {
		return tok, true, nil
	}
	tok := "tok-" + user
	m.tokens[k] = tok
	return tok, false, nil
}

// --- helpers ---

func newTestRoom(t *testing.T, ms *memStore, key string, mutate func(*Data)) *Actor {
	t.Helper()
	d := NewData(key, "mod")
	if mutate != nil {
		mutate(d)
	}
	if err := ms.CreateRoom(context.Background(), d); err != nil {
		t.Fatalf("create room: %v", err)
	}
	return newActorFor(t, ms, key)
}

func newActorFor(t *testing.T, ms *memStore, key string) *Actor {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewActor(ctx, key, Deps{
		Store: ms,
		Now:   func() time.Time { return testNow },
		Seed:  func() int64 { return 1 },
	})
}

func recvNoEvent(t *testing.T, ch <-chan Event, within time.Duration) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no event within %v, but got %T: %+v", within, ev, ev)
	case <-time.After(within):
	}
}

// waitFor drains events until one of the wanted type shows up.
func waitFor[T Event](t *testing.T, ch <-chan Event) T {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %T", *new(T))
			}
			if want, is := ev.(T); is {
				return want
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %T", *new(T))
		}
	}
}

func joinAs(t *testing.T, a *Actor, user, token string) (chan Event, RoomStateEvent) {
	t.Helper()
	out := make(chan Event, 64)
	reply := make(chan JoinResult, 1)
	a.Inbox() <- Join{ClientID: user + "-1", User: user, Token: token, Outbox: out, Reply: reply}
	select {
	case res := <-reply:
		if !res.OK {
			t.Fatalf("join refused for %s", user)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out joining as %s", user)
	}
	snap := waitFor[RoomStateEvent](t, out)
	waitFor[PresenceEvent](t, out)
	return out, snap
}

func viewOf(t *testing.T, a *Actor) View {
	t.Helper()
	reply := make(chan View, 1)
	a.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

// --- tests ---

func TestActor_JoinDeliversSnapshotAndMintsToken(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)

	_, snap := joinAs(t, a, "mod", "")
	if snap.Key != "R1" || snap.Moderator != "mod" {
		t.Fatalf("bad snapshot: %+v", snap)
	}
	if snap.SessionToken == "" {
		t.Fatalf("expected a session token in the catch-up snapshot")
	}
	if snap.Timer.TargetDurationSec != DefaultTimerTargetSec {
		t.Fatalf("timer defaults missing: %+v", snap.Timer)
	}
}

func TestActor_JoinUnknownRoomRefused(t *testing.T) {
	ms := newMemStore()
	a := newActorFor(t, ms, "NOPE")

	out := make(chan Event, 8)
	reply := make(chan JoinResult, 1)
	a.Inbox() <- Join{ClientID: "c1", User: "alice", Outbox: out, Reply: reply}
	if res := <-reply; res.OK {
		t.Fatalf("join against a nonexistent room must be refused")
	}
}

func TestActor_ReconnectRequiresMatchingToken(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)

	_, snap := joinAs(t, a, "alice", "")
	a.Inbox() <- Leave{ClientID: "alice-1", User: "alice"}

	out2 := make(chan Event, 8)
	reply := make(chan JoinResult, 1)
	a.Inbox() <- Join{ClientID: "alice-2", User: "alice", Token: "wrong", Outbox: out2, Reply: reply}
	if res := <-reply; res.OK {
		t.Fatalf("reconnect with a bad token must be refused")
	}

	// The minted token readmits.
	out3 := make(chan Event, 8)
	reply2 := make(chan JoinResult, 1)
	a.Inbox() <- Join{ClientID: "alice-3", User: "alice", Token: snap.SessionToken, Outbox: out3, Reply: reply2}
	if res := <-reply2; !res.OK {
		t.Fatalf("reconnect with the minted token must succeed")
	}
}

func TestActor_LeaveClosesOutbox(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)
	out, _ := joinAs(t, a, "mod", "")

	a.Inbox() <- Leave{ClientID: "mod-1", User: "mod"}
	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected closed outbox, got an event")
		}
	case <-time.After(time.Second):
		t.Fatalf("outbox was not closed on leave")
	}
}

func TestActor_AddTicketBroadcasts(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)
	out, _ := joinAs(t, a, "mod", "")

	a.Inbox() <- FromClient{User: "mod", Cmd: AddTicket{Ticket: Ticket{TicketID: "PROJ-1", Title: "login page"}}}

	ev := waitFor[TicketAddedEvent](t, out)
	if ev.Ticket.TicketID != "PROJ-1" || ev.Ticket.Ordinal != 1 || ev.Ticket.Status != TicketPending {
		t.Fatalf("bad ticket: %+v", ev.Ticket)
	}
	if len(ev.Queue) != 1 {
		t.Fatalf("queue should hold 1 ticket, got %d", len(ev.Queue))
	}
}

func TestActor_AddDuplicateTicketEmitsErrorWithoutMutating(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)
	out, _ := joinAs(t, a, "mod", "")

	a.Inbox() <- FromClient{User: "mod", Cmd: AddTicket{Ticket: Ticket{TicketID: "PROJ-1"}}}
	waitFor[TicketAddedEvent](t, out)

	a.Inbox() <- FromClient{User: "mod", Cmd: AddTicket{Ticket: Ticket{TicketID: "PROJ-1"}}}
	ev := waitFor[ErrorEvent](t, out)
	if ev.Reason != "conflict" {
		t.Fatalf("want conflict reason, got %+v", ev)
	}
	if v := viewOf(t, a); len(v.Data.Tickets) != 1 {
		t.Fatalf("queue must be unchanged, got %d tickets", len(v.Data.Tickets))
	}
}

func TestActor_QueueMutationsGatedByPermission(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil) // AllowOthersToManageQueue false
	out, _ := joinAs(t, a, "guest", "")

	a.Inbox() <- FromClient{User: "guest", Cmd: AddTicket{Ticket: Ticket{TicketID: "PROJ-1"}}}
	recvNoEvent(t, out, 150*time.Millisecond)

	if v := viewOf(t, a); len(v.Data.Tickets) != 0 {
		t.Fatalf("unprivileged add must be a quiet no-op")
	}
}

func TestActor_QueueDisabledDropsModeratorActionsToo(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", func(d *Data) {
		d.Settings.EnableTicketQueue = false
	})
	out, _ := joinAs(t, a, "mod", "")

	a.Inbox() <- FromClient{User: "mod", Cmd: NextTicket{}}
	recvNoEvent(t, out, 150*time.Millisecond)
}

func TestActor_NextTicketSynthesizesIncreasingAutoKeys(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)
	out, _ := joinAs(t, a, "mod", "")

	a.Inbox() <- FromClient{User: "mod", Cmd: NextTicket{}}
	first := waitFor[NextTicketEvent](t, out)
	if first.Ticket.TicketID != "INTERNAL-1" || first.Ticket.Status != TicketInProgress {
		t.Fatalf("first synthesized ticket: %+v", first.Ticket)
	}

	a.Inbox() <- FromClient{User: "mod", Cmd: NextTicket{}}
	second := waitFor[NextTicketEvent](t, out)
	if second.Ticket.TicketID != "INTERNAL-2" {
		t.Fatalf("want INTERNAL-2, got %s", second.Ticket.TicketID)
	}

	// Single in-progress invariant: the first auto ticket is now completed.
	v := viewOf(t, a)
	inProgress := 0
	for _, tk := range v.Data.Tickets {
		if tk.Status == TicketInProgress {
			inProgress++
			if v.Data.CurrentTicket == nil || v.Data.CurrentTicket.ID != tk.ID {
				t.Fatalf("in-progress ticket is not the current ticket")
			}
		}
	}
	if inProgress != 1 {
		t.Fatalf("want exactly 1 in-progress ticket, got %d", inProgress)
	}
}

func TestActor_NextTicketPromotesLowestOrdinal(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)
	out, _ := joinAs(t, a, "mod", "")

	a.Inbox() <- FromClient{User: "mod", Cmd: AddTicket{Ticket: Ticket{TicketID: "B", Ordinal: 5}}}
	waitFor[TicketAddedEvent](t, out)
	a.Inbox() <- FromClient{User: "mod", Cmd: AddTicket{Ticket: Ticket{TicketID: "A", Ordinal: 2}}}
	waitFor[TicketAddedEvent](t, out)

	a.Inbox() <- FromClient{User: "mod", Cmd: NextTicket{}}
	ev := waitFor[NextTicketEvent](t, out)
	if ev.Ticket.TicketID != "A" {
		t.Fatalf("lowest ordinal should be promoted, got %s", ev.Ticket.TicketID)
	}
}

func TestActor_UpdateTicketOrdinalCollisionSwaps(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)
	out, _ := joinAs(t, a, "mod", "")

	a.Inbox() <- FromClient{User: "mod", Cmd: AddTicket{Ticket: Ticket{TicketID: "A"}}} // ordinal 1
	waitFor[TicketAddedEvent](t, out)
	a.Inbox() <- FromClient{User: "mod", Cmd: AddTicket{Ticket: Ticket{TicketID: "B"}}} // ordinal 2
	waitFor[TicketAddedEvent](t, out)

	ord := 2
	a.Inbox() <- FromClient{User: "mod", Cmd: UpdateTicket{TicketID: "A", Updates: TicketUpdate{Ordinal: &ord}}}
	ev := waitFor[TicketUpdatedEvent](t, out)
	if ev.Ticket.TicketID != "A" || ev.Ticket.Ordinal != 2 {
		t.Fatalf("update not applied: %+v", ev.Ticket)
	}

	ordinals := map[string]int{}
	for _, tk := range ev.Queue {
		ordinals[tk.TicketID] = tk.Ordinal
	}
	if ordinals["B"] != 1 {
		t.Fatalf("colliding ticket should take the old ordinal, got %+v", ordinals)
	}
}

func TestActor_UpdateTicketIDConflictRejected(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)
	out, _ := joinAs(t, a, "mod", "")

	a.Inbox() <- FromClient{User: "mod", Cmd: AddTicket{Ticket: Ticket{TicketID: "A"}}}
	waitFor[TicketAddedEvent](t, out)
	a.Inbox() <- FromClient{User: "mod", Cmd: AddTicket{Ticket: Ticket{TicketID: "B"}}}
	waitFor[TicketAddedEvent](t, out)

	newID := "B"
	a.Inbox() <- FromClient{User: "mod", Cmd: UpdateTicket{TicketID: "A", Updates: TicketUpdate{TicketID: &newID}}}
	ev := waitFor[ErrorEvent](t, out)
	if ev.Reason != "conflict" {
		t.Fatalf("want conflict, got %+v", ev)
	}
}

func TestActor_UpdateTicketCannotForgeActiveStatus(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)
	out, _ := joinAs(t, a, "mod", "")

	a.Inbox() <- FromClient{User: "mod", Cmd: AddTicket{Ticket: Ticket{TicketID: "A"}}}
	waitFor[TicketAddedEvent](t, out)
	a.Inbox() <- FromClient{User: "mod", Cmd: AddTicket{Ticket: Ticket{TicketID: "B"}}}
	waitFor[TicketAddedEvent](t, out)
	a.Inbox() <- FromClient{User: "mod", Cmd: NextTicket{}}
	waitFor[NextTicketEvent](t, out)

	// in_progress and completed only come from the queue transitions.
	for _, forged := range []TicketStatus{TicketInProgress, TicketCompleted} {
		st := forged
		a.Inbox() <- FromClient{User: "mod", Cmd: UpdateTicket{TicketID: "B", Updates: TicketUpdate{Status: &st}}}
		ev := waitFor[ErrorEvent](t, out)
		if ev.Reason != "conflict" {
			t.Fatalf("forged %s status must be rejected, got %+v", forged, ev)
		}
	}

	// Demoting the active ticket is a quiet no-op.
	pending := TicketPending
	a.Inbox() <- FromClient{User: "mod", Cmd: UpdateTicket{TicketID: "A", Updates: TicketUpdate{Status: &pending}}}
	recvNoEvent(t, out, 150*time.Millisecond)

	v := viewOf(t, a)
	inProgress := 0
	for _, tk := range v.Data.Tickets {
		if tk.Status == TicketInProgress {
			inProgress++
			if tk.TicketID != "A" {
				t.Fatalf("in-progress ticket should still be A, got %s", tk.TicketID)
			}
		}
	}
	if inProgress != 1 {
		t.Fatalf("want exactly 1 in-progress ticket, got %d", inProgress)
	}

	// Moves between pending and blocked stay open.
	blocked := TicketBlocked
	a.Inbox() <- FromClient{User: "mod", Cmd: UpdateTicket{TicketID: "B", Updates: TicketUpdate{Status: &blocked}}}
	upd := waitFor[TicketUpdatedEvent](t, out)
	if upd.Ticket.Status != TicketBlocked {
		t.Fatalf("blocked update should apply: %+v", upd.Ticket)
	}
}

func TestActor_HydratesWhenRoomCreatedAfterSpawn(t *testing.T) {
	ms := newMemStore()
	a := newActorFor(t, ms, "R1")

	if v := viewOf(t, a); v.Exists {
		t.Fatalf("room should not exist yet")
	}

	// The room row lands after the actor spawned for the key.
	if err := ms.CreateRoom(context.Background(), NewData("R1", "mod")); err != nil {
		t.Fatalf("create room: %v", err)
	}

	_, snap := joinAs(t, a, "mod", "")
	if snap.Key != "R1" || snap.Moderator != "mod" {
		t.Fatalf("bad snapshot after late hydration: %+v", snap)
	}
}

func TestActor_DeleteActiveTicketIsNoop(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)
	out, _ := joinAs(t, a, "mod", "")

	a.Inbox() <- FromClient{User: "mod", Cmd: AddTicket{Ticket: Ticket{TicketID: "A"}}}
	waitFor[TicketAddedEvent](t, out)
	a.Inbox() <- FromClient{User: "mod", Cmd: NextTicket{}}
	waitFor[NextTicketEvent](t, out)

	a.Inbox() <- FromClient{User: "mod", Cmd: DeleteTicket{TicketID: "A"}}
	recvNoEvent(t, out, 150*time.Millisecond)

	if v := viewOf(t, a); v.Data.CurrentTicket == nil || v.Data.CurrentTicket.TicketID != "A" {
		t.Fatalf("active ticket must survive a delete attempt")
	}
}

func TestActor_CompleteTicketPromotesAndClearsVotes(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)
	out, _ := joinAs(t, a, "mod", "")

	a.Inbox() <- FromClient{User: "mod", Cmd: AddTicket{Ticket: Ticket{TicketID: "A"}}}
	waitFor[TicketAddedEvent](t, out)
	a.Inbox() <- FromClient{User: "mod", Cmd: AddTicket{Ticket: Ticket{TicketID: "B"}}}
	waitFor[TicketAddedEvent](t, out)
	a.Inbox() <- FromClient{User: "mod", Cmd: NextTicket{}}
	next := waitFor[NextTicketEvent](t, out)
	aID := next.Ticket.ID

	a.Inbox() <- FromClient{User: "mod", Cmd: SubmitVote{Value: "5"}}
	waitFor[VoteSubmittedEvent](t, out)

	a.Inbox() <- FromClient{User: "mod", Cmd: CompleteTicket{Outcome: "shipped"}}
	done := waitFor[TicketCompletedEvent](t, out)
	if done.Ticket.TicketID != "A" || done.Ticket.Outcome != "shipped" || done.Ticket.CompletedAt == nil {
		t.Fatalf("bad completed ticket: %+v", done.Ticket)
	}

	v := viewOf(t, a)
	if v.Data.CurrentTicket == nil || v.Data.CurrentTicket.TicketID != "B" {
		t.Fatalf("next pending ticket should be promoted, got %+v", v.Data.CurrentTicket)
	}
	if len(v.Data.Votes) != 0 {
		t.Fatalf("votes must clear on round advance")
	}

	ms.mu.Lock()
	hist := ms.history[aID]
	ms.mu.Unlock()
	if hist["mod"] != "5" {
		t.Fatalf("vote history for the outgoing round not recorded: %+v", hist)
	}
}

func TestActor_CompleteWithEmptyQueueLeavesNoCurrentTicket(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)
	out, _ := joinAs(t, a, "mod", "")

	a.Inbox() <- FromClient{User: "mod", Cmd: NextTicket{}}
	waitFor[NextTicketEvent](t, out)
	a.Inbox() <- FromClient{User: "mod", Cmd: CompleteTicket{}}
	waitFor[TicketCompletedEvent](t, out)

	if v := viewOf(t, a); v.Data.CurrentTicket != nil {
		t.Fatalf("complete on an empty queue must not synthesize, got %+v", v.Data.CurrentTicket)
	}
}

func TestActor_VoteRevealResetFlow(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)
	out, _ := joinAs(t, a, "mod", "")

	a.Inbox() <- FromClient{User: "mod", Cmd: SubmitVote{Value: "5"}}
	sub := waitFor[VoteSubmittedEvent](t, out)
	if sub.User != "mod" || sub.VoteCount != 1 {
		t.Fatalf("bad voteSubmitted: %+v", sub)
	}

	a.Inbox() <- FromClient{User: "mod", Cmd: RevealVotes{}}
	rev := waitFor[VotesRevealedEvent](t, out)
	if rev.Votes["mod"] != "5" {
		t.Fatalf("revealed votes missing: %+v", rev.Votes)
	}
	if rev.JudgeScore == nil || *rev.JudgeScore != 5 {
		t.Fatalf("judge score: %+v", rev.JudgeScore)
	}
	if len(rev.JudgeMetadata) == 0 {
		t.Fatalf("reveal should carry the judge metadata")
	}

	// Votes are frozen after reveal.
	a.Inbox() <- FromClient{User: "mod", Cmd: SubmitVote{Value: "8"}}
	recvNoEvent(t, out, 150*time.Millisecond)

	a.Inbox() <- FromClient{User: "mod", Cmd: ResetVotes{}}
	waitFor[VotesResetEvent](t, out)
	if v := viewOf(t, a); len(v.Data.Votes) != 0 || v.Data.ShowVotes {
		t.Fatalf("reset did not clear round state")
	}
}

func TestActor_GameLifecycle(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)
	out, _ := joinAs(t, a, "mod", "")

	a.Inbox() <- FromClient{User: "mod", Cmd: StartGame{Type: game.TypeWordChain}}
	started := waitFor[GameStartedEvent](t, out)
	if started.Session.Type != game.TypeWordChain || started.Session.Round != 1 {
		t.Fatalf("bad session: %+v", started.Session)
	}

	a.Inbox() <- FromClient{User: "mod", Cmd: StartGame{Type: game.TypeEmojiStory}}
	conflict := waitFor[ErrorEvent](t, out)
	if conflict.Reason != "permission" {
		t.Fatalf("second start should be rejected: %+v", conflict)
	}

	a.Inbox() <- FromClient{User: "mod", Cmd: SubmitGameMove{Value: "apple"}}
	move := waitFor[GameMoveEvent](t, out)
	if move.Session.Leaderboard["mod"] != 2 {
		t.Fatalf("accepted chain word scores 2: %+v", move.Session.Leaderboard)
	}

	a.Inbox() <- FromClient{User: "mod", Cmd: EndGame{}}
	ended := waitFor[GameEndedEvent](t, out)
	if ended.Session.Status != game.StatusCompleted || ended.Session.EndReason != "manual" {
		t.Fatalf("bad end: %+v", ended.Session)
	}
	if ended.EndedBy != "mod" {
		t.Fatalf("endedBy: %s", ended.EndedBy)
	}
}

func TestActor_TimerBroadcasts(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)
	out, _ := joinAs(t, a, "mod", "")

	a.Inbox() <- FromClient{User: "mod", Cmd: StartTimer{}}
	started := waitFor[TimerStartedEvent](t, out)
	if !started.Timer.Running || started.Timer.LastUpdateMs != testNow.UnixMilli() {
		t.Fatalf("bad timer after start: %+v", started.Timer)
	}

	a.Inbox() <- FromClient{User: "mod", Cmd: PauseTimer{}}
	paused := waitFor[TimerPausedEvent](t, out)
	if paused.Timer.Running {
		t.Fatalf("timer should pause: %+v", paused.Timer)
	}

	a.Inbox() <- FromClient{User: "mod", Cmd: ResetTimer{}}
	reset := waitFor[TimerResetEvent](t, out)
	if reset.Timer.Seconds != 0 || reset.Timer.Running {
		t.Fatalf("timer should reset: %+v", reset.Timer)
	}
}

func TestActor_BroadcastOrderMatchesProcessingOrder(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)
	out, _ := joinAs(t, a, "mod", "")

	for _, id := range []string{"A", "B", "C"} {
		a.Inbox() <- FromClient{User: "mod", Cmd: AddTicket{Ticket: Ticket{TicketID: id}}}
	}
	for _, want := range []string{"A", "B", "C"} {
		ev := waitFor[TicketAddedEvent](t, out)
		if ev.Ticket.TicketID != want {
			t.Fatalf("out-of-order broadcast: got %s, want %s", ev.Ticket.TicketID, want)
		}
	}
}

func TestActor_RehydratesFromStoreAfterEviction(t *testing.T) {
	ms := newMemStore()
	a := newTestRoom(t, ms, "R1", nil)
	out, _ := joinAs(t, a, "mod", "")

	a.Inbox() <- FromClient{User: "mod", Cmd: AddTicket{Ticket: Ticket{TicketID: "PROJ-1"}}}
	waitFor[TicketAddedEvent](t, out)
	a.Inbox() <- FromClient{User: "mod", Cmd: NextTicket{}}
	waitFor[NextTicketEvent](t, out)
	a.Inbox() <- Shutdown{}

	// A fresh actor for the same key sees the persisted queue and the
	// active ticket.
	a2 := newActorFor(t, ms, "R1")
	v := viewOf(t, a2)
	if !v.Exists {
		t.Fatalf("room should rehydrate")
	}
	if v.Data.CurrentTicket == nil || v.Data.CurrentTicket.TicketID != "PROJ-1" {
		t.Fatalf("current ticket lost across eviction: %+v", v.Data.CurrentTicket)
	}
	if len(v.Data.Tickets) != 1 || v.Data.Tickets[0].Status != TicketInProgress {
		t.Fatalf("queue lost across eviction: %+v", v.Data.Tickets)
	}
}
