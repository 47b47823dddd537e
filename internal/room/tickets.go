package room

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const autoKeyPrefix = "INTERNAL-"

// queueView is the ordered queue snapshot broadcast to clients:
// non-completed tickets by ordinal, completed ones trailing by completion
// time.
func queueView(tickets []Ticket) []Ticket {
	out := append([]Ticket(nil), tickets...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Status == TicketCompleted) != (b.Status == TicketCompleted) {
			return b.Status == TicketCompleted
		}
		if a.Status == TicketCompleted {
			ai, bi := a.CompletedAt, b.CompletedAt
			if ai != nil && bi != nil && !ai.Equal(*bi) {
				return ai.Before(*bi)
			}
			return a.ID < b.ID
		}
		return a.Ordinal < b.Ordinal
	})
	return out
}

func maxOrdinal(tickets []Ticket) int {
	max := 0
	for _, t := range tickets {
		if t.Ordinal > max {
			max = t.Ordinal
		}
	}
	return max
}

// highestAutoSeq scans generated "INTERNAL-n" keys for the largest n.
func highestAutoSeq(tickets []Ticket) int {
	max := 0
	for _, t := range tickets {
		rest, ok := strings.CutPrefix(t.TicketID, autoKeyPrefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > max {
			max = n
		}
	}
	return max
}

// lowestPendingIndex finds the pending ticket with the smallest ordinal,
// or -1.
func lowestPendingIndex(tickets []Ticket) int {
	best := -1
	for i, t := range tickets {
		if t.Status != TicketPending {
			continue
		}
		if best == -1 || t.Ordinal < tickets[best].Ordinal {
			best = i
		}
	}
	return best
}

// ordinalOwnerIndex finds the non-completed ticket (other than excludeID)
// already holding the given ordinal, or -1.
func ordinalOwnerIndex(tickets []Ticket, ordinal int, excludeID int64) int {
	for i, t := range tickets {
		if t.ID != excludeID && t.Status != TicketCompleted && t.Ordinal == ordinal {
			return i
		}
	}
	return -1
}

func applyTicketUpdate(t *Ticket, upd TicketUpdate) {
	if upd.TicketID != nil {
		t.TicketID = *upd.TicketID
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.Ordinal != nil {
		t.Ordinal = *upd.Ordinal
	}
	if upd.Outcome != nil {
		t.Outcome = *upd.Outcome
	}
}

// refreshCurrent re-syncs the CurrentTicket copy after a queue mutation.
func (d *Data) refreshCurrent() {
	if d.CurrentTicket == nil {
		return
	}
	for i := range d.Tickets {
		if d.Tickets[i].ID == d.CurrentTicket.ID {
			cp := d.Tickets[i]
			d.CurrentTicket = &cp
			return
		}
	}
	d.CurrentTicket = nil
}

func (a *Actor) handleAddTicket(user string, t Ticket) {
	if !a.canManageQueue(user) {
		return
	}
	d := a.data
	now := a.now()

	if t.TicketID == "" {
		key, err := a.store.NextTicketKey(a.ctx, d.Key, t.ExternalService)
		if err != nil {
			a.log.Error("auto ticket key", zap.Error(err))
			return
		}
		t.TicketID = key
	}
	if d.ticketByID(t.TicketID) != nil {
		a.broadcast(ErrorEvent{Error: "ticket " + t.TicketID + " already exists", Reason: "conflict"})
		return
	}
	if t.Ordinal <= 0 {
		t.Ordinal = maxOrdinal(d.Tickets) + 1
	}
	if t.Status == "" {
		t.Status = TicketPending
	}
	if t.ExternalService == "" {
		t.ExternalService = ServiceNone
	}
	t.CreatedAt = now

	if err := a.store.InsertTicket(a.ctx, d.Key, &t); err != nil {
		a.log.Error("insert ticket", zap.Error(err))
		return
	}
	d.Tickets = append(d.Tickets, t)
	a.broadcast(TicketAddedEvent{Ticket: t, Queue: queueView(d.Tickets)})
}

func (a *Actor) handleUpdateTicket(user, ticketID string, upd TicketUpdate) {
	if !a.canManageQueue(user) {
		return
	}
	d := a.data
	t := d.ticketByID(ticketID)
	if t == nil {
		return
	}

	if upd.Status != nil && *upd.Status != t.Status {
		// in_progress and completed are assigned by the promotion and
		// completion paths only; at most one ticket may be in progress and
		// it is always the current one.
		if *upd.Status == TicketInProgress || *upd.Status == TicketCompleted {
			a.broadcast(ErrorEvent{Error: "status " + string(*upd.Status) + " cannot be set directly", Reason: "conflict"})
			return
		}
		// The active ticket's status only changes through queue
		// transitions; like a delete attempt, a mistimed edit is a no-op.
		if d.CurrentTicket != nil && d.CurrentTicket.ID == t.ID {
			return
		}
	}

	if upd.TicketID != nil && *upd.TicketID != t.TicketID {
		if other := d.ticketByID(*upd.TicketID); other != nil {
			a.broadcast(ErrorEvent{Error: "ticket " + *upd.TicketID + " already exists", Reason: "conflict"})
			return
		}
	}

	changed := []*Ticket{t}
	if upd.Ordinal != nil && *upd.Ordinal != t.Ordinal {
		if j := ordinalOwnerIndex(d.Tickets, *upd.Ordinal, t.ID); j >= 0 {
			// Swap rather than collide: the other ticket takes this
			// ticket's old ordinal.
			d.Tickets[j].Ordinal = t.Ordinal
			changed = append(changed, &d.Tickets[j])
		}
	}
	applyTicketUpdate(t, upd)

	save := make([]Ticket, len(changed))
	for i, c := range changed {
		save[i] = *c
	}
	if err := a.store.SaveTickets(a.ctx, d.Key, save...); err != nil {
		a.log.Error("update ticket", zap.Error(err))
		return
	}
	d.refreshCurrent()
	a.broadcast(TicketUpdatedEvent{Ticket: *t, Queue: queueView(d.Tickets)})
}

func (a *Actor) handleDeleteTicket(user, ticketID string) {
	if !a.canManageQueue(user) {
		return
	}
	d := a.data
	t := d.ticketByID(ticketID)
	if t == nil {
		return
	}
	// The active ticket is not deletable; the UI never offers it, so a
	// mistimed click is a no-op rather than an error.
	if d.CurrentTicket != nil && d.CurrentTicket.ID == t.ID {
		return
	}
	if err := a.store.DeleteTicket(a.ctx, d.Key, t.ID); err != nil {
		a.log.Error("delete ticket", zap.Error(err))
		return
	}
	for i := range d.Tickets {
		if d.Tickets[i].ID == t.ID {
			d.Tickets = append(d.Tickets[:i], d.Tickets[i+1:]...)
			break
		}
	}
	a.broadcast(TicketDeletedEvent{TicketID: ticketID, Queue: queueView(d.Tickets)})
}

func (a *Actor) handleNextTicket(user string) {
	if !a.canManageQueue(user) {
		return
	}
	d := a.data
	now := a.now()

	// Snapshot the outgoing round before anything mutates, so statistics
	// see the pre-transition vote set.
	a.flushRound(now)

	if d.CurrentTicket != nil && d.CurrentTicket.Status == TicketInProgress {
		if !a.completeInMemory(d.CurrentTicket.ID, "", now) {
			return
		}
	}

	var promoted *Ticket
	if i := lowestPendingIndex(d.Tickets); i >= 0 {
		d.Tickets[i].Status = TicketInProgress
		if err := a.store.SaveTickets(a.ctx, d.Key, d.Tickets[i]); err != nil {
			a.log.Error("promote ticket", zap.Error(err))
			return
		}
		cp := d.Tickets[i]
		promoted = &cp
	} else {
		t := Ticket{
			TicketID:        autoKeyPrefix + strconv.Itoa(highestAutoSeq(d.Tickets)+1),
			Title:           "",
			Status:          TicketInProgress,
			Ordinal:         maxOrdinal(d.Tickets) + 1,
			CreatedAt:       now,
			ExternalService: ServiceNone,
		}
		if err := a.store.InsertTicket(a.ctx, d.Key, &t); err != nil {
			a.log.Error("synthesize ticket", zap.Error(err))
			return
		}
		d.Tickets = append(d.Tickets, t)
		promoted = &t
	}
	d.CurrentTicket = promoted

	a.advanceRound(now)
	a.broadcast(NextTicketEvent{Ticket: promoted, Queue: queueView(d.Tickets)})
}

func (a *Actor) handleCompleteTicket(user, outcome string) {
	if !a.canManageQueue(user) {
		return
	}
	d := a.data
	if d.CurrentTicket == nil {
		return
	}
	now := a.now()
	completedID := d.CurrentTicket.ID

	a.flushRound(now)
	if !a.completeInMemory(completedID, outcome, now) {
		return
	}
	var completed Ticket
	for _, t := range d.Tickets {
		if t.ID == completedID {
			completed = t
			break
		}
	}

	// Promote the next pending ticket if one exists; an empty queue leaves
	// the room without a current ticket (no auto-synthesis here).
	d.CurrentTicket = nil
	if i := lowestPendingIndex(d.Tickets); i >= 0 {
		d.Tickets[i].Status = TicketInProgress
		if err := a.store.SaveTickets(a.ctx, d.Key, d.Tickets[i]); err != nil {
			a.log.Error("promote ticket", zap.Error(err))
			return
		}
		cp := d.Tickets[i]
		d.CurrentTicket = &cp
	}

	a.advanceRound(now)
	a.broadcast(TicketCompletedEvent{Ticket: completed, Queue: queueView(d.Tickets)})
}

// completeInMemory marks a ticket completed and persists it.
func (a *Actor) completeInMemory(id int64, outcome string, now time.Time) bool {
	d := a.data
	for i := range d.Tickets {
		if d.Tickets[i].ID != id {
			continue
		}
		d.Tickets[i].Status = TicketCompleted
		d.Tickets[i].CompletedAt = &now
		if outcome != "" {
			d.Tickets[i].Outcome = outcome
		}
		if err := a.store.SaveTickets(a.ctx, d.Key, d.Tickets[i]); err != nil {
			a.log.Error("complete ticket", zap.Error(err))
			return false
		}
		return true
	}
	return false
}

// flushRound records the outgoing round's votes durably and hands the
// privacy-filtered summary to the stats sink before the queue advances.
func (a *Actor) flushRound(now time.Time) {
	d := a.data
	if d.CurrentTicket == nil || len(d.Votes) == 0 {
		return
	}
	if err := a.store.RecordVoteHistory(a.ctx, d.Key, d.CurrentTicket.ID, d.Votes, d.StructuredVotes, now); err != nil {
		a.log.Error("record vote history", zap.Error(err))
	}

	cp := *d.CurrentTicket
	summary := RoundSummary{
		RoomKey:     d.Key,
		Ticket:      &cp,
		Votes:       d.projectedVotes(),
		JudgeScore:  d.JudgeScore,
		CompletedAt: now,
	}
	go a.stats.RoundCompleted(a.bgCtx, summary)

	if cp.ExternalService != ServiceNone && d.JudgeScore != nil {
		score := *d.JudgeScore
		go func() {
			if err := a.tracker.PushEstimate(a.bgCtx, summary.RoomKey, cp, score); err != nil {
				a.log.Warn("push estimate", zap.String("ticket", cp.TicketID), zap.Error(err))
			}
		}()
	}
}

// advanceRound clears the vote state for the incoming ticket (unless the
// room preserves votes across advances) and persists the meta row.
func (a *Actor) advanceRound(now time.Time) {
	d := a.data
	if !d.Settings.PreserveVotesOnAdvance {
		if err := a.store.ClearLiveVotes(a.ctx, d.Key); err != nil {
			a.log.Error("clear live votes", zap.Error(err))
		}
		d.clearVotes()
	}
	if err := a.store.SaveMeta(a.ctx, d); err != nil {
		a.log.Error("save meta", zap.Error(err))
	}
}
