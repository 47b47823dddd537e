package room

import (
	"encoding/json"
	"math"
	"strconv"
)

// FindClosestOption normalizes a raw numeric estimate onto the room's
// configured scale: the option with the smallest absolute distance wins,
// first-scanned option winning exact ties. With no options configured the
// target is rounded half-up to the nearest integer.
func FindClosestOption(target float64, options []float64) float64 {
	if len(options) == 0 {
		return math.Floor(target + 0.5)
	}
	best := options[0]
	bestDist := math.Abs(target - options[0])
	for _, opt := range options[1:] {
		if d := math.Abs(target - opt); d < bestDist {
			best = opt
			bestDist = d
		}
	}
	return best
}

// submitVote records a vote for the active round. Votes are not accepted
// once the round is revealed.
func (d *Data) submitVote(user, value string, structured json.RawMessage) bool {
	if d.ShowVotes {
		return false
	}
	d.Votes[user] = value
	if len(structured) > 0 {
		d.StructuredVotes[user] = structured
	}
	return true
}

// judgeMetadata describes how a judge score was produced; it is persisted
// and broadcast alongside the score.
type judgeMetadata struct {
	Algorithm string  `json:"algorithm"`
	VoteCount int     `json:"voteCount"`
	Mean      float64 `json:"mean"`
}

// computeJudgeScore averages the numeric votes and snaps the mean onto the
// configured estimate options. Non-numeric votes (coffee cards etc.) are
// skipped; a nil score means no numeric votes were cast.
func (d *Data) computeJudgeScore() (*float64, json.RawMessage) {
	var sum float64
	var n int
	for _, v := range d.Votes {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		sum += f
		n++
	}
	if n == 0 {
		return nil, nil
	}
	mean := sum / float64(n)
	score := FindClosestOption(mean, d.Settings.EstimateOptions)
	meta, _ := json.Marshal(judgeMetadata{
		Algorithm: d.Settings.JudgeAlgorithm,
		VoteCount: n,
		Mean:      mean,
	})
	return &score, meta
}

func (d *Data) clearVotes() {
	d.Votes = map[string]string{}
	d.StructuredVotes = map[string]json.RawMessage{}
	d.ShowVotes = false
	d.JudgeScore = nil
	d.JudgeMetadata = nil
}

// projectedVotes applies the room's privacy setting: anonymized rooms see a
// stable positional label per voter, derived from the voter's index in the
// user list so the same participant keeps the same label all session.
func (d *Data) projectedVotes() map[string]string {
	if !d.Settings.AnonymousVotes {
		out := make(map[string]string, len(d.Votes))
		for k, v := range d.Votes {
			out[k] = v
		}
		return out
	}
	out := make(map[string]string, len(d.Votes))
	for user, v := range d.Votes {
		out[anonymousLabel(d.Users, user)] = v
	}
	return out
}

func anonymousLabel(users []string, user string) string {
	for i, u := range users {
		if u == user {
			return "Anonymous " + strconv.Itoa(i+1)
		}
	}
	// Voter no longer in the user list; still stable per name ordering.
	return "Anonymous 0"
}
