package room

// DefaultTimerTargetSec is the countdown length a fresh room starts with.
const DefaultTimerTargetSec = 180

// CalculateSeconds derives the true elapsed seconds from a persisted timer
// record and the wall clock. While the timer runs, Seconds holds the value
// at the last state change and the delta since LastUpdateMs is added on top.
func CalculateSeconds(ts TimerState, nowMs int64) int {
	if !ts.Running {
		return ts.Seconds
	}
	return ts.Seconds + int((nowMs-ts.LastUpdateMs)/1000)
}

// EnsureTimerState fills defaults into a partial record while preserving any
// fields already set. Zero-value records come out as a stopped 3-minute timer.
func EnsureTimerState(ts TimerState) TimerState {
	if ts.TargetDurationSec == 0 {
		ts.TargetDurationSec = DefaultTimerTargetSec
		ts.AutoResetOnVotesReset = true
	}
	return ts
}

func startTimer(ts TimerState, nowMs int64) TimerState {
	ts = EnsureTimerState(ts)
	if ts.Running {
		return ts
	}
	ts.Running = true
	ts.LastUpdateMs = nowMs
	return ts
}

func pauseTimer(ts TimerState, nowMs int64) TimerState {
	ts = EnsureTimerState(ts)
	ts.Seconds = CalculateSeconds(ts, nowMs)
	ts.Running = false
	ts.LastUpdateMs = nowMs
	return ts
}

func resetTimer(ts TimerState, nowMs int64) TimerState {
	ts = EnsureTimerState(ts)
	ts.Running = false
	ts.Seconds = 0
	ts.RoundAnchorSec = 0
	ts.LastUpdateMs = nowMs
	return ts
}
