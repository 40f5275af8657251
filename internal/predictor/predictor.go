// Package predictor computes, for each permitted phase, a (bound_L,
// bound_U) decisecond window until its next state transition, driven by
// a freshly parsed rawSPaT frame.
package predictor

import "github.com/mmitss/intersection/internal/timingcard"

// Concurrency classifies how many of a plan's two sync phases are
// currently active, which governs whether a phase's green may only end
// on a force-off.
type Concurrency uint8

const (
	MinorMinor Concurrency = iota
	MinorMajor
	MajorMajor
)

// ClassifyConcurrency inspects which of the plan's sync phases are in
// activePhase.
func ClassifyConcurrency(activePhase [2]uint8, syncRing [2]int) Concurrency {
	count := 0
	for ring := 0; ring < 2; ring++ {
		if syncRing[ring] != 0 && int(activePhase[ring]) == syncRing[ring] {
			count++
		}
	}
	switch count {
	case 2:
		return MajorMajor
	case 1:
		return MinorMajor
	default:
		return MinorMinor
	}
}

// GreenParams bundles the inputs PredictActiveGreen needs for one phase.
type GreenParams struct {
	MinGreenDs        int
	MaxExtensionDs    int
	WalkDs            int
	WalkClearanceDs   int
	RecallMax         bool
	PedRecallOrCall   bool
	StateTimeIntoDs   int
	TimeLeftInInterval int // only meaningful when the controller already reports a countdown
	HasTimeLeft       bool

	Coordination      bool
	LocalCycleClockDs int
	CycleLengthDs     int
	ForceOffDs        int
	ForceOffOnly      bool // sync phase, or the minor lag phase under lead/lag, or majorMajor
}

// MaxGreenDs returns minGreen + the selected max-extension.
func (p GreenParams) MaxGreenDs() int { return p.MinGreenDs*10 + p.MaxExtensionDs*10 }

// GuaranteedGreenDs returns maxGreen when recall is maximum, else the
// larger of (walk+walkClearance) when ped recall/call is active, and
// minGreen.
func (p GreenParams) GuaranteedGreenDs() int {
	if p.RecallMax {
		return p.MaxGreenDs()
	}
	minGreenDs := p.MinGreenDs * 10
	if p.PedRecallOrCall {
		pedDs := p.WalkDs + p.WalkClearanceDs
		if pedDs > minGreenDs {
			return pedDs
		}
	}
	return minGreenDs
}

// Time2ForceOff returns the deciseconds remaining until forceOffDs,
// wrapping through cycle end with a 1-ds grace.
func Time2ForceOff(localCycleClockDs, forceOffDs, cycleLengthDs int) int {
	remaining := forceOffDs - localCycleClockDs
	if remaining < -1 {
		remaining += cycleLengthDs
	}
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// PredictActiveGreen computes the green-phase bound for both
// running-free and coordination modes.
func PredictActiveGreen(p GreenParams) timingcard.Bound {
	maxGreen := p.MaxGreenDs()
	guaranteed := p.GuaranteedGreenDs()

	if !p.Coordination {
		timeLeft := 0
		if p.HasTimeLeft {
			timeLeft = p.TimeLeftInInterval
		}
		l := maxOf(timeLeft, guaranteed-p.StateTimeIntoDs)
		u := maxOf(timeLeft, maxGreen-p.StateTimeIntoDs)
		return clampBound(l, u)
	}

	time2forceoff := Time2ForceOff(p.LocalCycleClockDs, p.ForceOffDs, p.CycleLengthDs)
	time2terminate := time2forceoff
	if !p.ForceOffOnly {
		time2terminate = minOf(maxGreen-p.StateTimeIntoDs, time2forceoff)
	}

	if p.ForceOffOnly {
		return clampBound(time2terminate, time2terminate)
	}
	l := time2terminate
	guaranteedRemaining := guaranteed - p.StateTimeIntoDs
	if l < guaranteedRemaining {
		l = guaranteedRemaining
	}
	return clampBound(l, time2terminate)
}

// FixedIntervalParams bundles the inputs for yellow/red phases, whose
// duration is a fixed, already-counting-down interval.
type FixedIntervalParams struct {
	CountdownDs int
	TimeIntoDs  int
}

// PredictActiveFixed implements the yellow/red bound: bound_L == bound_U
// == max(countdown - timeInto, countdown).
func PredictActiveFixed(p FixedIntervalParams) timingcard.Bound {
	v := maxOf(p.CountdownDs-p.TimeIntoDs, p.CountdownDs)
	return clampBound(v, v)
}

func maxOf(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minOf(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampBound(l, u int) timingcard.Bound {
	if l < 0 {
		l = 0
	}
	if u < l {
		u = l
	}
	return timingcard.Bound{L: l, U: u}
}
