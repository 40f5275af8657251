package main

import (
	"github.com/mmitss/intersection/internal/ab3418"
	"github.com/mmitss/intersection/internal/fanout"
	"github.com/mmitss/intersection/internal/j2735"
	"github.com/mmitss/intersection/internal/predictor"
	"github.com/mmitss/intersection/internal/timingcard"
)

// intervalColor maps the AB3418 push frame's per-ring interval code onto
// a displayed phase color: 2 green, 3 yellow, 4 red, the controller's
// own interval numbering.
func intervalColor(code byte) j2735.MovementPhaseState {
	switch code {
	case 2:
		return j2735.PhaseProtectedMovementAllowed
	case 3:
		return j2735.PhaseProtectedClearance
	default:
		return j2735.PhaseStopAndRemain
	}
}

// pedEventState maps a derived pedestrian display color onto the J2735
// movement-phase-state carried for a pedestrian signal group.
func pedEventState(c timingcard.PedColor) j2735.MovementPhaseState {
	switch c {
	case timingcard.PedWalk:
		return j2735.PhaseProtectedMovementAllowed
	case timingcard.PedFlashDontWalk:
		return j2735.PhaseProtectedClearance
	case timingcard.PedDontWalk, timingcard.PedFlashingRed:
		return j2735.PhaseStopAndRemain
	default:
		return j2735.PhaseDark
	}
}

// activePhases returns the 1-indexed phase numbers with their bit set in
// a ring's one-hot active-phase byte.
func activePhases(ringBit byte) []uint8 {
	var out []uint8
	for p := uint8(1); p <= 8; p++ {
		if ringBit&(1<<(p-1)) != 0 {
			out = append(out, p)
		}
	}
	return out
}

// encodeSpatFromRawSpat bridges the controller's raw AB3418 push
// snapshot into a J2735 SPaT payload: one MovementState per currently
// active vehicular phase, plus one per permitted pedestrian phase
// (signal group phase+8) carrying the ped state buildCntrlStatus
// already derived into status.
func encodeSpatFromRawSpat(intersectionID uint16, rs ab3418.RawSpat, status fanout.CntrlStatus, permittedPed uint8) []byte {
	rec := j2735.SpatRecord{
		IntersectionID: intersectionID,
		HasMinuteOfYr:  false,
		HasDSecond:     true,
		DSecond:        rs.LocalCycleClockDs,
	}
	for ring := 0; ring < 2; ring++ {
		for _, phase := range activePhases(rs.ActivePhase[ring]) {
			rec.Movements = append(rec.Movements, j2735.MovementState{
				SignalGroup: phase,
				EventState:  intervalColor(rs.ActiveInterval[ring]),
				HasTiming:   true,
				Timing: j2735.TimeChangeDetails{
					MinEndTime: uint16(rs.IntervalTimerDs[ring]),
				},
			})
		}
	}
	for phase := 1; phase <= 8; phase++ {
		if !timingcard.HasBit(permittedPed, phase) {
			continue
		}
		ps := status.Phases[phase]
		if ps.Ped == timingcard.PedDark {
			continue
		}
		rec.Movements = append(rec.Movements, j2735.MovementState{
			SignalGroup: uint8(phase) + 8,
			EventState:  pedEventState(ps.Ped),
			HasTiming:   true,
			Timing: j2735.TimeChangeDetails{
				MinEndTime: uint16(ps.PedTime2Next.U),
			},
		})
	}
	payload, err := j2735.EncodeSpatPayload(rec)
	if err != nil {
		return nil
	}
	return payload
}

// phaseStateTracker remembers, per ring, the local-cycle-clock value at
// which the current (phase, interval) pair began. The controller's
// rawSpat push carries a countdown to the end of the current interval
// but never how far into it the phase already is, so that has to be
// reconstructed tick-to-tick the same way the force-off math already
// walks the cycle clock.
type phaseStateTracker struct {
	ringPhase    [2]uint8
	ringInterval [2]byte
	ringOnsetDs  [2]int
}

// observe updates the tracker from a fresh push frame and returns, per
// ring, how many deciseconds the ring has spent in its current (phase,
// interval) pair, wrapping through cycle-clock rollover.
func (t *phaseStateTracker) observe(rs ab3418.RawSpat, cycleLengthDs int) [2]int {
	var into [2]int
	for ring := 0; ring < 2; ring++ {
		phase := ringActivePhase(rs.ActivePhase[ring])
		interval := rs.ActiveInterval[ring]
		if phase != t.ringPhase[ring] || interval != t.ringInterval[ring] {
			t.ringPhase[ring] = phase
			t.ringInterval[ring] = interval
			t.ringOnsetDs[ring] = int(rs.LocalCycleClockDs)
		}
		d := int(rs.LocalCycleClockDs) - t.ringOnsetDs[ring]
		if d < 0 && cycleLengthDs > 0 {
			d += cycleLengthDs
		}
		if d < 0 {
			d = 0
		}
		into[ring] = d
	}
	return into
}

// ringActivePhase returns the single 1-indexed phase set in a ring's
// one-hot active-phase byte, or 0 if none.
func ringActivePhase(ringBit byte) uint8 {
	for p := uint8(1); p <= 8; p++ {
		if ringBit&(1<<(p-1)) != 0 {
			return p
		}
	}
	return 0
}

// buildCntrlStatus derives the priority engine's per-tick controller
// facts from a raw push snapshot and the active coordination plan. Each
// ring's active phase gets a predictor-computed (bound_L, bound_U)
// window instead of the raw countdown echoed on both sides; every other
// permitted phase gets the barrier-walked prediction for when its own
// turn will come; every permitted pedestrian phase gets a derived walk/
// clearance/don't-walk state mirroring its paired vehicle phase.
func buildCntrlStatus(tracker *phaseStateTracker, card *timingcard.TimingCard, rs ab3418.RawSpat) fanout.CntrlStatus {
	s := fanout.CntrlStatus{
		Mode:                     timingcard.GetControlMode(rs.CabinetFlash, rs.PreemptBitset, rs.PatternNumber),
		LocalCycleClockDs:        int(rs.LocalCycleClockDs),
		MaxTime2ChangePhaseExtDs: maxTime2ChangePhaseExtDs,
	}
	for phase := 1; phase <= 8; phase++ {
		s.Phases[phase] = timingcard.PhaseStatus{Color: timingcard.ColorProtectedRed}
	}

	var activePhase [2]uint8
	for ring := 0; ring < 2; ring++ {
		if phases := activePhases(rs.ActivePhase[ring]); len(phases) > 0 {
			activePhase[ring] = phases[0]
		}
	}

	plan := card.PlanByNumber(int(rs.PatternNumber))
	cycleLengthDs := 0
	var concurrency predictor.Concurrency
	if plan != nil {
		cycleLengthDs = int(plan.CycleLengthS) * 10
		s.CycleLengthDs = cycleLengthDs
		s.SyncPhase = [2]uint8{uint8(plan.SyncRing[0]), uint8(plan.SyncRing[1])}
		concurrency = predictor.ClassifyConcurrency(activePhase, plan.SyncRing)
	}

	stateIntoDs := tracker.observe(rs, cycleLengthDs)

	var activeBound [2]timingcard.Bound
	for ring := 0; ring < 2; ring++ {
		phase := activePhase[ring]
		if phase == 0 {
			continue
		}
		color := colorFromInterval(rs.ActiveInterval[ring])
		var bound timingcard.Bound
		if color == timingcard.ColorProtectedGreen {
			gp := buildGreenParams(card, plan, rs, phase, ring, stateIntoDs[ring], concurrency)
			bound = predictor.PredictActiveGreen(gp)
		} else {
			bound = predictor.PredictActiveFixed(predictor.FixedIntervalParams{
				CountdownDs: int(rs.IntervalTimerDs[ring]),
				TimeIntoDs:  stateIntoDs[ring],
			})
		}
		activeBound[ring] = bound
		s.Phases[phase] = timingcard.PhaseStatus{Color: color, Time2Next: bound}
	}

	if plan != nil {
		barrier := activeBarrier(plan, activePhase)
		terminate := timingcard.Bound{
			L: maxOf(activeBound[0].L, activeBound[1].L),
			U: maxOf(activeBound[0].U, activeBound[1].U),
		}
		order := buildFutureOrder(card, plan, activePhase, barrier)
		for phase, bound := range predictor.WalkFuturePhases(order, terminate) {
			if phase < 1 || phase > 8 || uint8(phase) == activePhase[0] || uint8(phase) == activePhase[1] {
				continue
			}
			s.Phases[phase] = timingcard.PhaseStatus{Color: timingcard.ColorProtectedRed, Time2Next: bound}
		}
	}

	for phase := 1; phase <= 8; phase++ {
		ring := timingcard.PhaseRing(phase)
		isActive := activePhase[ring] == uint8(phase)
		ps := s.Phases[phase]
		ps.Ped, ps.PedTime2Next = buildPedStatus(card, uint8(phase), ps.Color, ps.Time2Next, stateIntoDs[ring], isActive)
		s.Phases[phase] = ps
	}

	return s
}

// buildGreenParams assembles the predictor inputs for phase's active
// green interval on ring, from the timing card's configured durations
// and (when a coordination plan is running) the plan's force-off point
// and this phase's concurrency-driven force-off-only status.
func buildGreenParams(card *timingcard.TimingCard, plan *timingcard.CoordPlan, rs ab3418.RawSpat, phase uint8, ring int, stateIntoDs int, concurrency predictor.Concurrency) predictor.GreenParams {
	t := card.Timing[phase-1]
	gp := predictor.GreenParams{
		MinGreenDs:         int(t.MinGreenS),
		MaxExtensionDs:     selectMaxExtension(card.Flags, phase, t),
		WalkDs:             int(t.Walk1Ds),
		WalkClearanceDs:    int(t.WalkClearanceDs),
		RecallMax:          timingcard.HasBit(card.Flags.RecallMax, int(phase)),
		PedRecallOrCall:    timingcard.HasBit(card.Flags.RecallPed, int(phase)) || timingcard.HasBit(rs.PedCallBitset, int(phase)),
		StateTimeIntoDs:    stateIntoDs,
		HasTimeLeft:        true,
		TimeLeftInInterval: int(rs.IntervalTimerDs[ring]),
	}
	if plan != nil {
		gp.Coordination = true
		gp.LocalCycleClockDs = int(rs.LocalCycleClockDs)
		gp.CycleLengthDs = int(plan.CycleLengthS) * 10
		gp.ForceOffDs = int(plan.PerPhaseForceOffDs[phase])
		gp.ForceOffOnly = forceOffOnly(plan, phase, ring, concurrency)
	}
	return gp
}

// selectMaxExtension picks which of the timing card's three configured
// max-extension values applies to phase, per the MaxGreen2/MaxGreen3
// override bitsets.
func selectMaxExtension(flags timingcard.PhaseFlags, phase uint8, t timingcard.PhaseTiming) int {
	switch {
	case timingcard.HasBit(flags.MaxGreen3, int(phase)):
		return int(t.MaxExtension[2])
	case timingcard.HasBit(flags.MaxGreen2, int(phase)):
		return int(t.MaxExtension[1])
	default:
		return int(t.MaxExtension[0])
	}
}

// forceOffOnly reports whether phase, currently active on ring, may
// only terminate on a force-off: true for the plan's sync phase, for
// majorMajor concurrency (both rings on their sync phase), or for the
// minor ring's lag phase while the other ring runs its sync phase.
func forceOffOnly(plan *timingcard.CoordPlan, phase uint8, ring int, concurrency predictor.Concurrency) bool {
	if int(phase) == plan.SyncRing[ring] {
		return true
	}
	if concurrency == predictor.MajorMajor {
		return true
	}
	if concurrency == predictor.MinorMajor {
		barrier := timingcard.PhaseBarrier(int(phase))
		if barrier >= 0 && plan.LeadLag[barrier][ring].Lag == int(phase) {
			return true
		}
	}
	return false
}

// activeBarrier returns which barrier (0 or 1) the currently active
// phases belong to, by matching them against the plan's lead/lag table.
func activeBarrier(plan *timingcard.CoordPlan, activePhase [2]uint8) int {
	for b := 0; b < 2; b++ {
		for ring := 0; ring < 2; ring++ {
			pair := plan.LeadLag[b][ring]
			ph := int(activePhase[ring])
			if ph != 0 && (pair.Lead == ph || pair.Lag == ph) {
				return b
			}
		}
	}
	return 0
}

// buildFutureOrder lays out every phase still to come this cycle, in
// barrier-then-ring-then-lead/lag walk order: first the active barrier's
// own lag phase (when the active phase is that barrier's lead), then
// the other barrier's lead phases, then its lag phases.
func buildFutureOrder(card *timingcard.TimingCard, plan *timingcard.CoordPlan, activePhase [2]uint8, activeBarrierIdx int) [][2]predictor.FuturePhaseInput {
	var order [][2]predictor.FuturePhaseInput

	appendPair := func(ring0Phase, ring1Phase int) {
		var row [2]predictor.FuturePhaseInput
		if ring0Phase != 0 {
			row[0] = futurePhaseInput(card, uint8(ring0Phase))
		}
		if ring1Phase != 0 {
			row[1] = futurePhaseInput(card, uint8(ring1Phase))
		}
		if row[0].Phase != 0 || row[1].Phase != 0 {
			order = append(order, row)
		}
	}

	cur := plan.LeadLag[activeBarrierIdx]
	var lag0, lag1 int
	if int(activePhase[0]) == cur[0].Lead && cur[0].Lag != 0 {
		lag0 = cur[0].Lag
	}
	if int(activePhase[1]) == cur[1].Lead && cur[1].Lag != 0 {
		lag1 = cur[1].Lag
	}
	appendPair(lag0, lag1)

	other := plan.LeadLag[1-activeBarrierIdx]
	appendPair(other[0].Lead, other[1].Lead)
	appendPair(other[0].Lag, other[1].Lag)

	return order
}

// futurePhaseInput builds the predictor's per-phase future-walk input
// from the timing card's configured durations and current call/recall
// state.
func futurePhaseInput(card *timingcard.TimingCard, phase uint8) predictor.FuturePhaseInput {
	t := card.Timing[phase-1]
	gp := predictor.GreenParams{
		MinGreenDs:      int(t.MinGreenS),
		MaxExtensionDs:  selectMaxExtension(card.Flags, phase, t),
		WalkDs:          int(t.Walk1Ds),
		WalkClearanceDs: int(t.WalkClearanceDs),
		RecallMax:       timingcard.HasBit(card.Flags.RecallMax, int(phase)),
		PedRecallOrCall: timingcard.HasBit(card.Flags.RecallPed, int(phase)),
	}
	hasCall := timingcard.HasBit(card.Flags.RecallMin, int(phase)) ||
		timingcard.HasBit(card.Flags.RecallMax, int(phase))
	return predictor.FuturePhaseInput{
		Phase:             int(phase),
		MinGreenDs:        int(t.MinGreenS),
		MaxExtensionDs:    selectMaxExtension(card.Flags, phase, t),
		YellowDs:          int(t.YellowDs) / 10,
		RedClearanceDs:    int(t.RedClearanceDs) / 10,
		HasCallOrRecall:   hasCall,
		GuaranteedGreenDs: gp.GuaranteedGreenDs(),
	}
}

// buildPedStatus derives phase's pedestrian display color and bound
// from its paired vehicle phase's own state: walk/clearance at the
// start of green, steady don't-walk for the rest of green and through
// yellow, and don't-walk pinned to whichever phase's green is next when
// this phase isn't currently serving.
func buildPedStatus(card *timingcard.TimingCard, phase uint8, vehColor timingcard.PhaseColor, vehBound timingcard.Bound, stateIntoDs int, isActive bool) (timingcard.PedColor, timingcard.Bound) {
	if !timingcard.HasBit(card.Flags.PermittedPed, int(phase)) {
		return timingcard.PedDark, timingcard.Bound{}
	}
	t := card.Timing[phase-1]
	walkSpanDs := int(t.Walk1Ds) + int(t.WalkClearanceDs)

	if isActive && vehColor == timingcard.ColorProtectedGreen && stateIntoDs < walkSpanDs {
		remaining := walkSpanDs - stateIntoDs
		bound := predictor.PredictPedestrian(predictor.PedPhaseParams{
			InWalkOrFDW:       true,
			PedIntervalLeftDs: remaining,
		})
		color := timingcard.PedWalk
		if stateIntoDs >= int(t.Walk1Ds) {
			color = timingcard.PedFlashDontWalk
		}
		return color, bound
	}
	if isActive && vehColor == timingcard.ColorProtectedGreen {
		bound := predictor.PredictPedestrian(predictor.PedPhaseParams{
			VehicleIsGreen: true,
			VehicleBounds:  vehBound,
		})
		return timingcard.PedDontWalk, bound
	}
	if isActive && vehColor == timingcard.ColorProtectedYellow {
		bound := predictor.PredictPedestrian(predictor.PedPhaseParams{
			VehicleIsYellowNextRed: true,
			VehicleBounds:          vehBound,
			RedClearanceDs:         int(t.RedClearanceDs),
		})
		return timingcard.PedDontWalk, bound
	}
	bound := predictor.PredictPedestrian(predictor.PedPhaseParams{NextStartBounds: vehBound})
	return timingcard.PedDontWalk, bound
}

func maxOf(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// colorFromInterval maps the same 2/3/4 interval coding as
// intervalColor, onto the timingcard display-color enum instead of the
// J2735 MovementPhaseState enum.
func colorFromInterval(code byte) timingcard.PhaseColor {
	switch code {
	case 2:
		return timingcard.ColorProtectedGreen
	case 3:
		return timingcard.ColorProtectedYellow
	default:
		return timingcard.ColorProtectedRed
	}
}
