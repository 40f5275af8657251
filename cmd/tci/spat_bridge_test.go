package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmitss/intersection/internal/ab3418"
	"github.com/mmitss/intersection/internal/j2735"
	"github.com/mmitss/intersection/internal/timingcard"
)

func TestIntervalColor(t *testing.T) {
	assert.Equal(t, j2735.PhaseProtectedMovementAllowed, intervalColor(2))
	assert.Equal(t, j2735.PhaseProtectedClearance, intervalColor(3))
	assert.Equal(t, j2735.PhaseStopAndRemain, intervalColor(4))
	assert.Equal(t, j2735.PhaseStopAndRemain, intervalColor(0))
}

func TestColorFromInterval(t *testing.T) {
	assert.Equal(t, timingcard.ColorProtectedGreen, colorFromInterval(2))
	assert.Equal(t, timingcard.ColorProtectedYellow, colorFromInterval(3))
	assert.Equal(t, timingcard.ColorProtectedRed, colorFromInterval(4))
	assert.Equal(t, timingcard.ColorProtectedRed, colorFromInterval(9))
}

func TestActivePhases(t *testing.T) {
	assert.Equal(t, []uint8{1, 4}, activePhases(0x09)) // bits 0 and 3
	assert.Nil(t, activePhases(0))
	assert.Equal(t, []uint8{8}, activePhases(0x80))
}

func testCard() *timingcard.TimingCard {
	card := &timingcard.TimingCard{
		CoordPlans: []timingcard.CoordPlan{
			{PlanNum: 3, CycleLengthS: 80, SyncRing: [2]int{2, 6}},
		},
	}
	return card
}

func TestEncodeSpatFromRawSpatCoversActivePhasesAndPed(t *testing.T) {
	card := testCard()
	card.Flags.PermittedPed = 0x02 // phase 2
	card.Timing[1] = timingcard.PhaseTiming{Walk1Ds: 70, WalkClearanceDs: 110}
	rs := ab3418.RawSpat{
		ActivePhase:     [2]byte{0x02, 0x20}, // ring1 phase 2, ring2 phase 6
		ActiveInterval:  [2]byte{2, 3},
		IntervalTimerDs: [2]byte{150, 40},
	}
	rs.LocalCycleClockDs = 123

	tracker := &phaseStateTracker{}
	status := buildCntrlStatus(tracker, card, rs)
	payload := encodeSpatFromRawSpat(7001, rs, status, card.Flags.PermittedPed)
	require.NotNil(t, payload)

	rec, err := j2735.DecodeSpatPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, uint16(7001), rec.IntersectionID)

	byGroup := map[uint8]j2735.MovementState{}
	for _, m := range rec.Movements {
		byGroup[m.SignalGroup] = m
	}
	require.Contains(t, byGroup, uint8(2))
	require.Contains(t, byGroup, uint8(6))
	assert.Equal(t, j2735.PhaseProtectedMovementAllowed, byGroup[2].EventState)
	assert.Equal(t, j2735.PhaseProtectedClearance, byGroup[6].EventState)

	// Phase 2 is permitted for pedestrians and currently green with no
	// elapsed time into the interval, so it carries a walk movement on
	// signal group 10 (phase 2 + 8).
	require.Contains(t, byGroup, uint8(10))
	assert.Equal(t, j2735.PhaseProtectedMovementAllowed, byGroup[10].EventState)
	assert.NotContains(t, byGroup, uint8(14)) // phase 6 has no ped permission
}

func TestBuildCntrlStatusActivePhasesUsePredictor(t *testing.T) {
	card := testCard()
	rs := ab3418.RawSpat{
		ActivePhase:     [2]byte{0x02, 0x20},
		ActiveInterval:  [2]byte{2, 3},
		IntervalTimerDs: [2]byte{150, 40},
		PatternNumber:   3,
	}

	tracker := &phaseStateTracker{}
	s := buildCntrlStatus(tracker, card, rs)

	assert.Equal(t, timingcard.ModeCoordination, s.Mode)
	assert.Equal(t, 800, s.CycleLengthDs)
	assert.Equal(t, [2]uint8{2, 6}, s.SyncPhase)
	assert.Equal(t, timingcard.ColorProtectedGreen, s.Phases[2].Color)
	assert.Equal(t, timingcard.ColorProtectedYellow, s.Phases[6].Color)
	assert.Equal(t, timingcard.ColorProtectedRed, s.Phases[1].Color)
	assert.Equal(t, timingcard.ColorProtectedRed, s.Phases[8].Color)
	// Phase 6's yellow bound comes from the fixed-interval predictor, not
	// a bare copy of the raw countdown left on both L and U by accident:
	// it still lands on L==U (yellow is a fixed duration) but by way of
	// PredictActiveFixed.
	assert.Equal(t, s.Phases[6].Time2Next.L, s.Phases[6].Time2Next.U)
	assert.Equal(t, 40, s.Phases[6].Time2Next.L)
}

func TestBuildCntrlStatusUnknownPatternLeavesCycleFactsZero(t *testing.T) {
	card := &timingcard.TimingCard{}
	rs := ab3418.RawSpat{PatternNumber: 255}

	tracker := &phaseStateTracker{}
	s := buildCntrlStatus(tracker, card, rs)

	assert.Equal(t, timingcard.ModeRunningFree, s.Mode)
	assert.Equal(t, 0, s.CycleLengthDs)
	assert.Equal(t, [2]uint8{0, 0}, s.SyncPhase)
}

func TestBuildCntrlStatusFreeRunningGreenHasNonZeroExtensionWindow(t *testing.T) {
	// No coordination plan matches pattern 255, so the active phase's bound
	// comes from the actuated-mode branch of PredictActiveGreen: a window
	// between the guaranteed minimum and the configured max green, not a
	// bare echo of the controller's own countdown on both ends.
	card := &timingcard.TimingCard{}
	card.Timing[1] = timingcard.PhaseTiming{MinGreenS: 5, MaxExtension: [3]uint8{10, 0, 0}}
	rs := ab3418.RawSpat{
		ActivePhase:     [2]byte{0x02, 0},
		ActiveInterval:  [2]byte{2, 0},
		IntervalTimerDs: [2]byte{10, 0},
		PatternNumber:   255,
	}

	tracker := &phaseStateTracker{}
	s := buildCntrlStatus(tracker, card, rs)

	assert.Equal(t, timingcard.ModeRunningFree, s.Mode)
	assert.Equal(t, 50, s.Phases[2].Time2Next.L)
	assert.Equal(t, 150, s.Phases[2].Time2Next.U)
	assert.NotEqual(t, s.Phases[2].Time2Next.L, s.Phases[2].Time2Next.U)
}

func TestPhaseStateTrackerTracksElapsedTimeSincePhaseChange(t *testing.T) {
	tracker := &phaseStateTracker{}

	rs := ab3418.RawSpat{ActivePhase: [2]byte{0x02, 0x20}, ActiveInterval: [2]byte{2, 2}}
	rs.LocalCycleClockDs = 100
	into := tracker.observe(rs, 800)
	assert.Equal(t, [2]int{0, 0}, into)

	rs.LocalCycleClockDs = 130
	into = tracker.observe(rs, 800)
	assert.Equal(t, [2]int{30, 30}, into)

	// A new interval on ring 0 resets its elapsed time but leaves ring 1
	// tracking its own unchanged phase/interval pair.
	rs.ActiveInterval[0] = 3
	rs.LocalCycleClockDs = 140
	into = tracker.observe(rs, 800)
	assert.Equal(t, [2]int{0, 40}, into)
}
