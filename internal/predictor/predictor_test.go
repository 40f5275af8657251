package predictor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTime2ForceOffScenario3(t *testing.T) {
	// local_cycle_clock=250ds, force_off=400ds -> 150ds remaining.
	assert.Equal(t, 150, Time2ForceOff(250, 400, 800))
}

func TestTime2ForceOffWrapsWithGrace(t *testing.T) {
	// Force-off just behind the clock should wrap through cycle end,
	// not report a negative remaining time.
	assert.Equal(t, 790, Time2ForceOff(10, 0, 800))
}

func TestPredictActiveGreenForceOffOnlyScenario3(t *testing.T) {
	b := PredictActiveGreen(GreenParams{
		MinGreenDs:        0,
		MaxExtensionDs:    0,
		Coordination:      true,
		LocalCycleClockDs: 250,
		CycleLengthDs:     800,
		ForceOffDs:        400,
		ForceOffOnly:      true,
	})
	assert.Equal(t, 150, b.L)
	assert.Equal(t, 150, b.U)
}

func TestPredictActiveGreenRecallMaxWhileGreen(t *testing.T) {
	b := PredictActiveGreen(GreenParams{
		MinGreenDs:      2, // 20 ds
		MaxExtensionDs:  8, // 80 ds -> maxGreen=100ds
		RecallMax:       true,
		StateTimeIntoDs: 30,
		HasTimeLeft:     false,
	})
	assert.Equal(t, b.L, b.U)
	assert.Equal(t, 70, b.L)
}

func TestPredictActiveGreenBoundsAreOrdered(t *testing.T) {
	for _, tc := range []GreenParams{
		{MinGreenDs: 5, MaxExtensionDs: 10, StateTimeIntoDs: 5},
		{MinGreenDs: 5, MaxExtensionDs: 10, Coordination: true, LocalCycleClockDs: 40, CycleLengthDs: 800, ForceOffDs: 100},
	} {
		b := PredictActiveGreen(tc)
		assert.LessOrEqual(t, 0, b.L)
		assert.LessOrEqual(t, b.L, b.U)
	}
}

func TestPredictActiveFixedEqualBounds(t *testing.T) {
	b := PredictActiveFixed(FixedIntervalParams{CountdownDs: 30, TimeIntoDs: 10})
	assert.Equal(t, b.L, b.U)
	assert.Equal(t, 30, b.L) // max(30-10, 30) == 30
}

func TestClassifyConcurrency(t *testing.T) {
	syncRing := [2]int{2, 6}
	assert.Equal(t, MajorMajor, ClassifyConcurrency([2]uint8{2, 6}, syncRing))
	assert.Equal(t, MinorMajor, ClassifyConcurrency([2]uint8{1, 6}, syncRing))
	assert.Equal(t, MinorMinor, ClassifyConcurrency([2]uint8{1, 5}, syncRing))
}

func TestPredictPedestrianWalkPhase(t *testing.T) {
	b := PredictPedestrian(PedPhaseParams{InWalkOrFDW: true, PedIntervalLeftDs: 42})
	assert.Equal(t, 42, b.L)
	assert.Equal(t, 42, b.U)
}
