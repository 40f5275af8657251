package timingcard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePlan3 = `PhaseFlags.Permitted 11111111
PhaseFlags.RecallMax 00000000
CoordPlan 3
CycleLength 80
ForceOffFlag 0
GreenFactorOrFO 30 30 10 10 30 30 10 10
SyncPhases 00100010
LagPhases 00000000
OmitPhases 00000000
end_plan
`

func TestParseTimingCardCoordPlan(t *testing.T) {
	card, err := ParseTimingCard(strings.NewReader(samplePlan3))
	require.NoError(t, err)
	require.Len(t, card.CoordPlans, 1)

	plan := card.CoordPlans[0]
	assert.Equal(t, 3, plan.PlanNum)
	assert.Equal(t, uint16(80), plan.CycleLengthS)
	assert.Equal(t, uint8(0b00100010), plan.SyncPhases)
}

func TestDeriveComputesSyncRingAndBarrier(t *testing.T) {
	card, err := ParseTimingCard(strings.NewReader(samplePlan3))
	require.NoError(t, err)
	card.DeriveAll()

	plan := card.PlanByNumber(3)
	require.NotNil(t, plan)
	assert.Equal(t, 2, plan.SyncRing[0])
	assert.Equal(t, 6, plan.SyncRing[1])
	assert.Equal(t, 0, plan.SyncBarrier)
}

func TestDeriveForceOffScenario3(t *testing.T) {
	// Mirrors the literal scenario: plan 3, sync phases 2 and 6, both
	// leading, 800 ds cycle, force-off = 400 ds on phases 2 and 6.
	plan := &CoordPlan{
		PlanNum:      3,
		CycleLengthS: 80,
		ForceOffFlag: true,
		GreenFactorOrFO: [8]int16{-1, 40, -1, -1, -1, 40, -1, -1},
		SyncPhases:   0b00100010,
	}
	flags := PhaseFlags{Permitted: 0b00100010}
	plan.Derive(flags)

	assert.Equal(t, uint16(400), plan.PerPhaseForceOffDs[2])
	assert.Equal(t, uint16(400), plan.PerPhaseForceOffDs[6])
}

func TestGetControlModeClassification(t *testing.T) {
	assert.Equal(t, ModeFlashing, GetControlMode(true, 0, 3))
	assert.Equal(t, ModePreemption, GetControlMode(false, 0x01, 3))
	assert.Equal(t, ModeUnavailable, GetControlMode(false, 0, 0))
	assert.Equal(t, ModeUnavailable, GetControlMode(false, 0, 254))
	assert.Equal(t, ModeRunningFree, GetControlMode(false, 0, 255))
	assert.Equal(t, ModeCoordination, GetControlMode(false, 0, 3))
}
