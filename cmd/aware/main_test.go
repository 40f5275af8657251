package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmitss/intersection/internal/fanout"
	"github.com/mmitss/intersection/internal/timingcard"
)

func TestDecodeTickInputRoundTripsCntrlStatus(t *testing.T) {
	status := fanout.CntrlStatus{
		Mode:                     timingcard.ModeCoordination,
		LocalCycleClockDs:        123,
		CycleLengthDs:            1200,
		MaxTime2ChangePhaseExtDs: 300,
		SyncPhase:                [2]uint8{2, 6},
	}
	status.Phases[2] = timingcard.PhaseStatus{Color: timingcard.ColorProtectedGreen}

	in, ok := decodeTickInput(fanout.EncodeCntrlStatus(status))
	require.True(t, ok)
	assert.Equal(t, timingcard.ModeCoordination, in.Mode)
	assert.Equal(t, 1200, in.CycleLengthDs)
	assert.Equal(t, [2]uint8{2, 6}, in.SyncPhase)
	assert.Equal(t, timingcard.ColorProtectedGreen, in.Phases[2].Color)
}

func TestDecodeTickInputRejectsShortPayload(t *testing.T) {
	_, ok := decodeTickInput([]byte{1, 2, 3})
	assert.False(t, ok)
}
