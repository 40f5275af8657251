package j2735

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSpat() SpatRecord {
	return SpatRecord{
		IntersectionID: 1217,
		Revision:       5,
		Status:         0,
		HasDSecond:     true,
		DSecond:        12345,
		Movements: []MovementState{
			{
				SignalGroup: 2,
				EventState:  PhaseProtectedMovementAllowed,
				HasTiming:   true,
				Timing: TimeChangeDetails{
					MinEndTime: 600,
					HasMaxEnd:  true,
					MaxEndTime: 900,
				},
			},
			{
				SignalGroup: 6,
				EventState:  PhaseProtectedMovementAllowed,
			},
			{
				SignalGroup: 4,
				EventState:  PhaseStopAndRemain,
			},
		},
	}
}

func TestSpatRoundTrip(t *testing.T) {
	rec := sampleSpat()
	encoded, err := EncodeSpatPayload(rec)
	require.NoError(t, err)

	decoded, err := DecodeSpatPayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestSpatEncodeRejectsEmptyMovementList(t *testing.T) {
	rec := sampleSpat()
	rec.Movements = nil
	_, err := EncodeSpatPayload(rec)
	assert.Error(t, err)
}

func TestSpatDecodeTruncatedPayloadErrors(t *testing.T) {
	rec := sampleSpat()
	encoded, err := EncodeSpatPayload(rec)
	require.NoError(t, err)
	_, err = DecodeSpatPayload(encoded[:1])
	assert.Error(t, err)
}
