package j2735

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSrm() SrmRecord {
	return SrmRecord{
		Second:         12345,
		HasMsgCount:    true,
		MsgCount:       1,
		IntersectionID: 1000,
		RequestID:      7,
		RequestType:    RequestTypePriorityRequest,
		InBound:        InBoundLane{IsApproach: false, Lane: 3},
		HasETA:         true,
		ETAMinute:      30,
		ETASecond:      670,
		HasDuration:    true,
		Duration:       82,
		Requestor: RequestorDescription{
			VehicleID: 7,
			Type:      RequestorType{Role: 0},
			Position: RequestorPositionVector{
				Position:     Position3D{Lat: 377900000, Lon: -1221500000},
				Heading:      3600,
				Transmission: TransmissionForwardGears,
				Speed:        300,
			},
		},
	}
}

func TestSrmRoundTrip(t *testing.T) {
	rec := sampleSrm()
	encoded, err := EncodeSrmPayload(rec)
	require.NoError(t, err)

	decoded, err := DecodeSrmPayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestSrmRoundTripApproachSelector(t *testing.T) {
	rec := sampleSrm()
	rec.InBound = InBoundLane{IsApproach: true, Approach: 2}
	encoded, err := EncodeSrmPayload(rec)
	require.NoError(t, err)

	decoded, err := DecodeSrmPayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestSrmDecodeTruncatedPayloadErrors(t *testing.T) {
	rec := sampleSrm()
	encoded, err := EncodeSrmPayload(rec)
	require.NoError(t, err)
	_, err = DecodeSrmPayload(encoded[:2])
	assert.Error(t, err)
}
