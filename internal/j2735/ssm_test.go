package j2735

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSsm() SsmRecord {
	return SsmRecord{
		Second:         12345,
		SequenceNumber: 1,
		IntersectionID: 1000,
		Packages: []SignalStatusPackage{
			{
				InboundOn: LaneOn{IsApproach: false, Lane: 3},
				Status:    PrioritizationGranted,
				Requester: SignalRequesterInfo{VehicleID: 7, RequestID: 7, MsgCount: 1},
				HasETA:    true,
				ETAMinute: 30,
				ETASecond: 670,
			},
		},
	}
}

func TestSsmRoundTrip(t *testing.T) {
	rec := sampleSsm()
	encoded, err := EncodeSsmPayload(rec)
	require.NoError(t, err)

	decoded, err := DecodeSsmPayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestSsmEncodeRejectsEmptyPackageList(t *testing.T) {
	rec := sampleSsm()
	rec.Packages = nil
	_, err := EncodeSsmPayload(rec)
	assert.Error(t, err)
}

func TestSsmDecodeTruncatedPayloadErrors(t *testing.T) {
	rec := sampleSsm()
	encoded, err := EncodeSsmPayload(rec)
	require.NoError(t, err)
	_, err = DecodeSsmPayload(encoded[:2])
	assert.Error(t, err)
}
