package j2735

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBSM() BSMRecord {
	return BSMRecord{
		MsgCnt:       0,
		ID:           0x00000042,
		TimeStampSec: 1000,
		Lat:          377900000,
		Lon:          -1221500000,
		Elev:         1200,
		Accuracy:     PositionalAccuracy{SemiMajor: 31, SemiMinor: 31, Orientation: 65535},
		Transmission: TransmissionForwardGears,
		Speed:        500,
		Heading:      7200,
		SteeringDeg:  0,
		Accel:        AccelerationSet4Way{Long: 0, Lat: 0, Vert: 0, Yaw: 0},
		Brakes: BrakeSystemStatus{
			WheelBrakes: 0b10000,
			Traction:    BrakeUnavailable,
			ABS:         BrakeUnavailable,
			SCS:         BrakeUnavailable,
			BrakeBoost:  BrakeUnavailable,
			AuxBrakes:   BrakeUnavailable,
		},
		Size: VehicleSize{Width: 190, Length: 500},
	}
}

func TestBSMRoundTrip(t *testing.T) {
	rec := sampleBSM()
	encoded, err := EncodeBSMPayload(rec)
	require.NoError(t, err)

	decoded, err := DecodeBSMPayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestBSMEncodeIDPrefixBytes(t *testing.T) {
	rec := sampleBSM()
	encoded, err := EncodeBSMPayload(rec)
	require.NoError(t, err)
	// msgCnt (1 byte, value 0) followed by the 4-byte big-endian TemporaryID.
	require.GreaterOrEqual(t, len(encoded), 5)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x42}, encoded[:5])
}

func TestBSMRoundTripSteeringUnavailable(t *testing.T) {
	rec := sampleBSM()
	rec.SteeringDeg = -127 // the documented "unavailable" sentinel
	encoded, err := EncodeBSMPayload(rec)
	require.NoError(t, err)

	decoded, err := DecodeBSMPayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestBSMEncodeRejectsOutOfRangeLat(t *testing.T) {
	rec := sampleBSM()
	rec.Lat = bsmLatMax + 1
	_, err := EncodeBSMPayload(rec)
	assert.Error(t, err)
}

func TestBSMDecodeTruncatedPayloadErrors(t *testing.T) {
	rec := sampleBSM()
	encoded, err := EncodeBSMPayload(rec)
	require.NoError(t, err)
	_, err = DecodeBSMPayload(encoded[:3])
	assert.Error(t, err)
}
