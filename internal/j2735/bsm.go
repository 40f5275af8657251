package j2735

import "github.com/mmitss/intersection/internal/j2735/uper"

// Transmission states, per J2735 TransmissionState.
type Transmission uint8

const (
	TransmissionNeutral Transmission = iota
	TransmissionPark
	TransmissionForwardGears
	TransmissionReverseGears
	TransmissionReserved1
	TransmissionUnavailable
)

const transmissionCount = 6

// BrakeState is a 2-bit enumerated value used by every field of BrakeSystemStatus
// other than wheelBrakes.
type BrakeState uint8

const (
	BrakeUnavailable BrakeState = iota
	BrakeOff
	BrakeOn
	BrakeReserved
)

const brakeStateCount = 4

// AccelerationSet4Way carries longitudinal/lateral (0.01 m/s^2), vertical
// (0.02 g) and yaw-rate (0.01 deg/s) acceleration.
type AccelerationSet4Way struct {
	Long int16
	Lat  int16
	Vert int8
	Yaw  int16
}

// PositionalAccuracy (semiMajor/semiMinor in 5cm steps 0..254, 255 unavailable;
// orientation in 0.0054932479 deg units 0..65535, 65535 unavailable).
type PositionalAccuracy struct {
	SemiMajor   uint8
	SemiMinor   uint8
	Orientation uint16
}

// BrakeSystemStatus mirrors J2735's BrakeSystemStatus SEQUENCE.
type BrakeSystemStatus struct {
	WheelBrakes uint8 // 5-bit BIT STRING, right-justified in the low 5 bits
	Traction    BrakeState
	ABS         BrakeState
	SCS         BrakeState
	BrakeBoost  BrakeState
	AuxBrakes   BrakeState
}

// VehicleSize is width/length in centimeters.
type VehicleSize struct {
	Width  uint16 // 0..1023
	Length uint16 // 0..4095
}

// BSMRecord is the decoded/encodable shape of a Basic Safety Message core
// data frame.
type BSMRecord struct {
	MsgCnt       uint8 // 0..127
	ID           uint32
	TimeStampSec uint16 // ms-of-minute, 65535 = unavailable
	Lat          int32  // 1/10 microdegree, 900000001 = unavailable
	Lon          int32  // 1/10 microdegree
	Elev         int16  // decimeters, -4096 = unavailable
	Accuracy     PositionalAccuracy
	Transmission Transmission
	Speed        uint16 // 0.02 m/s units, 8191 = unavailable
	Heading      uint16 // 0.0125 deg units, 28800 = unavailable
	SteeringDeg  int8   // 1.5 deg units, -127 = unavailable
	Accel        AccelerationSet4Way
	Brakes       BrakeSystemStatus
	Size         VehicleSize
}

const (
	bsmLatMin, bsmLatMax       = -900000000, 900000001
	bsmLonMin, bsmLonMax       = -1799999999, 1800000001
	bsmElevMin, bsmElevMax     = -4096, 61439
	bsmSteerMin, bsmSteerMax   = -127, 127
	bsmAccelLongMin            = -2000
	bsmAccelLongMax            = 2001
	bsmAccelVertMin            = -127
	bsmAccelVertMax            = 127
	bsmAccelYawMin             = -32767
	bsmAccelYawMax             = 32767
)

// EncodeBSMPayload encodes rec into the UPER representation of a BSM core
// data frame.
func EncodeBSMPayload(rec BSMRecord) ([]byte, error) {
	w := uper.NewWriter()
	if err := w.AppendConstrainedInt(int64(rec.MsgCnt), 0, 127); err != nil {
		return nil, wrap("msgCnt", err)
	}
	w.AppendOctetString(idToBytes(rec.ID))
	if err := w.AppendConstrainedInt(int64(rec.TimeStampSec), 0, 65535); err != nil {
		return nil, wrap("timeStampSec", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.Lat), bsmLatMin, bsmLatMax); err != nil {
		return nil, wrap("lat", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.Lon), bsmLonMin, bsmLonMax); err != nil {
		return nil, wrap("lon", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.Elev), bsmElevMin, bsmElevMax); err != nil {
		return nil, wrap("elev", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.Accuracy.SemiMajor), 0, 255); err != nil {
		return nil, wrap("accuracy.semiMajor", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.Accuracy.SemiMinor), 0, 255); err != nil {
		return nil, wrap("accuracy.semiMinor", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.Accuracy.Orientation), 0, 65535); err != nil {
		return nil, wrap("accuracy.orientation", err)
	}
	if err := w.AppendEnumerated(int(rec.Transmission), transmissionCount); err != nil {
		return nil, wrap("transmission", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.Speed), 0, 8191); err != nil {
		return nil, wrap("speed", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.Heading), 0, 28800); err != nil {
		return nil, wrap("heading", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.SteeringDeg), bsmSteerMin, bsmSteerMax); err != nil {
		return nil, wrap("steeringAngle", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.Accel.Long), bsmAccelLongMin, bsmAccelLongMax); err != nil {
		return nil, wrap("accel.long", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.Accel.Lat), bsmAccelLongMin, bsmAccelLongMax); err != nil {
		return nil, wrap("accel.lat", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.Accel.Vert), bsmAccelVertMin, bsmAccelVertMax); err != nil {
		return nil, wrap("accel.vert", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.Accel.Yaw), bsmAccelYawMin, bsmAccelYawMax); err != nil {
		return nil, wrap("accel.yaw", err)
	}
	w.AppendBitString(uint64(rec.Brakes.WheelBrakes&0x1F), 5)
	type brakeField struct {
		name string
		v    BrakeState
	}
	for _, f := range []brakeField{
		{"brakes.traction", rec.Brakes.Traction},
		{"brakes.abs", rec.Brakes.ABS},
		{"brakes.scs", rec.Brakes.SCS},
		{"brakes.brakeBoost", rec.Brakes.BrakeBoost},
		{"brakes.auxBrakes", rec.Brakes.AuxBrakes},
	} {
		if err := w.AppendEnumerated(int(f.v), brakeStateCount); err != nil {
			return nil, wrap(f.name, err)
		}
	}
	if err := w.AppendConstrainedInt(int64(rec.Size.Width), 0, 1023); err != nil {
		return nil, wrap("size.width", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.Size.Length), 0, 4095); err != nil {
		return nil, wrap("size.length", err)
	}
	return w.Bytes(), nil
}

// DecodeBSMPayload decodes a UPER-encoded BSM core data frame.
func DecodeBSMPayload(b []byte) (BSMRecord, error) {
	var rec BSMRecord
	r := uper.NewReader(b)

	msgCnt, err := r.DecodeConstrainedInt(0, 127)
	if err != nil {
		return rec, wrap("msgCnt", err)
	}
	rec.MsgCnt = uint8(msgCnt)

	idBytes, err := r.DecodeOctetString(4)
	if err != nil {
		return rec, wrap("id", err)
	}
	rec.ID = bytesToID(idBytes)

	ts, err := r.DecodeConstrainedInt(0, 65535)
	if err != nil {
		return rec, wrap("timeStampSec", err)
	}
	rec.TimeStampSec = uint16(ts)

	lat, err := r.DecodeConstrainedInt(bsmLatMin, bsmLatMax)
	if err != nil {
		return rec, wrap("lat", err)
	}
	rec.Lat = int32(lat)

	lon, err := r.DecodeConstrainedInt(bsmLonMin, bsmLonMax)
	if err != nil {
		return rec, wrap("lon", err)
	}
	rec.Lon = int32(lon)

	elev, err := r.DecodeConstrainedInt(bsmElevMin, bsmElevMax)
	if err != nil {
		return rec, wrap("elev", err)
	}
	rec.Elev = int16(elev)

	sMaj, err := r.DecodeConstrainedInt(0, 255)
	if err != nil {
		return rec, wrap("accuracy.semiMajor", err)
	}
	rec.Accuracy.SemiMajor = uint8(sMaj)
	sMin, err := r.DecodeConstrainedInt(0, 255)
	if err != nil {
		return rec, wrap("accuracy.semiMinor", err)
	}
	rec.Accuracy.SemiMinor = uint8(sMin)
	orient, err := r.DecodeConstrainedInt(0, 65535)
	if err != nil {
		return rec, wrap("accuracy.orientation", err)
	}
	rec.Accuracy.Orientation = uint16(orient)

	trans, err := r.DecodeEnumerated(transmissionCount)
	if err != nil {
		return rec, wrap("transmission", err)
	}
	rec.Transmission = Transmission(trans)

	speed, err := r.DecodeConstrainedInt(0, 8191)
	if err != nil {
		return rec, wrap("speed", err)
	}
	rec.Speed = uint16(speed)

	heading, err := r.DecodeConstrainedInt(0, 28800)
	if err != nil {
		return rec, wrap("heading", err)
	}
	rec.Heading = uint16(heading)

	steer, err := r.DecodeConstrainedInt(bsmSteerMin, bsmSteerMax)
	if err != nil {
		return rec, wrap("steeringAngle", err)
	}
	rec.SteeringDeg = int8(steer)

	accLong, err := r.DecodeConstrainedInt(bsmAccelLongMin, bsmAccelLongMax)
	if err != nil {
		return rec, wrap("accel.long", err)
	}
	rec.Accel.Long = int16(accLong)
	accLat, err := r.DecodeConstrainedInt(bsmAccelLongMin, bsmAccelLongMax)
	if err != nil {
		return rec, wrap("accel.lat", err)
	}
	rec.Accel.Lat = int16(accLat)
	accVert, err := r.DecodeConstrainedInt(bsmAccelVertMin, bsmAccelVertMax)
	if err != nil {
		return rec, wrap("accel.vert", err)
	}
	rec.Accel.Vert = int8(accVert)
	accYaw, err := r.DecodeConstrainedInt(bsmAccelYawMin, bsmAccelYawMax)
	if err != nil {
		return rec, wrap("accel.yaw", err)
	}
	rec.Accel.Yaw = int16(accYaw)

	wheelBits, err := r.DecodeBitString(5)
	if err != nil {
		return rec, wrap("brakes.wheelBrakes", err)
	}
	rec.Brakes.WheelBrakes = uint8(wheelBits)
	for _, dst := range []*BrakeState{
		&rec.Brakes.Traction, &rec.Brakes.ABS, &rec.Brakes.SCS,
		&rec.Brakes.BrakeBoost, &rec.Brakes.AuxBrakes,
	} {
		v, err := r.DecodeEnumerated(brakeStateCount)
		if err != nil {
			return rec, wrap("brakes", err)
		}
		*dst = BrakeState(v)
	}

	width, err := r.DecodeConstrainedInt(0, 1023)
	if err != nil {
		return rec, wrap("size.width", err)
	}
	rec.Size.Width = uint16(width)
	length, err := r.DecodeConstrainedInt(0, 4095)
	if err != nil {
		return rec, wrap("size.length", err)
	}
	rec.Size.Length = uint16(length)

	return rec, nil
}

func idToBytes(id uint32) []byte {
	return []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
}

func bytesToID(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
