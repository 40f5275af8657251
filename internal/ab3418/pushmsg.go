package ab3418

// Push message types: the controller emits these unsolicited, without
// having been polled.
const (
	MessStatus8e     byte = 0xC8
	MessLongStatus8e byte = 0xCD
	MessRawSpat      byte = 0xCE
)

// RawSpat is the controller's raw per-ring phase/interval snapshot,
// decoded from a 0xCE push frame. Field widths mirror the AB3418
// wire layout: two rings, each carrying a one-hot active-phase byte and
// matching interval/timer bytes.
type RawSpat struct {
	ActivePhase       [2]byte // one bit set per ring for the active phase (1-indexed bit position)
	ActiveInterval    [2]byte
	IntervalTimerDs   [2]byte
	LocalCycleClockDs uint16
	MasterCycleClockDs uint16
	PreemptBitset     byte
	VehCallBitset     byte
	PedCallBitset     byte
	PatternNumber     byte
	CabinetFlash      bool
}

// DecodeRawSpat decodes a 0xCE push frame's payload.
func DecodeRawSpat(payload []byte) (RawSpat, error) {
	if len(payload) < 13 {
		return RawSpat{}, ErrFrameTooShort
	}
	var s RawSpat
	s.ActivePhase = [2]byte{payload[0], payload[1]}
	s.ActiveInterval = [2]byte{payload[2], payload[3]}
	s.IntervalTimerDs = [2]byte{payload[4], payload[5]}
	s.LocalCycleClockDs = uint16(payload[6])<<8 | uint16(payload[7])
	s.MasterCycleClockDs = uint16(payload[8])<<8 | uint16(payload[9])
	s.PreemptBitset = payload[10]
	s.VehCallBitset = payload[11]
	s.PedCallBitset = payload[12]
	if len(payload) > 13 {
		s.PatternNumber = payload[13]
	}
	if len(payload) > 14 {
		s.CabinetFlash = payload[14]&0x01 != 0
	}
	return s, nil
}

// Status8e is a detector presence snapshot, decoded from a 0xC8 push
// frame: a 40-bit (5-byte) detector-active bitset.
type Status8e struct {
	Presence [5]byte
}

// DecodeStatus8e decodes a 0xC8 push frame's payload.
func DecodeStatus8e(payload []byte) (Status8e, error) {
	if len(payload) < 5 {
		return Status8e{}, ErrFrameTooShort
	}
	var s Status8e
	copy(s.Presence[:], payload[:5])
	return s, nil
}

// LongStatus8e is a 16-lane volume+occupancy snapshot, decoded from a
// 0xCD push frame: one (volume uint8, occupancy uint8) pair per lane.
type LongStatus8e struct {
	Volume     [16]byte
	Occupancy  [16]byte
}

// DecodeLongStatus8e decodes a 0xCD push frame's payload.
func DecodeLongStatus8e(payload []byte) (LongStatus8e, error) {
	if len(payload) < 32 {
		return LongStatus8e{}, ErrFrameTooShort
	}
	var s LongStatus8e
	for i := 0; i < 16; i++ {
		s.Volume[i] = payload[2*i]
		s.Occupancy[i] = payload[2*i+1]
	}
	return s, nil
}
