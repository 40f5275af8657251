package fanout

import (
	"fmt"

	"github.com/mmitss/intersection/internal/bytesio"
	"github.com/mmitss/intersection/internal/timingcard"
)

// cntrlStatusPhaseLen is the wire width of one phase's encoded status:
// color(1) + minEndTime(2, BE) + maxEndTime(2, BE) + pedColor(1) +
// pedMinEndTime(2, BE) + pedMaxEndTime(2, BE).
const cntrlStatusPhaseLen = 10

// CntrlStatus is the per-tick controller summary tci broadcasts on the
// 0x50 ("cntrlstatus") channel: coarse mode and cycle facts the priority
// engine needs but that don't fit the J2735 SPaT shape.
type CntrlStatus struct {
	Mode                     timingcard.ControlMode
	LocalCycleClockDs        int
	CycleLengthDs            int
	MaxTime2ChangePhaseExtDs int
	SyncPhase                [2]uint8
	Phases                   [9]timingcard.PhaseStatus // indexed 1..8
}

// EncodeCntrlStatus packs a CntrlStatus into its wire form.
func EncodeCntrlStatus(s CntrlStatus) []byte {
	buf := make([]byte, 0, 10+8*cntrlStatusPhaseLen)
	buf = append(buf, byte(s.Mode))
	buf = append(buf, bytesio.PackUint16BE(uint16(s.LocalCycleClockDs))...)
	buf = append(buf, bytesio.PackUint16BE(uint16(s.CycleLengthDs))...)
	buf = append(buf, bytesio.PackUint16BE(uint16(s.MaxTime2ChangePhaseExtDs))...)
	buf = append(buf, s.SyncPhase[0], s.SyncPhase[1])
	for phase := 1; phase <= 8; phase++ {
		p := s.Phases[phase]
		buf = append(buf, byte(p.Color))
		buf = append(buf, bytesio.PackUint16BE(uint16(p.Time2Next.L))...)
		buf = append(buf, bytesio.PackUint16BE(uint16(p.Time2Next.U))...)
		buf = append(buf, byte(p.Ped))
		buf = append(buf, bytesio.PackUint16BE(uint16(p.PedTime2Next.L))...)
		buf = append(buf, bytesio.PackUint16BE(uint16(p.PedTime2Next.U))...)
	}
	return buf
}

// DecodeCntrlStatus parses a wire CntrlStatus payload.
func DecodeCntrlStatus(b []byte) (CntrlStatus, error) {
	const fixedLen = 9
	if len(b) < fixedLen+8*cntrlStatusPhaseLen {
		return CntrlStatus{}, fmt.Errorf("fanout: cntrlstatus payload too short: %d bytes", len(b))
	}
	var s CntrlStatus
	s.Mode = timingcard.ControlMode(b[0])
	s.LocalCycleClockDs = int(bytesio.UnpackUint16BE(b[1:3]))
	s.CycleLengthDs = int(bytesio.UnpackUint16BE(b[3:5]))
	s.MaxTime2ChangePhaseExtDs = int(bytesio.UnpackUint16BE(b[5:7]))
	s.SyncPhase = [2]uint8{b[7], b[8]}
	off := fixedLen
	for phase := 1; phase <= 8; phase++ {
		p := timingcard.PhaseStatus{
			Color: timingcard.PhaseColor(b[off]),
			Time2Next: timingcard.Bound{
				L: int(bytesio.UnpackUint16BE(b[off+1 : off+3])),
				U: int(bytesio.UnpackUint16BE(b[off+3 : off+5])),
			},
			Ped: timingcard.PedColor(b[off+5]),
			PedTime2Next: timingcard.Bound{
				L: int(bytesio.UnpackUint16BE(b[off+6 : off+8])),
				U: int(bytesio.UnpackUint16BE(b[off+8 : off+10])),
			},
		}
		s.Phases[phase] = p
		off += cntrlStatusPhaseLen
	}
	return s, nil
}
