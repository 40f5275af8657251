// Package fanout implements the fixed binary headers and dispatch timers
// that move decoded messages between the three cooperating processes —
// controller interface, data manager, aware — over UDP, plus the
// "savari" header used toward the pedestrian cloud peer.
package fanout

import (
	"encoding/binary"
	"fmt"

	"github.com/mmitss/intersection/internal/bytesio"
)

// MsgID identifies one UDP message's payload shape.
type MsgID uint8

const (
	MsgBSM         MsgID = 0x40
	MsgSPAT        MsgID = 0x41
	MsgMAP         MsgID = 0x42
	MsgSRM         MsgID = 0x43
	MsgSSM         MsgID = 0x44
	MsgPSRM        MsgID = 0x45
	MsgCntrlStatus MsgID = 0x50
	MsgPerm        MsgID = 0x51
	MsgSoftcall    MsgID = 0x60
	MsgDetCnt      MsgID = 0x61
	MsgDetPres     MsgID = 0x62
	MsgTraj        MsgID = 0x70
)

// magic identifies the header as this stack's inter-process framing, the
// same role an APCI start byte plays in CS104 framing.
var magic = [3]byte{'M', 'I', 'S'}

const headerLen = 10

// ErrShortHeader is returned when a buffer is too small to hold a header.
var ErrShortHeader = fmt.Errorf("fanout: buffer shorter than the %d-byte header", headerLen)

// ErrBadMagic is returned when a buffer's leading bytes don't match the
// fan-out magic.
var ErrBadMagic = fmt.Errorf("fanout: bad magic")

// Header is the fixed 10-byte preamble on every inter-process UDP
// message: {magic(3), msgid(1), ms_since_midnight(4, BE), length(2, BE)}.
type Header struct {
	ID              MsgID
	MsSinceMidnight uint32
	Length          uint16
}

// Encode writes header h followed by body into a single buffer.
func Encode(h Header, body []byte) []byte {
	h.Length = uint16(len(body))
	buf := make([]byte, headerLen+len(body))
	copy(buf[0:3], magic[:])
	buf[3] = byte(h.ID)
	copy(buf[4:8], bytesio.PackUint32BE(h.MsSinceMidnight))
	copy(buf[8:10], bytesio.PackUint16BE(h.Length))
	copy(buf[headerLen:], body)
	return buf
}

// Decode parses the header and returns it alongside the remaining body
// bytes, truncated to the header's declared length.
func Decode(buf []byte) (Header, []byte, error) {
	if len(buf) < headerLen {
		return Header{}, nil, ErrShortHeader
	}
	if buf[0] != magic[0] || buf[1] != magic[1] || buf[2] != magic[2] {
		return Header{}, nil, ErrBadMagic
	}
	h := Header{
		ID:              MsgID(buf[3]),
		MsSinceMidnight: bytesio.UnpackUint32BE(buf[4:8]),
		Length:          bytesio.UnpackUint16BE(buf[8:10]),
	}
	end := headerLen + int(h.Length)
	if end > len(buf) {
		return h, nil, fmt.Errorf("fanout: declared length %d exceeds buffer", h.Length)
	}
	return h, buf[headerLen:end], nil
}

// savariHeaderLen is the fixed preamble size toward the pedestrian cloud
// peer: {type(1), intersectionId(2, BE), seconds(4), msecs(2), length(4, BE)}.
const savariHeaderLen = 13

// SavariHeader is the header shape the pedestrian cloud service expects,
// distinct from the inter-process Header above.
type SavariHeader struct {
	Type           uint8
	IntersectionID uint16
	Seconds        uint32
	Msecs          uint16
	Length         uint32
}

// EncodeSavari writes a SavariHeader followed by body.
func EncodeSavari(h SavariHeader, body []byte) []byte {
	h.Length = uint32(len(body))
	buf := make([]byte, savariHeaderLen+len(body))
	buf[0] = h.Type
	binary.BigEndian.PutUint16(buf[1:3], h.IntersectionID)
	binary.BigEndian.PutUint32(buf[3:7], h.Seconds)
	binary.BigEndian.PutUint16(buf[7:9], h.Msecs)
	binary.BigEndian.PutUint32(buf[9:13], h.Length)
	copy(buf[savariHeaderLen:], body)
	return buf
}

// DecodeSavari parses a SavariHeader and its body.
func DecodeSavari(buf []byte) (SavariHeader, []byte, error) {
	if len(buf) < savariHeaderLen {
		return SavariHeader{}, nil, ErrShortHeader
	}
	h := SavariHeader{
		Type:           buf[0],
		IntersectionID: binary.BigEndian.Uint16(buf[1:3]),
		Seconds:        binary.BigEndian.Uint32(buf[3:7]),
		Msecs:          binary.BigEndian.Uint16(buf[7:9]),
		Length:         binary.BigEndian.Uint32(buf[9:13]),
	}
	end := savariHeaderLen + int(h.Length)
	if end > len(buf) {
		return h, nil, fmt.Errorf("fanout: savari declared length %d exceeds buffer", h.Length)
	}
	return h, buf[savariHeaderLen:end], nil
}
