// Package ab3418 implements the Caltrans AB3418 byte protocol used to
// poll a NEMA traffic-signal controller over a serial link and to push
// vehicle/ped/priority soft-calls back to it.
package ab3418

import (
	"errors"
	"fmt"

	"github.com/mmitss/intersection/internal/bytesio"
)

const (
	flagByte byte = 0x7E

	ControlGet byte = 0x33
	ControlSet byte = 0x13

	IPI byte = 0xC0
)

// ErrFrameTooShort is returned when a flag-bounded span is shorter than
// the minimum valid frame.
var ErrFrameTooShort = errors.New("ab3418: frame shorter than 7 bytes")

// ErrFCSMismatch is returned when a frame's trailing FCS16 does not
// match its payload.
var ErrFCSMismatch = errors.New("ab3418: fcs mismatch")

// Frame is one parsed, unstuffed AB3418 frame: address, control, ipi,
// message type and payload, with the FCS already verified (when
// required).
type Frame struct {
	Address  byte
	Control  byte
	MessType byte
	Payload  []byte
}

// EncodeFrame renders f into a byte-stuffed, FCS-terminated, flag-bounded
// wire frame.
func EncodeFrame(f Frame) []byte {
	body := make([]byte, 0, 4+len(f.Payload))
	body = append(body, f.Address, f.Control, IPI, f.MessType)
	body = append(body, f.Payload...)
	fcs := bytesio.FCS16(body)
	body = append(body, fcs...)

	stuffed := bytesio.ByteStuff(body)
	out := make([]byte, 0, len(stuffed)+2)
	out = append(out, flagByte)
	out = append(out, stuffed...)
	out = append(out, flagByte)
	return out
}

// DecodeFrame parses a single flag-bounded, byte-stuffed span (without
// the surrounding flag bytes) into a Frame, verifying FCS when
// fcsRequired is true.
func DecodeFrame(stuffed []byte, fcsRequired bool) (Frame, error) {
	body, err := bytesio.ByteUnstuff(stuffed)
	if err != nil {
		return Frame{}, fmt.Errorf("ab3418: unstuff: %w", err)
	}
	if len(body) < 7 {
		return Frame{}, ErrFrameTooShort
	}
	payload := body[4 : len(body)-2]
	if fcsRequired {
		want := bytesio.FCS16(body[:len(body)-2])
		got := body[len(body)-2:]
		if want[0] != got[0] || want[1] != got[1] {
			return Frame{}, ErrFCSMismatch
		}
	}
	return Frame{
		Address:  body[0],
		Control:  body[1],
		MessType: body[3],
		Payload:  append([]byte(nil), payload...),
	}, nil
}
