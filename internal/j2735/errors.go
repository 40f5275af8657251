// Package j2735 encodes and decodes the five SAE J2735 messages MMITSS
// exchanges with the field: BSM, MAP, SPaT, SRM and SSM. Each message gets
// a Record struct plus Encode/Decode functions built on internal/j2735/uper,
// the same way each ASDU type identifier gets its own encode/decode pair.
package j2735

import (
	"fmt"

	"github.com/mmitss/intersection/internal/j2735/uper"
)

// Sentinel "unavailable" values for optional J2735 fields.
const (
	UnavailableTimeStampSec    = 65535
	UnavailableLat             = 900000001
	UnavailableElev            = -4096
	UnavailableSpeed           = 8191
	UnavailableHeading         = 28800
	UnavailableSteeringAngle   = -127
	UnavailableAccelYaw        = 0 // 0.01 deg/s offset-free sentinel handled per-field
)

// ErrDecodeMissingMandatory is returned when a mandatory field cannot be
// read from a truncated or malformed payload.
var ErrDecodeMissingMandatory = uper.ErrDecodeMissingMandatory

// ErrUnexpectedValue describes a decoded field holding a value the decoder
// does not recognize (e.g. an out-of-range CHOICE tag). None of the
// decoders in this package return it: an enumerated index beyond its
// value count is passed through unchecked.
type ErrUnexpectedValue struct{ Field string }

func (e *ErrUnexpectedValue) Error() string {
	return fmt.Sprintf("j2735: unexpected value for field %q", e.Field)
}

// wrap turns a bit-runtime error into a message-codec error carrying the
// message-level field name that was being processed when it occurred.
func wrap(field string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("j2735: field %s: %w", field, err)
}
