package ab3418

// Reassembler turns a stream of raw serial bytes into a sequence of
// flag-bounded frames, exposed as a streaming iterator of Frame results.
type Reassembler struct {
	buf         []byte
	fcsRequired func(messType byte) bool
}

// NewReassembler builds a Reassembler. fcsRequired classifies, by
// message type, whether a frame's FCS must validate (poll table entries
// mark this); a nil fcsRequired always requires FCS.
func NewReassembler(fcsRequired func(messType byte) bool) *Reassembler {
	if fcsRequired == nil {
		fcsRequired = func(byte) bool { return true }
	}
	return &Reassembler{fcsRequired: fcsRequired}
}

// Feed appends newly-read serial bytes to the reassembly buffer.
func (r *Reassembler) Feed(b []byte) {
	r.buf = append(r.buf, b...)
}

// Next pops and parses the next complete flag-bounded frame out of the
// buffer, if one is available. ok is false when more bytes are needed.
// Two consecutive flag bytes (an empty span) are silently skipped.
func (r *Reassembler) Next() (frame Frame, err error, ok bool) {
	for {
		start := indexByte(r.buf, flagByte)
		if start < 0 {
			r.buf = nil
			return Frame{}, nil, false
		}
		end := indexByte(r.buf[start+1:], flagByte)
		if end < 0 {
			r.buf = r.buf[start:]
			return Frame{}, nil, false
		}
		end += start + 1
		span := r.buf[start+1 : end]
		r.buf = r.buf[end:] // leave the closing flag as the next frame's opening flag
		if len(span) == 0 {
			continue
		}
		if len(span) < 5 { // unstuffed minimum is 7; a stuffed span can't be shorter than this
			return Frame{}, ErrFrameTooShort, true
		}
		messType := span[3]
		f, decErr := DecodeFrame(span, r.fcsRequired(messType))
		return f, decErr, true
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
