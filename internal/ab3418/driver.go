package ab3418

import "time"

// Driver walks a PollEntry table, emitting outbound poll frames at a
// bounded rate and matching inbound responses back to table rows. It
// holds no socket/serial handle itself — callers pump bytes through a
// Reassembler and hand decoded Frames to HandleResponse, and send
// whatever Step returns.
type Driver struct {
	table      []PollEntry
	address    byte
	addressSet bool

	lastEmit   time.Time
	attempts   []int
	cursor     int
	pass       int

	fallenBack bool
}

// NewDriver builds a Driver over table. The address byte is unknown
// until the first inbound SPaT frame arrives.
func NewDriver(table []PollEntry) *Driver {
	return &Driver{table: table, attempts: make([]int, len(table))}
}

// ObserveAddress latches the controller's address byte, discovered from
// the first inbound frame.
func (d *Driver) ObserveAddress(addr byte) {
	if !d.addressSet {
		d.address = addr
		d.addressSet = true
	}
}

// FCSRequired reports whether messType's table entry demands a valid
// FCS, for use as a Reassembler's classifier. Push message types (not in
// the poll table) always require FCS.
func (d *Driver) FCSRequired(messType byte) bool {
	for i := range d.table {
		if d.table[i].ExpectResponse == messType {
			return d.table[i].FCSRequired
		}
	}
	return true
}

// Step returns the next poll frame to emit, if the rate limit and table
// walk allow one at time now. ok is false when nothing should be sent.
func (d *Driver) Step(now time.Time) (frame []byte, ok bool) {
	if !d.addressSet || d.fallenBack {
		return nil, false
	}
	if !d.lastEmit.IsZero() && now.Sub(d.lastEmit) < minPollIntervalPerEntry {
		return nil, false
	}
	for i := 0; i < len(d.table); i++ {
		idx := (d.cursor + i) % len(d.table)
		e := &d.table[idx]
		if e.Returned {
			continue
		}
		if d.attempts[idx] >= maxAttemptsPerEntry {
			continue
		}
		d.cursor = (idx + 1) % len(d.table)
		d.attempts[idx]++
		d.lastEmit = now
		f := Frame{Address: d.address, Control: e.Control, MessType: e.MessType, Payload: []byte{e.Data1, e.Data2, e.Data3}}
		return EncodeFrame(f), true
	}
	d.endPassIfExhausted()
	return nil, false
}

// endPassIfExhausted auto-marks every non-required, un-returned entry as
// returned once a full cycle ends, allowing a bounded second pass over
// the still-open required entries.
func (d *Driver) endPassIfExhausted() {
	anyOpenRequired := false
	for i := range d.table {
		if !d.table[i].Returned {
			if d.table[i].Required {
				anyOpenRequired = true
				d.attempts[i] = 0
			} else {
				d.table[i].Returned = true
			}
		}
	}
	d.pass++
	if anyOpenRequired && d.pass > 2 {
		d.fallenBack = true
	}
}

// HandleResponse matches a decoded inbound frame to its table row and
// marks it returned, or records a vendor error and leaves the row open.
// onError, if non-nil, is invoked with the entry description and the
// frame's single error-code payload byte on an error response.
func (d *Driver) HandleResponse(f Frame, onError func(desc string, code byte)) {
	for i := range d.table {
		e := &d.table[i]
		if f.MessType == e.ExpectResponse && matches(f.Payload, e.Data1, e.Data2, e.Data3) {
			e.Returned = true
			return
		}
		if f.MessType == e.ExpectError {
			if onError != nil && len(f.Payload) > 0 {
				onError(e.Desc, f.Payload[0])
			}
			return
		}
	}
}

func matches(payload []byte, d1, d2, d3 byte) bool {
	if len(payload) == 0 {
		return true
	}
	if payload[0] != d1 {
		return false
	}
	if len(payload) > 1 && d2 != 0 && payload[1] != d2 {
		return false
	}
	return true
}

// FellBack reports whether a bounded number of empty poll cycles forced
// the driver to defer to the on-disk timing card file.
func (d *Driver) FellBack() bool { return d.fallenBack }

// ResetDaily re-arms every table row for a fresh poll cycle, run at
// local midnight.
func (d *Driver) ResetDaily() {
	for i := range d.table {
		d.table[i].Returned = false
		d.attempts[i] = 0
	}
	d.pass = 0
	d.fallenBack = false
	d.cursor = 0
}
