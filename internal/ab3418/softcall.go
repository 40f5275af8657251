package ab3418

import "time"

// SoftcallMasks is the three 8-bit phase masks carried by a single
// 0x9A setSoftcall frame.
type SoftcallMasks struct {
	VehCall  byte
	PedCall  byte
	PrioCall byte
}

// SoftcallWriter paces outbound 0x9A frames to no more than one every
// 20 ms, coalescing whatever bits have accumulated since the last write.
type SoftcallWriter struct {
	address    byte
	lastWrite  time.Time
	minPeriod  time.Duration
	pending    SoftcallMasks
}

// NewSoftcallWriter builds a writer for controller address addr.
func NewSoftcallWriter(addr byte) *SoftcallWriter {
	return &SoftcallWriter{address: addr, minPeriod: 20 * time.Millisecond}
}

// SetVehCall ORs phaseBit into the persistent vehicle-call mask.
func (w *SoftcallWriter) SetVehCall(phaseBit byte) { w.pending.VehCall |= phaseBit }

// SetPedCall ORs phaseBit into the one-shot pedestrian-call mask.
func (w *SoftcallWriter) SetPedCall(phaseBit byte) { w.pending.PedCall |= phaseBit }

// SetPrioCall ORs phaseBit into the persistent priority-call mask.
func (w *SoftcallWriter) SetPrioCall(phaseBit byte) { w.pending.PrioCall |= phaseBit }

// ClearVehCall clears phaseBit from the vehicle-call mask, e.g. once the
// phase has gone green.
func (w *SoftcallWriter) ClearVehCall(phaseBit byte) { w.pending.VehCall &^= phaseBit }

// ClearPrioCall clears phaseBit from the priority-call mask.
func (w *SoftcallWriter) ClearPrioCall(phaseBit byte) { w.pending.PrioCall &^= phaseBit }

// Flush returns the encoded frame for the pending masks if the rate
// limit allows a write at time now, clearing the one-shot ped-call bits
// afterward. ok is false when nothing should be written yet.
func (w *SoftcallWriter) Flush(now time.Time) (frame []byte, ok bool) {
	if !w.lastWrite.IsZero() && now.Sub(w.lastWrite) < w.minPeriod {
		return nil, false
	}
	if w.pending == (SoftcallMasks{}) {
		return nil, false
	}
	w.lastWrite = now
	f := Frame{
		Address:  w.address,
		Control:  ControlSet,
		MessType: MessSetSoftcall,
		Payload:  []byte{w.pending.VehCall, w.pending.PedCall, w.pending.PrioCall},
	}
	w.pending.PedCall = 0
	return EncodeFrame(f), true
}
