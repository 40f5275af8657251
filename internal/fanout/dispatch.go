package fanout

import "time"

// mapPeriod is the MAP re-broadcast interval: a MAP payload rarely
// changes, but peers rely on periodic re-delivery rather than a change
// notification to pick it up.
const mapPeriod = 1 * time.Second

// ssmPeriod is the SSM repack/emit interval while the request registry
// holds at least one entry.
const ssmPeriod = 1 * time.Second

// PerformanceRecord is one phase's one-second volume/occupancy/delay
// sample, emitted on the 0x51 ("perm") channel.
type PerformanceRecord struct {
	Phase       uint8
	Volume      uint16
	Occupancy   uint16
	AvgDelayDs  uint16
	SampledAtMs int64
}

// Dispatcher paces the periodic and change-triggered UDP emissions a tci
// process makes each tick: MAP on a fixed period, SPaT whenever the
// controller reports a new cntrlstatus, SSM on a fixed period while the
// request registry is non-empty, and everything else (BSM, SRM relay,
// soft-call echo, trajectory) forwarded as it arrives with no pacing of
// its own.
type Dispatcher struct {
	lastMAP  time.Time
	lastSSM  time.Time
	lastSpat uint16 // last cntrlstatus revision (SpatRecord.Revision) sent
	sentSpat bool
}

// NewDispatcher returns a Dispatcher ready for its first Tick.
func NewDispatcher() *Dispatcher { return &Dispatcher{} }

// ShouldSendMAP reports whether mapPeriod has elapsed since the last MAP
// emission, and if so marks now as the new baseline.
func (d *Dispatcher) ShouldSendMAP(now time.Time) bool {
	if !d.lastMAP.IsZero() && now.Sub(d.lastMAP) < mapPeriod {
		return false
	}
	d.lastMAP = now
	return true
}

// ShouldSendSPAT reports whether revision differs from the last SPaT
// revision sent, which is how the controller's own cntrlstatus cadence
// drives this channel rather than a fixed timer.
func (d *Dispatcher) ShouldSendSPAT(revision uint16) bool {
	if d.sentSpat && revision == d.lastSpat {
		return false
	}
	d.sentSpat = true
	d.lastSpat = revision
	return true
}

// ShouldSendSSM reports whether ssmPeriod has elapsed and registrySize
// is non-zero; an empty registry suppresses the channel entirely rather
// than emitting an empty SSM every period.
func (d *Dispatcher) ShouldSendSSM(now time.Time, registrySize int) bool {
	if registrySize == 0 {
		return false
	}
	if !d.lastSSM.IsZero() && now.Sub(d.lastSSM) < ssmPeriod {
		return false
	}
	d.lastSSM = now
	return true
}
