package priority

import (
	"time"

	"github.com/mmitss/intersection/internal/j2735"
	"github.com/mmitss/intersection/internal/timingcard"
)

// SrmEntry is one vehicle's outstanding signal request, tracked from
// first SRM to grant or expiry.
type SrmEntry struct {
	VehicleID      uint32
	RequestID      uint8
	IntersectionID uint16
	RequestType    j2735.RequestType
	RequestedPhase uint8
	Status         j2735.PrioritizationStatus
	LastSeen       time.Time
	GrantCycle     int // signal-cycle counter this entry was granted on, -1 if never
}

// Registry holds the single outstanding SrmEntry per vehicle.
type Registry struct {
	entries map[uint32]*SrmEntry
	timeout time.Duration
}

// NewRegistry builds a Registry that prunes entries idle longer than
// timeout.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{entries: map[uint32]*SrmEntry{}, timeout: timeout}
}

// Register applies a decoded SRM, resolving its requested phase with
// resolvePhase, and returns the entry it created or updated.
func (r *Registry) Register(now time.Time, rec j2735.SrmRecord, resolvePhase func(j2735.InBoundLane) uint8) *SrmEntry {
	e, ok := r.entries[rec.Requestor.VehicleID]
	if !ok {
		e = &SrmEntry{VehicleID: rec.Requestor.VehicleID, GrantCycle: -1}
		r.entries[rec.Requestor.VehicleID] = e
	}
	e.RequestID = rec.RequestID
	e.IntersectionID = rec.IntersectionID
	e.RequestType = rec.RequestType
	e.RequestedPhase = resolvePhase(rec.InBound)
	e.LastSeen = now

	if rec.RequestType == j2735.RequestTypePriorityCancellation {
		e.Status = j2735.PrioritizationCancelled
	} else if e.Status != j2735.PrioritizationGranted {
		e.Status = j2735.PrioritizationRequested
	}
	return e
}

// Get returns the entry for vehicleID, or nil.
func (r *Registry) Get(vehicleID uint32) *SrmEntry { return r.entries[vehicleID] }

// Range calls fn for every entry still tracked.
func (r *Registry) Range(fn func(*SrmEntry)) {
	for _, e := range r.entries {
		fn(e)
	}
}

// Prune drops entries not refreshed within the registry's timeout.
func (r *Registry) Prune(now time.Time) {
	for id, e := range r.entries {
		if now.Sub(e.LastSeen) > r.timeout {
			delete(r.entries, id)
		}
	}
}

// GrantType classifies a currently active priority treatment.
type GrantType uint8

const (
	GrantNone GrantType = iota
	GrantEarlyGreen
	GrantGreenExtension
)

// Grant is the single priority treatment a cycle may have active.
type Grant struct {
	Active      bool
	Type        GrantType
	Phase       uint8
	VehicleID   uint32
	RequestID   uint8
	IssuedCycle int
	DurationS   float64
}

// PhaseArrival bundles one SrmEntry's requested-phase signal state and
// its requesting vehicle's predicted arrival, the unit of input the
// grant decision reasons over.
type PhaseArrival struct {
	VehicleID     uint32
	RequestID     uint8
	Phase         uint8
	Color         timingcard.PhaseColor
	IsSyncPhase   bool
	MinEndTimeS   float64 // seconds until the requested phase's current green interval guarantees to end
	MaxExtensionS float64 // width of the window after MinEndTimeS a green-extension grant may still cover
	ArrivalS      float64 // predicted seconds until the requesting vehicle reaches the stop bar
}

func phaseIsGreen(c timingcard.PhaseColor) bool {
	return c == timingcard.ColorProtectedGreen || c == timingcard.ColorPermissiveGreen
}

func phaseIsRed(c timingcard.PhaseColor) bool {
	return c == timingcard.ColorProtectedRed || c == timingcard.ColorFlashingRed
}

// EvaluateGrant runs one tick of the priority-grant decision: a no-op
// unless the controller is in coordination, no grant is currently
// active, and no grant has yet been issued this signal cycle. Among
// eligible green-extension candidates it picks the one maximizing
// duration; failing that, among early-green candidates it does the
// same.
func EvaluateGrant(current Grant, mode timingcard.ControlMode, cycleCounter int, localCycleClockDs, cycleLengthDs, maxTime2ChangePhaseExtDs int, arrivals []PhaseArrival) (Grant, bool) {
	if current.Active || mode != timingcard.ModeCoordination || current.IssuedCycle == cycleCounter {
		return current, false
	}

	var bestExt, bestEarly *PhaseArrival
	var bestExtDur, bestEarlyDur float64

	for i := range arrivals {
		a := &arrivals[i]
		switch {
		case phaseIsGreen(a.Color):
			if !a.IsSyncPhase {
				continue
			}
			if a.ArrivalS < a.MinEndTimeS || a.ArrivalS > a.MinEndTimeS+a.MaxExtensionS {
				continue
			}
			if localCycleClockDs+maxTime2ChangePhaseExtDs < cycleLengthDs {
				continue
			}
			dur := a.ArrivalS - a.MinEndTimeS
			if bestExt == nil || dur > bestExtDur {
				bestExt, bestExtDur = a, dur
			}
		case phaseIsRed(a.Color):
			if a.ArrivalS >= a.MinEndTimeS {
				continue
			}
			dur := a.MinEndTimeS - a.ArrivalS
			if bestEarly == nil || dur > bestEarlyDur {
				bestEarly, bestEarlyDur = a, dur
			}
		}
	}

	switch {
	case bestExt != nil:
		return Grant{Active: true, Type: GrantGreenExtension, Phase: bestExt.Phase, VehicleID: bestExt.VehicleID, RequestID: bestExt.RequestID, IssuedCycle: cycleCounter, DurationS: bestExtDur}, true
	case bestEarly != nil:
		return Grant{Active: true, Type: GrantEarlyGreen, Phase: bestEarly.Phase, VehicleID: bestEarly.VehicleID, RequestID: bestEarly.RequestID, IssuedCycle: cycleCounter, DurationS: bestEarlyDur}, true
	default:
		return current, false
	}
}

// CancelGrant clears g and reports true when any cancellation condition
// holds. Calling it on an already-inactive grant is a no-op, which is
// what keeps cancel-soft-call emission idempotent.
func CancelGrant(g Grant, grantedPhaseColor timingcard.PhaseColor, vehicleStillOnInbound, priorityCancellationReceived bool) (Grant, bool) {
	if !g.Active {
		return g, false
	}
	green := phaseIsGreen(grantedPhaseColor)
	shouldCancel := (g.Type == GrantEarlyGreen && green) ||
		(g.Type == GrantGreenExtension && !green) ||
		!vehicleStillOnInbound ||
		priorityCancellationReceived
	if !shouldCancel {
		return g, false
	}
	return Grant{}, true
}
