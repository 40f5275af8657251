package priority

import (
	"time"

	"github.com/mmitss/intersection/internal/ab3418"
	"github.com/mmitss/intersection/internal/geom"
	"github.com/mmitss/intersection/internal/j2735"
	"github.com/mmitss/intersection/internal/timingcard"
)

// ssmPeriod is how often the engine repacks and (if non-empty) emits an
// SSM payload.
const ssmPeriod = 1 * time.Second

// Engine wires vehicle tracking, SRM registration and the grant decision
// into the soft-call frames and SSM payloads a tci process emits each
// tick. It holds no mutex: callers drive it from a single cooperative
// loop.
type Engine struct {
	m       *geom.IntersectionMap
	Tracker *Tracker
	SRMs    *Registry

	grant        Grant
	cycleCounter int

	writer *ab3418.SoftcallWriter

	lastSSM  time.Time
	msgCnt   uint8
	updateCnt uint8
}

// NewEngine builds an Engine for intersection map m, emitting soft-calls
// addressed to controllerAddr.
func NewEngine(m *geom.IntersectionMap, controllerAddr byte, dsrcTimeout time.Duration) *Engine {
	return &Engine{
		m:       m,
		Tracker: NewTracker(m, dsrcTimeout),
		SRMs:    NewRegistry(dsrcTimeout),
		writer:  ab3418.NewSoftcallWriter(controllerAddr),
		grant:   Grant{IssuedCycle: -1},
	}
}

// resolvePhase maps an SRM's InBoundLane CHOICE onto a control phase
// number, by approach ordinal (first vehicular lane's phase) or by
// absolute lane id across the single intersection this engine serves.
func (e *Engine) resolvePhase(ib j2735.InBoundLane) uint8 {
	if len(e.m.Intersections) == 0 {
		return 0
	}
	isect := &e.m.Intersections[0]
	if ib.IsApproach {
		if int(ib.Approach) >= len(isect.Approaches) {
			return 0
		}
		for _, l := range isect.Approaches[ib.Approach].Lanes {
			if l.Kind == geom.LaneKindVehicle {
				return l.Phase
			}
		}
		return 0
	}
	for _, ap := range isect.Approaches {
		for _, l := range ap.Lanes {
			if l.ID == ib.Lane {
				return l.Phase
			}
		}
	}
	return 0
}

// OnBSM feeds one decoded BSM through vehicle tracking, returning a
// VehTrajectory when this update closed out a sufficiently long trail.
func (e *Engine) OnBSM(now time.Time, rec j2735.BSMRecord) *VehTrajectory {
	geoPt := geom.GeoPoint{
		Lat:  float64(rec.Lat) / 10_000_000,
		Lon:  float64(rec.Lon) / 10_000_000,
		Elev: float64(rec.Elev) / 10,
	}
	speedMPS := float64(rec.Speed) * 0.02
	headingDdeg := float64(rec.Heading) * 0.0125 * 10
	_, traj := e.Tracker.Observe(now, rec.ID, geoPt, speedMPS, headingDdeg)
	return traj
}

// OnSRM registers a decoded SRM against the request registry.
func (e *Engine) OnSRM(now time.Time, rec j2735.SrmRecord) *SrmEntry {
	return e.SRMs.Register(now, rec, e.resolvePhase)
}

// NoteCycleStart advances the signal-cycle counter; the caller invokes
// this on the sync phase's protected-yellow onset.
func (e *Engine) NoteCycleStart() { e.cycleCounter++ }

// TickInput bundles the controller facts the engine's decision logic
// needs on one pass, kept separate from the ambient AB3418/predictor
// types so this package stays usable without wiring every producer.
type TickInput struct {
	Mode                     timingcard.ControlMode
	LocalCycleClockDs        int
	CycleLengthDs            int
	MaxTime2ChangePhaseExtDs int
	Phases                   [9]timingcard.PhaseStatus // indexed 1..8
	SyncPhase                [2]uint8
}

// Tick runs one pass of vehicle-call, vehicle-extension, priority-grant
// and priority-cancellation logic, enqueues the resulting soft-call
// bits, and returns the paced 0x9A frame if the rate limit allows a
// write this tick.
func (e *Engine) Tick(now time.Time, in TickInput) (frame []byte, wroteFrame bool) {
	e.Tracker.Prune(now)
	e.SRMs.Prune(now)

	e.driveVehicleCallsAndExtensions(now, in)
	e.driveGrant(now, in)

	return e.writer.Flush(now)
}

func (e *Engine) driveVehicleCallsAndExtensions(now time.Time, in TickInput) {
	e.Tracker.Range(func(tr *VehicleTrack) {
		if !tr.IsOnApproach {
			return
		}
		la, ok := geom.UpdateLocationAware(e.m, tr.Mapped)
		if !ok {
			return
		}
		phase := la.ControlPhase
		if phase == 0 || int(phase) > 8 {
			return
		}
		status := in.Phases[phase]

		if phaseIsGreen(status.Color) {
			coordinatedSync := in.Mode == timingcard.ModeCoordination && (phase == in.SyncPhase[0] || phase == in.SyncPhase[1])
			flashOrPreempt := in.Mode == timingcard.ModeFlashing || in.Mode == timingcard.ModePreemption
			if !coordinatedSync && !flashOrPreempt {
				e.driveExtension(tr, phase, status)
			}
			return
		}
		alreadyCalled := status.Call != timingcard.CallNone || status.Recall != timingcard.RecallNone
		if ShouldCallPhase(now, tr, phase, la.DistLongToStopBarM, alreadyCalled) {
			e.writer.SetVehCall(phaseBit(phase))
			MarkCalled(tr, phase, now)
		}
	})
}

func (e *Engine) driveExtension(tr *VehicleTrack, phase uint8, status timingcard.PhaseStatus) {
	la, ok := geom.UpdateLocationAware(e.m, tr.Mapped)
	if !ok {
		return
	}
	v := tr.SpeedMPS
	if v < minApproachSpeedMPS {
		v = minApproachSpeedMPS
	}
	secondsToEnd := float64(status.Time2Next.L) / 10
	arrivalS := la.DistLongToStopBarM / v
	arrivalAfterMinEnd := arrivalS - secondsToEnd

	if ShouldExtendPhase(arrivalAfterMinEnd, secondsToEnd) {
		if !tr.ExtendingPhase[phase] {
			tr.ExtendingPhase[phase] = true
			e.writer.SetVehCall(phaseBit(phase))
		}
		return
	}
	if tr.ExtendingPhase[phase] {
		delete(tr.ExtendingPhase, phase)
		e.writer.ClearVehCall(phaseBit(phase))
	}
}

func (e *Engine) driveGrant(now time.Time, in TickInput) {
	if e.grant.Active {
		vehTr := e.Tracker.Get(e.grant.VehicleID)
		vehicleOn := vehTr != nil && vehTr.IsOnApproach
		cancelled := false
		if entry := e.SRMs.Get(e.grant.VehicleID); entry != nil {
			cancelled = entry.Status == j2735.PrioritizationCancelled
		}
		color := in.Phases[e.grant.Phase].Color
		if g, did := CancelGrant(e.grant, color, vehicleOn, cancelled); did {
			e.writer.ClearPrioCall(phaseBit(e.grant.Phase))
			e.grant = g
		}
		return
	}

	var arrivals []PhaseArrival
	e.SRMs.Range(func(entry *SrmEntry) {
		if entry.Status != j2735.PrioritizationRequested && entry.Status != j2735.PrioritizationProcessing {
			return
		}
		phase := entry.RequestedPhase
		if phase == 0 || int(phase) > 8 {
			return
		}
		tr := e.Tracker.Get(entry.VehicleID)
		if tr == nil || !tr.IsOnApproach {
			return
		}
		la, ok := geom.UpdateLocationAware(e.m, tr.Mapped)
		if !ok {
			return
		}
		v := tr.SpeedMPS
		if v < minApproachSpeedMPS {
			v = minApproachSpeedMPS
		}
		status := in.Phases[phase]
		arrivals = append(arrivals, PhaseArrival{
			VehicleID:     entry.VehicleID,
			RequestID:     entry.RequestID,
			Phase:         phase,
			Color:         status.Color,
			IsSyncPhase:   phase == in.SyncPhase[0] || phase == in.SyncPhase[1],
			MinEndTimeS:   float64(status.Time2Next.L) / 10,
			MaxExtensionS: float64(status.Time2Next.U-status.Time2Next.L) / 10,
			ArrivalS:      la.DistLongToStopBarM / v,
		})
	})
	if len(arrivals) == 0 {
		return
	}

	g, issued := EvaluateGrant(e.grant, in.Mode, e.cycleCounter, in.LocalCycleClockDs, in.CycleLengthDs, in.MaxTime2ChangePhaseExtDs, arrivals)
	if !issued {
		return
	}
	e.grant = g
	if entry := e.SRMs.Get(g.VehicleID); entry != nil {
		entry.Status = j2735.PrioritizationGranted
		entry.GrantCycle = g.IssuedCycle
	}
	e.writer.SetPrioCall(phaseBit(g.Phase))
}

// BuildSSM repacks the current SRM registry into an SSM payload, or
// reports false if 1000 ms haven't elapsed since the last emission, or
// the registry is empty (suppressed per the no-traffic-to-report case).
func (e *Engine) BuildSSM(now time.Time, intersectionID uint16) (j2735.SsmRecord, bool) {
	if !e.lastSSM.IsZero() && now.Sub(e.lastSSM) < ssmPeriod {
		return j2735.SsmRecord{}, false
	}
	var packages []j2735.SignalStatusPackage
	e.SRMs.Range(func(entry *SrmEntry) {
		packages = append(packages, j2735.SignalStatusPackage{
			InboundOn: j2735.LaneOn{IsApproach: false, Lane: entry.RequestedPhase},
			Status:    entry.Status,
			Requester: j2735.SignalRequesterInfo{
				VehicleID: entry.VehicleID,
				RequestID: entry.RequestID,
			},
		})
	})
	if len(packages) == 0 {
		return j2735.SsmRecord{}, false
	}
	e.lastSSM = now
	e.msgCnt = (e.msgCnt + 1) % 128
	e.updateCnt = (e.updateCnt + 1) % 128
	return j2735.SsmRecord{
		HasMsgCount:    true,
		MsgCount:       e.msgCnt,
		SequenceNumber: e.updateCnt,
		IntersectionID: intersectionID,
		Packages:       packages,
	}, true
}
