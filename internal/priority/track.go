// Package priority fuses per-vehicle BSM tracking and SRM requests into
// vehicle phase calls, phase extensions, and early-green/green-extension
// priority grants, and paces the resulting soft-calls and SSM payloads.
package priority

import (
	"time"

	"github.com/mmitss/intersection/internal/geom"
)

// jitterDistCm and jitterSpeedMPS gate when a new BSM is worth rerunning
// the map projection for: small, slow movements reuse the prior mapping
// rather than chase GPS noise.
const (
	jitterDistCm  = 500 // 5 m
	jitterSpeedMPS = 2
)

// TrailSample is one retained position sample along a vehicle's inbound
// trail, used to detect a stopped dwell and to compute VehTrajectory's
// stopped-sample count.
type TrailSample struct {
	AtMs       int64
	DistLongCm float64
	SpeedMPS   float64
}

// VehicleTrack is the per-vehicle state carried between BSM updates.
type VehicleTrack struct {
	VehicleID uint32

	Mapped     geom.LocatedPoint
	Geo        geom.GeoPoint
	SpeedMPS   float64
	HeadingDdeg float64
	LastUpdate time.Time

	IsOnApproach bool
	EntryLaneID  uint8
	EntryPhase   uint8
	EntryAtMs    int64

	Trail []TrailSample

	CalledPhase     map[uint8]bool
	LastSoftCallAt  map[uint8]time.Time
	ExtendingPhase  map[uint8]bool
}

func newVehicleTrack(id uint32) *VehicleTrack {
	return &VehicleTrack{
		VehicleID:      id,
		CalledPhase:    map[uint8]bool{},
		LastSoftCallAt: map[uint8]time.Time{},
		ExtendingPhase: map[uint8]bool{},
	}
}

// resetApproachVisit clears the per-visit bookkeeping a vehicle
// accumulates while onApproach, so a later approach visit is treated as
// fresh (a vehicle phase call is issued at most once per visit).
func (v *VehicleTrack) resetApproachVisit() {
	v.IsOnApproach = false
	v.Trail = nil
	v.CalledPhase = map[uint8]bool{}
	v.ExtendingPhase = map[uint8]bool{}
}

// VehTrajectory is the UDP record emitted once a tracked vehicle's trail
// through an approach ends, provided the trail reached the minimum
// retained length.
type VehTrajectory struct {
	VehicleID        uint32
	EntryLaneID      uint8
	LeaveLaneID      uint8
	EntryPhase       uint8
	LeavePhase       uint8
	DistanceTraveledDm int
	TimeTraveledDs     int
	StoppedSamples     int
	InboundLaneLenDm   int
}

// minTrailLenForTrajectory is the retained-sample floor below which a
// trail is considered too short to summarize.
const minTrailLenForTrajectory = 10

// stoppedSpeedMPS is the speed below which a trail sample counts as
// "stopped" for VehTrajectory's stopped-sample count.
const stoppedSpeedMPS = 0.5

// Tracker owns every known VehicleTrack and the single-intersection ENU
// frame used to flatten incoming BSM geodetic positions.
type Tracker struct {
	m       *geom.IntersectionMap
	frame   geom.ENUFrame
	timeout time.Duration

	vehicles map[uint32]*VehicleTrack
}

// NewTracker builds a Tracker over m, anchoring its ENU frame at the
// first intersection's reference point (a tci process serves exactly
// one intersection).
func NewTracker(m *geom.IntersectionMap, timeout time.Duration) *Tracker {
	t := &Tracker{m: m, timeout: timeout, vehicles: map[uint32]*VehicleTrack{}}
	if len(m.Intersections) > 0 {
		t.frame = geom.NewENUFrame(m.Intersections[0].RefPoint)
	}
	return t
}

// Observe updates (or creates) the track for vehicleID from one decoded
// BSM's position/speed/heading, re-running the map projection only when
// the vehicle has moved enough to matter. It returns the vehicle's
// current mapping and, when the vehicle has just finished an approach
// visit of sufficient length, the VehTrajectory summarizing it.
func (t *Tracker) Observe(now time.Time, vehicleID uint32, geoPt geom.GeoPoint, speedMPS, headingDdeg float64) (geom.LocatedPoint, *VehTrajectory) {
	tr, ok := t.vehicles[vehicleID]
	if !ok {
		tr = newVehicleTrack(vehicleID)
		t.vehicles[vehicleID] = tr
	}

	p2d := t.frame.ToPoint2D(geoPt)
	moved := geom.Distance2D(p2d, t.frame.ToPoint2D(tr.Geo)) >= jitterDistCm || speedMPS >= jitterSpeedMPS
	tr.Geo = geoPt
	tr.SpeedMPS = speedMPS
	tr.HeadingDdeg = headingDdeg
	tr.LastUpdate = now

	prior := tr.Mapped
	if !ok || moved {
		tr.Mapped = geom.Locate(t.m, prior, p2d, geoPt, headingDdeg, speedMPS)
	}

	var traj *VehTrajectory
	wasOnInbound := prior.State == geom.StateOnInbound && tr.IsOnApproach
	nowOnInbound := tr.Mapped.State == geom.StateOnInbound

	switch {
	case nowOnInbound && !tr.IsOnApproach:
		// First entry onInbound at this intersection.
		tr.IsOnApproach = true
		tr.Trail = nil
		tr.CalledPhase = map[uint8]bool{}
		tr.ExtendingPhase = map[uint8]bool{}
		if la, ok := geom.UpdateLocationAware(t.m, tr.Mapped); ok {
			tr.EntryLaneID = la.LaneID
			tr.EntryPhase = la.ControlPhase
		}
		tr.EntryAtMs = now.UnixMilli()
	case wasOnInbound && !nowOnInbound:
		// Left onInbound: either onto a different intersection, onto
		// the box, or outside. Emit a trajectory if the trail is long
		// enough, then reset.
		if len(tr.Trail) >= minTrailLenForTrajectory {
			traj = t.buildTrajectory(tr, prior)
		}
		tr.resetApproachVisit()
	}

	if nowOnInbound {
		tr.Trail = append(tr.Trail, TrailSample{AtMs: now.UnixMilli(), DistLongCm: tr.Mapped.DistLongCm, SpeedMPS: speedMPS})
	}

	return tr.Mapped, traj
}

func (t *Tracker) buildTrajectory(tr *VehicleTrack, leave geom.LocatedPoint) *VehTrajectory {
	var leaveLaneID, leavePhase uint8
	var inboundLenDm int
	if la, ok := geom.UpdateLocationAware(t.m, leave); ok {
		leaveLaneID = la.LaneID
		leavePhase = la.ControlPhase
	} else if leave.IntersectionIdx >= 0 && leave.IntersectionIdx < len(t.m.Intersections) {
		isect := &t.m.Intersections[leave.IntersectionIdx]
		if leave.ApproachIdx < len(isect.Approaches) && leave.LaneIdx < len(isect.Approaches[leave.ApproachIdx].Lanes) {
			lane := &isect.Approaches[leave.ApproachIdx].Lanes[leave.LaneIdx]
			leaveLaneID = lane.ID
			leavePhase = lane.Phase
		}
	}
	first := tr.Trail[0]
	last := tr.Trail[len(tr.Trail)-1]
	stopped := 0
	for _, s := range tr.Trail {
		if s.SpeedMPS < stoppedSpeedMPS {
			stopped++
		}
	}
	return &VehTrajectory{
		VehicleID:          tr.VehicleID,
		EntryLaneID:        tr.EntryLaneID,
		LeaveLaneID:        leaveLaneID,
		EntryPhase:         tr.EntryPhase,
		LeavePhase:         leavePhase,
		DistanceTraveledDm: int((last.DistLongCm - first.DistLongCm) / 10),
		TimeTraveledDs:     int((last.AtMs - first.AtMs) / 100),
		StoppedSamples:     stopped,
		InboundLaneLenDm:   inboundLenDm,
	}
}

// Prune drops tracks that haven't been updated within the configured
// DSRC timeout, as the loop does every tick.
func (t *Tracker) Prune(now time.Time) {
	for id, tr := range t.vehicles {
		if now.Sub(tr.LastUpdate) > t.timeout {
			delete(t.vehicles, id)
		}
	}
}

// Get returns the track for vehicleID, or nil if unknown.
func (t *Tracker) Get(vehicleID uint32) *VehicleTrack { return t.vehicles[vehicleID] }

// Range calls fn for every currently tracked vehicle.
func (t *Tracker) Range(fn func(*VehicleTrack)) {
	for _, tr := range t.vehicles {
		fn(tr)
	}
}
