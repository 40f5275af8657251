package priority

import (
	"testing"
	"time"

	"github.com/mmitss/intersection/internal/geom"
	"github.com/mmitss/intersection/internal/j2735"
	"github.com/mmitss/intersection/internal/timingcard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldCallPhaseHorizonAndRateLimit(t *testing.T) {
	now := time.Unix(1000, 0)
	tr := newVehicleTrack(42)
	tr.SpeedMPS = 10

	assert.True(t, ShouldCallPhase(now, tr, 3, 100, false))  // 100m/10mps = 10s <= 20s
	assert.False(t, ShouldCallPhase(now, tr, 3, 500, false)) // 50s > 20s horizon

	MarkCalled(tr, 3, now)
	assert.False(t, ShouldCallPhase(now, tr, 3, 10, false), "already called this visit")

	tr2 := newVehicleTrack(7)
	tr2.SpeedMPS = 10
	tr2.LastSoftCallAt[3] = now
	assert.False(t, ShouldCallPhase(now.Add(500*time.Millisecond), tr2, 3, 10, false), "rate limited under 1s")
	assert.True(t, ShouldCallPhase(now.Add(1100*time.Millisecond), tr2, 3, 10, false))
}

func TestShouldExtendPhase(t *testing.T) {
	assert.True(t, ShouldExtendPhase(2, 3))
	assert.False(t, ShouldExtendPhase(-1, 3), "arrival before minEndTime is a call, not an extension")
	assert.False(t, ShouldExtendPhase(6, 3), "beyond the 5s arrival window")
	assert.False(t, ShouldExtendPhase(2, 5), "too far from expected end")
}

// Mirrors the literal scenario: sync phase 2 green with minEndTime 8.5s;
// a vehicle predicted to arrive at 6.7s is not a grant candidate
// (arrival earlier than minEndTime, so it isn't within the
// post-minEndTime extension window); the same phase with arrival moved
// to 16.7s yields a green-extension grant of duration ~8.2s.
func TestEvaluateGrantGreenExtensionScenario(t *testing.T) {
	notYet := []PhaseArrival{{
		VehicleID: 7, Phase: 2, Color: timingcard.ColorProtectedGreen, IsSyncPhase: true,
		MinEndTimeS: 8.5, MaxExtensionS: 20, ArrivalS: 6.7,
	}}
	g, issued := EvaluateGrant(Grant{IssuedCycle: -1}, timingcard.ModeCoordination, 1, 100, 800, 50, notYet)
	assert.False(t, issued)
	assert.False(t, g.Active)

	ready := []PhaseArrival{{
		VehicleID: 7, Phase: 2, Color: timingcard.ColorProtectedGreen, IsSyncPhase: true,
		MinEndTimeS: 8.5, MaxExtensionS: 20, ArrivalS: 16.7,
	}}
	g, issued = EvaluateGrant(Grant{IssuedCycle: -1}, timingcard.ModeCoordination, 1, 780, 800, 50, ready)
	require.True(t, issued)
	assert.Equal(t, GrantGreenExtension, g.Type)
	assert.Equal(t, uint8(2), g.Phase)
	assert.InDelta(t, 8.2, g.DurationS, 0.01)
}

func TestEvaluateGrantEarlyGreenPrefersLongestDuration(t *testing.T) {
	arrivals := []PhaseArrival{
		{VehicleID: 1, Phase: 4, Color: timingcard.ColorProtectedRed, MinEndTimeS: 10, ArrivalS: 9},
		{VehicleID: 2, Phase: 4, Color: timingcard.ColorProtectedRed, MinEndTimeS: 10, ArrivalS: 3},
	}
	g, issued := EvaluateGrant(Grant{IssuedCycle: -1}, timingcard.ModeCoordination, 1, 0, 800, 50, arrivals)
	require.True(t, issued)
	assert.Equal(t, GrantEarlyGreen, g.Type)
	assert.Equal(t, uint32(2), g.VehicleID)
	assert.InDelta(t, 7, g.DurationS, 0.01)
}

func TestEvaluateGrantRefusesSecondGrantSameCycle(t *testing.T) {
	active := Grant{Active: true, IssuedCycle: 3}
	_, issued := EvaluateGrant(active, timingcard.ModeCoordination, 3, 0, 800, 50, []PhaseArrival{
		{Phase: 4, Color: timingcard.ColorProtectedRed, MinEndTimeS: 10, ArrivalS: 1},
	})
	assert.False(t, issued, "a grant already active blocks evaluation")

	none := Grant{IssuedCycle: 3}
	_, issued = EvaluateGrant(none, timingcard.ModeRunningFree, 3, 0, 800, 50, []PhaseArrival{
		{Phase: 4, Color: timingcard.ColorProtectedRed, MinEndTimeS: 10, ArrivalS: 1},
	})
	assert.False(t, issued, "priority grants require coordination mode")

	_, issued = EvaluateGrant(none, timingcard.ModeCoordination, 3, 0, 800, 50, []PhaseArrival{
		{Phase: 4, Color: timingcard.ColorProtectedRed, MinEndTimeS: 10, ArrivalS: 1},
	})
	assert.False(t, issued, "a grant was already issued this signal cycle")
}

func TestCancelGrantIsIdempotentWhenInactive(t *testing.T) {
	g, cancelled := CancelGrant(Grant{}, timingcard.ColorProtectedGreen, true, false)
	assert.False(t, cancelled)
	assert.False(t, g.Active)
}

func TestCancelGrantEarlyGreenOnPhaseTurningGreen(t *testing.T) {
	active := Grant{Active: true, Type: GrantEarlyGreen, Phase: 4}
	g, cancelled := CancelGrant(active, timingcard.ColorProtectedGreen, true, false)
	assert.True(t, cancelled)
	assert.False(t, g.Active)
}

func TestCancelGrantGreenExtensionWhenPhaseLeavesGreen(t *testing.T) {
	active := Grant{Active: true, Type: GrantGreenExtension, Phase: 2}
	g, cancelled := CancelGrant(active, timingcard.ColorProtectedYellow, true, false)
	assert.True(t, cancelled)
	assert.False(t, g.Active)
}

func TestCancelGrantOnVehicleLeavingOrPriorityCancellation(t *testing.T) {
	active := Grant{Active: true, Type: GrantEarlyGreen, Phase: 4}
	_, cancelled := CancelGrant(active, timingcard.ColorProtectedRed, false, false)
	assert.True(t, cancelled, "vehicle left onInbound")

	_, cancelled = CancelGrant(active, timingcard.ColorProtectedRed, true, true)
	assert.True(t, cancelled, "SRM priorityCancellation")

	_, cancelled = CancelGrant(active, timingcard.ColorProtectedRed, true, false)
	assert.False(t, cancelled, "nothing to cancel on")
}

// straightLaneMap builds a single-intersection map with one inbound
// approach and one straight vehicular lane running north from the
// reference point, long enough to carry a multi-sample BSM trail before
// the vehicle exits onto the box.
func straightLaneMap() *geom.IntersectionMap {
	ref := geom.GeoPoint{Lat: 37.0, Lon: -122.0, Elev: 10}
	var nodes []geom.Node
	for i := 0; i <= 20; i++ {
		cum := float64(i) * 1000 // 10 m spacing, cm
		nodes = append(nodes, geom.Node{Pt: geom.Point2D{X: 0, Y: cum}, CumDistCm: cum, HeadingDdeg: 0})
	}
	lane := geom.Lane{ID: 3, Phase: 2, Kind: geom.LaneKindVehicle, WidthCm: 300, Nodes: nodes}
	approach := geom.Approach{
		Seq: 0, Direction: geom.ApproachInbound, SpeedLimit: 15,
		Lanes:   []geom.Lane{lane},
		Polygon: []geom.Point2D{{X: -5000, Y: -5000}, {X: 5000, Y: -5000}, {X: 5000, Y: 250000}, {X: -5000, Y: 250000}},
	}
	isect := geom.Intersection{
		IntersectionID: 1000,
		RefPoint:       ref,
		Approaches:     []geom.Approach{approach},
	}
	return &geom.IntersectionMap{Intersections: []geom.Intersection{isect}}
}

// metersNorth returns a GeoPoint approximately metersNorth of ref, using
// the small-angle approximation (1 degree latitude ~ 111320 m); accurate
// enough against this lane's 450 cm matching tolerance.
func metersNorth(ref geom.GeoPoint, meters float64) geom.GeoPoint {
	return geom.GeoPoint{Lat: ref.Lat + meters/111320.0, Lon: ref.Lon, Elev: ref.Elev}
}

func TestTrackerEmitsTrajectoryExactlyOnceAfterApproachVisit(t *testing.T) {
	m := straightLaneMap()
	ref := m.Intersections[0].RefPoint
	tracker := NewTracker(m, 2*time.Second)

	start := time.Unix(2000, 0)
	var traj *VehTrajectory
	emissions := 0

	// 12 BSMs spanning 1.1 s while the vehicle is onInbound.
	for i := 0; i < 12; i++ {
		now := start.Add(time.Duration(i) * 100 * time.Millisecond)
		geoPt := metersNorth(ref, float64(i)*5) // 5 m/sample, well over the jitter floor
		lp, tj := tracker.Observe(now, 9, geoPt, 10, 0)
		require.Equal(t, geom.StateOnInbound, lp.State, "sample %d should stay onInbound", i)
		if tj != nil {
			traj = tj
			emissions++
		}
	}
	assert.Nil(t, traj, "trajectory is only emitted once the vehicle leaves onInbound")

	// Flip to a point far outside every approach and intersection box.
	leave := time.Unix(2003, 0)
	lp, tj := tracker.Observe(leave, 9, geom.GeoPoint{Lat: ref.Lat + 5, Lon: ref.Lon + 5}, 10, 0)
	assert.Equal(t, geom.StateOutside, lp.State)
	require.NotNil(t, tj, "trail of 12 samples should produce a VehTrajectory on exit")
	emissions++

	assert.Equal(t, uint32(9), tj.VehicleID)
	assert.Equal(t, uint8(3), tj.EntryLaneID)
	assert.Equal(t, uint8(2), tj.EntryPhase)
	assert.Equal(t, 1, emissions, "exactly one VehTrajectory for the whole visit")

	// A further update must not re-emit.
	again := time.Unix(2004, 0)
	_, tj2 := tracker.Observe(again, 9, geom.GeoPoint{Lat: ref.Lat + 5, Lon: ref.Lon + 5}, 10, 0)
	assert.Nil(t, tj2)
}

func TestResolvePhaseByLaneID(t *testing.T) {
	m := straightLaneMap()
	e := NewEngine(m, 0x10, 2*time.Second)
	phase := e.resolvePhase(j2735.InBoundLane{IsApproach: false, Lane: 3})
	assert.Equal(t, uint8(2), phase)
}
