package geom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestENUFrameRoundTripsReferencePoint(t *testing.T) {
	ref := GeoPoint{Lat: 37.79, Lon: -122.15, Elev: 10}
	frame := NewENUFrame(ref)
	p := frame.ToPoint2D(ref)
	assert.InDelta(t, 0, p.X, 1e-6)
	assert.InDelta(t, 0, p.Y, 1e-6)
}

func TestENUFrameEastNorthOffsetsAreSeparable(t *testing.T) {
	ref := GeoPoint{Lat: 37.79, Lon: -122.15, Elev: 0}
	frame := NewENUFrame(ref)
	north := GeoPoint{Lat: 37.79 + 0.0001, Lon: -122.15, Elev: 0}
	p := frame.ToPoint2D(north)
	assert.Greater(t, p.Y, 0.0)
	assert.InDelta(t, 0, p.X, 50) // small residual from ellipsoid curvature
}

func TestConvexHullSquareReturnsFourCorners(t *testing.T) {
	pts := []Point2D{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {5, 5}}
	hull := ConvexHull(pts)
	assert.Len(t, hull, 4)
}

func TestPointInPolygonSquare(t *testing.T) {
	square := []Point2D{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	assert.True(t, PointInPolygon(Point2D{5, 5}, square))
	assert.False(t, PointInPolygon(Point2D{15, 5}, square))
}

func TestProjectPt2LaneStraightLine(t *testing.T) {
	lane := &Lane{
		WidthCm: 366,
		Nodes: []Node{
			{Pt: Point2D{0, 0}},
			{Pt: Point2D{0, 10000}},
			{Pt: Point2D{0, 20000}},
		},
	}
	finalizeLaneGeometry(lane)
	lp, ok := ProjectPt2Lane(Point2D{50, 15000}, lane.Nodes[2].HeadingDdeg, 10, lane)
	require.True(t, ok)
	assert.Equal(t, ProjInside, lp.Outcome)
	assert.InDelta(t, 15000, lp.DistLongCm, 1)
	assert.InDelta(t, 50, lp.DistLatCm, 1)
}

// connectingLaneTestMap builds a minimal one-intersection map: an inbound
// lane ending short of the box, wired via ConnectsTo to an outbound lane
// starting on the far side, with no nodes actually inside the box.
func connectingLaneTestMap() *IntersectionMap {
	in := &Lane{
		WidthCm: 366,
		Nodes:   []Node{{Pt: Point2D{0, -10000}}, {Pt: Point2D{0, -500}}},
		ConnectsTo: []LaneConnection{
			{IntersectionIdx: 0, ApproachIdx: 1, LaneIdx: 0},
		},
	}
	finalizeLaneGeometry(in)

	out := &Lane{
		WidthCm: 366,
		Nodes:   []Node{{Pt: Point2D{0, 500}}, {Pt: Point2D{0, 10000}}},
	}
	finalizeLaneGeometry(out)

	return &IntersectionMap{
		Intersections: []Intersection{
			{
				IntersectionID: 1,
				Polygon:        []Point2D{{-1000, -1000}, {1000, -1000}, {1000, 1000}, {-1000, 1000}},
				Approaches: []Approach{
					{Direction: ApproachInbound, Lanes: []Lane{*in}},
					{Direction: ApproachOutbound, Lanes: []Lane{*out}},
				},
			},
		},
	}
}

func TestLocateInsidePolygonPreservesOriginLane(t *testing.T) {
	m := connectingLaneTestMap()
	prior := LocatedPoint{State: StateAtIntersectionBox, IntersectionIdx: 0, ApproachIdx: 0, LaneIdx: 0}

	lp := Locate(m, prior, Point2D{0, 0}, GeoPoint{}, 0, 10)
	assert.Equal(t, StateInsideIntersectionBox, lp.State)
	assert.Equal(t, 0, lp.ApproachIdx)
	assert.Equal(t, 0, lp.LaneIdx)
}

func TestLocateBoxFallsBackToConnectingLane(t *testing.T) {
	m := connectingLaneTestMap()
	prior := LocatedPoint{State: StateAtIntersectionBox, IntersectionIdx: 0, ApproachIdx: 0, LaneIdx: 0}

	// Past the box polygon but not yet resolved by a plain outbound
	// polygon/lane scan on its own; the origin lane's ConnectsTo entry
	// should still resolve it onto the outbound lane.
	lp := Locate(m, prior, Point2D{0, 2000}, GeoPoint{}, 0, 10)
	assert.Equal(t, StateOnOutbound, lp.State)
	assert.Equal(t, 1, lp.ApproachIdx)
	assert.Equal(t, 0, lp.LaneIdx)
}

func TestLocateInboundFallsBackToConnectingLane(t *testing.T) {
	m := connectingLaneTestMap()
	prior := LocatedPoint{State: StateOnInbound, IntersectionIdx: 0, ApproachIdx: 0, LaneIdx: 0}

	// The vehicle has jumped straight from the inbound lane to a point
	// on the far side of the box, skipping both the box-gap heuristic
	// in tryStayOnApproach and ever landing inside the box polygon.
	lp := Locate(m, prior, Point2D{0, 2000}, GeoPoint{}, 0, 10)
	assert.Equal(t, StateOnOutbound, lp.State)
	assert.Equal(t, 1, lp.ApproachIdx)
	assert.Equal(t, 0, lp.LaneIdx)
}

func TestLocateInboundNoConnectionFallsToOutside(t *testing.T) {
	m := connectingLaneTestMap()
	m.Intersections[0].Approaches[0].Lanes[0].ConnectsTo = nil
	prior := LocatedPoint{State: StateOnInbound, IntersectionIdx: 0, ApproachIdx: 0, LaneIdx: 0}

	lp := Locate(m, prior, Point2D{0, 2000}, GeoPoint{}, 0, 10)
	assert.Equal(t, StateOutside, lp.State)
}

const sampleNmap = `MAP_Name
Test Intersection
RSU_ID
RSU1
MAP_Version
1
IntersectionID
1000
Intersection_attributes
00000001
Reference_point
37.790000 -122.150000 120
No_Approach
1
Approach
1
Approach_type
inbound
Speed_limit
13.4
No_lane
1
Lane 1.2 2
Lane_ID
3
Lane_type
vehicle
Lane_attributes
00000000000000000001
Lane_width
366
No_nodes
3
1 37.790100 -122.150000
2 37.790050 -122.150000
3 37.790000 -122.150000
No_Conn_lane
1
1000.1.9 1
end_lane
end_approach
end_map
`

func TestParseNmapBasicIntersection(t *testing.T) {
	m, err := ParseNmap(strings.NewReader(sampleNmap))
	require.NoError(t, err)
	require.Len(t, m.Intersections, 1)

	isect := m.Intersections[0]
	assert.Equal(t, uint16(1000), isect.IntersectionID)
	require.Len(t, isect.Approaches, 1)
	require.Len(t, isect.Approaches[0].Lanes, 1)

	lane := isect.Approaches[0].Lanes[0]
	assert.Equal(t, uint8(3), lane.ID)
	assert.Equal(t, uint8(2), lane.Phase)
	require.Len(t, lane.Nodes, 3)
	require.Len(t, lane.ConnectsTo, 1)
	assert.Equal(t, LaneConnection{IntersectionIdx: 1000, ApproachIdx: 1, LaneIdx: 9, Maneuver: 1}, lane.ConnectsTo[0])
	assert.Greater(t, lane.Nodes[2].CumDistCm, 0.0)
}

func TestParseNmapPopulatesEncodedMAP(t *testing.T) {
	m, err := ParseNmap(strings.NewReader(sampleNmap))
	require.NoError(t, err)
	require.Len(t, m.Intersections, 1)
	assert.NotEmpty(t, m.Intersections[0].EncodedMAP)
}

func TestBuildMapRecordNodeDeltasAndFirstWidth(t *testing.T) {
	m, err := ParseNmap(strings.NewReader(sampleNmap))
	require.NoError(t, err)
	isect := &m.Intersections[0]

	rec := BuildMapRecord(isect)
	assert.Equal(t, isect.IntersectionID, rec.IntersectionID)
	require.Len(t, rec.Lanes, 1)

	lane := rec.Lanes[0]
	assert.Equal(t, uint8(3), lane.LaneID)
	assert.True(t, lane.HasIngress)
	require.Len(t, lane.Nodes, 3)
	assert.True(t, lane.Nodes[0].HasWidth)
	assert.Equal(t, uint16(366), lane.Nodes[0].Width)
	assert.False(t, lane.Nodes[1].HasWidth)

	require.Len(t, lane.Connections, 1)
	assert.Equal(t, uint8(0), lane.Connections[0].LaneID) // target intersection not loaded, resolves to 0
}
