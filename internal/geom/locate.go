package geom

import "math"

// MappingState is a vehicle's coarse position relative to an
// intersection's lane network.
type MappingState uint8

const (
	StateOutside MappingState = iota
	StateOnInbound
	StateAtIntersectionBox
	StateInsideIntersectionBox
	StateOnOutbound
)

// ProjectionOutcome classifies where a projected point falls relative to
// the chosen lane segment.
type ProjectionOutcome uint8

const (
	ProjApproaching ProjectionOutcome = iota
	ProjInside
	ProjLeaving
)

// LocatedPoint is the result of mapping one vehicle observation onto the
// lane network: its coarse state plus, when mapped to a lane, the
// projection detail.
type LocatedPoint struct {
	State           MappingState
	IntersectionIdx int
	ApproachIdx     int
	LaneIdx         int
	SegmentIdx      int // index of lane.Nodes[SegmentIdx] -> [SegmentIdx+1]
	T               float64
	DistLongCm      float64 // distance along the lane from its first node, cm
	DistLatCm       float64 // signed perpendicular offset, cm (+ = right of travel)
	Outcome         ProjectionOutcome
}

// headingToleranceDdeg returns the tolerance (in deci-degrees) between a
// node's travel heading and the vehicle's reported heading: tight at
// speed, loose near-stationary (heading is unreliable below 0.2 m/s).
func headingToleranceDdeg(speedMPS float64) float64 {
	if speedMPS >= 0.2 {
		return 450 // 45 degrees in deci-degrees
	}
	return 2000 // 200 degrees
}

func angularDiffDdeg(a, b float64) float64 {
	d := math.Mod(a-b+1800, 3600)
	if d < 0 {
		d += 3600
	}
	return math.Abs(d - 1800)
}

// projectOnSegment projects p onto the segment from a to b, returning the
// normalized parameter t and the signed perpendicular distance in the
// same units as the inputs (centimeters).
func projectOnSegment(p, a, b Point2D) (t, distLong, distLat float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return 0, Distance2D(p, a), 0
	}
	apx, apy := p.X-a.X, p.Y-a.Y
	t = (apx*dx + apy*dy) / lenSq
	// perpendicular (cross product) component, positive = right of a->b.
	cross := apx*dy - apy*dx
	distLat = cross / math.Sqrt(lenSq)
	distLong = t * math.Sqrt(lenSq)
	return t, distLong, distLat
}

// ProjectPt2Lane walks lane's node chain in travel direction and finds
// the best-matching segment for p, given the vehicle's heading and speed.
func ProjectPt2Lane(p Point2D, headingDdeg float64, speedMPS float64, lane *Lane) (LocatedPoint, bool) {
	if len(lane.Nodes) < 2 {
		return LocatedPoint{}, false
	}
	tol := headingToleranceDdeg(speedMPS)
	best := LocatedPoint{}
	found := false
	bestAbsLat := math.MaxFloat64

	for i := 0; i < len(lane.Nodes)-1; i++ {
		a, b := lane.Nodes[i], lane.Nodes[i+1]
		if angularDiffDdeg(b.HeadingDdeg, headingDdeg) > tol {
			continue
		}
		t, distLong, distLat := projectOnSegment(p, a.Pt, b.Pt)
		if t < 0 || t > 1 {
			continue
		}
		if math.Abs(distLat) >= float64(lane.WidthCm)*1.5 {
			continue
		}
		if math.Abs(distLat) < bestAbsLat {
			bestAbsLat = math.Abs(distLat)
			best = LocatedPoint{
				SegmentIdx: i,
				T:          t,
				DistLongCm: a.CumDistCm + distLong,
				DistLatCm:  distLat,
				Outcome:    ProjInside,
			}
			found = true
		}
	}
	if found {
		return best, true
	}

	// No segment has t in [0,1]: fall back to the nearest endpoint
	// segment and classify as approaching/leaving.
	first := lane.Nodes[0]
	last := lane.Nodes[len(lane.Nodes)-2]
	tFirst, dLongFirst, dLatFirst := projectOnSegment(p, first.Pt, lane.Nodes[1].Pt)
	tLast, dLongLast, dLatLast := projectOnSegment(p, last.Pt, lane.Nodes[len(lane.Nodes)-1].Pt)
	if tFirst < 0 && math.Abs(dLatFirst) < float64(lane.WidthCm)*1.5 {
		return LocatedPoint{SegmentIdx: 0, T: tFirst, DistLongCm: dLongFirst, DistLatCm: dLatFirst, Outcome: ProjApproaching}, true
	}
	if tLast > 1 && math.Abs(dLatLast) < float64(lane.WidthCm)*1.5 {
		return LocatedPoint{
			SegmentIdx: len(lane.Nodes) - 2,
			T:          tLast,
			DistLongCm: last.CumDistCm + dLongLast,
			DistLatCm:  dLatLast,
			Outcome:    ProjLeaving,
		}, true
	}
	return LocatedPoint{}, false
}

// Locate maps an observed point against the map, given the vehicle's
// prior LocatedPoint (or the zero value for a never-seen vehicle),
// applying a five-state transition table. It returns the updated
// LocatedPoint.
func Locate(m *IntersectionMap, prior LocatedPoint, p Point2D, pt GeoPoint, headingDdeg, speedMPS float64) LocatedPoint {
	switch prior.State {
	case StateOnInbound:
		if lp, ok := tryStayOnApproach(m, prior, p, headingDdeg, speedMPS); ok {
			return lp
		}
		if lp, ok := tryConnectingLane(m, prior.IntersectionIdx, prior.ApproachIdx, prior.LaneIdx, p, headingDdeg, speedMPS); ok {
			return lp
		}
		return locateFromOutside(m, p)
	case StateAtIntersectionBox, StateInsideIntersectionBox:
		isect := &m.Intersections[prior.IntersectionIdx]
		if PointInPolygon(p, isect.Polygon) {
			return LocatedPoint{
				State:           StateInsideIntersectionBox,
				IntersectionIdx: prior.IntersectionIdx,
				ApproachIdx:     prior.ApproachIdx,
				LaneIdx:         prior.LaneIdx,
			}
		}
		if lp, ok := tryConnectingLane(m, prior.IntersectionIdx, prior.ApproachIdx, prior.LaneIdx, p, headingDdeg, speedMPS); ok {
			return lp
		}
		return LocatedPoint{State: StateOnOutbound, IntersectionIdx: prior.IntersectionIdx}
	case StateOnOutbound:
		isect := &m.Intersections[prior.IntersectionIdx]
		for ai := range isect.Approaches {
			if isect.Approaches[ai].Direction != ApproachOutbound {
				continue
			}
			if !PointInPolygon(p, isect.Approaches[ai].Polygon) {
				continue
			}
			for li := range isect.Approaches[ai].Lanes {
				if lp, ok := ProjectPt2Lane(p, headingDdeg, speedMPS, &isect.Approaches[ai].Lanes[li]); ok {
					lp.State = StateOnOutbound
					lp.IntersectionIdx = prior.IntersectionIdx
					lp.ApproachIdx = ai
					lp.LaneIdx = li
					return lp
				}
			}
		}
		return LocatedPoint{State: StateOutside}
	default:
		return locateFromOutside(m, p)
	}
}

func tryStayOnApproach(m *IntersectionMap, prior LocatedPoint, p Point2D, headingDdeg, speedMPS float64) (LocatedPoint, bool) {
	isect := &m.Intersections[prior.IntersectionIdx]
	lane := &isect.Approaches[prior.ApproachIdx].Lanes[prior.LaneIdx]
	lp, ok := ProjectPt2Lane(p, headingDdeg, speedMPS, lane)
	if !ok {
		return LocatedPoint{}, false
	}
	lp.IntersectionIdx = prior.IntersectionIdx
	lp.ApproachIdx = prior.ApproachIdx
	lp.LaneIdx = prior.LaneIdx
	if lp.Outcome == ProjLeaving {
		gap := approachToBoxGap(isect, prior.ApproachIdx)
		if lp.DistLongCm-lane.Nodes[len(lane.Nodes)-1].CumDistCm < gap/2 {
			lp.State = StateAtIntersectionBox
			return lp, true
		}
		return LocatedPoint{}, false
	}
	lp.State = StateOnInbound
	return lp, true
}

// approachToBoxGap approximates the gap between an approach's polygon
// and the intersection polygon as the distance from the approach's last
// node to the intersection reference origin.
func approachToBoxGap(isect *Intersection, approachIdx int) float64 {
	appr := &isect.Approaches[approachIdx]
	var maxDist float64
	for _, l := range appr.Lanes {
		if len(l.Nodes) == 0 {
			continue
		}
		d := Distance2D(l.Nodes[len(l.Nodes)-1].Pt, Point2D{})
		if d > maxDist {
			maxDist = d
		}
	}
	return maxDist
}

// tryConnectingLane resolves the origin lane's configured ConnectsTo list
// and projects p onto each candidate in turn, for vehicles that cross
// the gap between an inbound lane and the box, or the box itself,
// without a tick ever landing inside the box polygon or on the far
// outbound approach's own polygon.
func tryConnectingLane(m *IntersectionMap, isectIdx, approachIdx, laneIdx int, p Point2D, headingDdeg, speedMPS float64) (LocatedPoint, bool) {
	if isectIdx < 0 || isectIdx >= len(m.Intersections) {
		return LocatedPoint{}, false
	}
	isect := &m.Intersections[isectIdx]
	if approachIdx < 0 || approachIdx >= len(isect.Approaches) {
		return LocatedPoint{}, false
	}
	ap := &isect.Approaches[approachIdx]
	if laneIdx < 0 || laneIdx >= len(ap.Lanes) {
		return LocatedPoint{}, false
	}
	for _, conn := range ap.Lanes[laneIdx].ConnectsTo {
		if conn.IntersectionIdx < 0 || conn.IntersectionIdx >= len(m.Intersections) {
			continue
		}
		target := &m.Intersections[conn.IntersectionIdx]
		if conn.ApproachIdx < 0 || conn.ApproachIdx >= len(target.Approaches) {
			continue
		}
		targetAp := &target.Approaches[conn.ApproachIdx]
		if conn.LaneIdx < 0 || conn.LaneIdx >= len(targetAp.Lanes) {
			continue
		}
		lane := &targetAp.Lanes[conn.LaneIdx]
		lp, ok := ProjectPt2Lane(p, headingDdeg, speedMPS, lane)
		if !ok {
			continue
		}
		lp.IntersectionIdx = conn.IntersectionIdx
		lp.ApproachIdx = conn.ApproachIdx
		lp.LaneIdx = conn.LaneIdx
		if targetAp.Direction == ApproachOutbound {
			lp.State = StateOnOutbound
		} else {
			lp.State = StateOnInbound
		}
		return lp, true
	}
	return LocatedPoint{}, false
}

func locateFromOutside(m *IntersectionMap, p Point2D) LocatedPoint {
	for ii := range m.Intersections {
		isect := &m.Intersections[ii]
		if PointInPolygon(p, isect.Polygon) {
			return LocatedPoint{State: StateInsideIntersectionBox, IntersectionIdx: ii}
		}
		for ai := range isect.Approaches {
			if isect.Approaches[ai].Direction != ApproachInbound {
				continue
			}
			if !PointInPolygon(p, isect.Approaches[ai].Polygon) {
				continue
			}
			for li := range isect.Approaches[ai].Lanes {
				lane := &isect.Approaches[ai].Lanes[li]
				if lp, ok := ProjectPt2Lane(p, 0, 10, lane); ok {
					lp.State = StateOnInbound
					lp.IntersectionIdx = ii
					lp.ApproachIdx = ai
					lp.LaneIdx = li
					return lp
				}
			}
		}
	}
	return LocatedPoint{State: StateOutside}
}

// UpdateLocationAware reports the fields a vehicle-tracking consumer
// needs from a LocatedPoint.
type LocationAware struct {
	IntersectionID   uint16
	LaneID           uint8
	ControlPhase     uint8
	DistLongToStopBarM float64
	DistLateralM       float64
	Connections        []LaneConnection
}

func UpdateLocationAware(m *IntersectionMap, lp LocatedPoint) (LocationAware, bool) {
	if lp.State != StateOnInbound && lp.State != StateAtIntersectionBox {
		return LocationAware{}, false
	}
	isect := &m.Intersections[lp.IntersectionIdx]
	lane := &isect.Approaches[lp.ApproachIdx].Lanes[lp.LaneIdx]
	stopBarCm := lane.Nodes[len(lane.Nodes)-1].CumDistCm
	return LocationAware{
		IntersectionID:     isect.IntersectionID,
		LaneID:             lane.ID,
		ControlPhase:       lane.Phase,
		DistLongToStopBarM: (stopBarCm - lp.DistLongCm) / 100,
		DistLateralM:       lp.DistLatCm / 100,
		Connections:        lane.ConnectsTo,
	}, true
}
