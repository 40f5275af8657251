package geom

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mmitss/intersection/internal/j2735"
)

// The nmap text format is a flat, section-delimited key/value stream. A
// purpose-built recursive-descent parser would add no real benefit over
// a stateful line scanner here, so this stays on bufio.Scanner the way
// other line-oriented legacy config formats get read.
const sectionDelimiter = "----"

type lineReader struct {
	sc   *bufio.Scanner
	line string
}

func (lr *lineReader) next() (string, bool) {
	for lr.sc.Scan() {
		line := strings.TrimSpace(lr.sc.Text())
		if line == "" {
			continue
		}
		return line, true
	}
	return "", false
}

func fields(line string) []string {
	return strings.Fields(line)
}

// LoadNmap parses an intersection map text file into an IntersectionMap.
func LoadNmap(path string) (*IntersectionMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geom: open nmap file: %w", err)
	}
	defer f.Close()
	return ParseNmap(f)
}

// ParseNmap parses nmap text content from r.
func ParseNmap(r io.Reader) (*IntersectionMap, error) {
	lr := &lineReader{sc: bufio.NewScanner(r)}
	lr.sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	m := &IntersectionMap{}
	for {
		line, ok := lr.next()
		if !ok {
			break
		}
		if line == sectionDelimiter {
			continue
		}
		if line != "MAP_Name" {
			return nil, fmt.Errorf("geom: expected MAP_Name section, got %q", line)
		}
		isect, err := parseIntersection(lr)
		if err != nil {
			return nil, err
		}
		m.Intersections = append(m.Intersections, *isect)
	}
	for i := range m.Intersections {
		isect := &m.Intersections[i]
		finalizeIntersection(isect)
		if payload, err := j2735.EncodeMapPayload(BuildMapRecord(isect)); err == nil {
			isect.EncodedMAP = payload
		}
	}
	return m, nil
}

func expect(lr *lineReader, key string) error {
	line, ok := lr.next()
	if !ok {
		return fmt.Errorf("geom: expected %q, got EOF", key)
	}
	if line != key {
		return fmt.Errorf("geom: expected %q, got %q", key, line)
	}
	return nil
}

func readValueLine(lr *lineReader) (string, error) {
	line, ok := lr.next()
	if !ok {
		return "", fmt.Errorf("geom: unexpected EOF reading value")
	}
	return line, nil
}

func parseIntersection(lr *lineReader) (*Intersection, error) {
	var isect Intersection

	name, err := readValueLine(lr)
	if err != nil {
		return nil, err
	}
	isect.Name = name

	if err := expect(lr, "RSU_ID"); err != nil {
		return nil, err
	}
	if isect.RSUID, err = readValueLine(lr); err != nil {
		return nil, err
	}

	if err := expect(lr, "MAP_Version"); err != nil {
		return nil, err
	}
	v, err := readValueLine(lr)
	if err != nil {
		return nil, err
	}
	ver, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("geom: MAP_Version: %w", err)
	}
	isect.MapVersion = uint8(ver)

	if err := expect(lr, "IntersectionID"); err != nil {
		return nil, err
	}
	id, err := readValueLine(lr)
	if err != nil {
		return nil, err
	}
	idv, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("geom: IntersectionID: %w", err)
	}
	isect.IntersectionID = uint16(idv)

	if err := expect(lr, "Intersection_attributes"); err != nil {
		return nil, err
	}
	attrLine, err := readValueLine(lr)
	if err != nil {
		return nil, err
	}
	attr, err := strconv.ParseUint(attrLine, 2, 8)
	if err != nil {
		return nil, fmt.Errorf("geom: Intersection_attributes: %w", err)
	}
	isect.Attributes = uint8(attr)

	if err := expect(lr, "Reference_point"); err != nil {
		return nil, err
	}
	refLine, err := readValueLine(lr)
	if err != nil {
		return nil, err
	}
	refFields := fields(refLine)
	if len(refFields) != 3 {
		return nil, fmt.Errorf("geom: Reference_point wants 3 fields, got %d", len(refFields))
	}
	lat, _ := strconv.ParseFloat(refFields[0], 64)
	lon, _ := strconv.ParseFloat(refFields[1], 64)
	elev, _ := strconv.ParseFloat(refFields[2], 64)
	isect.RefPoint = GeoPoint{Lat: lat, Lon: lon, Elev: elev}

	if err := expect(lr, "No_Approach"); err != nil {
		return nil, err
	}
	naLine, err := readValueLine(lr)
	if err != nil {
		return nil, err
	}
	numApproach, err := strconv.Atoi(naLine)
	if err != nil {
		return nil, fmt.Errorf("geom: No_Approach: %w", err)
	}

	frame := NewENUFrame(isect.RefPoint)
	for a := 0; a < numApproach; a++ {
		appr, err := parseApproach(lr, frame, a)
		if err != nil {
			return nil, err
		}
		isect.Approaches = append(isect.Approaches, *appr)
	}

	if err := expect(lr, "end_map"); err != nil {
		return nil, err
	}
	return &isect, nil
}

func parseApproach(lr *lineReader, frame ENUFrame, seq int) (*Approach, error) {
	if err := expect(lr, "Approach"); err != nil {
		return nil, err
	}
	if _, err := readValueLine(lr); err != nil { // approach index echo
		return nil, err
	}
	appr := &Approach{Seq: seq}

	if err := expect(lr, "Approach_type"); err != nil {
		return nil, err
	}
	typLine, err := readValueLine(lr)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(typLine, "outbound") {
		appr.Direction = ApproachOutbound
	}

	if err := expect(lr, "Speed_limit"); err != nil {
		return nil, err
	}
	spLine, err := readValueLine(lr)
	if err != nil {
		return nil, err
	}
	sp, _ := strconv.ParseFloat(spLine, 64)
	appr.SpeedLimit = sp

	if err := expect(lr, "No_lane"); err != nil {
		return nil, err
	}
	nlLine, err := readValueLine(lr)
	if err != nil {
		return nil, err
	}
	numLanes, err := strconv.Atoi(nlLine)
	if err != nil {
		return nil, fmt.Errorf("geom: No_lane: %w", err)
	}

	for l := 0; l < numLanes; l++ {
		lane, err := parseLane(lr, frame)
		if err != nil {
			return nil, err
		}
		appr.Lanes = append(appr.Lanes, *lane)
	}

	if err := expect(lr, "end_approach"); err != nil {
		return nil, err
	}
	return appr, nil
}

func parseLane(lr *lineReader, frame ENUFrame) (*Lane, error) {
	line, ok := lr.next()
	if !ok || !strings.HasPrefix(line, "Lane ") {
		return nil, fmt.Errorf("geom: expected Lane i.j phase header, got %q", line)
	}
	var lane Lane
	fs := fields(line)
	if len(fs) == 3 {
		if phase, err := strconv.Atoi(fs[2]); err == nil {
			lane.Phase = uint8(phase)
		}
	}

	if err := expect(lr, "Lane_ID"); err != nil {
		return nil, err
	}
	idLine, err := readValueLine(lr)
	if err != nil {
		return nil, err
	}
	id, err := strconv.Atoi(idLine)
	if err != nil {
		return nil, fmt.Errorf("geom: Lane_ID: %w", err)
	}
	lane.ID = uint8(id)

	if err := expect(lr, "Lane_type"); err != nil {
		return nil, err
	}
	ktLine, err := readValueLine(lr)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(ktLine) {
	case "crosswalk":
		lane.Kind = LaneKindCrosswalk
	case "bike":
		lane.Kind = LaneKindBike
	default:
		lane.Kind = LaneKindVehicle
	}

	if err := expect(lr, "Lane_attributes"); err != nil {
		return nil, err
	}
	attrLine, err := readValueLine(lr)
	if err != nil {
		return nil, err
	}
	attr, err := strconv.ParseUint(attrLine, 2, 32)
	if err != nil {
		return nil, fmt.Errorf("geom: Lane_attributes: %w", err)
	}
	lane.Attributes = uint32(attr)

	if err := expect(lr, "Lane_width"); err != nil {
		return nil, err
	}
	widthLine, err := readValueLine(lr)
	if err != nil {
		return nil, err
	}
	width, err := strconv.Atoi(widthLine)
	if err != nil {
		return nil, fmt.Errorf("geom: Lane_width: %w", err)
	}
	lane.WidthCm = uint16(width)

	if err := expect(lr, "No_nodes"); err != nil {
		return nil, err
	}
	nnLine, err := readValueLine(lr)
	if err != nil {
		return nil, err
	}
	numNodes, err := strconv.Atoi(nnLine)
	if err != nil {
		return nil, fmt.Errorf("geom: No_nodes: %w", err)
	}
	for n := 0; n < numNodes; n++ {
		nodeLine, err := readValueLine(lr)
		if err != nil {
			return nil, err
		}
		nf := fields(nodeLine)
		if len(nf) < 3 {
			return nil, fmt.Errorf("geom: malformed node line %q", nodeLine)
		}
		lat, _ := strconv.ParseFloat(nf[1], 64)
		lon, _ := strconv.ParseFloat(nf[2], 64)
		pt := frame.ToPoint2D(GeoPoint{Lat: lat, Lon: lon, Elev: 0})
		lane.Nodes = append(lane.Nodes, Node{Pt: pt})
	}

	if err := expect(lr, "No_Conn_lane"); err != nil {
		return nil, err
	}
	ncLine, err := readValueLine(lr)
	if err != nil {
		return nil, err
	}
	numConn, err := strconv.Atoi(ncLine)
	if err != nil {
		return nil, fmt.Errorf("geom: No_Conn_lane: %w", err)
	}
	for c := 0; c < numConn; c++ {
		connLine, err := readValueLine(lr)
		if err != nil {
			return nil, err
		}
		conn, err := parseConnection(connLine)
		if err != nil {
			return nil, err
		}
		lane.ConnectsTo = append(lane.ConnectsTo, conn)
	}

	if err := expect(lr, "end_lane"); err != nil {
		return nil, err
	}
	return &lane, nil
}

// parseConnection parses a "intId.approachSeq.laneSeq maneuver" line.
func parseConnection(line string) (LaneConnection, error) {
	fs := fields(line)
	if len(fs) != 2 {
		return LaneConnection{}, fmt.Errorf("geom: malformed connection line %q", line)
	}
	idx := strings.Split(fs[0], ".")
	if len(idx) != 3 {
		return LaneConnection{}, fmt.Errorf("geom: malformed connection index %q", fs[0])
	}
	intIdx, err1 := strconv.Atoi(idx[0])
	apIdx, err2 := strconv.Atoi(idx[1])
	laneIdx, err3 := strconv.Atoi(idx[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return LaneConnection{}, fmt.Errorf("geom: malformed connection index %q", fs[0])
	}
	man, err := strconv.Atoi(fs[1])
	if err != nil {
		return LaneConnection{}, fmt.Errorf("geom: malformed maneuver %q", fs[1])
	}
	return LaneConnection{IntersectionIdx: intIdx, ApproachIdx: apIdx, LaneIdx: laneIdx, Maneuver: uint16(man)}, nil
}

// finalizeIntersection computes cumulative distances, node headings, and
// the approach/intersection polygons after every lane has been parsed.
func finalizeIntersection(isect *Intersection) {
	var allExtrema []Point2D
	for a := range isect.Approaches {
		appr := &isect.Approaches[a]
		var apExtrema []Point2D
		for l := range appr.Lanes {
			lane := &appr.Lanes[l]
			finalizeLaneGeometry(lane)
			if len(lane.Nodes) > 0 {
				apExtrema = append(apExtrema, lane.Nodes[0].Pt, lane.Nodes[len(lane.Nodes)-1].Pt)
			}
		}
		appr.Polygon = ConvexHull(apExtrema)
		allExtrema = append(allExtrema, apExtrema...)
	}
	isect.Polygon = nearestWaypointBox(allExtrema)
}

func finalizeLaneGeometry(lane *Lane) {
	var cum float64
	for i := range lane.Nodes {
		if i > 0 {
			cum += Distance2D(lane.Nodes[i-1].Pt, lane.Nodes[i].Pt)
			lane.Nodes[i].HeadingDdeg = HeadingDdeg(lane.Nodes[i-1].Pt, lane.Nodes[i].Pt)
		}
		lane.Nodes[i].CumDistCm = cum
	}
	if len(lane.Nodes) > 1 {
		lane.Nodes[0].HeadingDdeg = lane.Nodes[1].HeadingDdeg
	}
}

// nearestWaypointBox builds the intersection polygon as the convex hull of
// the four waypoints nearest the origin. It does not check that they come
// from different approaches.
func nearestWaypointBox(pts []Point2D) []Point2D {
	if len(pts) == 0 {
		return nil
	}
	type withDist struct {
		p Point2D
		d float64
	}
	withDs := make([]withDist, len(pts))
	for i, p := range pts {
		withDs[i] = withDist{p, Distance2D(p, Point2D{})}
	}
	n := 4
	if len(withDs) < n {
		n = len(withDs)
	}
	// partial selection of the n nearest points, then hull them.
	for i := 0; i < n; i++ {
		minIdx := i
		for j := i + 1; j < len(withDs); j++ {
			if withDs[j].d < withDs[minIdx].d {
				minIdx = j
			}
		}
		withDs[i], withDs[minIdx] = withDs[minIdx], withDs[i]
	}
	nearest := make([]Point2D, n)
	for i := 0; i < n; i++ {
		nearest[i] = withDs[i].p
	}
	return ConvexHull(nearest)
}
