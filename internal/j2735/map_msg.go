package j2735

import "github.com/mmitss/intersection/internal/j2735/uper"

// LaneDirection is the 2-bit LaneDirection attribute.
type LaneDirection uint8

const (
	LaneDirIngress LaneDirection = iota
	LaneDirEgress
	LaneDirBoth
	LaneDirReserved
)

// NodeOffsetXY holds a node's ENU offset from the previous node, in
// centimeters, encoded with the narrowest NodeOffsetPointXY variant that
// covers it.
type NodeOffsetXY struct {
	DX, DY int32
}

// nodeOffsetRanges lists the six NodeXYn variants' half-ranges in
// ascending order: 511, 1023, 2047, 4096, 8191, else XY6.
var nodeOffsetRanges = [5]int64{511, 1023, 2047, 4096, 8191}

func nodeOffsetVariant(dx, dy int32) int {
	mag2 := int64(dx)*int64(dx) + int64(dy)*int64(dy)
	for i, r := range nodeOffsetRanges {
		if mag2 <= r*r {
			return i
		}
	}
	return 5
}

// Connection describes an outbound connecting lane.
type Connection struct {
	RemoteIntersectionID uint16 // 0 if same intersection
	LaneID               uint8
	HasManeuver          bool
	Maneuver             uint16 // AllowedManeuvers bit index, 0 if none
	HasSignalGroup       bool
	SignalGroup          uint8
}

// MapNode is one NodeXY, already resolved to an ENU offset from the
// previous node (or from the lane's first node, for the first element).
type MapNode struct {
	DX, DY      int32
	HasWidth    bool // first node only, when lane width != reference width
	Width       uint16
}

// MapLane mirrors J2735's GenericLane.
type MapLane struct {
	LaneID            uint8
	Direction         LaneDirection
	SharedWith        uint16 // 10-bit bitset
	IsCrosswalk       bool
	LaneTypeAttrs     uint16 // 16-bit crosswalk or 8-bit vehicle attribute bits
	ControlPhase      uint8  // 0 if none
	HasIngress        bool
	IngressApproachID uint8
	HasEgress         bool
	EgressApproachID  uint8
	HasManeuvers      bool
	AllowedManeuvers  uint16 // 12-bit BIT STRING
	Connections       []Connection
	Nodes             []MapNode
}

// MapRecord is one IntersectionGeometry, modeling a single speed group
// per MAP payload to match the map engine's single reference-point
// usage.
type MapRecord struct {
	IntersectionID uint16
	MsgIssueRev    uint8 // mapVersion
	RefLat         int32 // 1/10 microdegree
	RefLon         int32
	HasElevation   bool
	RefElev        int16 // decimeters
	RefWidth       uint16
	HasSpeedLimit  bool
	SpeedLimitMPH  uint8
	Lanes          []MapLane
}

const (
	mapLatMin, mapLatMax = -900000000, 900000001
	mapLonMin, mapLonMax = -1799999999, 1800000001
	mapElevMin, mapElevMax = -4096, 61439
)

// EncodeMapPayload encodes a single IntersectionGeometry.
func EncodeMapPayload(rec MapRecord) ([]byte, error) {
	w := uper.NewWriter()
	if err := w.AppendConstrainedInt(int64(rec.IntersectionID), 0, 65535); err != nil {
		return nil, wrap("id", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.MsgIssueRev), 0, 127); err != nil {
		return nil, wrap("msgIssueRevision", err)
	}
	w.AppendOptionalBitmap([]bool{rec.HasElevation, rec.HasSpeedLimit})
	if err := w.AppendConstrainedInt(int64(rec.RefLat), mapLatMin, mapLatMax); err != nil {
		return nil, wrap("refPoint.lat", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.RefLon), mapLonMin, mapLonMax); err != nil {
		return nil, wrap("refPoint.long", err)
	}
	if rec.HasElevation {
		if err := w.AppendConstrainedInt(int64(rec.RefElev), mapElevMin, mapElevMax); err != nil {
			return nil, wrap("refPoint.elevation", err)
		}
	}
	if err := w.AppendConstrainedInt(int64(rec.RefWidth), 0, 1023); err != nil {
		return nil, wrap("laneWidth", err)
	}
	if rec.HasSpeedLimit {
		if err := w.AppendConstrainedInt(int64(rec.SpeedLimitMPH), 0, 255); err != nil {
			return nil, wrap("speedLimits.vehicleMaxSpeed", err)
		}
	}
	if err := w.AppendConstrainedInt(int64(len(rec.Lanes)), 1, 255); err != nil {
		return nil, wrap("laneList", err)
	}
	for i := range rec.Lanes {
		if err := encodeLane(w, rec.Lanes[i]); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func encodeLane(w *uper.Writer, l MapLane) error {
	if err := w.AppendConstrainedInt(int64(l.LaneID), 0, 255); err != nil {
		return wrap("laneID", err)
	}
	w.AppendBits(uint64(l.Direction), 2)
	w.AppendBits(uint64(l.SharedWith), 10)
	w.AppendBit(boolBit(l.IsCrosswalk))
	if l.IsCrosswalk {
		w.AppendBits(uint64(l.LaneTypeAttrs), 16)
	} else {
		w.AppendBits(uint64(l.LaneTypeAttrs), 8)
	}
	w.AppendOptionalBitmap([]bool{l.HasIngress, l.HasEgress, l.HasManeuvers, len(l.Connections) > 0})
	if l.HasIngress {
		if err := w.AppendConstrainedInt(int64(l.IngressApproachID), 1, 12); err != nil {
			return wrap("ingressApproach", err)
		}
	}
	if l.HasEgress {
		if err := w.AppendConstrainedInt(int64(l.EgressApproachID), 1, 12); err != nil {
			return wrap("egressApproach", err)
		}
	}
	if l.HasManeuvers {
		w.AppendBits(uint64(l.AllowedManeuvers), 12)
	}
	if len(l.Connections) > 0 {
		if err := w.AppendConstrainedInt(int64(len(l.Connections)), 1, 8); err != nil {
			return wrap("connectsTo", err)
		}
		for _, c := range l.Connections {
			if err := w.AppendConstrainedInt(int64(c.LaneID), 0, 255); err != nil {
				return wrap("connectsTo.lane", err)
			}
			w.AppendOptionalBitmap([]bool{c.HasManeuver, c.RemoteIntersectionID != 0, c.HasSignalGroup})
			if c.HasManeuver {
				w.AppendBits(uint64(c.Maneuver), 12)
			}
			if c.RemoteIntersectionID != 0 {
				if err := w.AppendConstrainedInt(int64(c.RemoteIntersectionID), 0, 65535); err != nil {
					return wrap("connectsTo.remoteIntersection", err)
				}
			}
			if c.HasSignalGroup {
				if err := w.AppendConstrainedInt(int64(c.SignalGroup), 0, 255); err != nil {
					return wrap("connectsTo.signalGroup", err)
				}
			}
		}
	}
	if err := w.AppendConstrainedInt(int64(len(l.Nodes)), 2, 63); err != nil {
		return wrap("nodeList", err)
	}
	for i, n := range l.Nodes {
		variant := nodeOffsetVariant(n.DX, n.DY)
		if err := w.AppendEnumerated(variant, 6); err != nil {
			return wrap("node.offset.variant", err)
		}
		half := nodeOffsetHalfRange(variant)
		if err := w.AppendConstrainedInt(int64(n.DX), -half, half-1); err != nil {
			return wrap("node.offset.x", err)
		}
		if err := w.AppendConstrainedInt(int64(n.DY), -half, half-1); err != nil {
			return wrap("node.offset.y", err)
		}
		if i == 0 {
			w.AppendBit(boolBit(n.HasWidth))
			if n.HasWidth {
				if err := w.AppendConstrainedInt(int64(n.Width), 0, 1023); err != nil {
					return wrap("node.attributes.dWidth", err)
				}
			}
		}
	}
	return nil
}

func nodeOffsetHalfRange(variant int) int64 {
	if variant < len(nodeOffsetRanges) {
		return nodeOffsetRanges[variant] + 1
	}
	return 32767
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// DecodeMapPayload decodes a single IntersectionGeometry.
func DecodeMapPayload(b []byte) (MapRecord, error) {
	var rec MapRecord
	r := uper.NewReader(b)

	id, err := r.DecodeConstrainedInt(0, 65535)
	if err != nil {
		return rec, wrap("id", err)
	}
	rec.IntersectionID = uint16(id)

	rev, err := r.DecodeConstrainedInt(0, 127)
	if err != nil {
		return rec, wrap("msgIssueRevision", err)
	}
	rec.MsgIssueRev = uint8(rev)

	preamble, err := r.DecodeOptionalBitmap(2)
	if err != nil {
		return rec, wrap("preamble", err)
	}
	rec.HasElevation, rec.HasSpeedLimit = preamble[0], preamble[1]

	lat, err := r.DecodeConstrainedInt(mapLatMin, mapLatMax)
	if err != nil {
		return rec, wrap("refPoint.lat", err)
	}
	rec.RefLat = int32(lat)
	lon, err := r.DecodeConstrainedInt(mapLonMin, mapLonMax)
	if err != nil {
		return rec, wrap("refPoint.long", err)
	}
	rec.RefLon = int32(lon)
	if rec.HasElevation {
		elev, err := r.DecodeConstrainedInt(mapElevMin, mapElevMax)
		if err != nil {
			return rec, wrap("refPoint.elevation", err)
		}
		rec.RefElev = int16(elev)
	}
	width, err := r.DecodeConstrainedInt(0, 1023)
	if err != nil {
		return rec, wrap("laneWidth", err)
	}
	rec.RefWidth = uint16(width)
	if rec.HasSpeedLimit {
		sl, err := r.DecodeConstrainedInt(0, 255)
		if err != nil {
			return rec, wrap("speedLimits.vehicleMaxSpeed", err)
		}
		rec.SpeedLimitMPH = uint8(sl)
	}
	nLanes, err := r.DecodeConstrainedInt(1, 255)
	if err != nil {
		return rec, wrap("laneList", err)
	}
	rec.Lanes = make([]MapLane, nLanes)
	for i := range rec.Lanes {
		lane, err := decodeLane(r)
		if err != nil {
			return rec, err
		}
		rec.Lanes[i] = lane
	}
	return rec, nil
}

func decodeLane(r *uper.Reader) (MapLane, error) {
	var l MapLane
	laneID, err := r.DecodeConstrainedInt(0, 255)
	if err != nil {
		return l, wrap("laneID", err)
	}
	l.LaneID = uint8(laneID)
	dir, err := r.DecodeBits(2)
	if err != nil {
		return l, wrap("direction", err)
	}
	l.Direction = LaneDirection(dir)
	shared, err := r.DecodeBits(10)
	if err != nil {
		return l, wrap("sharedWith", err)
	}
	l.SharedWith = uint16(shared)
	isCrosswalk, err := r.DecodeBit()
	if err != nil {
		return l, wrap("laneType", err)
	}
	l.IsCrosswalk = isCrosswalk == 1
	attrBits := 8
	if l.IsCrosswalk {
		attrBits = 16
	}
	attrs, err := r.DecodeBits(attrBits)
	if err != nil {
		return l, wrap("laneTypeAttributes", err)
	}
	l.LaneTypeAttrs = uint16(attrs)

	preamble, err := r.DecodeOptionalBitmap(4)
	if err != nil {
		return l, wrap("lane.preamble", err)
	}
	var hasConn bool
	l.HasIngress, l.HasEgress, l.HasManeuvers, hasConn = preamble[0], preamble[1], preamble[2], preamble[3]

	if l.HasIngress {
		v, err := r.DecodeConstrainedInt(1, 12)
		if err != nil {
			return l, wrap("ingressApproach", err)
		}
		l.IngressApproachID = uint8(v)
	}
	if l.HasEgress {
		v, err := r.DecodeConstrainedInt(1, 12)
		if err != nil {
			return l, wrap("egressApproach", err)
		}
		l.EgressApproachID = uint8(v)
	}
	if l.HasManeuvers {
		v, err := r.DecodeBits(12)
		if err != nil {
			return l, wrap("allowedManeuvers", err)
		}
		l.AllowedManeuvers = uint16(v)
	}
	if hasConn {
		nConn, err := r.DecodeConstrainedInt(1, 8)
		if err != nil {
			return l, wrap("connectsTo", err)
		}
		l.Connections = make([]Connection, nConn)
		for i := range l.Connections {
			var c Connection
			laneID, err := r.DecodeConstrainedInt(0, 255)
			if err != nil {
				return l, wrap("connectsTo.lane", err)
			}
			c.LaneID = uint8(laneID)
			cp, err := r.DecodeOptionalBitmap(3)
			if err != nil {
				return l, wrap("connectsTo.preamble", err)
			}
			var hasRemote bool
			c.HasManeuver, hasRemote, c.HasSignalGroup = cp[0], cp[1], cp[2]
			if c.HasManeuver {
				v, err := r.DecodeBits(12)
				if err != nil {
					return l, wrap("connectsTo.maneuver", err)
				}
				c.Maneuver = uint16(v)
			}
			if hasRemote {
				v, err := r.DecodeConstrainedInt(0, 65535)
				if err != nil {
					return l, wrap("connectsTo.remoteIntersection", err)
				}
				c.RemoteIntersectionID = uint16(v)
			}
			if c.HasSignalGroup {
				v, err := r.DecodeConstrainedInt(0, 255)
				if err != nil {
					return l, wrap("connectsTo.signalGroup", err)
				}
				c.SignalGroup = uint8(v)
			}
			l.Connections[i] = c
		}
	}

	nNodes, err := r.DecodeConstrainedInt(2, 63)
	if err != nil {
		return l, wrap("nodeList", err)
	}
	l.Nodes = make([]MapNode, nNodes)
	for i := range l.Nodes {
		variant, err := r.DecodeEnumerated(6)
		if err != nil {
			return l, wrap("node.offset.variant", err)
		}
		half := nodeOffsetHalfRange(variant)
		dx, err := r.DecodeConstrainedInt(-half, half-1)
		if err != nil {
			return l, wrap("node.offset.x", err)
		}
		dy, err := r.DecodeConstrainedInt(-half, half-1)
		if err != nil {
			return l, wrap("node.offset.y", err)
		}
		n := MapNode{DX: int32(dx), DY: int32(dy)}
		if i == 0 {
			hasWidth, err := r.DecodeBit()
			if err != nil {
				return l, wrap("node.attributes", err)
			}
			n.HasWidth = hasWidth == 1
			if n.HasWidth {
				w, err := r.DecodeConstrainedInt(0, 1023)
				if err != nil {
					return l, wrap("node.attributes.dWidth", err)
				}
				n.Width = uint16(w)
			}
		}
		l.Nodes[i] = n
	}
	return l, nil
}
