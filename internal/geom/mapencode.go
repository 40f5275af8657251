package geom

import "github.com/mmitss/intersection/internal/j2735"

// BuildMapRecord converts one parsed Intersection into the J2735
// IntersectionGeometry shape, node deltas and all; LoadNmap calls this
// once per intersection so EncodedMAP is ready before the first
// broadcast.
func BuildMapRecord(isect *Intersection) j2735.MapRecord {
	rec := j2735.MapRecord{
		IntersectionID: isect.IntersectionID,
		MsgIssueRev:    isect.MapVersion,
		RefLat:         int32(isect.RefPoint.Lat * 1e7),
		RefLon:         int32(isect.RefPoint.Lon * 1e7),
		HasElevation:   true,
		RefElev:        int16(isect.RefPoint.Elev * 10),
	}
	for _, ap := range isect.Approaches {
		for _, lane := range ap.Lanes {
			ml := j2735.MapLane{
				LaneID:       lane.ID,
				ControlPhase: lane.Phase,
				IsCrosswalk:  lane.Kind == LaneKindCrosswalk,
			}
			if ap.Direction == ApproachInbound {
				ml.HasIngress = true
				ml.IngressApproachID = uint8(ap.Seq)
			} else {
				ml.HasEgress = true
				ml.EgressApproachID = uint8(ap.Seq)
			}
			if len(lane.Nodes) > 0 {
				ml.LaneTypeAttrs = uint16(lane.Attributes)
				prev := Point2D{}
				for i, n := range lane.Nodes {
					mn := j2735.MapNode{DX: int32(n.Pt.X - prev.X), DY: int32(n.Pt.Y - prev.Y)}
					if i == 0 {
						mn.HasWidth = true
						mn.Width = lane.WidthCm
					}
					ml.Nodes = append(ml.Nodes, mn)
					prev = n.Pt
				}
			}
			for _, c := range lane.ConnectsTo {
				ml.Connections = append(ml.Connections, j2735.Connection{LaneID: laneIDAt(isect, c)})
			}
			rec.Lanes = append(rec.Lanes, ml)
		}
	}
	return rec
}

// laneIDAt resolves a LaneConnection's index triple back to the target
// lane's wire ID, or 0 if the indices no longer resolve.
func laneIDAt(isect *Intersection, c LaneConnection) uint8 {
	if c.ApproachIdx < 0 || c.ApproachIdx >= len(isect.Approaches) {
		return 0
	}
	ap := isect.Approaches[c.ApproachIdx]
	if c.LaneIdx < 0 || c.LaneIdx >= len(ap.Lanes) {
		return 0
	}
	return ap.Lanes[c.LaneIdx].ID
}
