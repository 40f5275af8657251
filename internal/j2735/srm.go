package j2735

import "github.com/mmitss/intersection/internal/j2735/uper"

// RequestType is SignalRequest.requestType.
type RequestType uint8

const (
	RequestTypePriorityRequest RequestType = iota
	RequestTypeRequestUpdate
	RequestTypePriorityCancellation
)

const requestTypeCount = 3

// InBoundLane is the CHOICE(approach|lane) selector on a SignalRequest.
type InBoundLane struct {
	IsApproach bool
	Approach   uint8
	Lane       uint8
}

// Position3D is a vehicle's reported position (same units as BSM).
type Position3D struct {
	Lat      int32
	Lon      int32
	HasElev  bool
	Elev     int16
}

// RequestorPositionVector carries a requestor's position, heading and speed.
type RequestorPositionVector struct {
	Position     Position3D
	Heading      uint16
	Transmission Transmission
	Speed        uint16
}

// RequestorType is RequestorDescription.typeData.
type RequestorType struct {
	Role     uint8 // BasicVehicleRole
	HasHPMS  bool
	HPMSType uint8
}

// RequestorDescription identifies the vehicle issuing the request.
type RequestorDescription struct {
	VehicleID uint32
	Type      RequestorType
	Position  RequestorPositionVector
}

// SrmRecord is one SignalRequestMessage. This codec models a
// single-element SignalRequestList, matching the field's usage in the
// priority engine.
type SrmRecord struct {
	Second         uint16 // DSecond
	HasMinuteOfYr  bool
	MinuteOfYear   uint32
	HasMsgCount    bool
	MsgCount       uint8
	IntersectionID uint16
	RequestID      uint8
	RequestType    RequestType
	InBound        InBoundLane
	HasOutBound    bool
	OutBoundLane   uint8
	HasETA         bool
	ETAMinute      uint8
	ETASecond      uint16
	HasDuration    bool
	Duration       uint16
	Requestor      RequestorDescription
}

// EncodeSrmPayload encodes a single SignalRequestMessage.
func EncodeSrmPayload(rec SrmRecord) ([]byte, error) {
	w := uper.NewWriter()
	if err := w.AppendConstrainedInt(int64(rec.Second), 0, 65535); err != nil {
		return nil, wrap("second", err)
	}
	w.AppendOptionalBitmap([]bool{rec.HasMinuteOfYr, rec.HasMsgCount})
	if rec.HasMinuteOfYr {
		if err := w.AppendConstrainedInt(int64(rec.MinuteOfYear), 0, 527040); err != nil {
			return nil, wrap("minuteOfTheYear", err)
		}
	}
	if rec.HasMsgCount {
		if err := w.AppendConstrainedInt(int64(rec.MsgCount), 0, 127); err != nil {
			return nil, wrap("msgCount", err)
		}
	}
	if err := w.AppendConstrainedInt(int64(rec.IntersectionID), 0, 65535); err != nil {
		return nil, wrap("requests.id", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.RequestID), 0, 255); err != nil {
		return nil, wrap("requests.requestID", err)
	}
	if err := w.AppendEnumerated(int(rec.RequestType), requestTypeCount); err != nil {
		return nil, wrap("requests.requestType", err)
	}
	w.AppendBit(boolBit(rec.InBound.IsApproach))
	if rec.InBound.IsApproach {
		if err := w.AppendConstrainedInt(int64(rec.InBound.Approach), 0, 15); err != nil {
			return nil, wrap("inBoundLane.approach", err)
		}
	} else {
		if err := w.AppendConstrainedInt(int64(rec.InBound.Lane), 0, 255); err != nil {
			return nil, wrap("inBoundLane.lane", err)
		}
	}
	w.AppendOptionalBitmap([]bool{rec.HasOutBound, rec.HasETA, rec.HasDuration})
	if rec.HasOutBound {
		if err := w.AppendConstrainedInt(int64(rec.OutBoundLane), 0, 255); err != nil {
			return nil, wrap("outBoundLane", err)
		}
	}
	if rec.HasETA {
		if err := w.AppendConstrainedInt(int64(rec.ETAMinute), 0, 527040); err != nil {
			return nil, wrap("eta.minute", err)
		}
		if err := w.AppendConstrainedInt(int64(rec.ETASecond), 0, 65535); err != nil {
			return nil, wrap("eta.second", err)
		}
	}
	if rec.HasDuration {
		if err := w.AppendConstrainedInt(int64(rec.Duration), 0, 65535); err != nil {
			return nil, wrap("duration", err)
		}
	}
	w.AppendOctetString(idToBytes(rec.Requestor.VehicleID))
	if err := w.AppendConstrainedInt(int64(rec.Requestor.Type.Role), 0, 255); err != nil {
		return nil, wrap("requestor.type.role", err)
	}
	w.AppendBit(boolBit(rec.Requestor.Type.HasHPMS))
	if rec.Requestor.Type.HasHPMS {
		if err := w.AppendConstrainedInt(int64(rec.Requestor.Type.HPMSType), 0, 255); err != nil {
			return nil, wrap("requestor.type.hpmsType", err)
		}
	}
	pos := rec.Requestor.Position.Position
	if err := w.AppendConstrainedInt(int64(pos.Lat), bsmLatMin, bsmLatMax); err != nil {
		return nil, wrap("requestor.position.lat", err)
	}
	if err := w.AppendConstrainedInt(int64(pos.Lon), bsmLonMin, bsmLonMax); err != nil {
		return nil, wrap("requestor.position.lon", err)
	}
	w.AppendBit(boolBit(pos.HasElev))
	if pos.HasElev {
		if err := w.AppendConstrainedInt(int64(pos.Elev), bsmElevMin, bsmElevMax); err != nil {
			return nil, wrap("requestor.position.elev", err)
		}
	}
	if err := w.AppendConstrainedInt(int64(rec.Requestor.Position.Heading), 0, 28800); err != nil {
		return nil, wrap("requestor.position.heading", err)
	}
	if err := w.AppendEnumerated(int(rec.Requestor.Position.Transmission), transmissionCount); err != nil {
		return nil, wrap("requestor.position.transmission", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.Requestor.Position.Speed), 0, 8191); err != nil {
		return nil, wrap("requestor.position.speed", err)
	}
	return w.Bytes(), nil
}

// DecodeSrmPayload decodes a single SignalRequestMessage.
func DecodeSrmPayload(b []byte) (SrmRecord, error) {
	var rec SrmRecord
	r := uper.NewReader(b)

	sec, err := r.DecodeConstrainedInt(0, 65535)
	if err != nil {
		return rec, wrap("second", err)
	}
	rec.Second = uint16(sec)

	pre, err := r.DecodeOptionalBitmap(2)
	if err != nil {
		return rec, wrap("preamble", err)
	}
	rec.HasMinuteOfYr, rec.HasMsgCount = pre[0], pre[1]
	if rec.HasMinuteOfYr {
		moy, err := r.DecodeConstrainedInt(0, 527040)
		if err != nil {
			return rec, wrap("minuteOfTheYear", err)
		}
		rec.MinuteOfYear = uint32(moy)
	}
	if rec.HasMsgCount {
		mc, err := r.DecodeConstrainedInt(0, 127)
		if err != nil {
			return rec, wrap("msgCount", err)
		}
		rec.MsgCount = uint8(mc)
	}
	id, err := r.DecodeConstrainedInt(0, 65535)
	if err != nil {
		return rec, wrap("requests.id", err)
	}
	rec.IntersectionID = uint16(id)
	rid, err := r.DecodeConstrainedInt(0, 255)
	if err != nil {
		return rec, wrap("requests.requestID", err)
	}
	rec.RequestID = uint8(rid)
	rt, err := r.DecodeEnumerated(requestTypeCount)
	if err != nil {
		return rec, wrap("requests.requestType", err)
	}
	rec.RequestType = RequestType(rt)

	isApproach, err := r.DecodeBit()
	if err != nil {
		return rec, wrap("inBoundLane", err)
	}
	rec.InBound.IsApproach = isApproach == 1
	if rec.InBound.IsApproach {
		v, err := r.DecodeConstrainedInt(0, 15)
		if err != nil {
			return rec, wrap("inBoundLane.approach", err)
		}
		rec.InBound.Approach = uint8(v)
	} else {
		v, err := r.DecodeConstrainedInt(0, 255)
		if err != nil {
			return rec, wrap("inBoundLane.lane", err)
		}
		rec.InBound.Lane = uint8(v)
	}

	pre2, err := r.DecodeOptionalBitmap(3)
	if err != nil {
		return rec, wrap("preamble2", err)
	}
	rec.HasOutBound, rec.HasETA, rec.HasDuration = pre2[0], pre2[1], pre2[2]
	if rec.HasOutBound {
		v, err := r.DecodeConstrainedInt(0, 255)
		if err != nil {
			return rec, wrap("outBoundLane", err)
		}
		rec.OutBoundLane = uint8(v)
	}
	if rec.HasETA {
		m, err := r.DecodeConstrainedInt(0, 527040)
		if err != nil {
			return rec, wrap("eta.minute", err)
		}
		rec.ETAMinute = uint8(m)
		s, err := r.DecodeConstrainedInt(0, 65535)
		if err != nil {
			return rec, wrap("eta.second", err)
		}
		rec.ETASecond = uint16(s)
	}
	if rec.HasDuration {
		d, err := r.DecodeConstrainedInt(0, 65535)
		if err != nil {
			return rec, wrap("duration", err)
		}
		rec.Duration = uint16(d)
	}

	idBytes, err := r.DecodeOctetString(4)
	if err != nil {
		return rec, wrap("requestor.id", err)
	}
	rec.Requestor.VehicleID = bytesToID(idBytes)
	role, err := r.DecodeConstrainedInt(0, 255)
	if err != nil {
		return rec, wrap("requestor.type.role", err)
	}
	rec.Requestor.Type.Role = uint8(role)
	hasHPMS, err := r.DecodeBit()
	if err != nil {
		return rec, wrap("requestor.type", err)
	}
	rec.Requestor.Type.HasHPMS = hasHPMS == 1
	if rec.Requestor.Type.HasHPMS {
		h, err := r.DecodeConstrainedInt(0, 255)
		if err != nil {
			return rec, wrap("requestor.type.hpmsType", err)
		}
		rec.Requestor.Type.HPMSType = uint8(h)
	}

	lat, err := r.DecodeConstrainedInt(bsmLatMin, bsmLatMax)
	if err != nil {
		return rec, wrap("requestor.position.lat", err)
	}
	lon, err := r.DecodeConstrainedInt(bsmLonMin, bsmLonMax)
	if err != nil {
		return rec, wrap("requestor.position.lon", err)
	}
	rec.Requestor.Position.Position.Lat = int32(lat)
	rec.Requestor.Position.Position.Lon = int32(lon)
	hasElev, err := r.DecodeBit()
	if err != nil {
		return rec, wrap("requestor.position", err)
	}
	rec.Requestor.Position.Position.HasElev = hasElev == 1
	if rec.Requestor.Position.Position.HasElev {
		elev, err := r.DecodeConstrainedInt(bsmElevMin, bsmElevMax)
		if err != nil {
			return rec, wrap("requestor.position.elev", err)
		}
		rec.Requestor.Position.Position.Elev = int16(elev)
	}
	heading, err := r.DecodeConstrainedInt(0, 28800)
	if err != nil {
		return rec, wrap("requestor.position.heading", err)
	}
	rec.Requestor.Position.Heading = uint16(heading)
	trans, err := r.DecodeEnumerated(transmissionCount)
	if err != nil {
		return rec, wrap("requestor.position.transmission", err)
	}
	rec.Requestor.Position.Transmission = Transmission(trans)
	speed, err := r.DecodeConstrainedInt(0, 8191)
	if err != nil {
		return rec, wrap("requestor.position.speed", err)
	}
	rec.Requestor.Position.Speed = uint16(speed)

	return rec, nil
}
