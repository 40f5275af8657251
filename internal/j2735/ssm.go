package j2735

import "github.com/mmitss/intersection/internal/j2735/uper"

// PrioritizationStatus mirrors the SrmEntry status lifecycle carried back
// to a vehicle in an SSM's PrioritizationResponseStatus field.
type PrioritizationStatus uint8

const (
	PrioritizationRequested PrioritizationStatus = iota
	PrioritizationProcessing
	PrioritizationGranted
	PrioritizationRejected
	PrioritizationCompleted
	PrioritizationCancelled
)

const prioritizationStatusCount = 6

// LaneOn is the CHOICE(approach|lane) selector used by inboundOn/outboundOn.
type LaneOn struct {
	IsApproach bool
	Approach   uint8
	Lane       uint8
}

// SignalRequesterInfo identifies the vehicle a SignalStatusPackage answers.
type SignalRequesterInfo struct {
	VehicleID uint32
	RequestID uint8
	MsgCount  uint8
	HasRole   bool
	Role      uint8
}

// SignalStatusPackage answers one outstanding SRM.
type SignalStatusPackage struct {
	InboundOn   LaneOn
	HasOutbound bool
	OutboundOn  LaneOn
	Status      PrioritizationStatus
	Requester   SignalRequesterInfo
	HasETA      bool
	ETAMinute   uint8
	ETASecond   uint16
	HasDuration bool
	Duration    uint16
}

// SsmRecord is one SignalStatusMessage holding a single SignalStatus
// element.
type SsmRecord struct {
	Second         uint16
	HasMinuteOfYr  bool
	MinuteOfYear   uint32
	HasMsgCount    bool
	MsgCount       uint8
	SequenceNumber uint8
	IntersectionID uint16
	Packages       []SignalStatusPackage
}

// EncodeSsmPayload encodes a single SignalStatusMessage.
func EncodeSsmPayload(rec SsmRecord) ([]byte, error) {
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
	if err := w.AppendConstrainedInt(int64(rec.SequenceNumber), 0, 127); err != nil {
		return nil, wrap("status.sequenceNumber", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.IntersectionID), 0, 65535); err != nil {
		return nil, wrap("status.id", err)
	}
	if err := w.AppendConstrainedInt(int64(len(rec.Packages)), 1, 32); err != nil {
		return nil, wrap("status.packages", err)
	}
	for i := range rec.Packages {
		if err := encodeSsmPackage(w, rec.Packages[i]); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func encodeLaneOn(w *uper.Writer, l LaneOn) error {
	w.AppendBit(boolBit(l.IsApproach))
	if l.IsApproach {
		return w.AppendConstrainedInt(int64(l.Approach), 0, 15)
	}
	return w.AppendConstrainedInt(int64(l.Lane), 0, 255)
}

func decodeLaneOn(r *uper.Reader) (LaneOn, error) {
	var l LaneOn
	isApproach, err := r.DecodeBit()
	if err != nil {
		return l, err
	}
	l.IsApproach = isApproach == 1
	if l.IsApproach {
		v, err := r.DecodeConstrainedInt(0, 15)
		if err != nil {
			return l, err
		}
		l.Approach = uint8(v)
		return l, nil
	}
	v, err := r.DecodeConstrainedInt(0, 255)
	if err != nil {
		return l, err
	}
	l.Lane = uint8(v)
	return l, nil
}

func encodeSsmPackage(w *uper.Writer, p SignalStatusPackage) error {
	if err := encodeLaneOn(w, p.InboundOn); err != nil {
		return wrap("package.inboundOn", err)
	}
	w.AppendOptionalBitmap([]bool{p.HasOutbound, p.HasETA, p.HasDuration})
	if p.HasOutbound {
		if err := encodeLaneOn(w, p.OutboundOn); err != nil {
			return wrap("package.outboundOn", err)
		}
	}
	if err := w.AppendEnumerated(int(p.Status), prioritizationStatusCount); err != nil {
		return wrap("package.status", err)
	}
	w.AppendOctetString(idToBytes(p.Requester.VehicleID))
	if err := w.AppendConstrainedInt(int64(p.Requester.RequestID), 0, 255); err != nil {
		return wrap("package.requester.requestID", err)
	}
	if err := w.AppendConstrainedInt(int64(p.Requester.MsgCount), 0, 127); err != nil {
		return wrap("package.requester.msgCount", err)
	}
	w.AppendBit(boolBit(p.Requester.HasRole))
	if p.Requester.HasRole {
		if err := w.AppendConstrainedInt(int64(p.Requester.Role), 0, 255); err != nil {
			return wrap("package.requester.role", err)
		}
	}
	if p.HasETA {
		if err := w.AppendConstrainedInt(int64(p.ETAMinute), 0, 527040); err != nil {
			return wrap("package.eta.minute", err)
		}
		if err := w.AppendConstrainedInt(int64(p.ETASecond), 0, 65535); err != nil {
			return wrap("package.eta.second", err)
		}
	}
	if p.HasDuration {
		if err := w.AppendConstrainedInt(int64(p.Duration), 0, 65535); err != nil {
			return wrap("package.duration", err)
		}
	}
	return nil
}

// DecodeSsmPayload decodes a single SignalStatusMessage.
func DecodeSsmPayload(b []byte) (SsmRecord, error) {
	var rec SsmRecord
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
	seq, err := r.DecodeConstrainedInt(0, 127)
	if err != nil {
		return rec, wrap("status.sequenceNumber", err)
	}
	rec.SequenceNumber = uint8(seq)
	id, err := r.DecodeConstrainedInt(0, 65535)
	if err != nil {
		return rec, wrap("status.id", err)
	}
	rec.IntersectionID = uint16(id)
	n, err := r.DecodeConstrainedInt(1, 32)
	if err != nil {
		return rec, wrap("status.packages", err)
	}
	rec.Packages = make([]SignalStatusPackage, n)
	for i := range rec.Packages {
		p, err := decodeSsmPackage(r)
		if err != nil {
			return rec, err
		}
		rec.Packages[i] = p
	}
	return rec, nil
}

func decodeSsmPackage(r *uper.Reader) (SignalStatusPackage, error) {
	var p SignalStatusPackage
	inb, err := decodeLaneOn(r)
	if err != nil {
		return p, wrap("package.inboundOn", err)
	}
	p.InboundOn = inb
	pre, err := r.DecodeOptionalBitmap(3)
	if err != nil {
		return p, wrap("package.preamble", err)
	}
	p.HasOutbound, p.HasETA, p.HasDuration = pre[0], pre[1], pre[2]
	if p.HasOutbound {
		outb, err := decodeLaneOn(r)
		if err != nil {
			return p, wrap("package.outboundOn", err)
		}
		p.OutboundOn = outb
	}
	status, err := r.DecodeEnumerated(prioritizationStatusCount)
	if err != nil {
		return p, wrap("package.status", err)
	}
	p.Status = PrioritizationStatus(status)
	idBytes, err := r.DecodeOctetString(4)
	if err != nil {
		return p, wrap("package.requester.id", err)
	}
	p.Requester.VehicleID = bytesToID(idBytes)
	reqID, err := r.DecodeConstrainedInt(0, 255)
	if err != nil {
		return p, wrap("package.requester.requestID", err)
	}
	p.Requester.RequestID = uint8(reqID)
	msgCnt, err := r.DecodeConstrainedInt(0, 127)
	if err != nil {
		return p, wrap("package.requester.msgCount", err)
	}
	p.Requester.MsgCount = uint8(msgCnt)
	hasRole, err := r.DecodeBit()
	if err != nil {
		return p, wrap("package.requester", err)
	}
	p.Requester.HasRole = hasRole == 1
	if p.Requester.HasRole {
		role, err := r.DecodeConstrainedInt(0, 255)
		if err != nil {
			return p, wrap("package.requester.role", err)
		}
		p.Requester.Role = uint8(role)
	}
	if p.HasETA {
		m, err := r.DecodeConstrainedInt(0, 527040)
		if err != nil {
			return p, wrap("package.eta.minute", err)
		}
		p.ETAMinute = uint8(m)
		s, err := r.DecodeConstrainedInt(0, 65535)
		if err != nil {
			return p, wrap("package.eta.second", err)
		}
		p.ETASecond = uint16(s)
	}
	if p.HasDuration {
		d, err := r.DecodeConstrainedInt(0, 65535)
		if err != nil {
			return p, wrap("package.duration", err)
		}
		p.Duration = uint16(d)
	}
	return p, nil
}
