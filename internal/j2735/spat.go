package j2735

import "github.com/mmitss/intersection/internal/j2735/uper"

// MovementPhaseState mirrors J2735's MovementPhaseState enumeration.
type MovementPhaseState uint8

const (
	PhaseUnavailable MovementPhaseState = iota
	PhaseDark
	PhaseStopThenProceed
	PhaseStopAndRemain
	PhasePreMovement
	PhasePermissiveMovementAllowed
	PhaseProtectedMovementAllowed
	PhasePermissiveClearance
	PhaseProtectedClearance
	PhaseCautionConflictingTraffic
)

const movementPhaseStateCount = 10

// TimeChangeDetails is the countdown payload attached to a MovementEvent.
// Times are in tenths of a second since the top of the minute, per J2735.
type TimeChangeDetails struct {
	MinEndTime  uint16
	HasStart    bool
	StartTime   uint16
	HasMaxEnd   bool
	MaxEndTime  uint16
}

// MovementState is one permitted phase's current state.
type MovementState struct {
	SignalGroup uint8 // 1..8 vehicular, 9..16 pedestrian
	EventState  MovementPhaseState
	HasTiming   bool
	Timing      TimeChangeDetails
}

// SpatRecord is one IntersectionState.
type SpatRecord struct {
	IntersectionID uint16
	Revision       uint8 // msgCnt
	Status         uint16
	HasMinuteOfYr  bool
	MinuteOfYear   uint32
	HasDSecond     bool
	DSecond        uint16
	Movements      []MovementState
}

// EncodeSpatPayload encodes a single IntersectionState.
func EncodeSpatPayload(rec SpatRecord) ([]byte, error) {
	w := uper.NewWriter()
	if err := w.AppendConstrainedInt(int64(rec.IntersectionID), 0, 65535); err != nil {
		return nil, wrap("id", err)
	}
	if err := w.AppendConstrainedInt(int64(rec.Revision), 0, 127); err != nil {
		return nil, wrap("revision", err)
	}
	w.AppendBitString(uint64(rec.Status), 16)
	w.AppendOptionalBitmap([]bool{rec.HasMinuteOfYr, rec.HasDSecond})
	if rec.HasMinuteOfYr {
		if err := w.AppendConstrainedInt(int64(rec.MinuteOfYear), 0, 527040); err != nil {
			return nil, wrap("minuteOfTheYear", err)
		}
	}
	if rec.HasDSecond {
		if err := w.AppendConstrainedInt(int64(rec.DSecond), 0, 65535); err != nil {
			return nil, wrap("timeStamp", err)
		}
	}
	if err := w.AppendConstrainedInt(int64(len(rec.Movements)), 1, 16); err != nil {
		return nil, wrap("states", err)
	}
	for _, m := range rec.Movements {
		if err := w.AppendConstrainedInt(int64(m.SignalGroup), 1, 16); err != nil {
			return nil, wrap("movement.signalGroup", err)
		}
		if err := w.AppendEnumerated(int(m.EventState), movementPhaseStateCount); err != nil {
			return nil, wrap("movement.eventState", err)
		}
		w.AppendOptionalBitmap([]bool{m.HasTiming})
		if m.HasTiming {
			w.AppendOptionalBitmap([]bool{m.Timing.HasStart, m.Timing.HasMaxEnd})
			if err := w.AppendConstrainedInt(int64(m.Timing.MinEndTime), 0, 65535); err != nil {
				return nil, wrap("timing.minEndTime", err)
			}
			if m.Timing.HasStart {
				if err := w.AppendConstrainedInt(int64(m.Timing.StartTime), 0, 65535); err != nil {
					return nil, wrap("timing.startTime", err)
				}
			}
			if m.Timing.HasMaxEnd {
				if err := w.AppendConstrainedInt(int64(m.Timing.MaxEndTime), 0, 65535); err != nil {
					return nil, wrap("timing.maxEndTime", err)
				}
			}
		}
	}
	return w.Bytes(), nil
}

// DecodeSpatPayload decodes a single IntersectionState.
func DecodeSpatPayload(b []byte) (SpatRecord, error) {
	var rec SpatRecord
	r := uper.NewReader(b)

	id, err := r.DecodeConstrainedInt(0, 65535)
	if err != nil {
		return rec, wrap("id", err)
	}
	rec.IntersectionID = uint16(id)

	rev, err := r.DecodeConstrainedInt(0, 127)
	if err != nil {
		return rec, wrap("revision", err)
	}
	rec.Revision = uint8(rev)

	status, err := r.DecodeBitString(16)
	if err != nil {
		return rec, wrap("status", err)
	}
	rec.Status = uint16(status)

	preamble, err := r.DecodeOptionalBitmap(2)
	if err != nil {
		return rec, wrap("preamble", err)
	}
	rec.HasMinuteOfYr, rec.HasDSecond = preamble[0], preamble[1]

	if rec.HasMinuteOfYr {
		moy, err := r.DecodeConstrainedInt(0, 527040)
		if err != nil {
			return rec, wrap("minuteOfTheYear", err)
		}
		rec.MinuteOfYear = uint32(moy)
	}
	if rec.HasDSecond {
		ds, err := r.DecodeConstrainedInt(0, 65535)
		if err != nil {
			return rec, wrap("timeStamp", err)
		}
		rec.DSecond = uint16(ds)
	}

	n, err := r.DecodeConstrainedInt(1, 16)
	if err != nil {
		return rec, wrap("states", err)
	}
	rec.Movements = make([]MovementState, n)
	for i := range rec.Movements {
		var m MovementState
		sg, err := r.DecodeConstrainedInt(1, 16)
		if err != nil {
			return rec, wrap("movement.signalGroup", err)
		}
		m.SignalGroup = uint8(sg)
		es, err := r.DecodeEnumerated(movementPhaseStateCount)
		if err != nil {
			return rec, wrap("movement.eventState", err)
		}
		m.EventState = MovementPhaseState(es)
		hasTiming, err := r.DecodeOptionalBitmap(1)
		if err != nil {
			return rec, wrap("movement.preamble", err)
		}
		m.HasTiming = hasTiming[0]
		if m.HasTiming {
			tp, err := r.DecodeOptionalBitmap(2)
			if err != nil {
				return rec, wrap("timing.preamble", err)
			}
			m.Timing.HasStart, m.Timing.HasMaxEnd = tp[0], tp[1]
			minEnd, err := r.DecodeConstrainedInt(0, 65535)
			if err != nil {
				return rec, wrap("timing.minEndTime", err)
			}
			m.Timing.MinEndTime = uint16(minEnd)
			if m.Timing.HasStart {
				st, err := r.DecodeConstrainedInt(0, 65535)
				if err != nil {
					return rec, wrap("timing.startTime", err)
				}
				m.Timing.StartTime = uint16(st)
			}
			if m.Timing.HasMaxEnd {
				me, err := r.DecodeConstrainedInt(0, 65535)
				if err != nil {
					return rec, wrap("timing.maxEndTime", err)
				}
				m.Timing.MaxEndTime = uint16(me)
			}
		}
		rec.Movements[i] = m
	}
	return rec, nil
}
