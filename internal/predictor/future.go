package predictor

import "github.com/mmitss/intersection/internal/timingcard"

// FuturePhaseInput is one non-active phase's timing facts, used while
// walking the lead/lag matrix barrier-by-barrier.
type FuturePhaseInput struct {
	Phase             int
	MinGreenDs        int
	MaxExtensionDs    int
	YellowDs          int
	RedClearanceDs    int
	HasCallOrRecall   bool
	GuaranteedGreenDs int
}

func (f FuturePhaseInput) maxGreenDs() int { return f.MinGreenDs*10 + f.MaxExtensionDs*10 }

// WalkFuturePhases predicts bound_L/bound_U for every phase in order,
// starting from the active phase's own termination bound and
// propagating time2start across barrier crossings, synchronized to the
// larger of the two rings' accumulated time2start at each barrier.
//
// order must list phases in barrier-then-ring-then-lead/lag walk order,
// e.g. the output of a LeadLag matrix traversal; activeTerminate is the
// active phase's own (bound_L, bound_U).
func WalkFuturePhases(order [][2]FuturePhaseInput, activeTerminate timingcard.Bound) map[int]timingcard.Bound {
	out := make(map[int]timingcard.Bound, len(order)*2)
	ringAccumL := [2]int{activeTerminate.L, activeTerminate.L}
	ringAccumU := [2]int{activeTerminate.U, activeTerminate.U}

	for _, barrierPair := range order {
		for ring := 0; ring < 2; ring++ {
			ph := barrierPair[ring]
			if ph.Phase == 0 {
				continue
			}
			lBase := ph.GuaranteedGreenDs
			if !ph.HasCallOrRecall {
				lBase = ph.maxGreenDs()
			}
			l := ringAccumL[ring] + lBase + ph.YellowDs*10 + ph.RedClearanceDs*10
			u := ringAccumU[ring] + ph.maxGreenDs() + ph.YellowDs*10 + ph.RedClearanceDs*10
			out[ph.Phase] = clampBound(l-activeTerminate.L, u-activeTerminate.L)
			ringAccumL[ring] = l
			ringAccumU[ring] = u
		}
		// Barrier crossing: synchronize both rings to the larger
		// accumulated time2start.
		maxL := maxOf(ringAccumL[0], ringAccumL[1])
		maxU := maxOf(ringAccumU[0], ringAccumU[1])
		ringAccumL[0], ringAccumL[1] = maxL, maxL
		ringAccumU[0], ringAccumU[1] = maxU, maxU
	}
	return out
}

// PedPhaseParams bundles the inputs PredictPedestrian needs for one
// pedestrian phase.
type PedPhaseParams struct {
	InWalkOrFDW        bool
	PedIntervalLeftDs  int
	VehicleIsGreen     bool
	VehicleBounds      timingcard.Bound
	VehicleIsYellowNextRed bool
	RedClearanceDs     int
	RedRevertDs        int
	UseRedRevert       bool
	NextStartBounds    timingcard.Bound
}

// PredictPedestrian computes the per-case pedestrian bound.
func PredictPedestrian(p PedPhaseParams) timingcard.Bound {
	switch {
	case p.InWalkOrFDW:
		return clampBound(p.PedIntervalLeftDs, p.PedIntervalLeftDs)
	case p.VehicleIsGreen:
		return p.VehicleBounds
	case p.VehicleIsYellowNextRed:
		clearance := p.RedClearanceDs
		if p.UseRedRevert {
			clearance = p.RedRevertDs
		}
		return clampBound(p.VehicleBounds.L+clearance, p.VehicleBounds.U+clearance)
	default:
		return p.NextStartBounds
	}
}
