package timingcard

// PhaseRing returns the ring serving phase under the standard NEMA
// dual-ring assignment: ring 0 serves phases 1-4, ring 1 serves 5-8.
func PhaseRing(phase int) int {
	if phase >= 5 {
		return 1
	}
	return 0
}

// PhaseBarrier returns the barrier phase belongs to: barrier 0 is
// {1,2,5,6}, barrier 1 is {3,4,7,8}; -1 for an out-of-range phase.
func PhaseBarrier(phase int) int {
	switch phase {
	case 1, 2, 5, 6:
		return 0
	case 3, 4, 7, 8:
		return 1
	}
	return -1
}

// phasesInBitset returns the 1-indexed phase numbers set in mask.
func phasesInBitset(mask uint8) []int {
	var out []int
	for p := 1; p <= numPhases; p++ {
		if HasBit(mask, p) {
			out = append(out, p)
		}
	}
	return out
}

// Derive computes the CoordPlan fields that §4.5 says are "performed
// once, after all polls return": permitted phases, sync ring/barrier,
// the lead/lag matrix, per-phase force-off points and, when force-offs
// come from green factors, the coordinated green onset/end. It does not
// fill in PerPhasePermissiveDs or NonCoordBarrierGreenOnsetDs; they stay
// zero.
func (p *CoordPlan) Derive(flags PhaseFlags) {
	p.PermittedPhases = flags.Permitted &^ p.OmitPhases
	var nonZeroGreen uint8
	for i := 0; i < 8; i++ {
		if p.GreenFactorOrFO[i] > 0 {
			nonZeroGreen |= 1 << uint(i)
		}
	}
	p.PermittedPhases &= nonZeroGreen

	for _, ph := range phasesInBitset(p.SyncPhases) {
		r := PhaseRing(ph)
		p.SyncRing[r] = ph
		p.SyncBarrier = PhaseBarrier(ph)
	}

	p.deriveLeadLag()
	p.deriveForceOffs()
}

// deriveLeadLag fills the 4-entry [barrier][ring] lead/lag table from
// the plan's lag-phase bitset: within each barrier/ring pair, the phase
// not marked lag leads.
func (p *CoordPlan) deriveLeadLag() {
	barrierRingPhases := map[[2]int][]int{}
	for phase := 1; phase <= numPhases; phase++ {
		if !HasBit(p.PermittedPhases, phase) && p.GreenFactorOrFO[phase-1] <= 0 {
			continue
		}
		key := [2]int{PhaseBarrier(phase), PhaseRing(phase)}
		barrierRingPhases[key] = append(barrierRingPhases[key], phase)
	}
	for key, phases := range barrierRingPhases {
		barrier, ring := key[0], key[1]
		if barrier < 0 {
			continue
		}
		var pair LeadLagPair
		switch len(phases) {
		case 1:
			pair = LeadLagPair{Lead: phases[0]}
		case 2:
			a, b := phases[0], phases[1]
			if HasBit(p.LagPhases, b) {
				pair = LeadLagPair{Lead: a, Lag: b}
			} else {
				pair = LeadLagPair{Lead: b, Lag: a}
			}
		default:
			pair = LeadLagPair{Lead: phases[0]}
		}
		p.LeadLag[barrier][ring] = pair
	}
}

// deriveForceOffs computes each permitted phase's force-off point, in
// deciseconds from the top of the local cycle. When the plan already
// stores explicit force-off points (ForceOffFlag), they're copied
// through unit-converted; otherwise they're derived from green-factor
// proportions of the cycle length, walking each ring in phase-number
// order within its barrier.
func (p *CoordPlan) deriveForceOffs() {
	cycleDs := int(p.CycleLengthS) * 10
	if p.ForceOffFlag {
		for phase := 1; phase <= numPhases; phase++ {
			if p.GreenFactorOrFO[phase-1] < 0 {
				continue
			}
			p.PerPhaseForceOffDs[phase] = uint16(int(p.GreenFactorOrFO[phase-1]) * 10)
		}
		return
	}
	var totalGreen int
	for i := 0; i < 8; i++ {
		if p.GreenFactorOrFO[i] > 0 {
			totalGreen += int(p.GreenFactorOrFO[i])
		}
	}
	if totalGreen == 0 {
		return
	}
	cum := map[int]int{0: 0, 1: 0} // cumulative deciseconds per ring
	for ring := 0; ring < 2; ring++ {
		base := ring * 4
		for i := 0; i < 4; i++ {
			phase := base + i + 1
			gf := p.GreenFactorOrFO[phase-1]
			if gf <= 0 {
				continue
			}
			cum[ring] += int(gf) * cycleDs / totalGreen
			p.PerPhaseForceOffDs[phase] = uint16(cum[ring])
		}
	}
	p.CoordBarrierGreenOnsetDs = 0
	if s := p.SyncRing[0]; s != 0 {
		p.CoordPhaseGreenOnsetDs[0] = 0
		p.CoordPhaseGreenEndDs[0] = int(p.PerPhaseForceOffDs[s])
	}
	if s := p.SyncRing[1]; s != 0 {
		p.CoordPhaseGreenOnsetDs[1] = 0
		p.CoordPhaseGreenEndDs[1] = int(p.PerPhaseForceOffDs[s])
	}
}

// GetControlMode classifies the controller's operating mode from its
// raw status fields.
func GetControlMode(cabinetFlash bool, preemptBitset uint8, patternNum uint8) ControlMode {
	switch {
	case cabinetFlash:
		return ModeFlashing
	case preemptBitset != 0:
		return ModePreemption
	case patternNum == 0 || patternNum == 254:
		return ModeUnavailable
	case patternNum == 255:
		return ModeRunningFree
	default:
		return ModeCoordination
	}
}
