// Package timingcard models a NEMA dual-ring controller's static
// configuration (the "timing card") and its streaming status, and
// derives the per-plan facts the predictor needs: force-off points,
// sync ring/barrier, the lead/lag matrix and permitted-phase sets.
package timingcard

const numPhases = 8

// PhaseFlags carries the per-phase bitsets that describe what a phase
// is allowed to do and how it behaves at startup.
type PhaseFlags struct {
	Permitted         uint8
	Restricted        uint8
	PermittedPed      uint8
	RecallMin         uint8
	RecallMax         uint8
	RecallPed         uint8
	RecallBike        uint8
	LockRed           uint8
	LockYellow        uint8
	LockForceOffMax   uint8
	DoubleEntry       uint8
	RestInWalk        uint8
	RestInRed         uint8
	Walk2             uint8
	MaxGreen2         uint8
	MaxGreen3         uint8
	StartupGreen      uint8
	AllRedStartupDs   uint8
	RedRevertDs       uint8
}

// HasBit reports whether bit (phase-1) is set in mask.
func HasBit(mask uint8, phase int) bool {
	if phase < 1 || phase > 8 {
		return false
	}
	return mask&(1<<uint(phase-1)) != 0
}

// PhaseTiming is one phase's configured interval durations.
type PhaseTiming struct {
	Walk1Ds           uint16
	WalkClearanceDs   uint16
	MinGreenS         uint8
	DetectorLimitS    uint8
	MaxInitialS       uint8
	MaxExtension      [3]uint8 // seconds; selection governed by PhaseFlags.MaxGreen2/3
	PassageS          float64
	MinGapS           float64
	MaxGapS           float64
	AddedInitialPerVehS float64
	ReduceGapByS      float64
	ReduceGapEveryS   float64
	YellowDs          uint16
	RedClearanceDs    uint16
	Walk2Ds           uint16
	DelayEarlyWalkDs  uint16
	SolidWalkClearDs  uint16
	BikeGreenS        uint8
	BikeRedClearDs    uint16
}

// CoordPlan is one numbered coordination plan. Plan numbers run 1..9,
// 11..19, 21..29 per the controller's convention (the tens digit
// selects a sequence variant).
type CoordPlan struct {
	PlanNum          int
	CycleLengthS     uint16
	ForceOffFlag     bool // true: GreenFactorOrFO holds force-off points, not green factors
	GreenFactorOrFO  [8]int16 // seconds; -1 where the phase has no entry
	CycleMultiplier  float64
	Offsets          [3]uint16
	LagPhases        uint8
	SyncPhases       uint8
	HoldPhases       uint8
	OmitPhases       uint8
	RecallPhases     uint8
	TSPEnabled       bool

	// Derived fields, computed once by Derive.
	PermittedPhases     uint8
	SyncRing            [2]int // 1-indexed phase per ring, 0 if none
	SyncBarrier         int    // 0 or 1
	LeadLag             [2][2]LeadLagPair
	PerPhaseForceOffDs  [9]uint16 // indexed by phase number, 1..8
	PerPhasePermissiveDs [9]uint16
	NonCoordBarrierGreenOnsetDs int
	CoordBarrierGreenOnsetDs    int
	CoordPhaseGreenOnsetDs      [2]int
	CoordPhaseGreenEndDs        [2]int
}

// LeadLagPair names which phase in a ring/barrier slot leads and which
// lags: a pre-computed 4-entry [barrier][ring][lead|lag] table per plan.
type LeadLagPair struct {
	Lead, Lag int // phase numbers, 0 if unused
}

// FreePlan behaves like a CoordPlan without force-off points; it's the
// prediction basis while the controller runs free.
type FreePlan struct {
	GreenFactor  [8]uint16 // seconds
	MaxInitial   [8]uint8
}

// ControlMode is the controller's coarse operating mode.
type ControlMode uint8

const (
	ModeUnavailable ControlMode = iota
	ModeRunningFree
	ModeCoordination
	ModeFlashing
	ModePreemption
)

// ControllerStatus is one decoded rawSPaT snapshot plus its derived
// mode and permitted sets.
type ControllerStatus struct {
	Msec               int64
	ActivePhase        [2]uint8 // 1-indexed phase per ring, 0 if none
	ActiveInterval     [2]uint8 // 2=green, 3=yellow, 4=red, etc. (controller's own interval codes)
	IntervalTimerDs    [2]uint16
	NextPhase          [2]uint8
	PatternNumber      uint8
	LocalCycleClockDs  uint16
	MasterCycleClockDs uint16
	PreemptBitset      uint8
	VehCallBitset      uint8
	PedCallBitset      uint8
	CabinetFlash       bool

	Mode              ControlMode
	PermittedPhases   uint8
	PermittedPed      uint8
	Phases            [8]PhaseStatus
}

// PhaseColor is a vehicular signal's displayed state.
type PhaseColor uint8

const (
	ColorDark PhaseColor = iota
	ColorFlashingRed
	ColorProtectedRed
	ColorProtectedGreen
	ColorPermissiveGreen
	ColorProtectedYellow
	ColorPermissiveYellow
)

// PedColor is a pedestrian signal's displayed state.
type PedColor uint8

const (
	PedDark PedColor = iota
	PedWalk
	PedFlashDontWalk
	PedDontWalk
	PedFlashingRed
)

// CallStatus reports whether a phase has an active vehicle or ped call.
type CallStatus uint8

const (
	CallNone CallStatus = iota
	CallVehicle
	CallPed
)

// RecallStatus reports a phase's active recall classification.
type RecallStatus uint8

const (
	RecallNone RecallStatus = iota
	RecallMinimum
	RecallMaximum
	RecallPedKind
	RecallBikeKind
)

// Bound is a (lower, upper) decisecond window until a phase's next
// state transition. Invariant: 0 <= L <= U.
type Bound struct {
	L, U int
}

// PhaseStatus is one phase's fully-derived display and prediction state.
type PhaseStatus struct {
	Color             PhaseColor
	Ped               PedColor
	Call              CallStatus
	Recall            RecallStatus
	StateStartTimeMs  int64
	PedStateStartTimeMs int64
	Time2Next         Bound
	PedTime2Next      Bound
}
