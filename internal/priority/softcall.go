package priority

import "time"

// minApproachSpeedMPS floors the speed used in a time2go estimate so a
// momentarily-stopped vehicle doesn't report an infinite arrival time.
const minApproachSpeedMPS = 2.0

// vehCallHorizonS is the time2go ceiling for issuing a vehicle phase
// call.
const vehCallHorizonS = 20.0

// vehCallMinIntervalS rate-limits repeat calls for the same phase.
const vehCallMinIntervalS = 1 * time.Second

// ShouldCallPhase reports whether a permitted, non-green phase should
// receive a vehicle-call bit for tr this tick: the vehicle hasn't
// already called this visit, the phase isn't already called or
// recalled, time2go is within the horizon, and at least
// vehCallMinIntervalS has passed since this phase was last soft-called.
func ShouldCallPhase(now time.Time, tr *VehicleTrack, phase uint8, distToStopBarM float64, phaseAlreadyCalledOrRecalled bool) bool {
	if tr.CalledPhase[phase] || phaseAlreadyCalledOrRecalled {
		return false
	}
	v := tr.SpeedMPS
	if v < minApproachSpeedMPS {
		v = minApproachSpeedMPS
	}
	if distToStopBarM/v > vehCallHorizonS {
		return false
	}
	if last, ok := tr.LastSoftCallAt[phase]; ok && now.Sub(last) < vehCallMinIntervalS {
		return false
	}
	return true
}

// MarkCalled records that phase was just soft-called on behalf of tr.
func MarkCalled(tr *VehicleTrack, phase uint8, now time.Time) {
	tr.CalledPhase[phase] = true
	tr.LastSoftCallAt[phase] = now
}

// extArrivalWindowS is how far past the current minEndTime a vehicle's
// predicted arrival may fall and still justify a phase extension.
const extArrivalWindowS = 5.0

// extEndWindowS is how close to the phase's expected end the request
// must be before an extension bit is worth setting.
const extEndWindowS = 4.0

// ShouldExtendPhase reports whether a green phase's extension bit should
// be set for a vehicle arriving arrivalAfterMinEndS after the phase's
// current guaranteed end, with secondsToExpectedEnd left on the green.
func ShouldExtendPhase(arrivalAfterMinEndS, secondsToExpectedEnd float64) bool {
	return arrivalAfterMinEndS >= 0 && arrivalAfterMinEndS <= extArrivalWindowS && secondsToExpectedEnd <= extEndWindowS
}

func phaseBit(phase uint8) byte {
	if phase < 1 || phase > 8 {
		return 0
	}
	return 1 << (phase - 1)
}
