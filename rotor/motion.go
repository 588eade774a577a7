package rotor

import (
	"math"
	"time"
)

// Epsilon is the completion tolerance in degrees. Two positions within
// Epsilon of each other are the same position.
const Epsilon = 1e-6

// Plan describes one in-flight movement. It is created when a move
// command is accepted and discarded when the move completes, is
// superseded, or is stopped. All estimation is pure arithmetic over
// these fields; the plan is never mutated.
type Plan struct {
	Start  Position
	Target Position
	// StartTime is when the motors were commanded.
	StartTime time.Time
	// MoveAz/MoveEl report whether the axis is part of this plan. An
	// axis with zero delta is excluded so no spurious motor pulses are
	// sent for it.
	MoveAz, MoveEl bool
	// DirAz/DirEl are +1 or -1 for a moving axis, 0 otherwise.
	DirAz, DirEl float64

	// calibrated speeds captured at planning time, degrees/second
	azSpeed, elSpeed float64
}

// PlanMove builds the movement plan from current to target at the
// calibrated speeds, starting at now. Travel is linear in degrees;
// azimuth never wraps through 0/360.
func PlanMove(current, target Position, cal Calibration, now time.Time) Plan {
	p := Plan{
		Start:     current,
		Target:    target,
		StartTime: now,
		azSpeed:   cal.AzSpeed,
		elSpeed:   cal.ElSpeed,
	}
	if d := target.Azimuth - current.Azimuth; math.Abs(d) > Epsilon {
		p.MoveAz = true
		p.DirAz = math.Copysign(1, d)
	}
	if d := target.Elevation - current.Elevation; math.Abs(d) > Epsilon {
		p.MoveEl = true
		p.DirEl = math.Copysign(1, d)
	}
	return p
}

// Idle reports whether the plan moves no axis at all.
func (p Plan) Idle() bool {
	return !p.MoveAz && !p.MoveEl
}

// AzDuration returns how long the azimuth axis runs.
func (p Plan) AzDuration() time.Duration {
	if !p.MoveAz {
		return 0
	}
	return axisDuration(math.Abs(p.Target.Azimuth-p.Start.Azimuth), p.azSpeed)
}

// ElDuration returns how long the elevation axis runs.
func (p Plan) ElDuration() time.Duration {
	if !p.MoveEl {
		return 0
	}
	return axisDuration(math.Abs(p.Target.Elevation-p.Start.Elevation), p.elSpeed)
}

// Duration returns the total expected duration of the plan: the slower
// axis bounds the move.
func (p Plan) Duration() time.Duration {
	az, el := p.AzDuration(), p.ElDuration()
	if az > el {
		return az
	}
	return el
}

func axisDuration(degrees, speed float64) time.Duration {
	return time.Duration(degrees / speed * float64(time.Second))
}

// Estimate returns the dead-reckoned position at time now. Each moving
// axis advances at its calibrated speed and clamps exactly at its
// target, so the estimate never overshoots the commanded value no
// matter how much time has elapsed.
func (p Plan) Estimate(now time.Time) Position {
	elapsed := now.Sub(p.StartTime).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	out := p.Start
	if p.MoveAz {
		out.Azimuth = axisEstimate(p.Start.Azimuth, p.Target.Azimuth, p.azSpeed, p.DirAz, elapsed)
	}
	if p.MoveEl {
		out.Elevation = axisEstimate(p.Start.Elevation, p.Target.Elevation, p.elSpeed, p.DirEl, elapsed)
	}
	return out
}

func axisEstimate(start, target, speed, dir, elapsed float64) float64 {
	travel := speed * elapsed
	if total := math.Abs(target - start); travel >= total {
		return target
	}
	return start + dir*travel
}

// AzDone and ElDone report per-axis completion at time now. The arbiter
// uses them to drop a finished axis from the motion frame while the
// other keeps running.
func (p Plan) AzDone(now time.Time) bool {
	return !p.MoveAz || math.Abs(p.Estimate(now).Azimuth-p.Target.Azimuth) <= Epsilon
}

func (p Plan) ElDone(now time.Time) bool {
	return !p.MoveEl || math.Abs(p.Estimate(now).Elevation-p.Target.Elevation) <= Epsilon
}

// Complete reports whether every axis has reached its target at time
// now. Movement is time-bounded, so this is equivalently
// now >= StartTime + Duration; the positional form is used so the two
// derivations cannot diverge.
func (p Plan) Complete(now time.Time) bool {
	return p.AzDone(now) && p.ElDone(now)
}
