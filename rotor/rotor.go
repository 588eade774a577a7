// Package rotor holds the shared pan/tilt domain types and the open-loop
// motion estimator. The rotor hardware reports nothing back, so every
// position in this package is a dead-reckoned estimate.
package rotor

import "math"

// Position is a pointing direction in decimal degrees.
type Position struct {
	Azimuth   float64 `json:"azimuth" yaml:"azimuth"`
	Elevation float64 `json:"elevation" yaml:"elevation"`
}

// Finite reports whether both angles are real, bounded values. NaN and
// ±Inf compare false against every limit, so they would pass through
// Clamp untouched.
func (p Position) Finite() bool {
	return !math.IsNaN(p.Azimuth) && !math.IsInf(p.Azimuth, 0) &&
		!math.IsNaN(p.Elevation) && !math.IsInf(p.Elevation, 0)
}

// Calibration holds the measured angular speeds of the two motors.
// It is immutable once loaded; recalibration replaces it wholesale.
type Calibration struct {
	// AzSpeed and ElSpeed are in degrees/second and must be positive.
	AzSpeed float64
	ElSpeed float64
}

// Valid reports whether both axis speeds are usable.
func (c Calibration) Valid() bool {
	return c.AzSpeed > 0 && c.ElSpeed > 0
}

// Status is a snapshot of the estimated rotor state as published to
// observers: the live update channel carries exactly these fields.
type Status struct {
	Position
	Moving bool `json:"moving"`
}

// StatusCallback receives state snapshots from the arbiter.
type StatusCallback func(status Status)

// Source tags the ingress channel a command arrived on. Arbitration is
// source-agnostic; the tag exists for logs.
type Source string

const (
	SourceWeb    Source = "web"
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)
