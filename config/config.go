// Package config reads and writes the persisted records the controller
// lives off: the calibration produced by the calibration procedure, the
// optional travel limits, and the last estimated position.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/w1xm/peltrack/rotor"
)

// CalibrationFile is the on-disk calibration record. The calibration
// wizard writes it; the core only ever reads it.
type CalibrationFile struct {
	AzSpeedDegPerSec float64 `yaml:"az_speed_deg_per_sec"`
	ElSpeedDegPerSec float64 `yaml:"el_speed_deg_per_sec"`
}

// LimitsFile is the optional on-disk travel-limits record.
type LimitsFile struct {
	AzMin float64 `yaml:"az_min"`
	AzMax float64 `yaml:"az_max"`
	ElMin float64 `yaml:"el_min"`
	ElMax float64 `yaml:"el_max"`
}

// LoadCalibration reads and validates the calibration record. Motion
// is impossible without one, so any failure here is fatal at startup.
func LoadCalibration(path string) (rotor.Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rotor.Calibration{}, fmt.Errorf("read calibration: %w", err)
	}
	var f CalibrationFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return rotor.Calibration{}, fmt.Errorf("unmarshal calibration: %w", err)
	}
	cal := rotor.Calibration{AzSpeed: f.AzSpeedDegPerSec, ElSpeed: f.ElSpeedDegPerSec}
	if !cal.Valid() {
		return rotor.Calibration{}, fmt.Errorf("calibration speeds must be positive, got az %v el %v", cal.AzSpeed, cal.ElSpeed)
	}
	return cal, nil
}

// LoadLimits reads the travel-limits record. A missing or unreadable
// file is not fatal; the caller logs it and runs unrestricted.
func LoadLimits(path string) (rotor.Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rotor.Unrestricted(), fmt.Errorf("read limits: %w", err)
	}
	var f LimitsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return rotor.Unrestricted(), fmt.Errorf("unmarshal limits: %w", err)
	}
	if f.AzMin > f.AzMax || f.ElMin > f.ElMax {
		return rotor.Unrestricted(), fmt.Errorf("limits out of order: %+v", f)
	}
	return rotor.Limits{AzMin: f.AzMin, AzMax: f.AzMax, ElMin: f.ElMin, ElMax: f.ElMax}, nil
}

// StateStore persists the estimated position across restarts. It
// implements arbiter.PositionStore.
type StateStore struct {
	Path string
}

// DefaultPosition is where an uninitialized rotor is assumed parked:
// azimuth 0, pointed at zenith.
var DefaultPosition = rotor.Position{Azimuth: 0, Elevation: 90}

// Load returns the persisted position, or DefaultPosition if the file
// is missing or unreadable.
func (s StateStore) Load() rotor.Position {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return DefaultPosition
	}
	var p rotor.Position
	if err := yaml.Unmarshal(data, &p); err != nil {
		return DefaultPosition
	}
	return p
}

// Save writes the position. Written on every transition to idle, so a
// restart resumes from the last estimate instead of zero.
func (s StateStore) Save(p rotor.Position) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0644)
}
