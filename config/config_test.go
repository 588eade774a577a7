package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/w1xm/peltrack/rotor"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCalibration(t *testing.T) {
	path := write(t, "calibration.yaml", "az_speed_deg_per_sec: 2.5\nel_speed_deg_per_sec: 1.75\n")
	cal, err := LoadCalibration(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cal, rotor.Calibration{AzSpeed: 2.5, ElSpeed: 1.75}); diff != "" {
		t.Errorf("unexpected calibration: got(-)/want(+):\n%s", diff)
	}
}

func TestLoadCalibrationErrors(t *testing.T) {
	for name, content := range map[string]string{
		"zero speed":     "az_speed_deg_per_sec: 0\nel_speed_deg_per_sec: 2\n",
		"negative speed": "az_speed_deg_per_sec: 2\nel_speed_deg_per_sec: -1\n",
		"not yaml":       "{{{",
		"empty":          "",
	} {
		t.Run(name, func(t *testing.T) {
			path := write(t, "calibration.yaml", content)
			if _, err := LoadCalibration(path); err == nil {
				t.Error("invalid calibration loaded without error")
			}
		})
	}

	if _, err := LoadCalibration(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing calibration loaded without error")
	}
}

func TestLoadLimits(t *testing.T) {
	path := write(t, "limits.yaml", "az_min: 0\naz_max: 360\nel_min: 45\nel_max: 135\n")
	limits, err := LoadLimits(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(limits, rotor.Limits{AzMin: 0, AzMax: 360, ElMin: 45, ElMax: 135}); diff != "" {
		t.Errorf("unexpected limits: got(-)/want(+):\n%s", diff)
	}
}

func TestLoadLimitsFallsBackToUnrestricted(t *testing.T) {
	for name, path := range map[string]string{
		"missing":      filepath.Join(t.TempDir(), "nope.yaml"),
		"corrupt":      write(t, "limits.yaml", "{{{"),
		"out of order": write(t, "limits.yaml", "az_min: 10\naz_max: 0\n"),
	} {
		t.Run(name, func(t *testing.T) {
			limits, err := LoadLimits(path)
			if err == nil {
				t.Error("expected an error to log")
			}
			if diff := cmp.Diff(limits, rotor.Unrestricted()); diff != "" {
				t.Errorf("fallback limits: got(-)/want(+):\n%s", diff)
			}
		})
	}
}

func TestStateRoundTrip(t *testing.T) {
	store := StateStore{Path: filepath.Join(t.TempDir(), "state.yaml")}
	if got := store.Load(); got != DefaultPosition {
		t.Errorf("missing state loaded as %+v, want default %+v", got, DefaultPosition)
	}

	want := rotor.Position{Azimuth: 201.5, Elevation: 12.25}
	if err := store.Save(want); err != nil {
		t.Fatal(err)
	}
	if got := store.Load(); got != want {
		t.Errorf("reloaded state %+v, want %+v", got, want)
	}
}
