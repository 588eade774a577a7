package main

import (
	"context"
	"time"

	"github.com/w1xm/peltrack/arbiter"
	"github.com/w1xm/peltrack/rotor"
)

// demoWaypoints is the showcase sweep: down to the horizon, a tour of
// the compass, back to zenith.
var demoWaypoints = []rotor.Position{
	{Azimuth: 0, Elevation: 45},
	{Azimuth: 90, Elevation: 45},
	{Azimuth: 180, Elevation: 80},
	{Azimuth: 270, Elevation: 45},
	{Azimuth: 0, Elevation: 90},
}

// RunDemo drives the rotor through the demo waypoints, waiting for
// each move to finish. Targets outside the configured limits get
// clamped like any other command. The sweep yields as soon as another
// command takes the rotor away from its waypoint: a stop or a new
// target always wins over the demo.
func RunDemo(ctx context.Context, arb *arbiter.Arbiter) error {
	for _, wp := range demoWaypoints {
		wp := wp
		ack, err := arb.MoveAbsolute(ctx, rotor.SourceWeb, &wp.Azimuth, &wp.Elevation)
		if err != nil {
			return err
		}
		status, err := waitIdle(ctx, arb)
		if err != nil {
			return err
		}
		if status.Position != ack.Target {
			// Stopped or superseded mid-leg; the demo no longer owns
			// the rotor.
			return nil
		}
	}
	return nil
}

func waitIdle(ctx context.Context, arb *arbiter.Arbiter) (rotor.Status, error) {
	t := time.NewTicker(200 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return rotor.Status{}, ctx.Err()
		case <-t.C:
		}
		status, err := arb.Status(ctx)
		if err != nil {
			return rotor.Status{}, err
		}
		if !status.Moving {
			return status, nil
		}
	}
}
