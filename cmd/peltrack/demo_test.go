package main

import (
	"context"
	"testing"
	"time"

	"github.com/w1xm/peltrack/arbiter"
	"github.com/w1xm/peltrack/pelco"
	"github.com/w1xm/peltrack/rotor"
)

type nullTransport struct{}

func (nullTransport) Send(pelco.Frame) error { return nil }

// newDemoArbiter returns a running arbiter with a crawling calibration,
// so the first demo leg stays in flight until the test interrupts it.
func newDemoArbiter(t *testing.T) (*arbiter.Arbiter, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	arb := arbiter.New(arbiter.Config{
		Calibration: rotor.Calibration{AzSpeed: 0.0001, ElSpeed: 0.0001},
		Limits:      rotor.Unrestricted(),
		Transport:   nullTransport{},
		TickPeriod:  time.Millisecond,
	})
	go arb.Run(ctx)
	return arb, ctx
}

func TestDemoYieldsToStop(t *testing.T) {
	arb, ctx := newDemoArbiter(t)

	done := make(chan error, 1)
	go func() { done <- RunDemo(ctx, arb) }()

	// Wait for the first leg to start, then stop the rotor out from
	// under the demo.
	deadline := time.After(5 * time.Second)
	for {
		status, err := arb.Status(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if status.Moving {
			break
		}
		select {
		case <-deadline:
			t.Fatal("demo never started moving")
		case <-time.After(time.Millisecond):
		}
	}
	if err := arb.Stop(ctx, rotor.SourceLocal); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("demo returned %v after stop", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("demo kept issuing waypoints after stop")
	}
	status, err := arb.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.Moving {
		t.Error("rotor moving again after the stop ended the demo")
	}
}

func TestDemoSingleSlot(t *testing.T) {
	arb, ctx := newDemoArbiter(t)
	s := &Server{arb: arb}

	first := s.startDemo(ctx)
	second := s.startDemo(ctx)
	select {
	case <-first.Done():
	default:
		t.Error("starting a second demo did not cancel the first")
	}

	s.stopDemo()
	select {
	case <-second.Done():
	default:
		t.Error("stop did not cancel the running demo")
	}
}
