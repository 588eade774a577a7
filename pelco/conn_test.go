package pelco

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSimulatorRecordsFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn, sim := NewSimulated(ctx)

	sent := []Frame{
		EncodeMove(1, CmdPanRight|CmdTiltUp, SpeedNormal),
		EncodeMove(1, CmdTiltUp, SpeedNormal),
		Stop(1),
	}
	for _, f := range sent {
		if err := conn.Send(f); err != nil {
			t.Fatalf("send %+v: %v", f, err)
		}
	}

	// The simulator consumes on its own goroutine.
	deadline := time.After(5 * time.Second)
	for len(sim.Frames()) < len(sent) {
		select {
		case <-deadline:
			t.Fatalf("simulator saw %d frames, want %d", len(sim.Frames()), len(sent))
		case <-time.After(time.Millisecond):
		}
	}
	if diff := cmp.Diff(sim.Frames(), sent); diff != "" {
		t.Errorf("unexpected frames: got(-)/want(+):\n%s", diff)
	}
	last, ok := sim.LastFrame()
	if !ok || last != Stop(1) {
		t.Errorf("last frame %+v (present %v), want stop", last, ok)
	}
}

func TestSendNotConnected(t *testing.T) {
	var c Conn
	if err := c.Send(Stop(1)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("got %v, want ErrNotConnected", err)
	}
}

func TestSendTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Nothing ever reads the far end of the pipe, so the write cannot
	// complete.
	far, near := net.Pipe()
	defer far.Close()
	c := NewConn(ctx, near)
	if err := c.Send(Stop(1)); !errors.Is(err, ErrWriteTimeout) {
		t.Errorf("got %v, want ErrWriteTimeout", err)
	}
}
