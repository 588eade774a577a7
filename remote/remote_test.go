package remote

import (
	"bufio"
	"context"
	"net"
	"testing"

	"github.com/w1xm/peltrack/arbiter"
	"github.com/w1xm/peltrack/pelco"
	"github.com/w1xm/peltrack/rotor"
)

type nullTransport struct{}

func (nullTransport) Send(pelco.Frame) error { return nil }

// startServer returns a server backed by a live arbiter parked at
// (12.5, 45). The crawling calibration keeps the estimate readable to
// one decimal for the duration of a test.
func startServer(t *testing.T) (*Server, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	arb := arbiter.New(arbiter.Config{
		Calibration: rotor.Calibration{AzSpeed: 0.0001, ElSpeed: 0.0001},
		Limits:      rotor.Limits{AzMin: 0, AzMax: 360, ElMin: 0, ElMax: 90},
		Transport:   nullTransport{},
	})
	go arb.Run(ctx)
	if err := arb.ResetPosition(ctx, rotor.SourceLocal, 12.5, 45); err != nil {
		t.Fatal(err)
	}
	return NewServer(arb, rotor.Limits{AzMin: 0, AzMax: 360, ElMin: 0, ElMax: 90}), ctx
}

func dialect(ctx context.Context, handle handler) (*bufio.Reader, net.Conn) {
	client, server := net.Pipe()
	go handle(ctx, server)
	return bufio.NewReader(client), client
}

func expectLine(t *testing.T, r *bufio.Reader, want string) {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("reading response: %v (want %q)", err, want)
	}
	if line != want+"\n" {
		t.Errorf("response %q, want %q", line, want)
	}
}

func TestEasycommQuery(t *testing.T) {
	s, ctx := startServer(t)
	r, conn := dialect(ctx, s.handleEasycomm)
	defer conn.Close()

	conn.Write([]byte("AZ EL\n"))
	expectLine(t, r, "AZ12.5 EL45.0")
}

func TestEasycommMoveStopVersion(t *testing.T) {
	s, ctx := startServer(t)
	r, conn := dialect(ctx, s.handleEasycomm)
	defer conn.Close()

	// Set both axes, then stop; the estimate has barely moved.
	conn.Write([]byte("AZ90.0 EL80.0\n"))
	conn.Write([]byte("SA SE\n"))
	conn.Write([]byte("AZ EL\n"))
	expectLine(t, r, "AZ12.5 EL45.0")

	conn.Write([]byte("VE\n"))
	expectLine(t, r, "VE"+Version)
}

func TestEasycommIgnoresMalformed(t *testing.T) {
	s, ctx := startServer(t)
	r, conn := dialect(ctx, s.handleEasycomm)
	defer conn.Close()

	// Bad operands and unknown verbs produce no reply and must not
	// kill the connection.
	conn.Write([]byte("AZnope ELxx UP000 XYZ\n"))
	conn.Write([]byte("AZ EL\n"))
	expectLine(t, r, "AZ12.5 EL45.0")
}

func TestRotctldGetPos(t *testing.T) {
	s, ctx := startServer(t)
	r, conn := dialect(ctx, s.handleRotctld)
	defer conn.Close()

	conn.Write([]byte("p\n"))
	expectLine(t, r, "12.500000")
	expectLine(t, r, "45.000000")
}

func TestRotctldSetPosAndStop(t *testing.T) {
	s, ctx := startServer(t)
	r, conn := dialect(ctx, s.handleRotctld)
	defer conn.Close()

	conn.Write([]byte("P 20 30\n"))
	expectLine(t, r, "RPRT 0")
	conn.Write([]byte("S\n"))
	expectLine(t, r, "RPRT 0")
}

func TestRotctldMalformed(t *testing.T) {
	s, ctx := startServer(t)
	r, conn := dialect(ctx, s.handleRotctld)
	defer conn.Close()

	conn.Write([]byte("P 20\nP x y\nZ\n"))
	expectLine(t, r, "RPRT -22")
	expectLine(t, r, "RPRT -22")
	expectLine(t, r, "RPRT -1")

	// Connection survives.
	conn.Write([]byte("p\n"))
	expectLine(t, r, "12.500000")
	expectLine(t, r, "45.000000")
}

func TestRotctldExtended(t *testing.T) {
	s, ctx := startServer(t)
	r, conn := dialect(ctx, s.handleRotctld)
	defer conn.Close()

	conn.Write([]byte("+\\get_pos\n"))
	expectLine(t, r, "get_pos:")
	expectLine(t, r, "Azimuth: 12.500000")
	expectLine(t, r, "Elevation: 45.000000")
	expectLine(t, r, "RPRT 0")
}

func TestRotctldQuit(t *testing.T) {
	s, ctx := startServer(t)
	r, conn := dialect(ctx, s.handleRotctld)
	defer conn.Close()

	conn.Write([]byte("q\n"))
	expectLine(t, r, "RPRT 0")
	if _, err := r.ReadString('\n'); err == nil {
		t.Error("connection still open after quit")
	}
}
