package pelco

import (
	"context"
	"io"
	"log"
	"net"
	"sync"
)

// Simulator is an in-memory Pelco-D head. It decodes whatever arrives
// on its end of the pipe and remembers the commands, which is all a
// real head does externally: the hardware reports nothing back. Used
// by the -simulate flag and by tests that want to observe the frames a
// controller emits.
type Simulator struct {
	conn io.ReadWriteCloser

	mu     sync.Mutex
	frames []Frame
}

// NewSimulator returns a simulator and the controller's end of the
// pipe.
func NewSimulator() (*Simulator, net.Conn) {
	a, b := net.Pipe()
	return &Simulator{conn: a}, b
}

// NewSimulated wires a Conn to a fresh simulator.
func NewSimulated(ctx context.Context) (*Conn, *Simulator) {
	sim, end := NewSimulator()
	go func() {
		if err := sim.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("simulator: %v", err)
		}
	}()
	return NewConn(ctx, end), sim
}

// Run consumes frames until the context is canceled or the pipe
// closes.
func (s *Simulator) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()
	var pending []byte
	chunk := make([]byte, 64)
	for {
		n, err := s.conn.Read(chunk)
		if n > 0 {
			pending = s.consume(append(pending, chunk[:n]...))
		}
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (s *Simulator) consume(buf []byte) []byte {
	for {
		f, rest, err := Decode(buf)
		buf = rest
		switch err.(type) {
		case nil:
			s.mu.Lock()
			s.frames = append(s.frames, f)
			s.mu.Unlock()
		case FramingError:
			return buf
		default:
			log.Printf("sim: %v", err)
		}
	}
}

// Frames returns a copy of every frame received so far.
func (s *Simulator) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.frames...)
}

// LastFrame returns the most recent frame, if any.
func (s *Simulator) LastFrame() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return Frame{}, false
	}
	return s.frames[len(s.frames)-1], true
}
