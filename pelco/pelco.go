package pelco

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// ErrWriteTimeout reports a serial write that did not complete within
// the write timeout. The underlying port is closed when this happens;
// the reconnect loop will reopen it.
var ErrWriteTimeout = errors.New("pelco: serial write timed out")

// ErrNotConnected reports a send attempted while the port is down.
var ErrNotConnected = errors.New("pelco: port not connected")

const (
	// DefaultBaud matches the factory setting of most Pelco-D heads.
	DefaultBaud = 2400

	writeTimeout = 1 * time.Second
)

// Conn owns the serial channel to the rotor. Frames go out through
// Send; anything the device sends back (some heads echo or report) is
// decoded and logged by a background read loop so a chatty device
// cannot fill the OS buffer.
type Conn struct {
	mu   sync.Mutex
	port io.ReadWriteCloser
}

// Open starts a connection to the named serial port. Like the rotor
// link it keeps retrying in the background: a missing or disappearing
// device is logged, not fatal.
func Open(ctx context.Context, port string, baud int) *Conn {
	c := &Conn{}
	go c.reconnectLoop(ctx, port, baud)
	return c
}

// NewConn wraps an existing byte stream, used by the simulator and by
// tests.
func NewConn(ctx context.Context, rwc io.ReadWriteCloser) *Conn {
	c := &Conn{port: rwc}
	go c.drain(ctx, rwc)
	return c
}

func (c *Conn) reconnectLoop(ctx context.Context, port string, baud int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Second):
		}
		s, err := serial.OpenPort(&serial.Config{Name: port, Baud: baud})
		if err != nil {
			log.Printf("opening %q: %v", port, err)
			continue
		}
		log.Printf("opened %q", port)
		c.mu.Lock()
		c.port = s
		c.mu.Unlock()
		c.drain(ctx, s)
		c.mu.Lock()
		c.port = nil
		c.mu.Unlock()
	}
}

// drain reads until the stream fails, resynchronizing the decoder on
// the sync byte. Decoding never waits for a full frame: whatever
// arrives is buffered and scanned.
func (c *Conn) drain(ctx context.Context, r io.ReadCloser) {
	go func() {
		<-ctx.Done()
		r.Close()
	}()
	var pending []byte
	chunk := make([]byte, 64)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			pending = append(pending, chunk[:n]...)
			for {
				f, rest, derr := Decode(pending)
				pending = rest
				if derr == nil {
					log.Printf("device frame: %+v", f)
					continue
				}
				var fe FramingError
				if errors.As(derr, &fe) {
					break // need more bytes
				}
				log.Printf("discarding device frame: %v", derr)
			}
		}
		if err != nil {
			if ctx.Err() == nil && err != io.EOF {
				log.Printf("reading serial port: %v", err)
			}
			return
		}
	}
}

// Send writes one frame to the device. A write that does not finish
// within the write timeout closes the port and reports
// ErrWriteTimeout; an estimated position after a failed write is
// suspect, so the caller must not retry the move.
func (c *Conn) Send(f Frame) error {
	c.mu.Lock()
	port := c.port
	c.mu.Unlock()
	if port == nil {
		return ErrNotConnected
	}
	done := make(chan error, 1)
	go func() {
		_, err := port.Write(f.Encode())
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(writeTimeout):
		port.Close()
		return ErrWriteTimeout
	}
}

// Close shuts the port if one is open.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return nil
	}
	return c.port.Close()
}
