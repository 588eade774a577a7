// Package pelco implements the Pelco-D pan/tilt protocol: the fixed
// 7-byte frame codec and ownership of the serial channel the frames are
// written to. Encoding and decoding are pure; all I/O lives in Conn.
package pelco

import "fmt"

// Sync is the fixed synchronization byte every frame starts with.
const Sync byte = 0xFF

// FrameLen is the fixed length of every Pelco-D frame.
const FrameLen = 7

// Command bits carried in cmd2. Pan and tilt are independent bit
// patterns; an all-zero cmd2 stops both motors.
const (
	CmdPanRight byte = 0x02
	CmdPanLeft  byte = 0x04
	CmdTiltUp   byte = 0x08
	CmdTiltDown byte = 0x10
)

// SpeedNormal is the default 16-bit speed word, split across the two
// data bytes (pan speed high, tilt speed low). 0x20 is mid-range on
// both axes; the calibrated deg/s values describe the motion this word
// produces.
const SpeedNormal uint16 = 0x2020

// Frame is one decoded Pelco-D frame.
type Frame struct {
	Address byte
	Cmd1    byte
	Cmd2    byte
	Data1   byte
	Data2   byte
}

// ChecksumError reports a frame whose checksum byte does not match the
// payload sum.
type ChecksumError struct {
	Got, Want byte
}

func (e ChecksumError) Error() string {
	return fmt.Sprintf("pelco: bad checksum %#02x, want %#02x", e.Got, e.Want)
}

// FramingError reports a byte stream that does not (yet) contain a
// complete frame at a sync boundary.
type FramingError struct {
	Reason string
}

func (e FramingError) Error() string {
	return "pelco: " + e.Reason
}

func (f Frame) checksum() byte {
	return f.Address + f.Cmd1 + f.Cmd2 + f.Data1 + f.Data2
}

// Encode serializes the frame. The checksum is the sum of the payload
// bytes modulo 256.
func (f Frame) Encode() []byte {
	return []byte{Sync, f.Address, f.Cmd1, f.Cmd2, f.Data1, f.Data2, f.checksum()}
}

// EncodeMove builds a motion frame for the given command bits and speed
// word. A zero bit pattern is a stop frame.
func EncodeMove(address, bits byte, speed uint16) Frame {
	return Frame{
		Address: address,
		Cmd2:    bits,
		Data1:   byte(speed >> 8),
		Data2:   byte(speed),
	}
}

// Stop builds the all-stop frame for the addressed device.
func Stop(address byte) Frame {
	return Frame{Address: address}
}

// Decode extracts the first complete frame from buf. It returns the
// frame and the unconsumed remainder. If the buffer is misaligned it
// resynchronizes on the next sync byte; a frame failing its checksum is
// discarded and reported as a ChecksumError with the remainder
// positioned after the bad sync byte so the caller can keep scanning.
// A FramingError means more bytes are needed; the returned remainder is
// then the (possibly resynchronized) unconsumed input.
func Decode(buf []byte) (Frame, []byte, error) {
	// Drop garbage before the first sync byte.
	for len(buf) > 0 && buf[0] != Sync {
		buf = buf[1:]
	}
	if len(buf) == 0 {
		return Frame{}, buf, FramingError{"no sync byte"}
	}
	if len(buf) < FrameLen {
		return Frame{}, buf, FramingError{"short frame"}
	}
	f := Frame{
		Address: buf[1],
		Cmd1:    buf[2],
		Cmd2:    buf[3],
		Data1:   buf[4],
		Data2:   buf[5],
	}
	if sum := f.checksum(); sum != buf[6] {
		// Skip only the sync byte: the real frame may start inside
		// the bytes we misread.
		return Frame{}, buf[1:], ChecksumError{Got: buf[6], Want: sum}
	}
	return f, buf[FrameLen:], nil
}
