package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the length of the little-endian payload length prefix.
const HeaderSize = 4

// DefaultMaxFrameSize bounds a single payload. A full canvas load is the
// largest message the server sends.
const DefaultMaxFrameSize = 16 << 20

// ErrFrameTooLarge is returned when a length prefix exceeds the configured
// maximum. The payload is not read.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

// Encode returns m as a complete frame: length prefix followed by payload.
func Encode(m Message) ([]byte, error) {
	frame := make([]byte, HeaderSize, 64)
	frame, err := AppendMessage(frame, m)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(frame, uint32(len(frame)-HeaderSize))
	return frame, nil
}

// Decode parses one complete frame. The length prefix must match the number
// of payload bytes exactly.
func Decode(frame []byte) (Message, error) {
	if len(frame) < HeaderSize {
		return nil, fmt.Errorf("%w: frame shorter than header", ErrDecode)
	}
	length := binary.LittleEndian.Uint32(frame)
	if uint64(length) != uint64(len(frame)-HeaderSize) {
		return nil, fmt.Errorf("%w: header announces %d bytes, frame carries %d",
			ErrDecode, length, len(frame)-HeaderSize)
	}
	return Unmarshal(frame[HeaderSize:])
}

// ReadFrame reads exactly one length prefix and then exactly that many
// payload bytes from r, blocking until both are available. maxSize of zero
// means DefaultMaxFrameSize.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}

	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.LittleEndian.Uint32(header[:])
	if length > maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, maxSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// ReadMessage reads and decodes one frame from r.
func ReadMessage(r io.Reader, maxSize uint32) (Message, error) {
	payload, err := ReadFrame(r, maxSize)
	if err != nil {
		return nil, err
	}
	return Unmarshal(payload)
}

// WriteMessage encodes m and writes the frame to w in a single call.
func WriteMessage(w io.Writer, m Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}
