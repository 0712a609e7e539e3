package telemetry

import (
	"encoding/binary"
	"fmt"

	"go.bug.st/serial"
)

// SerialSink ships length-prefixed CBOR frames out over a serial port, a
// stand-in for a real tuning-software link.
type SerialSink struct {
	port serial.Port
}

// OpenSerialSink opens portName at baud and wraps it as a SerialSink.
func OpenSerialSink(portName string, baud int) (*SerialSink, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud, DataBits: 8})
	if err != nil {
		return nil, fmt.Errorf("telemetry: open serial port %s: %w", portName, err)
	}
	return &SerialSink{port: port}, nil
}

// Send CBOR-encodes v and writes it as a 4-byte big-endian length prefix
// followed by the encoded frame, so the reader on the other end can split
// the stream back into frames. The framing has no sync marker: a dropped
// byte misaligns every later frame.
func (s *SerialSink) Send(v any) error {
	b, err := Encode(v)
	if err != nil {
		return err
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(b)))
	if _, err := s.port.Write(hdr[:]); err != nil {
		return fmt.Errorf("telemetry: write frame header: %w", err)
	}
	if _, err := s.port.Write(b); err != nil {
		return fmt.Errorf("telemetry: write frame body: %w", err)
	}
	return nil
}

// Close closes the underlying serial port.
func (s *SerialSink) Close() error {
	return s.port.Close()
}
