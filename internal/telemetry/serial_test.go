package telemetry

import (
	"testing"
	"time"

	"go.bug.st/serial"
)

// fakePort is a minimal serial.Port that records writes for inspection.
type fakePort struct {
	writes [][]byte
}

func (f *fakePort) Read(p []byte) (int, error)  { return 0, nil }
func (f *fakePort) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)
	f.writes = append(f.writes, buf)
	return len(p), nil
}
func (f *fakePort) Close() error                                { return nil }
func (f *fakePort) SetMode(mode *serial.Mode) error             { return nil }
func (f *fakePort) SetDTR(dtr bool) error                        { return nil }
func (f *fakePort) SetRTS(rts bool) error                        { return nil }
func (f *fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}
func (f *fakePort) ResetInputBuffer() error           { return nil }
func (f *fakePort) ResetOutputBuffer() error          { return nil }
func (f *fakePort) SetReadTimeout(t time.Duration) error { return nil }
func (f *fakePort) Drain() error                      { return nil }
func (f *fakePort) Break(d time.Duration) error       { return nil }

func TestSerialSink_SendWritesLengthPrefixedFrame(t *testing.T) {
	fp := &fakePort{}
	sink := &SerialSink{port: fp}

	if err := sink.Send(StatusSnapshot{RPM: 4200}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(fp.writes) != 2 {
		t.Fatalf("got %d writes, want 2 (header, body)", len(fp.writes))
	}
	if len(fp.writes[0]) != 4 {
		t.Errorf("header write len = %d, want 4", len(fp.writes[0]))
	}

	body := fp.writes[1]
	var got StatusSnapshot
	if err := Decode(body, &got); err != nil {
		t.Fatalf("Decode(body) error = %v", err)
	}
	if got.RPM != 4200 {
		t.Errorf("decoded RPM = %d, want 4200", got.RPM)
	}
}

func TestSerialSink_Close(t *testing.T) {
	fp := &fakePort{}
	sink := &SerialSink{port: fp}
	if err := sink.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}
