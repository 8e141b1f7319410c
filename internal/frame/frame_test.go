package frame

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestDecode_ValidLine(t *testing.T) {
	f, err := Decode([]byte("FR:ID=246:LN=8:8E:62:1C:F6:1E:63:63:20"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if f.ID != 0xF6 {
		t.Errorf("Decode().ID = %d, want %d", f.ID, 0xF6)
	}
	want := []byte{0x8E, 0x62, 0x1C, 0xF6, 0x1E, 0x63, 0x63, 0x20}
	if !bytes.Equal(f.Payload, want) {
		t.Errorf("Decode().Payload = % X, want % X", f.Payload, want)
	}
	if !f.ObservedAt.IsZero() {
		t.Errorf("Decode().ObservedAt = %v, want zero", f.ObservedAt)
	}
}

func TestDecode_Variants(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		id      uint32
		payload []byte
	}{
		{"empty payload", "FR:ID=7:LN=0:", 7, []byte{}},
		{"single byte", "FR:ID=1:LN=1:AA", 1, []byte{0xAA}},
		{"lowercase hex", "FR:ID=10:LN=2:ab:cd", 10, []byte{0xAB, 0xCD}},
		{"data without separators", "FR:ID=10:LN=2:ABCD", 10, []byte{0xAB, 0xCD}},
		{"other tag", "XX:ID=300:LN=1:01", 300, []byte{0x01}},
		{"extended id", "FR:ID=536870911:LN=1:FF", 0x1FFFFFFF, []byte{0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode([]byte(tt.line))
			if err != nil {
				t.Fatalf("Decode(%q) error = %v", tt.line, err)
			}
			if f.ID != tt.id {
				t.Errorf("Decode(%q).ID = %d, want %d", tt.line, f.ID, tt.id)
			}
			if !bytes.Equal(f.Payload, tt.payload) {
				t.Errorf("Decode(%q).Payload = % X, want % X", tt.line, f.Payload, tt.payload)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"empty line", "", ErrMissingField},
		{"three fields", "FR:ID=1:LN=1", ErrMissingField},
		{"empty tag", ":ID=1:LN=1:AA", ErrMissingField},
		{"missing ID prefix", "FR:XX=1:LN=1:AA", ErrBadID},
		{"short ID field", "FR:ID:LN=1:AA", ErrBadID},
		{"non numeric ID", "FR:ID=abc:LN=1:AA", ErrBadID},
		{"hex ID", "FR:ID=0x10:LN=1:AA", ErrBadID},
		{"negative ID", "FR:ID=-1:LN=1:AA", ErrBadID},
		{"ID overflow", "FR:ID=4294967296:LN=1:AA", ErrBadID},
		{"missing LN prefix", "FR:ID=1:XX=1:AA", ErrBadLength},
		{"non numeric LN", "FR:ID=1:LN=x:AA", ErrBadLength},
		{"odd hex", "FR:ID=1:LN=1:A", ErrBadData},
		{"non hex", "FR:ID=1:LN=1:ZZ", ErrBadData},
		{"short payload", "FR:ID=1:LN=2:AA", ErrLengthMismatch},
		{"long payload", "FR:ID=1:LN=1:AA:BB", ErrLengthMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.line))
			if err == nil {
				t.Fatalf("Decode(%q) error = nil, want %v", tt.line, tt.want)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode(%q) error = %v, want %v", tt.line, err, tt.want)
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Decode(%q) error = %v, want wrapped ErrMalformed", tt.line, err)
			}

			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("Decode(%q) error type = %T, want *DecodeError", tt.line, err)
			}
			if de.Line != tt.line {
				t.Errorf("DecodeError.Line = %q, want %q", de.Line, tt.line)
			}
		})
	}
}

func TestDecode_Idempotent(t *testing.T) {
	line := []byte("FR:ID=246:LN=8:8E:62:1C:F6:1E:63:63:20")

	a, errA := Decode(line)
	b, errB := Decode(line)
	if errA != nil || errB != nil {
		t.Fatalf("Decode() errors = %v, %v", errA, errB)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Decode() twice = %+v and %+v, want equal", a, b)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	lines := []string{
		"FR:ID=246:LN=8:8E:62:1C:F6:1E:63:63:20",
		"FR:ID=1:LN=1:AA",
		"FR:ID=0:LN=0:",
		"FR:ID=2047:LN=3:00:01:FF",
	}

	for _, line := range lines {
		f, err := Decode([]byte(line))
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", line, err)
		}
		if got := string(Encode(f)); got != line {
			t.Errorf("Encode(Decode(%q)) = %q", line, got)
		}
	}
}

func TestEncode_DecodeGenerated(t *testing.T) {
	for id := uint32(0); id < 64; id++ {
		payload := make([]byte, id%9)
		for i := range payload {
			payload[i] = byte(id*31 + uint32(i)*7)
		}

		got, err := Decode(Encode(Frame{ID: id, Payload: payload}))
		if err != nil {
			t.Fatalf("Decode(Encode(id=%d)) error = %v", id, err)
		}
		if got.ID != id || !bytes.Equal(got.Payload, payload) {
			t.Errorf("Decode(Encode(id=%d)) = %d % X, want %d % X", id, got.ID, got.Payload, id, payload)
		}
	}
}

func TestFrame_HexString(t *testing.T) {
	f := Frame{Payload: []byte{0x8E, 0x62, 0x0C}}
	if got := f.HexString(); got != "8E 62 0C" {
		t.Errorf("HexString() = %q, want %q", got, "8E 62 0C")
	}
	if got := (Frame{}).HexString(); got != "" {
		t.Errorf("HexString() on empty payload = %q, want empty", got)
	}
}

func TestFrame_Clone(t *testing.T) {
	f := Frame{ID: 1, Payload: []byte{1, 2}}
	c := f.Clone()
	c.Payload[0] = 9

	if f.Payload[0] != 1 {
		t.Errorf("Clone() shares payload memory with original")
	}
}
