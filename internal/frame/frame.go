package frame

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	idPrefix     = "ID="
	lengthPrefix = "LN="

	// DefaultTag is the record tag written by [Encode].
	DefaultTag = "FR"
)

// Frame is one decoded CAN message.
//
// Frame is treated as immutable once constructed; code that needs to keep
// a payload past the current call copies it.
type Frame struct {
	// ID is the CAN arbitration ID.
	ID uint32

	// Payload holds the data bytes; its length equals the declared LN.
	Payload []byte

	// ObservedAt is when the line was read. Decode leaves it zero.
	ObservedAt time.Time
}

// Decode parses a single frame line with the terminator already stripped.
//
// Decode is pure: it performs no I/O and decoding the same line twice
// yields equal frames. Every error is a *[DecodeError] wrapping one of the
// Err* sentinels, all of which wrap [ErrMalformed].
func Decode(line []byte) (Frame, error) {
	fields := bytes.SplitN(line, []byte{':'}, 4)
	if len(fields) < 4 || len(fields[0]) == 0 {
		return Frame{}, decodeErr(line, ErrMissingField)
	}

	id, err := parseField(fields[1], idPrefix, 32)
	if err != nil {
		return Frame{}, decodeErr(line, ErrBadID)
	}

	length, err := parseField(fields[2], lengthPrefix, strconv.IntSize-1)
	if err != nil {
		return Frame{}, decodeErr(line, ErrBadLength)
	}

	hexData := bytes.ReplaceAll(fields[3], []byte{':'}, nil)
	payload := make([]byte, hex.DecodedLen(len(hexData)))
	if _, err := hex.Decode(payload, hexData); err != nil {
		return Frame{}, decodeErr(line, ErrBadData)
	}

	if uint64(len(payload)) != length {
		return Frame{}, decodeErr(line, ErrLengthMismatch)
	}

	return Frame{ID: uint32(id), Payload: payload}, nil
}

// parseField strips prefix from field and parses the remainder as an
// unsigned decimal integer that fits in bits.
func parseField(field []byte, prefix string, bits int) (uint64, error) {
	rest, ok := bytes.CutPrefix(field, []byte(prefix))
	if !ok {
		return 0, fmt.Errorf("missing %q prefix", prefix)
	}
	return strconv.ParseUint(string(rest), 10, bits)
}

func decodeErr(line []byte, err error) error {
	return &DecodeError{Line: string(line), Err: err}
}

// Encode renders f in the wire format without a trailing newline, using
// uppercase hex bytes separated by colons. It is the inverse of [Decode].
func Encode(f Frame) []byte {
	var b bytes.Buffer
	b.Grow(len(DefaultTag) + 16 + 3*len(f.Payload))

	fmt.Fprintf(&b, "%s:%s%d:%s%d:", DefaultTag, idPrefix, f.ID, lengthPrefix, len(f.Payload))
	for i, c := range f.Payload {
		if i > 0 {
			b.WriteByte(':')
		}
		fmt.Fprintf(&b, "%02X", c)
	}
	return b.Bytes()
}

// HexString formats the payload as space separated uppercase hex bytes,
// e.g. "8E 62 1C".
func (f Frame) HexString() string {
	parts := make([]string, len(f.Payload))
	for i, c := range f.Payload {
		parts[i] = fmt.Sprintf("%02X", c)
	}
	return strings.Join(parts, " ")
}

// Clone returns a copy of f that shares no memory with it.
func (f Frame) Clone() Frame {
	f.Payload = bytes.Clone(f.Payload)
	return f
}
