package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseID parses one CAN ID. Decimal and 0x, 0o and 0b prefixed forms are
// accepted, as are underscores between digits.
func ParseID(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty CAN ID")
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid CAN ID %q", s)
	}
	return uint32(v), nil
}

// ParseIDs parses every value that is a valid CAN ID. Values may also be
// comma separated lists. Values that do not parse are returned in invalid
// rather than failing the whole list.
func ParseIDs(values []string) (ids []uint32, invalid []string) {
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := ParseID(part)
			if err != nil {
				invalid = append(invalid, part)
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids, invalid
}

// ReadIDs reads one ID per line. Blank lines are ignored; other lines that
// do not parse are returned in invalid.
func ReadIDs(r io.Reader) (ids []uint32, invalid []string, err error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		id, perr := ParseID(line)
		if perr != nil {
			invalid = append(invalid, line)
			continue
		}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return ids, invalid, nil
}

// ReadIDFile is [ReadIDs] on the file at path.
func ReadIDFile(path string) (ids []uint32, invalid []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open whitelist file: %w", err)
	}
	defer f.Close()
	return ReadIDs(f)
}

// ParseTokens splits each value on whitespace and returns the tokens in
// order, without duplicates.
func ParseTokens(values []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range values {
		for _, tok := range strings.Fields(v) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	return out
}

// ReadTokenFile reads whitespace separated highlight tokens from path.
func ReadTokenFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open highlight file: %w", err)
	}
	return ParseTokens(strings.Split(string(data), "\n")), nil
}
