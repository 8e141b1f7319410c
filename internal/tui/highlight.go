package tui

import (
	"strconv"
	"strings"
)

// Highlight is a set of ID tokens. An ID matches when its hex form
// ("0xF6", "0xf6") or its decimal form ("246") is in the set. Matching is
// case-insensitive.
type Highlight struct {
	tokens map[string]struct{}
}

// NewHighlight builds a set from tokens. Blank tokens are ignored.
func NewHighlight(tokens ...string) Highlight {
	h := Highlight{tokens: make(map[string]struct{}, len(tokens))}
	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		h.tokens[t] = struct{}{}
	}
	return h
}

// Matches reports whether id is highlighted.
func (h Highlight) Matches(id uint32) bool {
	if len(h.tokens) == 0 {
		return false
	}
	if _, ok := h.tokens["0x"+strconv.FormatUint(uint64(id), 16)]; ok {
		return true
	}
	_, ok := h.tokens[strconv.FormatUint(uint64(id), 10)]
	return ok
}

// Len returns the number of tokens.
func (h Highlight) Len() int {
	return len(h.tokens)
}
