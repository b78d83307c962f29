package model

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	slotPrefix     = "slot-"
	beamlinePrefix = "beamline-"
	keySeparator   = "."
)

// PlacementKey returns the cell key for a (slot, beamline) pair. Every byte
// outside [A-Za-z0-9-] is written as "_xx", so the separator never occurs
// inside an escaped id and distinct pairs always map to distinct keys.
func PlacementKey(slotID, beamlineID string) string {
	return slotPrefix + escapeID(slotID) + keySeparator + beamlinePrefix + escapeID(beamlineID)
}

// ParsePlacementKey recovers the ids encoded by PlacementKey.
func ParsePlacementKey(key string) (slotID, beamlineID string, err error) {
	left, right, ok := strings.Cut(key, keySeparator)
	if !ok || !strings.HasPrefix(left, slotPrefix) || !strings.HasPrefix(right, beamlinePrefix) {
		return "", "", fmt.Errorf("malformed placement key %q", key)
	}
	if slotID, err = unescapeID(strings.TrimPrefix(left, slotPrefix)); err != nil {
		return "", "", err
	}
	if beamlineID, err = unescapeID(strings.TrimPrefix(right, beamlinePrefix)); err != nil {
		return "", "", err
	}
	return slotID, beamlineID, nil
}

func safeByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-'
}

func escapeID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		if safeByte(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "_%02x", c)
	}
	return b.String()
}

func unescapeID(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '_' {
			if !safeByte(c) {
				return "", fmt.Errorf("unexpected byte %q in placement key", c)
			}
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("truncated escape in placement key %q", s)
		}
		v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("bad escape in placement key %q: %w", s, err)
		}
		b.WriteByte(byte(v))
		i += 2
	}
	return b.String(), nil
}
