// Package timecode converts between human-readable timestamps and second
// offsets. Engagement timestamps arrive as "HH:MM:SS"; the player only ever
// renders "M:SS", so the two directions are intentionally asymmetric.
package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseSeconds converts "H:MM:SS" or "M:SS" into a second offset. Malformed
// input degrades to 0 rather than failing the caller.
func ParseSeconds(s string) float64 {
	parts := strings.Split(s, ":")

	switch len(parts) {
	case 3:
		hours, ok1 := parseComponent(parts[0])
		minutes, ok2 := parseComponent(parts[1])
		seconds, ok3 := parseComponent(parts[2])
		if !ok1 || !ok2 || !ok3 {
			return 0
		}
		return hours*3600 + minutes*60 + seconds
	case 2:
		minutes, ok1 := parseComponent(parts[0])
		seconds, ok2 := parseComponent(parts[1])
		if !ok1 || !ok2 {
			return 0
		}
		return minutes*60 + seconds
	default:
		return 0
	}
}

// FormatSeconds renders a second offset as "M:SS". Non-finite or negative
// input renders as "0:00".
func FormatSeconds(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00"
	}
	whole := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", whole/60, whole%60)
}

// Valid reports whether s is a well-formed "H:MM:SS" or "M:SS" timestamp.
// ParseSeconds maps malformed input to 0, so callers that must distinguish
// "zero" from "broken" check validity first.
func Valid(s string) bool {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if _, ok := parseComponent(part); !ok {
			return false
		}
	}
	return true
}

func parseComponent(s string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}
