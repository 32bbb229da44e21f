// Package timecode converts "M:SS" clip offsets to milliseconds.
package timecode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a timestamp is not of the form "M:SS" or "MM:SS".
var ErrMalformed = errors.New("malformed timestamp")

// Offsets past this many minutes are rejected so the millisecond and sample
// arithmetic downstream cannot overflow.
const maxMinutes = 99_999

// ToMillis converts "M:SS" or "MM:SS" into a millisecond offset.
// The value is not checked against any track duration.
func ToMillis(s string) (int64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	minutes, err := parsePart(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	seconds, err := parsePart(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if minutes > maxMinutes || seconds > maxMinutes*60 {
		return 0, fmt.Errorf("%w: %q out of range", ErrMalformed, s)
	}

	return minutes*60_000 + seconds*1_000, nil
}

// FromMillis formats ms as "M:SS", truncating sub-second precision.
func FromMillis(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func parsePart(p string) (int64, error) {
	if p == "" {
		return 0, errors.New("empty")
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return 0, errors.New("not numeric")
		}
	}
	return strconv.ParseInt(p, 10, 64)
}
