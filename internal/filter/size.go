package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var sizeSuffixes = map[byte]uint64{
	'B': 1,
	'K': 1 << 10,
	'M': 1 << 20,
	'G': 1 << 30,
	'T': 1 << 40,
}

// ParseSize parses a human-readable size such as 100, 100B, 1.5G or 20k.
// Suffixes are case-insensitive powers of 1024.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	num := s
	mult := uint64(1)
	if m, ok := sizeSuffixes[strings.ToUpper(s[len(s)-1:])[0]]; ok {
		mult = m
		num = s[:len(s)-1]
	}
	if num == "" {
		return 0, fmt.Errorf("invalid size: %q", s)
	}

	if n, err := strconv.ParseUint(num, 10, 64); err == nil {
		return n * mult, nil
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid size: %q", s)
	}
	return uint64(f * float64(mult)), nil
}

// ParseAge parses a look-back window. It accepts anything time.ParseDuration
// does plus whole days ("7d") and weeks ("2w").
func ParseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	unit := time.Duration(0)
	switch {
	case strings.HasSuffix(s, "d"):
		unit = 24 * time.Hour
	case strings.HasSuffix(s, "w"):
		unit = 7 * 24 * time.Hour
	}
	if unit != 0 {
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid age: %q", s)
		}
		return time.Duration(n) * unit, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid age: %q", s)
	}
	return d, nil
}

// NotOlderThan converts a look-back window into the absolute epoch floor
// used by Options.NotOlderThan.
func NotOlderThan(now time.Time, age time.Duration) int64 {
	return now.Add(-age).Unix()
}
