package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errNegativeSize = errors.New("must be non-negative")

// sizeUnits maps an upper-cased unit suffix to its byte multiplier. SI units
// are powers of 1000, IEC units powers of 1024.
var sizeUnits = map[string]float64{
	"":    1,
	"B":   1,
	"KB":  1e3,
	"MB":  1e6,
	"GB":  1e9,
	"TB":  1e12,
	"KIB": 1 << 10,
	"MIB": 1 << 20,
	"GIB": 1 << 30,
	"TIB": 1 << 40,
}

// ParseBandwidth parses a limit such as "5MB/s", "512KiB" or "2048" into
// bytes per second. "" and "0" mean unlimited and yield 0.
func ParseBandwidth(s string) (int64, error) {
	s = strings.TrimSpace(s)

	if rate, ok := strings.CutSuffix(strings.ToLower(s), "/s"); ok {
		s = s[:len(rate)]
	}

	return parseSize(s)
}

func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	// Split at the first letter: the rest is the unit.
	split := strings.IndexFunc(s, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	})
	if split < 0 {
		split = len(s)
	}

	num, unit := strings.TrimSpace(s[:split]), strings.ToUpper(s[split:])

	mult, ok := sizeUnits[unit]
	if !ok {
		return 0, fmt.Errorf("invalid size %q: unknown unit %q", s, s[split:])
	}

	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	if v < 0 {
		return 0, fmt.Errorf("invalid size %q: %w", s, errNegativeSize)
	}

	return int64(v * mult), nil
}
