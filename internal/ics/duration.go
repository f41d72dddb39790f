package ics

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// icsDuration is an RFC 5545 dur-value. Days and weeks are nominal and
// added on the calendar; the clock part is exact.
type icsDuration struct {
	days  int
	clock time.Duration
}

func (d icsDuration) addTo(t time.Time) time.Time {
	return t.AddDate(0, 0, d.days).Add(d.clock)
}

// parseICSDuration parses values like "PT1H30M", "P1D", "P2W" or
// "-PT15M".
func parseICSDuration(v string) (icsDuration, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	sign := 1
	switch {
	case strings.HasPrefix(s, "-"):
		sign, s = -1, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 3 {
		return icsDuration{}, fmt.Errorf("invalid DURATION %q", v)
	}
	s = s[1:]

	var d icsDuration
	inTime := false
	num := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
			continue
		case r == 'T':
			if inTime || num != "" {
				return icsDuration{}, fmt.Errorf("invalid DURATION %q", v)
			}
			inTime = true
			continue
		}
		if num == "" {
			return icsDuration{}, fmt.Errorf("invalid DURATION %q", v)
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return icsDuration{}, fmt.Errorf("invalid DURATION %q: %w", v, err)
		}
		num = ""
		switch {
		case !inTime && r == 'W':
			d.days += 7 * n
		case !inTime && r == 'D':
			d.days += n
		case inTime && r == 'H':
			d.clock += time.Duration(n) * time.Hour
		case inTime && r == 'M':
			d.clock += time.Duration(n) * time.Minute
		case inTime && r == 'S':
			d.clock += time.Duration(n) * time.Second
		default:
			return icsDuration{}, fmt.Errorf("invalid DURATION %q", v)
		}
	}
	if num != "" || strings.HasSuffix(s, "T") {
		return icsDuration{}, fmt.Errorf("invalid DURATION %q", v)
	}

	d.days *= sign
	d.clock *= time.Duration(sign)
	return d, nil
}
