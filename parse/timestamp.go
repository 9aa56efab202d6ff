package parse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02Z07:00",
	"2006-01-02",
}

// ParseTimestamp parses the date and date-time forms found in
// documents. Values without a zone are taken to be UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp '%s'", s)
}

// TimestampOr is ParseTimestamp with a fallback for missing or
// malformed values.
func TimestampOr(s string, def time.Time) time.Time {
	t, err := ParseTimestamp(s)
	if err != nil {
		return def
	}
	return t
}

// ParseDuration parses an ISO 8601 duration such as "PT1H2M30S" or
// "P1DT30M". Year and month components are rejected since they have
// no fixed length.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) == 1 {
		return 0, fmt.Errorf("invalid duration '%s'", s)
	}
	s = s[1:]

	var d time.Duration
	inTime := false
	num := ""
	for _, c := range s {
		switch {
		case c == 'T':
			if inTime || num != "" {
				return 0, fmt.Errorf("invalid duration 'P%s'", s)
			}
			inTime = true
		case (c >= '0' && c <= '9') || c == '.':
			num += string(c)
		default:
			if num == "" {
				return 0, fmt.Errorf("invalid duration 'P%s'", s)
			}
			v, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration 'P%s': %w", s, err)
			}
			num = ""

			var unit time.Duration
			switch {
			case !inTime && c == 'W':
				unit = 7 * 24 * time.Hour
			case !inTime && c == 'D':
				unit = 24 * time.Hour
			case inTime && c == 'H':
				unit = time.Hour
			case inTime && c == 'M':
				unit = time.Minute
			case inTime && c == 'S':
				unit = time.Second
			default:
				return 0, fmt.Errorf("unsupported duration component '%c' in 'P%s'", c, s)
			}
			d += time.Duration(v * float64(unit))
		}
	}
	if num != "" {
		return 0, fmt.Errorf("invalid duration 'P%s'", s)
	}

	if negative {
		d = -d
	}
	return d, nil
}

// ParseClock parses an "HH:MM:SS" or "HH:MM" time of day into the
// time elapsed since midnight.
func ParseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day '%s'", s)
	}

	var fields [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid time of day '%s'", s)
		}
		fields[i] = v
	}
	if fields[1] > 59 || fields[2] > 59 {
		return 0, fmt.Errorf("invalid time of day '%s'", s)
	}

	return time.Duration(fields[0])*time.Hour +
		time.Duration(fields[1])*time.Minute +
		time.Duration(fields[2])*time.Second, nil
}

// FormatClock renders an offset from midnight as a wall clock
// "HH:MM:SS", wrapping past 24 hours.
func FormatClock(d time.Duration) string {
	d = d.Truncate(time.Second) % (24 * time.Hour)
	if d < 0 {
		d += 24 * time.Hour
	}
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	sec := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}
