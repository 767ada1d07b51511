package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// localDateTimeRe matches the backend's zone-less date-time prefix
// (YYYY-MM-DDTHH:MM[:SS[.fff]]). Anything after the prefix is ignored so that
// a stray offset never shifts the wall-clock value.
var localDateTimeRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})T(\d{2}):(\d{2})(?::(\d{2})(?:\.(\d+))?)?`)

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})`)

// ParseLocal parses a backend date-time as wall-clock time in loc. Strings
// that do not look like a local date-time fall back to RFC 3339 and a few
// common layouts.
func ParseLocal(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if m := localDateTimeRe.FindStringSubmatch(s); m != nil {
		yr, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		hh, _ := strconv.Atoi(m[4])
		mm, _ := strconv.Atoi(m[5])
		var ss, ns int
		if m[6] != "" {
			ss, _ = strconv.Atoi(m[6])
		}
		if m[7] != "" {
			frac := (m[7] + "000000000")[:9]
			ns, _ = strconv.Atoi(frac)
		}
		return time.Date(yr, time.Month(mo), day, hh, mm, ss, ns, loc), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date-time %q", s)
}

// Clock is a time of day in minutes since midnight.
type Clock int

// String returns the zero-padded HH:MM form.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// ClockOf returns the wall-clock time of day of t.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

// ParseClock extracts a time of day from either a clock string ("06:00",
// "6:00:00") or a full date-time ("2030-04-01T06:00:00").
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "T") {
		t, err := ParseLocal(s, time.UTC)
		if err != nil {
			return 0, err
		}
		return ClockOf(t), nil
	}
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unrecognized time of day %q", s)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if hh > 23 || mm > 59 {
		return 0, fmt.Errorf("time of day out of range %q", s)
	}
	return Clock(hh*60 + mm), nil
}

// IsActive reports whether a solver status marks active solving.
func IsActive(status string) bool {
	return strings.Contains(strings.ToUpper(status), "SOLVING_ACTIVE")
}
