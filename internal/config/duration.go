package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const ticksPerSecond = 10_000_000

const day = 24 * time.Hour

// maxDays is the largest whole day count a time.Duration holds.
const maxDays = math.MaxInt64 / int64(day)

// ParseDuration parses the "[-][d.]hh:mm:ss[.fffffff]" form used by the config file.
// A bare integer is read as a number of days, and "hh:mm" is accepted too.
func ParseDuration(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	var total time.Duration
	if !strings.Contains(s, ":") {
		days, err := strconv.Atoi(s)
		if err != nil || days < 0 {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		total, err = sumDuration(days, 0)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
		}

		return applySign(total, negative), nil
	}

	days := 0
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	if dot := strings.Index(parts[0], "."); dot >= 0 {
		d, err := strconv.Atoi(parts[0][:dot])
		if err != nil || d < 0 {
			return 0, fmt.Errorf("invalid days in duration %q", raw)
		}
		days = d
		parts[0] = parts[0][dot+1:]
	}

	hours, err := parseComponent(parts[0], 23)
	if err != nil {
		return 0, fmt.Errorf("invalid hours in duration %q: %w", raw, err)
	}
	minutes, err := parseComponent(parts[1], 59)
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in duration %q: %w", raw, err)
	}

	var (
		seconds  int
		fraction time.Duration
	)
	if len(parts) == 3 {
		secPart := parts[2]
		if dot := strings.Index(secPart, "."); dot >= 0 {
			frac := secPart[dot+1:]
			if frac == "" || len(frac) > 7 {
				return 0, fmt.Errorf("invalid fraction in duration %q", raw)
			}
			ticks, err := strconv.Atoi(frac + strings.Repeat("0", 7-len(frac)))
			if err != nil || ticks < 0 {
				return 0, fmt.Errorf("invalid fraction in duration %q", raw)
			}
			fraction = time.Duration(ticks) * (time.Second / ticksPerSecond)
			secPart = secPart[:dot]
		}
		seconds, err = parseComponent(secPart, 59)
		if err != nil {
			return 0, fmt.Errorf("invalid seconds in duration %q: %w", raw, err)
		}
	}

	total, err = sumDuration(days, time.Duration(hours)*time.Hour+
		time.Duration(minutes)*time.Minute+
		time.Duration(seconds)*time.Second+
		fraction)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	return applySign(total, negative), nil
}

// FormatDuration renders d in the form ParseDuration reads.
func FormatDuration(d time.Duration) string {
	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second
	ticks := d / (time.Second / ticksPerSecond)

	if days > 0 {
		fmt.Fprintf(&b, "%d.", days)
	}
	fmt.Fprintf(&b, "%02d:%02d:%02d", hours, minutes, seconds)
	if ticks > 0 {
		fmt.Fprintf(&b, ".%07d", ticks)
	}

	return b.String()
}

func parseComponent(raw string, maxValue int) (int, error) {
	if raw == "" {
		return 0, fmt.Errorf("empty component")
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > maxValue {
		return 0, fmt.Errorf("component %d out of range [0, %d]", v, maxValue)
	}

	return v, nil
}

// sumDuration returns days plus rest, where rest is under one day.
func sumDuration(days int, rest time.Duration) (time.Duration, error) {
	if int64(days) > maxDays {
		return 0, fmt.Errorf("%d days out of range", days)
	}
	whole := time.Duration(days) * day
	if rest > time.Duration(math.MaxInt64)-whole {
		return 0, fmt.Errorf("%d days out of range", days)
	}

	return whole + rest, nil
}

func applySign(d time.Duration, negative bool) time.Duration {
	if negative {
		return -d
	}

	return d
}
