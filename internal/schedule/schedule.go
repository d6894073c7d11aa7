// Package schedule parses trigger schedule expressions.
//
// Two forms are accepted, matching the scheduler that triggers runs:
//
//	rate(<n> <unit>)   unit is minute|hour|day, plural when n > 1
//	cron(<min> <hour> <day-of-month> <month> <day-of-week> <year>)
//
// Only rate expressions have a fixed interval; cron expressions are
// validated but left to the external trigger.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultExpression runs on minute 0 and minute 30 of every hour.
const DefaultExpression = "cron(0,30 * * * ? *)"

// Kind distinguishes rate from cron schedules.
type Kind string

const (
	KindRate Kind = "rate"
	KindCron Kind = "cron"
)

// Schedule is a parsed expression.
type Schedule struct {
	Expression string
	Kind       Kind
	// Interval is set for rate schedules only.
	Interval time.Duration
	// Fields holds the six cron fields for cron schedules.
	Fields []string
}

// Parse validates expr and returns the parsed schedule.
func Parse(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	switch {
	case strings.HasPrefix(expr, "rate(") && strings.HasSuffix(expr, ")"):
		d, err := parseRate(expr[len("rate(") : len(expr)-1])
		if err != nil {
			return Schedule{}, fmt.Errorf("invalid schedule %q: %w", expr, err)
		}
		return Schedule{Expression: expr, Kind: KindRate, Interval: d}, nil
	case strings.HasPrefix(expr, "cron(") && strings.HasSuffix(expr, ")"):
		fields, err := parseCron(expr[len("cron(") : len(expr)-1])
		if err != nil {
			return Schedule{}, fmt.Errorf("invalid schedule %q: %w", expr, err)
		}
		return Schedule{Expression: expr, Kind: KindCron, Fields: fields}, nil
	default:
		return Schedule{}, fmt.Errorf("invalid schedule %q: must be rate(...) or cron(...)", expr)
	}
}

var rateUnits = map[string]time.Duration{
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

func parseRate(body string) (time.Duration, error) {
	parts := strings.Fields(body)
	if len(parts) != 2 {
		return 0, fmt.Errorf("rate needs a value and a unit, got %q", body)
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("rate value must be a positive integer, got %q", parts[0])
	}

	unit := parts[1]
	singular := strings.TrimSuffix(unit, "s")
	base, ok := rateUnits[singular]
	if !ok {
		return 0, fmt.Errorf("unknown rate unit %q", unit)
	}
	if n == 1 && unit != singular {
		return 0, fmt.Errorf("rate of 1 takes a singular unit, got %q", unit)
	}
	if n > 1 && unit == singular {
		return 0, fmt.Errorf("rate of %d takes a plural unit, got %q", n, unit)
	}
	return time.Duration(n) * base, nil
}

type fieldSpec struct {
	name     string
	min, max int
	names    map[string]int
	// suffixes lists the special characters allowed after a value.
	suffixes string
	// lastOK allows a bare "L".
	lastOK bool
}

var months = map[string]int{
	"JAN": 1, "FEB": 2, "MAR": 3, "APR": 4, "MAY": 5, "JUN": 6,
	"JUL": 7, "AUG": 8, "SEP": 9, "OCT": 10, "NOV": 11, "DEC": 12,
}

var weekdays = map[string]int{
	"SUN": 1, "MON": 2, "TUE": 3, "WED": 4, "THU": 5, "FRI": 6, "SAT": 7,
}

var cronFields = []fieldSpec{
	{name: "minutes", min: 0, max: 59},
	{name: "hours", min: 0, max: 23},
	{name: "day-of-month", min: 1, max: 31, suffixes: "W", lastOK: true},
	{name: "month", min: 1, max: 12, names: months},
	{name: "day-of-week", min: 1, max: 7, names: weekdays, suffixes: "L#", lastOK: true},
	{name: "year", min: 1970, max: 2199},
}

const (
	dayOfMonth = 2
	dayOfWeek  = 4
)

func parseCron(body string) ([]string, error) {
	fields := strings.Fields(body)
	if len(fields) != len(cronFields) {
		return nil, fmt.Errorf("cron needs %d fields, got %d", len(cronFields), len(fields))
	}
	for i, f := range fields {
		if err := checkField(cronFields[i], f); err != nil {
			return nil, err
		}
	}

	dom, dow := fields[dayOfMonth], fields[dayOfWeek]
	if (dom == "?") == (dow == "?") {
		return nil, fmt.Errorf("exactly one of day-of-month and day-of-week must be '?'")
	}
	return fields, nil
}

func checkField(spec fieldSpec, field string) error {
	if field == "?" {
		if spec.name != "day-of-month" && spec.name != "day-of-week" {
			return fmt.Errorf("%s: '?' is only valid for day fields", spec.name)
		}
		return nil
	}
	if field == "*" {
		return nil
	}
	for _, item := range strings.Split(field, ",") {
		if err := checkItem(spec, item); err != nil {
			return fmt.Errorf("%s: %w", spec.name, err)
		}
	}
	return nil
}

func checkItem(spec fieldSpec, item string) error {
	if item == "" {
		return fmt.Errorf("empty list item")
	}
	if spec.lastOK && item == "L" {
		return nil
	}

	base, step, hasStep := strings.Cut(item, "/")
	if hasStep {
		n, err := strconv.Atoi(step)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid step %q", step)
		}
		if base == "*" {
			return nil
		}
		_, err = spec.value(base)
		return err
	}

	if lo, hi, isRange := strings.Cut(item, "-"); isRange {
		a, err := spec.value(lo)
		if err != nil {
			return err
		}
		b, err := spec.value(hi)
		if err != nil {
			return err
		}
		if a > b {
			return fmt.Errorf("range %q runs backwards", item)
		}
		return nil
	}

	return spec.withSuffix(item)
}

// withSuffix validates a single value carrying an optional W, L or #n suffix.
func (s fieldSpec) withSuffix(item string) error {
	for _, suffix := range s.suffixes {
		switch suffix {
		case 'W', 'L':
			if v, ok := strings.CutSuffix(item, string(suffix)); ok {
				_, err := s.value(v)
				return err
			}
		case '#':
			if v, nth, ok := strings.Cut(item, "#"); ok {
				if _, err := s.value(v); err != nil {
					return err
				}
				n, err := strconv.Atoi(nth)
				if err != nil || n < 1 || n > 5 {
					return fmt.Errorf("invalid occurrence %q", nth)
				}
				return nil
			}
		}
	}
	_, err := s.value(item)
	return err
}

func (s fieldSpec) value(v string) (int, error) {
	if n, ok := s.names[strings.ToUpper(v)]; ok {
		return n, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", v)
	}
	if n < s.min || n > s.max {
		return 0, fmt.Errorf("value %d outside %d-%d", n, s.min, s.max)
	}
	return n, nil
}
