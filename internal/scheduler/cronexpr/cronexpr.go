// Package cronexpr parses and evaluates the POSIX five-field cron grammar
// used by Schedule.Cron: minute, hour, day-of-month, month, day-of-week,
// each accepting *, */n, n, n-m, n-m/s, or comma-separated lists of those.
// Grounded on the parsing/search structure of a chrono-style cron schedule
// in the retrieval pack, fixed for two things spec.md requires that the
// reference implementation did not provide: day-of-month and day-of-week are
// combined with OR (not AND) when both are restricted, and Next is
// timezone-aware via an IANA zone name rather than assuming the local zone.
package cronexpr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Expr is a parsed five-field cron expression.
type Expr struct {
	minutes     []int
	hours       []int
	daysOfMonth []int
	months      []int
	daysOfWeek  []int

	domRestricted bool // day-of-month field was not "*"
	dowRestricted bool // day-of-week field was not "*"

	raw string
}

// Parse parses a five-field cron expression. Returns an error if the
// expression doesn't have exactly five fields or any field is malformed.
func Parse(expr string) (*Expr, error) {
	raw := strings.TrimSpace(expr)
	fields := strings.Fields(raw)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cronexpr: expected 5 fields, got %d in %q", len(fields), raw)
	}

	e := &Expr{raw: raw}
	var err error

	if e.minutes, err = parseField(fields[0], 0, 59); err != nil {
		return nil, fmt.Errorf("cronexpr: minute field: %w", err)
	}
	if e.hours, err = parseField(fields[1], 0, 23); err != nil {
		return nil, fmt.Errorf("cronexpr: hour field: %w", err)
	}
	if e.daysOfMonth, err = parseField(fields[2], 1, 31); err != nil {
		return nil, fmt.Errorf("cronexpr: day-of-month field: %w", err)
	}
	if e.months, err = parseField(fields[3], 1, 12); err != nil {
		return nil, fmt.Errorf("cronexpr: month field: %w", err)
	}
	if e.daysOfWeek, err = parseField(fields[4], 0, 6); err != nil {
		return nil, fmt.Errorf("cronexpr: day-of-week field: %w", err)
	}
	e.domRestricted = strings.TrimSpace(fields[2]) != "*"
	e.dowRestricted = strings.TrimSpace(fields[4]) != "*"

	return e, nil
}

// String returns the original expression text.
func (e *Expr) String() string { return e.raw }

// dayMatches applies POSIX day-of-month/day-of-week combination: OR when
// both fields are restricted (non-"*"), otherwise whichever field is
// restricted decides alone (matching the unrestricted field trivially
// matches every day, so AND and OR agree in that case).
func (e *Expr) dayMatches(t time.Time) bool {
	domMatch := contains(e.daysOfMonth, t.Day())
	dowMatch := contains(e.daysOfWeek, int(t.Weekday()))

	if e.domRestricted && e.dowRestricted {
		return domMatch || dowMatch
	}
	return domMatch && dowMatch
}

// Next returns the smallest timestamp strictly greater than from that
// matches the expression, interpreted in loc. from is converted into loc
// before searching and the result is returned in loc; callers needing UTC
// should call .UTC() on the result.
func (e *Expr) Next(from time.Time, loc *time.Location) time.Time {
	t := from.In(loc)
	// Start at the next whole minute strictly after from.
	t = t.Truncate(time.Minute).Add(time.Minute)

	limit := t.AddDate(4, 0, 0)
	for t.Before(limit) {
		if !contains(e.months, int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
			continue
		}
		if !e.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			continue
		}
		if !contains(e.hours, t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
			continue
		}
		if !contains(e.minutes, t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}

func parseField(field string, min, max int) ([]int, error) {
	if field == "*" {
		return rangeOf(min, max, 1), nil
	}

	var values []int
	for _, part := range strings.Split(field, ",") {
		partValues, err := parsePart(part, min, max)
		if err != nil {
			return nil, err
		}
		values = append(values, partValues...)
	}
	values = unique(values)
	sort.Ints(values)
	if len(values) == 0 {
		return nil, fmt.Errorf("no values resolved for field %q", field)
	}
	return values, nil
}

func parsePart(part string, min, max int) ([]int, error) {
	stepParts := strings.SplitN(part, "/", 2)
	step := 1
	if len(stepParts) == 2 {
		s, err := strconv.Atoi(stepParts[1])
		if err != nil || s <= 0 {
			return nil, fmt.Errorf("invalid step %q", stepParts[1])
		}
		step = s
	}

	base := stepParts[0]
	if base == "*" {
		return rangeOf(min, max, step), nil
	}

	rangeParts := strings.SplitN(base, "-", 2)
	if len(rangeParts) == 2 {
		lo, err := strconv.Atoi(rangeParts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid range start %q", rangeParts[0])
		}
		hi, err := strconv.Atoi(rangeParts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid range end %q", rangeParts[1])
		}
		if lo < min || hi > max || lo > hi {
			return nil, fmt.Errorf("range %d-%d out of bounds [%d,%d]", lo, hi, min, max)
		}
		return rangeOf(lo, hi, step), nil
	}

	val, err := strconv.Atoi(base)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q", base)
	}
	if val < min || val > max {
		return nil, fmt.Errorf("value %d out of bounds [%d,%d]", val, min, max)
	}
	return []int{val}, nil
}

func rangeOf(start, end, step int) []int {
	var result []int
	for i := start; i <= end; i += step {
		result = append(result, i)
	}
	return result
}

func contains(sorted []int, v int) bool {
	i := sort.SearchInts(sorted, v)
	return i < len(sorted) && sorted[i] == v
}

func unique(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
