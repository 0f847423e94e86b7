// Package crontab compiles crontab(5) expressions into immutable schedules
// and computes their next occurrence.
package crontab

import (
	"errors"
	"slices"
	"strings"
)

// Legal bounds of each field. The weekday field is parsed against
// [0, 7] so that 7 can alias Sunday, then normalized to [0, 6].
const (
	minuteMin, minuteMax     = 0, 59
	hourMin, hourMax         = 0, 23
	monthdayMin, monthdayMax = 1, 31
	monthMin, monthMax       = 1, 12
	weekdayMin, weekdayMax   = 0, 6
)

var (
	errFieldCount = errors.New("expected 5 fields")
	errEmptyField = errors.New("selects no values")
	errShorthand  = errors.New("unknown shorthand")
)

var (
	monthNames = strings.NewReplacer(
		"jan", "1", "feb", "2", "mar", "3", "apr", "4",
		"may", "5", "jun", "6", "jul", "7", "aug", "8",
		"sep", "9", "oct", "10", "nov", "11", "dec", "12",
	)
	weekdayNames = strings.NewReplacer(
		"sun", "0", "mon", "1", "tue", "2", "wed", "3",
		"thu", "4", "fri", "5", "sat", "6",
	)
)

// Schedule is a compiled crontab expression: five sorted, duplicate-free,
// non-empty sets of field values. A Schedule is never modified after
// Compile returns it and is safe for concurrent use.
type Schedule struct {
	expr      string
	minutes   []int
	hours     []int
	monthdays []int
	months    []int
	weekdays  []int
}

// Compile parses a five-field crontab expression ("minute hour
// day-of-month month day-of-week") or one of the shorthands @yearly,
// @annually, @monthly, @weekly, @daily, @midnight and @hourly.
func Compile(expr string) (*Schedule, error) {
	expr = strings.TrimSpace(expr)

	if strings.HasPrefix(expr, "@") {
		return compileShorthand(expr)
	}

	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, &ParseError{Expr: expr, Value: expr, Err: errFieldCount}
	}

	s := &Schedule{expr: expr}
	var err error
	if s.minutes, err = compileField(expr, "minute", fields[0], minuteMin, minuteMax); err != nil {
		return nil, err
	}
	if s.hours, err = compileField(expr, "hour", fields[1], hourMin, hourMax); err != nil {
		return nil, err
	}
	if s.monthdays, err = compileField(expr, "day-of-month", fields[2], monthdayMin, monthdayMax); err != nil {
		return nil, err
	}
	months := monthNames.Replace(strings.ToLower(fields[3]))
	if s.months, err = compileField(expr, "month", months, monthMin, monthMax); err != nil {
		return nil, err
	}
	weekdays := weekdayNames.Replace(strings.ToLower(fields[4]))
	if s.weekdays, err = compileField(expr, "day-of-week", weekdays, weekdayMin, weekdayMax+1); err != nil {
		return nil, err
	}

	// Fold 7 onto 0 so Sunday has a single representation.
	if last := len(s.weekdays) - 1; s.weekdays[last] == 7 {
		s.weekdays = s.weekdays[:last]
		if len(s.weekdays) == 0 || s.weekdays[0] != 0 {
			s.weekdays = slices.Insert(s.weekdays, 0, 0)
		}
	}

	return s, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr string) *Schedule {
	s, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return s
}

func compileField(expr, name, text string, low, high int) ([]int, error) {
	values, err := ParseField(text, low, high)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Expr = expr
			pe.Field = name
			if pe.Value == "" {
				pe.Value = text
			}
			return nil, pe
		}
		return nil, err
	}
	if len(values) == 0 {
		return nil, &ParseError{Expr: expr, Field: name, Value: text, Err: errEmptyField}
	}
	return values, nil
}

func compileShorthand(expr string) (*Schedule, error) {
	s := &Schedule{
		expr:      expr,
		minutes:   []int{0},
		hours:     []int{0},
		monthdays: span(monthdayMin, monthdayMax, 1),
		months:    span(monthMin, monthMax, 1),
		weekdays:  span(weekdayMin, weekdayMax, 1),
	}

	switch expr[1:] {
	case "annually", "yearly":
		s.monthdays = []int{1}
		s.months = []int{1}
	case "monthly":
		s.monthdays = []int{1}
	case "weekly":
		s.weekdays = []int{0}
	case "daily", "midnight":
	case "hourly":
		s.hours = span(hourMin, hourMax, 1)
	default:
		return nil, &ParseError{Expr: expr, Value: expr, Err: errShorthand}
	}
	return s, nil
}

// String returns the expression the schedule was compiled from.
func (s *Schedule) String() string { return s.expr }

// Minutes returns a copy of the scheduled minutes.
func (s *Schedule) Minutes() []int { return slices.Clone(s.minutes) }

// Hours returns a copy of the scheduled hours.
func (s *Schedule) Hours() []int { return slices.Clone(s.hours) }

// Monthdays returns a copy of the scheduled days of the month.
func (s *Schedule) Monthdays() []int { return slices.Clone(s.monthdays) }

// Months returns a copy of the scheduled months.
func (s *Schedule) Months() []int { return slices.Clone(s.months) }

// Weekdays returns a copy of the scheduled days of the week, 0 = Sunday.
func (s *Schedule) Weekdays() []int { return slices.Clone(s.weekdays) }

// Equal reports whether both schedules select the same field values,
// regardless of the text they were compiled from.
func (s *Schedule) Equal(o *Schedule) bool {
	return slices.Equal(s.minutes, o.minutes) &&
		slices.Equal(s.hours, o.hours) &&
		slices.Equal(s.monthdays, o.monthdays) &&
		slices.Equal(s.months, o.months) &&
		slices.Equal(s.weekdays, o.weekdays)
}

// Sets are bounded and duplicate-free, so a full-length set is the full
// range. That holds for "0-6" and "*/1" as much as for "*".
func (s *Schedule) anyWeekday() bool  { return len(s.weekdays) == weekdayMax-weekdayMin+1 }
func (s *Schedule) anyMonthday() bool { return len(s.monthdays) == monthdayMax-monthdayMin+1 }
