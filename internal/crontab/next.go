package crontab

import (
	"sort"
	"time"
)

// maxSearchYears bounds the search for schedules that can never match,
// such as "0 0 30 2 *". It exceeds the longest gap between two February
// 29ths, which is eight years (1896 to 1904).
const maxSearchYears = 10

// cursor is the calendar breakdown of the reference time. Each step
// advances one field and resets the smaller ones to their first value.
type cursor struct {
	year    int
	month   int
	day     int
	hour    int
	minute  int
	weekday int
	loc     *time.Location
	limit   int
}

// Next returns the earliest minute strictly after from that the schedule
// selects, at second zero, in from's location. When day-of-month and
// day-of-week are both restricted, a day matching either one qualifies.
// The zero Time is returned if nothing matches within maxSearchYears.
func (s *Schedule) Next(from time.Time) time.Time {
	next := s.next(from)
	if next.IsZero() || next.After(from) {
		return next
	}

	// The wall time is repeated by a DST fall-back and time.Date picked
	// its first instant, which precedes from. Take the second one.
	_, nextOffset := next.Zone()
	_, fromOffset := from.Zone()
	if later := next.Add(time.Duration(nextOffset-fromOffset) * time.Second); later.After(from) {
		return later
	}
	return s.Next(from.Truncate(time.Minute).Add(time.Minute))
}

func (s *Schedule) next(from time.Time) time.Time {
	year, month, day := from.Date()
	c := cursor{
		year:    year,
		month:   int(month),
		day:     day,
		hour:    from.Hour(),
		minute:  from.Minute(),
		weekday: int(from.Weekday()),
		loc:     from.Location(),
		limit:   year + maxSearchYears,
	}

	if !contains(s.months, c.month) {
		return s.nextMonth(c)
	}

	switch {
	case s.anyWeekday():
		if !contains(s.monthdays, c.day) {
			return s.nextMonthday(c)
		}
	case s.anyMonthday():
		if !contains(s.weekdays, c.weekday) {
			return s.nextWeekday(c)
		}
	default:
		if !contains(s.monthdays, c.day) && !contains(s.weekdays, c.weekday) {
			return s.nextDay(c)
		}
	}

	if !contains(s.hours, c.hour) {
		return s.nextHour(c)
	}
	return s.nextMinute(c)
}

func (s *Schedule) nextMinute(c cursor) time.Time {
	m, ok := successor(s.minutes, c.minute)
	if !ok {
		return s.nextHour(c)
	}
	return c.at(c.hour, m)
}

func (s *Schedule) nextHour(c cursor) time.Time {
	h, ok := successor(s.hours, c.hour)
	if !ok {
		return s.followingDay(c)
	}
	return c.at(h, s.minutes[0])
}

// followingDay carries into whichever day field governs the schedule.
func (s *Schedule) followingDay(c cursor) time.Time {
	switch {
	case s.anyWeekday():
		return s.nextMonthday(c)
	case s.anyMonthday():
		return s.nextWeekday(c)
	default:
		return s.nextDay(c)
	}
}

// nextMonthday is used when day-of-week is unrestricted.
func (s *Schedule) nextMonthday(c cursor) time.Time {
	d, ok := successor(s.monthdays, c.day)
	if !ok || d > daysIn(c.year, c.month) {
		return s.nextMonth(c)
	}
	c.day = d
	return s.first(c)
}

// nextWeekday is used when day-of-month is unrestricted.
func (s *Schedule) nextWeekday(c cursor) time.Time {
	d := c.day + s.weekdayDistance(c.weekday)
	if d > daysIn(c.year, c.month) {
		return s.nextMonth(c)
	}
	c.day = d
	return s.first(c)
}

// nextDay is used when both day fields are restricted: the earlier of the
// next scheduled weekday and the next scheduled day of the month wins.
func (s *Schedule) nextDay(c cursor) time.Time {
	last := daysIn(c.year, c.month)

	byWeekday := c.day + s.weekdayDistance(c.weekday)
	byMonthday, ok := successor(s.monthdays, c.day)
	if ok && byMonthday > last {
		ok = false
	}

	switch {
	case byWeekday <= last && ok:
		c.day = min(byWeekday, byMonthday)
	case byWeekday <= last:
		c.day = byWeekday
	case ok:
		c.day = byMonthday
	default:
		return s.nextMonth(c)
	}
	return s.first(c)
}

// nextMonth moves to the first scheduled day of the next scheduled month,
// skipping months too short to hold it.
func (s *Schedule) nextMonth(c cursor) time.Time {
	for {
		if m, ok := successor(s.months, c.month); ok {
			c.month = m
		} else {
			c.year++
			c.month = s.months[0]
		}
		if c.year > c.limit {
			return time.Time{}
		}

		day := s.firstDay(c.year, c.month)
		if day <= daysIn(c.year, c.month) {
			c.day = day
			return s.first(c)
		}
	}
}

// firstDay returns the first day of the month the schedule selects. The
// result may exceed the month's length when only day-of-month is
// restricted.
func (s *Schedule) firstDay(year, month int) int {
	if s.anyWeekday() {
		return s.monthdays[0]
	}

	day := 1
	weekday := int(time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Weekday())
	for !contains(s.weekdays, weekday%7) && day < 7 {
		day++
		weekday++
	}

	if s.anyMonthday() {
		return day
	}
	return min(day, s.monthdays[0])
}

// weekdayDistance is the number of days from weekday to the next
// scheduled weekday, wrapping into the following week.
func (s *Schedule) weekdayDistance(weekday int) int {
	next, ok := successor(s.weekdays, weekday)
	if !ok {
		next = s.weekdays[0] + 7
	}
	return next - weekday
}

func (s *Schedule) first(c cursor) time.Time {
	return c.at(s.hours[0], s.minutes[0])
}

func (c cursor) at(hour, minute int) time.Time {
	return time.Date(c.year, time.Month(c.month), c.day, hour, minute, 0, 0, c.loc)
}

// daysIn lets time.Date normalize day 0 of the following month, which
// accounts for leap years.
func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// successor returns the smallest element of the sorted set greater than v.
func successor(set []int, v int) (int, bool) {
	i := sort.SearchInts(set, v+1)
	if i == len(set) {
		return 0, false
	}
	return set[i], true
}

func contains(set []int, v int) bool {
	i := sort.SearchInts(set, v)
	return i < len(set) && set[i] == v
}
