package query

import "time"

// span is an inclusive range of calendar days, both ends at midnight.
type span struct {
	from, to time.Time
}

func (s span) contains(day time.Time) bool {
	return !day.Before(s.from) && !day.After(s.to)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// dayOf returns the calendar day of t as seen in loc.
func dayOf(t time.Time, loc *time.Location) time.Time {
	return midnight(t.In(loc))
}

func addDays(day time.Time, n int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, day.Location())
}

// resolve maps a date expression to the days it covers, relative to now.
func (ev Evaluator) resolve(e DateExpr, now time.Time) span {
	loc := now.Location()
	today := midnight(now)

	if !e.IsRelative() {
		d := time.Date(e.Year, e.Month, e.Day, 0, 0, 0, 0, loc)
		return span{d, d}
	}

	switch e.Token {
	case "yesterday":
		y := addDays(today, -1)
		return span{y, y}
	case "this-week":
		start := addDays(today, -ev.daysIntoWeek(today))
		return span{start, addDays(start, 6)}
	case "last-week":
		start := addDays(today, -ev.daysIntoWeek(today)-7)
		return span{start, addDays(start, 6)}
	case "this-month":
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		return span{first, time.Date(today.Year(), today.Month()+1, 0, 0, 0, 0, 0, loc)}
	case "last-month":
		first := time.Date(today.Year(), today.Month()-1, 1, 0, 0, 0, 0, loc)
		return span{first, time.Date(today.Year(), today.Month(), 0, 0, 0, 0, 0, loc)}
	case "7d":
		return span{addDays(today, -6), today}
	case "30d":
		return span{addDays(today, -29), today}
	default: // today
		return span{today, today}
	}
}

func (ev Evaluator) daysIntoWeek(day time.Time) int {
	return (int(day.Weekday()) - int(ev.WeekStart) + 7) % 7
}
