package fiscal

import "time"

// span is a closed date range candidate produced by a slicer.
type span struct {
	start time.Time
	end   time.Time
}

func dayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func firstOfMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func endOfMonth(t time.Time) time.Time {
	return firstOfMonth(t).AddDate(0, 1, -1)
}

// nextMonday returns t itself when t falls on a Monday, otherwise the first
// Monday after t.
func nextMonday(t time.Time) time.Time {
	t = dayUTC(t)
	offset := (int(time.Monday) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, offset)
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// sliceRange cuts [from, to] into candidate period spans for the given
// granularity. Weekly slices start on Mondays, so days before the first
// Monday are left uncovered on purpose. Biweekly slices follow the 1-15 and
// 16-end-of-month convention. All slices are clipped to the range bounds.
func sliceRange(kind PeriodKind, from, to time.Time) ([]span, error) {
	from, to = dayUTC(from), dayUTC(to)
	var out []span
	switch kind {
	case PeriodWeekly:
		for cur := nextMonday(from); !cur.After(to); cur = cur.AddDate(0, 0, 7) {
			out = append(out, span{start: cur, end: minDate(cur.AddDate(0, 0, 6), to)})
		}
	case PeriodBiweekly:
		for cur := from; !cur.After(to); {
			var end time.Time
			if cur.Day() <= 15 {
				end = time.Date(cur.Year(), cur.Month(), 15, 0, 0, 0, 0, time.UTC)
			} else {
				end = endOfMonth(cur)
			}
			out = append(out, span{start: cur, end: minDate(end, to)})
			cur = end.AddDate(0, 0, 1)
		}
	case PeriodMonthly:
		for cur := from; !cur.After(to); {
			end := endOfMonth(cur)
			out = append(out, span{start: cur, end: minDate(end, to)})
			cur = end.AddDate(0, 0, 1)
		}
	case PeriodAnnual:
		out = append(out, span{start: from, end: to})
	default:
		return nil, ErrKindNotGenerable
	}
	return out, nil
}
