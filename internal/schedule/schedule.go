package schedule

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time expressed as seconds since midnight.
type TimeOfDay int

// At builds a TimeOfDay from an hour and minute.
func At(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60)
}

const secondsPerDay = 24 * 3600

// Add shifts the time of day by d, wrapping around midnight.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	s := (int(t) + int(d/time.Second)) % secondsPerDay
	if s < 0 {
		s += secondsPerDay
	}
	return TimeOfDay(s)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, int(t)/60%60, int(t)%60)
}

func timeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// Date is a calendar date in the exchange zone. The zero value means "no date".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf extracts the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether d is the "no date" marker.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+1, 0, 0, 0, 0, time.UTC))
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Hours describes the exchange's two daily trading sessions and the
// monitoring thresholds attached to each. The night session wraps midnight
// when NightClose < NightOpen, which is the normal configuration.
type Hours struct {
	DayOpen    TimeOfDay
	DayClose   TimeOfDay
	NightOpen  TimeOfDay
	NightClose TimeOfDay

	// Buffer dilates each session symmetrically: opens move earlier and
	// closes move later by this amount, masking small clock skews.
	Buffer time.Duration

	DayThreshold   time.Duration
	NightThreshold time.Duration

	Location *time.Location
}

// IsTradingTime reports whether now falls inside either session after
// applying the buffer. holiday marks a known exchange-closed date: the whole
// of that date plus the following morning before the day-session open are
// treated as closed.
func (h Hours) IsTradingTime(now time.Time, holiday Date) bool {
	now = now.In(h.Location)

	dayOpen := h.DayOpen.Add(-h.Buffer)
	dayClose := h.DayClose.Add(h.Buffer)
	nightOpen := h.NightOpen.Add(-h.Buffer)
	nightClose := h.NightClose.Add(h.Buffer)

	tod := timeOfDayOf(now)
	weekday := now.Weekday()

	if !holiday.IsZero() {
		if DateOf(now) == holiday {
			return false
		}
		if DateOf(now) == holiday.Next() && tod < dayOpen {
			return false
		}
	}

	if weekday == time.Sunday {
		return false
	}
	// Saturday after the Friday-night session tail ends.
	if weekday == time.Saturday && nightOpen > nightClose && tod >= nightClose {
		return false
	}
	if weekday == time.Monday && tod < dayOpen {
		return false
	}

	inDay := dayOpen <= tod && tod < dayClose

	var inNight bool
	if nightOpen < nightClose {
		inNight = nightOpen <= tod && tod < nightClose
	} else {
		inNight = tod >= nightOpen || tod < nightClose
	}

	return inDay || inNight
}

// SlowTickThreshold returns the slow-tick warning threshold for the session
// now falls in. The day block runs from the day open until the night open;
// the night session is thinner, so its warnings fire later.
func (h Hours) SlowTickThreshold(now time.Time) time.Duration {
	tod := timeOfDayOf(now.In(h.Location))
	if h.DayOpen <= tod && tod < h.NightOpen {
		return h.DayThreshold
	}
	return h.NightThreshold
}

// SessionOpen returns the open instant of the session now belongs to:
// today's day open during the day block, otherwise the most recent night
// open (yesterday's while still inside the overnight tail).
func (h Hours) SessionOpen(now time.Time) time.Time {
	now = now.In(h.Location)
	tod := timeOfDayOf(now)

	if h.DayOpen <= tod && tod < h.NightOpen {
		return h.at(now, h.DayOpen)
	}
	day := now
	if tod < h.NightClose {
		day = now.AddDate(0, 0, -1)
	}
	return h.at(day, h.NightOpen)
}

func (h Hours) at(day time.Time, t TimeOfDay) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, int(t)/3600, int(t)/60%60, int(t)%60, 0, h.Location)
}
