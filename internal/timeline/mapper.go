// Package timeline converts between vertical pixel offsets on a day
// timeline and wall-clock times.
//
// Offsets are measured in pixels from the top of the timeline, which shows
// startHour at offset 0 and advances hourHeight pixels per hour. All
// arithmetic uses wall-clock fields so a 9:00 tile sits at the same offset
// on a DST transition day as on any other day.
package timeline

import (
	"math"
	"time"
)

// OffsetToTime maps offset to the wall-clock time on ref's date. A positive
// rounding floors the result to a multiple of rounding past startHour.
func OffsetToTime(offset float64, ref time.Time, startHour int, hourHeight float64, rounding time.Duration) time.Time {
	d := HeightToDuration(offset, hourHeight)
	if rounding > 0 {
		d = floorDuration(d, rounding)
	}
	return AddWall(dayStart(ref, startHour), d)
}

// TimeToOffset maps t to an offset on the timeline of t's own date.
func TimeToOffset(t time.Time, startHour int, hourHeight float64) float64 {
	return TimeToOffsetOn(t, t, startHour, hourHeight)
}

// TimeToOffsetOn maps t to an offset on the timeline of ref's date. Times
// on later dates produce offsets past the end of the day, earlier dates
// produce negative offsets.
func TimeToOffsetOn(t, ref time.Time, startHour int, hourHeight float64) float64 {
	return DurationToHeight(WallDiff(dayStart(ref, startHour), t), hourHeight)
}

func DurationToHeight(d time.Duration, hourHeight float64) float64 {
	return d.Hours() * hourHeight
}

func HeightToDuration(h float64, hourHeight float64) time.Duration {
	if hourHeight <= 0 {
		return 0
	}
	return time.Duration(math.Round(h / hourHeight * float64(time.Hour)))
}

// AddWall advances t by d on the wall clock, so adding 24h across a DST
// change lands on the same clock time of the next day.
func AddWall(t time.Time, d time.Duration) time.Time {
	y, mo, dd := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, dd, h, mi, s, t.Nanosecond()+int(d), t.Location())
}

// WallDiff returns b-a measured on the wall clock: whole calendar days
// count as 24h regardless of DST.
func WallDiff(a, b time.Time) time.Duration {
	days := DaysBetween(a, b)
	return time.Duration(days)*24*time.Hour + sinceMidnight(b) - sinceMidnight(a)
}

// DaysBetween counts calendar dates from a to b, each read in its own location.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua) / (24 * time.Hour))
}

// SinceMidnight is the wall-clock time of day of t.
func SinceMidnight(t time.Time) time.Duration { return sinceMidnight(t) }

// AtClock returns day's date at the wall-clock time of day d.
func AtClock(day time.Time, d time.Duration) time.Time {
	y, m, dd := day.Date()
	return time.Date(y, m, dd, 0, 0, 0, int(d), day.Location())
}

func sinceMidnight(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

func dayStart(ref time.Time, startHour int) time.Time {
	y, m, d := ref.Date()
	return time.Date(y, m, d, startHour, 0, 0, 0, ref.Location())
}

func floorDuration(d, unit time.Duration) time.Duration {
	q := d / unit
	if d < 0 && d%unit != 0 {
		q--
	}
	return q * unit
}
