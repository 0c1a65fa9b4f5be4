package schedule

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidDate     = errors.New("invalid date format")
	ErrInvalidTime     = errors.New("invalid time format")
	ErrInvalidDuration = errors.New("invalid duration")

	ErrDatePast       = errors.New("date in the past")
	ErrSlotPast       = errors.New("time slot already passed")
	ErrSlotNotOffered = errors.New("time slot not offered")
	ErrSlotTaken      = errors.New("time slot overlaps an existing booking")
)

func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return date, nil
}

func ParseDateTime(dateStr, timeStr string, loc *time.Location) (time.Time, error) {
	if _, err := time.Parse("15:04", timeStr); err != nil {
		return time.Time{}, ErrInvalidTime
	}
	_, err := ParseDate(dateStr, loc)
	if err != nil {
		return time.Time{}, err
	}

	parsed, err := time.ParseInLocation("2006-01-02 15:04", dateStr+" "+timeStr, loc)
	if err != nil {
		return time.Time{}, ErrInvalidTime
	}

	return parsed, nil
}

func ParseClockToMinutes(timeStr string) (int, error) {
	tm, err := time.Parse("15:04", timeStr)
	if err != nil {
		return 0, ErrInvalidTime
	}
	return tm.Hour()*60 + tm.Minute(), nil
}

func MinutesToClock(minutes int) string {
	h := minutes / 60
	m := minutes % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}

// Slots lists the start times from start to end inclusive, step minutes
// apart.
func Slots(start, end string, step int) ([]string, error) {
	if step <= 0 {
		return nil, ErrInvalidDuration
	}
	startMin, err := ParseClockToMinutes(start)
	if err != nil {
		return nil, err
	}
	endMin, err := ParseClockToMinutes(end)
	if err != nil {
		return nil, err
	}
	if endMin < startMin {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidTime, end, start)
	}

	slots := make([]string, 0, (endMin-startMin)/step+1)
	for cursor := startMin; cursor <= endMin; cursor += step {
		slots = append(slots, MinutesToClock(cursor))
	}
	return slots, nil
}

func IsDatePast(dateStr string, loc *time.Location, now time.Time) (bool, error) {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return false, err
	}
	startToday := time.Date(now.In(loc).Year(), now.In(loc).Month(), now.In(loc).Day(), 0, 0, 0, 0, loc)
	return date.Before(startToday), nil
}

func IsToday(dateStr string, loc *time.Location, now time.Time) bool {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return false
	}
	local := now.In(loc)
	return date.Year() == local.Year() && date.YearDay() == local.YearDay()
}

func IsSlotPast(dateStr, timeStr string, loc *time.Location, now time.Time) (bool, error) {
	slot, err := ParseDateTime(dateStr, timeStr, loc)
	if err != nil {
		return false, err
	}
	return !slot.After(now.In(loc)), nil
}

func FilterPastSlots(dateStr string, slots []string, loc *time.Location, now time.Time) ([]string, error) {
	filtered := make([]string, 0, len(slots))
	for _, s := range slots {
		past, err := IsSlotPast(dateStr, s, loc, now)
		if err != nil {
			return nil, err
		}
		if !past {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

// Interval is a half-open range of minutes since midnight.
type Interval struct {
	Start int
	End   int
}

func NewInterval(clock string, duration int) (Interval, error) {
	if duration <= 0 {
		return Interval{}, ErrInvalidDuration
	}
	start, err := ParseClockToMinutes(clock)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: start + duration}, nil
}

func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

func FilterOverlapping(slots []string, duration int, reserved []Interval) ([]string, error) {
	filtered := make([]string, 0, len(slots))
	for _, s := range slots {
		current, err := NewInterval(s, duration)
		if err != nil {
			return nil, err
		}
		overlap := false
		for _, r := range reserved {
			if Overlaps(current, r) {
				overlap = true
				break
			}
		}
		if !overlap {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

// Available returns the offered slots on date that fit duration minutes
// without overlapping reserved, dropping slots already passed today.
func Available(dateStr string, offered []string, duration int, reserved []Interval, loc *time.Location, now time.Time) ([]string, error) {
	past, err := IsDatePast(dateStr, loc, now)
	if err != nil {
		return nil, err
	}
	if past {
		return nil, ErrDatePast
	}

	slots, err := FilterOverlapping(offered, duration, reserved)
	if err != nil {
		return nil, err
	}
	if IsToday(dateStr, loc, now) {
		return FilterPastSlots(dateStr, slots, loc, now)
	}
	return slots, nil
}

// CheckBooking applies the booking rules for one requested slot.
func CheckBooking(dateStr, timeStr string, duration int, offered []string, reserved []Interval, loc *time.Location, now time.Time) error {
	past, err := IsDatePast(dateStr, loc, now)
	if err != nil {
		return err
	}
	if past {
		return ErrDatePast
	}

	isOffered := false
	for _, s := range offered {
		if s == timeStr {
			isOffered = true
			break
		}
	}
	if !isOffered {
		return ErrSlotNotOffered
	}

	slotPast, err := IsSlotPast(dateStr, timeStr, loc, now)
	if err != nil {
		return err
	}
	if slotPast {
		return ErrSlotPast
	}

	requested, err := NewInterval(timeStr, duration)
	if err != nil {
		return err
	}
	for _, r := range reserved {
		if Overlaps(requested, r) {
			return ErrSlotTaken
		}
	}
	return nil
}
