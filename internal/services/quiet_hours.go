package services

import (
	"time"

	"messaging-service/internal/models"
)

// quietWindow resolves a preference's quiet-hours configuration into the
// user's local time. Returns ok=false when the preference has no usable
// window.
func quietWindow(pref models.NotificationPreference) (start, end time.Duration, loc *time.Location, ok bool) {
	if pref.QuietHoursStart == nil || pref.QuietHoursEnd == nil {
		return 0, 0, nil, false
	}
	start, err := parseClock(*pref.QuietHoursStart)
	if err != nil {
		return 0, 0, nil, false
	}
	end, err = parseClock(*pref.QuietHoursEnd)
	if err != nil {
		return 0, 0, nil, false
	}
	if start == end {
		return 0, 0, nil, false
	}

	loc, err = time.LoadLocation(pref.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return start, end, loc, true
}

// inQuietHours reports whether now falls inside the preference's quiet-hours
// window. Windows wrapping over midnight (e.g. 22:00-07:00) are handled.
func inQuietHours(pref models.NotificationPreference, now time.Time) bool {
	start, end, loc, ok := quietWindow(pref)
	if !ok {
		return false
	}

	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	clock := local.Sub(midnight)

	if start < end {
		return clock >= start && clock < end
	}
	return clock >= start || clock < end
}

// nextDeliveryTime returns the end of the quiet-hours window currently
// containing now. Callers must only invoke this when inQuietHours is true.
func nextDeliveryTime(pref models.NotificationPreference, now time.Time) time.Time {
	start, end, loc, ok := quietWindow(pref)
	if !ok {
		return now
	}

	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	clock := local.Sub(midnight)

	slot := midnight.Add(end)
	if start > end && clock >= start {
		// Wrapped window, still before midnight: the window ends tomorrow.
		slot = slot.AddDate(0, 0, 1)
	}
	return slot
}

// parseClock parses "HH:MM" into an offset from midnight.
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
