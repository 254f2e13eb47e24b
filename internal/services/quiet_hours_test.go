package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

func prefWithQuietHours(start, end, tz string) models.NotificationPreference {
	pref := models.DefaultPreference(1, models.CategoryMessage)
	pref.QuietHoursStart = &start
	pref.QuietHoursEnd = &end
	pref.Timezone = tz
	return pref
}

func TestInQuietHoursNoWindow(t *testing.T) {
	pref := models.DefaultPreference(1, models.CategoryMessage)
	assert.False(t, inQuietHours(pref, time.Now()))
}

func TestInQuietHoursSameDayWindow(t *testing.T) {
	pref := prefWithQuietHours("09:00", "17:00", "UTC")

	tests := []struct {
		name  string
		clock string
		want  bool
	}{
		{"before window", "08:59", false},
		{"window start", "09:00", true},
		{"inside window", "12:30", true},
		{"window end is exclusive", "17:00", false},
		{"after window", "21:00", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			now, err := time.Parse("2006-01-02 15:04", "2026-03-10 "+tc.clock)
			require.NoError(t, err)
			assert.Equal(t, tc.want, inQuietHours(pref, now.UTC()))
		})
	}
}

func TestInQuietHoursWrapsMidnight(t *testing.T) {
	pref := prefWithQuietHours("22:00", "07:00", "UTC")

	tests := []struct {
		name  string
		clock string
		want  bool
	}{
		{"evening before start", "21:59", false},
		{"start of window", "22:00", true},
		{"just before midnight", "23:59", true},
		{"just after midnight", "00:01", true},
		{"early morning", "06:59", true},
		{"end is exclusive", "07:00", false},
		{"midday", "12:00", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			now, err := time.Parse("2006-01-02 15:04", "2026-03-10 "+tc.clock)
			require.NoError(t, err)
			assert.Equal(t, tc.want, inQuietHours(pref, now.UTC()))
		})
	}
}

func TestInQuietHoursEqualStartEndDisabled(t *testing.T) {
	pref := prefWithQuietHours("08:00", "08:00", "UTC")
	now, _ := time.Parse("2006-01-02 15:04", "2026-03-10 08:00")
	assert.False(t, inQuietHours(pref, now.UTC()))
}

func TestInQuietHoursRespectsTimezone(t *testing.T) {
	pref := prefWithQuietHours("22:00", "07:00", "America/New_York")

	// 03:00 UTC is 22:00 or 23:00 in New York depending on DST; either way
	// inside the window.
	now, _ := time.Parse("2006-01-02 15:04", "2026-03-10 03:00")
	assert.True(t, inQuietHours(pref, now.UTC()))

	// 18:00 UTC is daytime in New York.
	day, _ := time.Parse("2006-01-02 15:04", "2026-03-10 18:00")
	assert.False(t, inQuietHours(pref, day.UTC()))
}

func TestNextDeliveryTimeSameDayWindow(t *testing.T) {
	pref := prefWithQuietHours("09:00", "17:00", "UTC")
	now, _ := time.Parse("2006-01-02 15:04", "2026-03-10 12:00")

	slot := nextDeliveryTime(pref, now.UTC())
	assert.Equal(t, "2026-03-10 17:00", slot.UTC().Format("2006-01-02 15:04"))
}

func TestNextDeliveryTimeWrapBeforeMidnight(t *testing.T) {
	pref := prefWithQuietHours("22:00", "07:00", "UTC")
	now, _ := time.Parse("2006-01-02 15:04", "2026-03-10 23:30")

	// The window ends tomorrow morning.
	slot := nextDeliveryTime(pref, now.UTC())
	assert.Equal(t, "2026-03-11 07:00", slot.UTC().Format("2006-01-02 15:04"))
}

func TestNextDeliveryTimeWrapAfterMidnight(t *testing.T) {
	pref := prefWithQuietHours("22:00", "07:00", "UTC")
	now, _ := time.Parse("2006-01-02 15:04", "2026-03-11 02:15")

	slot := nextDeliveryTime(pref, now.UTC())
	assert.Equal(t, "2026-03-11 07:00", slot.UTC().Format("2006-01-02 15:04"))
}

func TestParseClockRejectsGarbage(t *testing.T) {
	_, err := parseClock("25:99")
	assert.Error(t, err)

	d, err := parseClock("07:30")
	require.NoError(t, err)
	assert.Equal(t, 7*time.Hour+30*time.Minute, d)
}
