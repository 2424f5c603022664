package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekStart(t *testing.T) {
	// 2024-03-06 是周三
	wed := time.Date(2024, time.March, 6, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), WeekStart(wed))

	mon := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, mon, WeekStart(mon))

	sun := time.Date(2024, time.March, 3, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.February, 26, 0, 0, 0, 0, time.UTC), WeekStart(sun))
}

func TestTimeframeStart(t *testing.T) {
	now := time.Date(2024, time.March, 6, 15, 30, 0, 0, time.UTC)

	_, ok := AllTime.Start(now)
	assert.False(t, ok)

	start, ok := ThisMonth.Start(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), start)

	start, ok = ThisWeek.Start(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), start)
}

func TestInWindow(t *testing.T) {
	now := time.Date(2024, time.March, 6, 15, 30, 0, 0, time.UTC)
	attempts := []Attempt{
		{ModuleID: "boundary", StartedAt: time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)},
		{ModuleID: "before", StartedAt: time.Date(2024, time.March, 3, 23, 59, 59, 0, time.UTC)},
		{ModuleID: "month", StartedAt: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{ModuleID: "old", StartedAt: time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC)},
	}

	week := InWindow(attempts, ThisWeek, now)
	require.Len(t, week, 1)
	assert.Equal(t, "boundary", week[0].ModuleID)

	assert.Len(t, InWindow(attempts, ThisMonth, now), 3)
	assert.Len(t, InWindow(attempts, AllTime, now), 4)
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("")
	require.NoError(t, err)
	assert.Equal(t, AllTime, tf)

	tf, err = ParseTimeframe("this_week")
	require.NoError(t, err)
	assert.Equal(t, ThisWeek, tf)

	_, err = ParseTimeframe("yesterday")
	assert.Error(t, err)
}
