package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonthWindow(t *testing.T) {
	start, end := MonthWindow(time.Date(2026, time.August, 29, 14, 30, 0, 0, time.UTC))
	require.Equal(t, time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestMonthWindowYearRollover(t *testing.T) {
	start, end := MonthWindow(time.Date(2026, time.December, 31, 23, 59, 59, 0, time.UTC))
	require.Equal(t, time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestMonthWindowNormalizesZone(t *testing.T) {
	// 2026-09-01 05:00 +08:00 is still August 31 in UTC.
	zone := time.FixedZone("UTC+8", 8*60*60)
	start, _ := MonthWindow(time.Date(2026, time.September, 1, 5, 0, 0, 0, zone))
	require.Equal(t, time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC), start)
}
