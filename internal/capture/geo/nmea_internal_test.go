package geo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNMEAProvider_FixTimeAcrossMidnight(t *testing.T) {
	now := time.Date(2026, 10, 19, 0, 0, 2, 0, time.UTC)
	p := &NMEAProvider{now: func() time.Time { return now }}

	fix, ok := p.parse("$GPGGA,235959,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*4B")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 10, 18, 23, 59, 59, 0, time.UTC), fix.Timestamp)

	fix, ok = p.parse("$GPGGA,000001,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*4B")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 1, 0, time.UTC), fix.Timestamp)
}

func TestNMEAProvider_FixTimeSameDay(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 40, 0, 0, time.UTC)
	p := &NMEAProvider{now: func() time.Time { return now }}

	fix, ok := p.parse("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 10, 19, 12, 35, 19, 0, time.UTC), fix.Timestamp)
}
