package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonth_HalfOpenWindow(t *testing.T) {
	p := Month(time.Date(2026, 3, 15, 17, 30, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), p.End)

	assert.True(t, p.Contains(p.Start))
	assert.True(t, p.Contains(p.End.Add(-time.Nanosecond)))
	assert.False(t, p.Contains(p.End))
}

func TestMonth_NormalizesZone(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	// 2026-04-01 05:00 +10 is still 2026-03-31 UTC
	p := Month(time.Date(2026, 4, 1, 5, 0, 0, 0, loc))
	assert.Equal(t, "2026-03", p.String())
}

func TestParse(t *testing.T) {
	p, err := Parse("2026-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), p.End)

	_, err = Parse("February 2026")
	assert.Error(t, err)
}
