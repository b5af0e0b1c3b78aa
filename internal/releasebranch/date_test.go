package releasebranch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReleaseRoundTrip(t *testing.T) {
	for year := 0; year < 100; year += 7 {
		for period := 0; period <= maxPeriod; period += 2 {
			name := fmt.Sprintf("r%02d%02d", year, period)

			r, err := ParseRelease(name)
			require.NoError(t, err)
			assert.Equal(t, name, r.String())

			again, err := ParseRelease(r.String())
			require.NoError(t, err)
			assert.Equal(t, r, again)
		}
	}
}

func TestParseReleaseInvalid(t *testing.T) {
	for _, name := range []string{"", "cabc", "r9999", "r0054", "r210", "r21040", "R2104", "r21a4", " r2104", "c42"} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRelease(name)
			assert.ErrorIs(t, err, ErrInvalidBranchFormat)
		})
	}
}

func TestNextFirstStep(t *testing.T) {
	r, err := ParseRelease("r0000")
	require.NoError(t, err)

	r.Next()
	assert.Equal(t, "r0002", r.String())
}

func TestNextYearWrap(t *testing.T) {
	r, err := ParseRelease("r0000")
	require.NoError(t, err)

	for i := 0; i < 26; i++ {
		r.Next()
	}
	assert.Equal(t, "r0052", r.String())

	r.Next()
	assert.Equal(t, "r0100", r.String())
}

func TestPreviousYearWrap(t *testing.T) {
	r, err := ParseRelease("r2100")
	require.NoError(t, err)

	r.Previous()
	assert.Equal(t, "r2052", r.String())

	r.Previous()
	assert.Equal(t, "r2050", r.String())
}

func TestPreviousUndoesNext(t *testing.T) {
	for _, name := range []string{"r0000", "r2102", "r2150", "r2152", "r9852"} {
		t.Run(name, func(t *testing.T) {
			r, err := ParseRelease(name)
			require.NoError(t, err)

			c := r.Copy()
			c.Next()
			c.Previous()
			assert.Equal(t, r.String(), c.String())
		})
	}
}

func TestCopyIsIndependent(t *testing.T) {
	r, err := ParseRelease("r2104")
	require.NoError(t, err)

	c := r.Copy()
	c.Next()

	assert.Equal(t, "r2104", r.String())
	assert.Equal(t, "r2106", c.String())
}

func TestOddPeriodKeepsParity(t *testing.T) {
	r, err := ParseRelease("r2151")
	require.NoError(t, err)

	r.Next()
	assert.Equal(t, "r2200", r.String())
}
