package premium

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappabad/optionboard/internal/options"
)

func TestPPD(t *testing.T) {
	assert.Equal(t, 7.0, PPD(options.Put, 100, 95, 2))
	assert.Equal(t, -3.0, PPD(options.Call, 100, 95, 2))
	assert.Equal(t, 7.0, PPD(options.Call, 95, 100, 2))
}

func TestROIWeekly(t *testing.T) {
	roi := ROI(7, 95, Factor(ModeWeekly, 30))
	assert.InDelta(t, 0.038315, roi, 1e-6)
}

func TestROIZeroStrike(t *testing.T) {
	assert.Equal(t, 0.0, ROI(7, 0, 52))
	assert.Equal(t, 0.0, ROI(7, -5, 52))
}

func TestFactorExpiry(t *testing.T) {
	assert.InDelta(t, 365.0/14, Factor(ModeExpiry, 14), 1e-9)
	assert.Equal(t, 365.0, Factor(ModeExpiry, 0))
	assert.Equal(t, 52.0, Factor(ModeWeekly, 0))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeWeekly, m)
	m, err = ParseMode("expiry")
	require.NoError(t, err)
	assert.Equal(t, ModeExpiry, m)
	_, err = ParseMode("monthly")
	assert.Error(t, err)
}

func TestComputeWithheldUntilPricesKnown(t *testing.T) {
	q := options.Quote{Identity: options.Identity{Strike: 95, Right: options.Put}}

	_, ok := Compute(q, options.Float(100), ModeWeekly, 10)
	assert.False(t, ok, "option price unknown")

	q.Fields.OptionPrice = options.Float(2)
	_, ok = Compute(q, nil, ModeWeekly, 10)
	assert.False(t, ok, "underlying price unknown")

	m, ok := Compute(q, options.Float(100), ModeWeekly, 10)
	require.True(t, ok)
	assert.Equal(t, 7.0, m.PPD)
	assert.InDelta(t, 0.038315, m.ROI, 1e-6)
}
