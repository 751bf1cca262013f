package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(15000), MinorUnits(150.00))
	assert.Equal(t, int64(1), MinorUnits(0.01))
	assert.Equal(t, int64(9999), MinorUnits(99.99))
	// 0.29 is not exactly representable as a float; rounding must absorb it.
	assert.Equal(t, int64(29), MinorUnits(0.29))
	assert.Equal(t, 150.00, FromMinorUnits(15000))
}

func TestSplitPlatformFee(t *testing.T) {
	fee, vendor := SplitPlatformFee(15000)
	assert.Equal(t, int64(1500), fee)
	assert.Equal(t, int64(13500), vendor)

	// Half-up rounding on the fee: 10% of 25 minor units is 2.5 -> 3.
	fee, vendor = SplitPlatformFee(25)
	assert.Equal(t, int64(3), fee)
	assert.Equal(t, int64(22), vendor)

	for _, totalMinor := range []int64{1, 9, 25, 3335, 9999, 15000, 1234567} {
		fee, vendor := SplitPlatformFee(totalMinor)
		assert.Equal(t, totalMinor, fee+vendor, "split of %d must be exact", totalMinor)
		assert.GreaterOrEqual(t, fee, int64(0))
		assert.GreaterOrEqual(t, vendor, int64(0))
	}
}

func TestSplitAmount(t *testing.T) {
	fee, vendor := SplitAmount(150.00)
	assert.Equal(t, 15.00, fee)
	assert.Equal(t, 135.00, vendor)

	for _, total := range []float64{0.01, 0.29, 33.35, 99.99, 150.00} {
		fee, vendor := SplitAmount(total)
		assert.Equal(t, MinorUnits(total), MinorUnits(fee)+MinorUnits(vendor),
			"fee and vendor share of %.2f must sum to the total", total)
	}
}
