package utils

import "math"

// PlatformFeeRate is the fraction of every captured payment retained by the
// platform before the vendor payout.
const PlatformFeeRate = 0.10

// MinorUnits converts a major-unit amount (e.g. 150.00) to integer minor
// units (15000). All gateway calls take minor units so no float rounding
// reaches a transfer.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts integer minor units back to a major-unit amount.
func FromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}

// SplitPlatformFee splits a total in minor units into the platform fee and
// the vendor share. The fee is 10% rounded half-up to the minor unit, and
// the two parts always sum exactly to the total.
func SplitPlatformFee(totalMinor int64) (feeMinor, vendorMinor int64) {
	feeMinor = (totalMinor + 5) / 10
	return feeMinor, totalMinor - feeMinor
}

// SplitAmount applies SplitPlatformFee to a major-unit total.
func SplitAmount(total float64) (fee, vendor float64) {
	feeMinor, vendorMinor := SplitPlatformFee(MinorUnits(total))
	return FromMinorUnits(feeMinor), FromMinorUnits(vendorMinor)
}
