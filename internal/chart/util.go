package chart

import "strconv"

// trimFloat formats f with the minimum digits needed to round-trip,
// trimming the trailing zeros a fixed-precision format would otherwise
// leave on integral values (label text should read "30" not "30.000000").
func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
