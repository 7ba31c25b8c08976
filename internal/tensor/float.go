package tensor

import (
	"math"

	"github.com/x448/float16"
)

// Float32ToFloat16 converts f to IEEE 754 half precision bits, rounding to nearest even.
func Float32ToFloat16(f float32) uint16 {
	return float16.Fromfloat32(f).Bits()
}

// Float16ToFloat32 converts IEEE 754 half precision bits to float32.
func Float16ToFloat32(h uint16) float32 {
	return float16.Frombits(h).Float32()
}

// Float32ToBFloat16 converts f to bfloat16 bits, rounding to nearest even.
// NaN stays NaN (quiet bit forced so truncation cannot yield infinity).
func Float32ToBFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	if math.IsNaN(float64(f)) {
		return uint16(bits>>16) | 0x0040
	}
	rounding := uint32(0x7FFF) + ((bits >> 16) & 1)
	return uint16((bits + rounding) >> 16)
}

// BFloat16ToFloat32 converts bfloat16 bits to float32. The conversion is exact.
func BFloat16ToFloat32(b uint16) float32 {
	return math.Float32frombits(uint32(b) << 16)
}
