package maskrle

import "github.com/x448/float16"

var f16LookupTable [65536]float32

func init() {
	// precompute float16 lookup table for faster conversion to float32
	for i := range f16LookupTable {
		f16LookupTable[i] = float16.Frombits(uint16(i)).Float32()
	}
}

// Float16ToFloat32 converts a buffer of IEEE 754 half precision values, given
// as their raw bits, to float32 as Go has no native FP16 type.
func Float16ToFloat32(buf []uint16) []float32 {
	out := make([]float32, len(buf))

	for i, bits := range buf {
		out[i] = f16LookupTable[bits]
	}

	return out
}

// Float32ToFloat16 converts float32 values to the raw bits of their nearest
// half precision representation
func Float32ToFloat16(buf []float32) []uint16 {
	out := make([]uint16, len(buf))

	for i, v := range buf {
		out[i] = float16.Fromfloat32(v).Bits()
	}

	return out
}
