package tensor

import (
	"encoding/binary"
	"math"

	"github.com/born-ml/ckptconv/internal/parallel"
)

// castConfig splits casts of large tensors across CPUs.
var castConfig = parallel.DefaultConfig()

// To returns the tensor converted to dtype dt.
//
// When the tensor already has dtype dt the receiver itself is returned, so
// casting twice to the same precision is a no-op. Otherwise a new tensor is
// allocated and the receiver is left untouched. Floating point targets round
// to nearest even; integer targets truncate toward zero.
func (r *RawTensor) To(dt DataType) *RawTensor {
	if r.dtype == dt {
		return r
	}

	n := r.NumElements()
	size := dt.Size()
	out := &RawTensor{
		data:  make([]byte, n*size),
		shape: r.shape.Clone(),
		dtype: dt,
	}

	parallel.Range(n, castConfig, func(start, end int) {
		for i := start; i < end; i++ {
			putElement(out.data[i*size:(i+1)*size], dt, r.Float64At(i))
		}
	})
	return out
}

// putElement encodes v into b as a little-endian element of type dt.
func putElement(b []byte, dt DataType, v float64) {
	switch dt {
	case Float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	case Float16:
		binary.LittleEndian.PutUint16(b, Float32ToFloat16(float32(v)))
	case BFloat16:
		binary.LittleEndian.PutUint16(b, Float32ToBFloat16(float32(v)))
	case Int64:
		binary.LittleEndian.PutUint64(b, uint64(int64(v))) //nolint:gosec // G115: two's complement encoding
	case Int32:
		binary.LittleEndian.PutUint32(b, uint32(int32(v))) //nolint:gosec // G115: two's complement encoding
	case Int16:
		binary.LittleEndian.PutUint16(b, uint16(int16(v))) //nolint:gosec // G115: two's complement encoding
	case Int8:
		b[0] = byte(int8(v)) //nolint:gosec // G115: two's complement encoding
	case Uint8:
		b[0] = byte(v)
	case Bool:
		if v != 0 {
			b[0] = 1
		} else {
			b[0] = 0
		}
	default:
		panic("unknown data type")
	}
}
