package tensor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// RawTensor is a contiguous, row-major tensor resident in host memory.
// Element bytes are stored little-endian, matching both SafeTensors and
// PyTorch storage files.
type RawTensor struct {
	data  []byte
	shape Shape
	dtype DataType
}

// NewRaw creates a zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:  make([]byte, shape.NumElements()*dtype.Size()),
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// FromBytes wraps data as a tensor. The slice is used as is, without copying.
func FromBytes(shape Shape, dtype DataType, data []byte) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if want := shape.NumElements() * dtype.Size(); len(data) != want {
		return nil, fmt.Errorf("data size mismatch for %s%s: got %d bytes, want %d",
			dtype, shape, len(data), want)
	}

	return &RawTensor{
		data:  data,
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// FromFloat32 creates a Float32 tensor holding values.
func FromFloat32(shape Shape, values []float32) (*RawTensor, error) {
	raw, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}
	if len(values) != raw.NumElements() {
		return nil, fmt.Errorf("got %d values for shape %s", len(values), shape)
	}
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw.data[i*4:], math.Float32bits(v))
	}
	return raw, nil
}

// FromFloat64 creates a Float64 tensor holding values.
func FromFloat64(shape Shape, values []float64) (*RawTensor, error) {
	raw, err := NewRaw(shape, Float64)
	if err != nil {
		return nil, err
	}
	if len(values) != raw.NumElements() {
		return nil, fmt.Errorf("got %d values for shape %s", len(values), shape)
	}
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw.data[i*8:], math.Float64bits(v))
	}
	return raw, nil
}

// FromInt64 creates an Int64 tensor holding values.
func FromInt64(shape Shape, values []int64) (*RawTensor, error) {
	raw, err := NewRaw(shape, Int64)
	if err != nil {
		return nil, err
	}
	if len(values) != raw.NumElements() {
		return nil, fmt.Errorf("got %d values for shape %s", len(values), shape)
	}
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw.data[i*8:], uint64(v)) //nolint:gosec // G115: bit reinterpretation
	}
	return raw, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// Float64At returns element i converted to float64.
func (r *RawTensor) Float64At(i int) float64 {
	size := r.dtype.Size()
	b := r.data[i*size : (i+1)*size]

	switch r.dtype {
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	case Float16:
		return float64(Float16ToFloat32(binary.LittleEndian.Uint16(b)))
	case BFloat16:
		return float64(BFloat16ToFloat32(binary.LittleEndian.Uint16(b)))
	case Int64:
		return float64(int64(binary.LittleEndian.Uint64(b))) //nolint:gosec // G115: bit reinterpretation
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(b))) //nolint:gosec // G115: bit reinterpretation
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(b))) //nolint:gosec // G115: bit reinterpretation
	case Int8:
		return float64(int8(b[0])) //nolint:gosec // G115: bit reinterpretation
	case Uint8:
		return float64(b[0])
	case Bool:
		if b[0] != 0 {
			return 1
		}
		return 0
	default:
		panic(fmt.Sprintf("unknown data type %d", r.dtype))
	}
}

// AsFloat32 decodes every element into a new []float32.
func (r *RawTensor) AsFloat32() []float32 {
	out := make([]float32, r.NumElements())
	for i := range out {
		out[i] = float32(r.Float64At(i))
	}
	return out
}

// Equal reports whether both tensors have the same dtype, shape and bytes.
func (r *RawTensor) Equal(other *RawTensor) bool {
	if other == nil {
		return false
	}
	return r.dtype == other.dtype && r.shape.Equal(other.shape) && bytes.Equal(r.data, other.data)
}

// String returns a short description such as float16[2 3].
func (r *RawTensor) String() string {
	return r.dtype.String() + r.shape.String()
}
