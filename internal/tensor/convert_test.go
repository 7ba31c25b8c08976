package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ckptconv/internal/parallel"
)

func TestTo_Float16(t *testing.T) {
	src, err := FromFloat32(Shape{2, 2}, []float32{1, -2, 0.5, 65504})
	require.NoError(t, err)
	before := append([]byte(nil), src.Data()...)

	half := src.To(Float16)

	assert.Equal(t, Float16, half.DType())
	assert.True(t, half.Shape().Equal(Shape{2, 2}))
	assert.Equal(t, 8, half.ByteSize())
	assert.Equal(t, []float32{1, -2, 0.5, 65504}, half.AsFloat32())
	assert.Equal(t, before, src.Data(), "source must not be mutated")
}

func TestTo_BFloat16(t *testing.T) {
	src, err := FromFloat64(Shape{3}, []float64{1, 3.140625, -0.5})
	require.NoError(t, err)

	bf := src.To(BFloat16)

	assert.Equal(t, BFloat16, bf.DType())
	assert.Equal(t, []float32{1, 3.140625, -0.5}, bf.AsFloat32())
}

func TestTo_SameTypeIsIdentity(t *testing.T) {
	src, err := FromFloat32(Shape{2}, []float32{1, 2})
	require.NoError(t, err)
	half := src.To(Float16)

	again := half.To(Float16)

	assert.Same(t, half, again)
	assert.True(t, half.Equal(again))
}

func TestTo_IntegerSource(t *testing.T) {
	src, err := FromInt64(Shape{3}, []int64{0, 7, -3})
	require.NoError(t, err)

	half := src.To(Float16)

	assert.Equal(t, []float32{0, 7, -3}, half.AsFloat32())
}

func TestTo_IntegerTarget(t *testing.T) {
	src, err := FromFloat32(Shape{3}, []float32{1.9, -1.9, 0})
	require.NoError(t, err)

	ints := src.To(Int32)
	assert.Equal(t, []float32{1, -1, 0}, ints.AsFloat32())

	bools := src.To(Bool)
	assert.Equal(t, []byte{1, 1, 0}, bools.Data())
}

func TestTo_ParallelMatchesSequential(t *testing.T) {
	values := make([]float32, 10_001)
	for i := range values {
		values[i] = float32(i)*0.37 - 1800
	}
	src, err := FromFloat32(Shape{len(values)}, values)
	require.NoError(t, err)

	saved := castConfig
	defer func() { castConfig = saved }()

	castConfig = parallel.Config{Enabled: false}
	sequential := src.To(BFloat16)

	castConfig = parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 100}
	chunked := src.To(BFloat16)

	assert.True(t, sequential.Equal(chunked))
}
