package loader

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ckptconv/internal/checkpoint"
	"github.com/born-ml/ckptconv/internal/tensor"
)

// writeSafeTensorsFile writes a SafeTensors file from a header map and a data section.
func writeSafeTensorsFile(t *testing.T, path string, headerMap map[string]interface{}, data []byte) {
	t.Helper()

	headerJSON, err := json.Marshal(headerMap)
	require.NoError(t, err)

	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	require.NoError(t, binary.Write(file, binary.LittleEndian, uint64(len(headerJSON))))
	_, err = file.Write(headerJSON)
	require.NoError(t, err)
	_, err = file.Write(data)
	require.NoError(t, err)
}

// createTestSafeTensorsFile creates a minimal SafeTensors file for testing:
// weight F32 [2, 3] = 1..6, bias F16 [3] = 0.5, 1, 2.
func createTestSafeTensorsFile(t *testing.T, path string) {
	t.Helper()

	headerMap := map[string]interface{}{
		"__metadata__": map[string]string{"format": "pt"},
		"weight": SafeTensorInfo{
			DType:       SafeTensorsF32,
			Shape:       []int{2, 3},
			DataOffsets: [2]int64{0, 24}, // 2*3*4 = 24 bytes
		},
		"bias": SafeTensorInfo{
			DType:       SafeTensorsF16,
			Shape:       []int{3},
			DataOffsets: [2]int64{24, 30}, // 3*2 = 6 bytes
		},
	}

	data := make([]byte, 0, 30)
	for _, v := range []float32{1, 2, 3, 4, 5, 6} {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
	}
	for _, v := range []float32{0.5, 1, 2} {
		data = binary.LittleEndian.AppendUint16(data, tensor.Float32ToFloat16(v))
	}

	writeSafeTensorsFile(t, path, headerMap, data)
}

func TestNewSafeTensorsReader(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.safetensors")
	createTestSafeTensorsFile(t, testFile)

	reader, err := NewSafeTensorsReader(testFile)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "pt", reader.Metadata()["format"])
	assert.Equal(t, []string{"bias", "weight"}, reader.TensorNames())
}

func TestSafeTensorsReader_TensorInfo(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.safetensors")
	createTestSafeTensorsFile(t, testFile)

	reader, err := NewSafeTensorsReader(testFile)
	require.NoError(t, err)
	defer reader.Close()

	info, err := reader.TensorInfo("weight")
	require.NoError(t, err)
	assert.Equal(t, SafeTensorsF32, info.DType)
	assert.Equal(t, []int{2, 3}, info.Shape)

	_, err = reader.TensorInfo("nonexistent")
	assert.ErrorIs(t, err, ErrTensorNotFound)
}

func TestSafeTensorsReader_LoadTensor(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.safetensors")
	createTestSafeTensorsFile(t, testFile)

	reader, err := NewSafeTensorsReader(testFile)
	require.NoError(t, err)
	defer reader.Close()

	weight, err := reader.LoadTensor("weight")
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, weight.DType())
	assert.True(t, weight.Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, weight.AsFloat32())

	bias, err := reader.LoadTensor("bias")
	require.NoError(t, err)
	assert.Equal(t, tensor.Float16, bias.DType())
	assert.Equal(t, []float32{0.5, 1, 2}, bias.AsFloat32())
}

func TestLoad_SafeTensors(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "model.safetensors")
	createTestSafeTensorsFile(t, testFile)

	sd, err := Load(testFile)
	require.NoError(t, err)

	assert.Equal(t, []string{"bias", "weight"}, sd.Keys())
	assert.Same(t, sd, checkpoint.Unwrap(sd))
}

func TestNewSafeTensorsReader_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := NewSafeTensorsReader(filepath.Join(dir, "missing.safetensors"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("truncated", func(t *testing.T) {
		path := filepath.Join(dir, "short.safetensors")
		require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o600))
		_, err := NewSafeTensorsReader(path)
		assert.Error(t, err)
	})

	t.Run("header too large", func(t *testing.T) {
		path := filepath.Join(dir, "huge.safetensors")
		buf := binary.LittleEndian.AppendUint64(nil, MaxHeaderSize+1)
		require.NoError(t, os.WriteFile(path, buf, 0o600))
		_, err := NewSafeTensorsReader(path)
		assert.ErrorIs(t, err, ErrHeaderTooLarge)
	})

	t.Run("bad json", func(t *testing.T) {
		path := filepath.Join(dir, "json.safetensors")
		buf := binary.LittleEndian.AppendUint64(nil, 3)
		buf = append(buf, "{x}"...)
		require.NoError(t, os.WriteFile(path, buf, 0o600))
		_, err := NewSafeTensorsReader(path)
		assert.Error(t, err)
	})

	t.Run("out of bounds", func(t *testing.T) {
		path := filepath.Join(dir, "oob.safetensors")
		writeSafeTensorsFile(t, path, map[string]interface{}{
			"w": SafeTensorInfo{DType: SafeTensorsF32, Shape: []int{4}, DataOffsets: [2]int64{0, 16}},
		}, make([]byte, 8))

		_, err := NewSafeTensorsReader(path)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "out_of_bounds", verr.Type)
	})
}
