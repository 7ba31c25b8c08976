package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ckptconv/internal/checkpoint"
	"github.com/born-ml/ckptconv/internal/loader"
	"github.com/born-ml/ckptconv/internal/tensor"
)

// newTestStateDict builds weight F32 [2, 3] = 1..6 and bias F32 [3] = 0.1..0.3.
func newTestStateDict(t *testing.T) *checkpoint.StateDict {
	t.Helper()

	weight, err := tensor.FromFloat32(tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	bias, err := tensor.FromFloat32(tensor.Shape{3}, []float32{0.1, 0.2, 0.3})
	require.NoError(t, err)

	sd := checkpoint.NewStateDict()
	sd.Set("weight", weight)
	sd.Set("bias", bias)
	return sd
}

func TestWriteSafeTensors_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.safetensors")
	sd := newTestStateDict(t)

	require.NoError(t, WriteSafeTensors(path, sd, WriteOptions{}))

	reader, err := loader.NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, map[string]string{"format": "pt"}, reader.Metadata())
	assert.Equal(t, []string{"bias", "weight"}, reader.TensorNames())

	for _, name := range []string{"weight", "bias"} {
		want, _ := sd.Tensor(name)
		got, err := reader.LoadTensor(name)
		require.NoError(t, err)
		assert.True(t, want.Equal(got), "tensor %s: want %v, got %v", name, want, got)
	}
}

func TestWriteSafeTensors_Metadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.safetensors")
	metadata := map[string]string{"format": "pt", "source": "unit-test"}

	require.NoError(t, WriteSafeTensors(path, newTestStateDict(t), WriteOptions{Metadata: metadata}))

	reader, err := loader.NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, metadata, reader.Metadata())
}

func TestWriteSafeTensors_DTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dtypes.safetensors")

	base, err := tensor.FromFloat32(tensor.Shape{4}, []float32{-2, 0.5, 1, 3})
	require.NoError(t, err)
	steps, err := tensor.FromInt64(tensor.Shape{}, []int64{1234})
	require.NoError(t, err)

	sd := checkpoint.NewStateDict()
	sd.Set("half", base.To(tensor.Float16))
	sd.Set("brain", base.To(tensor.BFloat16))
	sd.Set("steps", steps)
	require.NoError(t, WriteSafeTensors(path, sd, WriteOptions{}))

	loaded, err := loader.LoadSafeTensors(path)
	require.NoError(t, err)
	require.Equal(t, 3, loaded.Len())

	for _, key := range []string{"half", "brain", "steps"} {
		want, _ := sd.Tensor(key)
		got, ok := loaded.Tensor(key)
		require.True(t, ok, key)
		assert.Equal(t, want.DType(), got.DType(), key)
		assert.True(t, want.Equal(got), key)
	}
}

func TestWriteSafeTensors_HeaderAlignment(t *testing.T) {
	var buf bytes.Buffer
	sd := newTestStateDict(t)
	tensors, err := TensorsOf(sd)
	require.NoError(t, err)

	require.NoError(t, NewSafeTensorsWriter(&buf).WriteStateDict(tensors, map[string]string{"format": "pt"}))

	data := buf.Bytes()
	headerSize := binary.LittleEndian.Uint64(data[:8])
	assert.Zero(t, (8+headerSize)%safeTensorsAlignment, "data section must start on an 8-byte boundary")

	var header map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data[8:8+headerSize], &header))
	assert.Contains(t, header, "__metadata__")
	assert.Contains(t, header, "weight")

	// 6 + 3 float32 values follow the header.
	assert.Len(t, data[8+headerSize:], 9*4)
}

func TestWriteSafeTensors_NonTensorValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.safetensors")
	sd := newTestStateDict(t)
	sd.Set("global_step", 1000)

	err := WriteSafeTensors(path, sd, WriteOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonTensorValue))
	assert.Contains(t, err.Error(), "global_step")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no file may be created for a rejected state dict")
}

func TestWriteSafeTensors_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exists.safetensors")
	require.NoError(t, os.WriteFile(path, []byte("keep me"), 0o600))

	err := WriteSafeTensors(path, newTestStateDict(t), WriteOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrExist))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(content), "existing file must be left untouched")

	require.NoError(t, WriteSafeTensors(path, newTestStateDict(t), WriteOptions{Overwrite: true}))
	loaded, err := loader.LoadSafeTensors(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
}

func TestSave_Dispatch(t *testing.T) {
	dir := t.TempDir()
	sd := newTestStateDict(t)

	stPath := filepath.Join(dir, "model.safetensors")
	require.NoError(t, Save(stPath, sd, checkpoint.FormatSafeTensors, WriteOptions{}))
	loadedST, err := loader.LoadSafeTensors(stPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"bias", "weight"}, loadedST.Keys())

	ckptPath := filepath.Join(dir, "model.ckpt")
	require.NoError(t, Save(ckptPath, sd, checkpoint.FormatTorch, WriteOptions{}))
	loaded, err := loader.LoadTorch(ckptPath)
	require.NoError(t, err)
	assert.True(t, loaded.Has(checkpoint.StateDictKey))

	assert.Error(t, Save(filepath.Join(dir, "x"), sd, checkpoint.Format(99), WriteOptions{}))
}
