package convert

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ckptconv/internal/checkpoint"
	"github.com/born-ml/ckptconv/internal/config"
	"github.com/born-ml/ckptconv/internal/loader"
	"github.com/born-ml/ckptconv/internal/serialization"
	"github.com/born-ml/ckptconv/internal/tensor"
)

func testLogger(buf *bytes.Buffer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(buf)
	l.SetLevel(logrus.DebugLevel)
	return l
}

// writeEMAInput writes a SafeTensors checkpoint holding "a" and its EMA shadow.
func writeEMAInput(t *testing.T, dir string) string {
	t.Helper()

	a, err := tensor.FromFloat32(tensor.Shape{2}, []float32{1, 2})
	require.NoError(t, err)
	emaA, err := tensor.FromFloat32(tensor.Shape{2}, []float32{1.5, 2.5})
	require.NoError(t, err)

	sd := checkpoint.NewStateDict()
	sd.Set("a", a)
	sd.Set("model_ema.a", emaA)

	path := filepath.Join(dir, "model.safetensors")
	require.NoError(t, serialization.WriteSafeTensors(path, sd, serialization.WriteOptions{}))
	return path
}

// writeWrappedTorchInput writes a torch checkpoint wrapped as {"state_dict": ...}
// with EMA bookkeeping scalars.
func writeWrappedTorchInput(t *testing.T, dir string) string {
	t.Helper()

	a, err := tensor.FromFloat32(tensor.Shape{2}, []float32{1, 2})
	require.NoError(t, err)
	emaA, err := tensor.FromFloat32(tensor.Shape{2}, []float32{1.5, 2.5})
	require.NoError(t, err)

	sd := checkpoint.NewStateDict()
	sd.Set("a", a)
	sd.Set("model_ema.a", emaA)
	sd.Set("model_ema.num_updates", 5)
	sd.Set("model_ema.decay", 0.999)

	path := filepath.Join(dir, "model.ckpt")
	require.NoError(t, serialization.WriteTorch(path, sd, serialization.WriteOptions{}))
	return path
}

func TestRun_SafeTensorsEMAOnly(t *testing.T) {
	dir := t.TempDir()
	var logs bytes.Buffer

	opts := config.DefaultOptions()
	opts.Input = writeEMAInput(t, dir)
	opts.Mode = checkpoint.EMAOnly
	opts.Precision = checkpoint.FP16
	opts.SafeTensors = true

	result, err := Run(opts, testLogger(&logs))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "model-ema-only-half.safetensors"), result.Output)
	assert.Equal(t, checkpoint.FormatSafeTensors, result.Format)
	assert.Equal(t, checkpoint.Stats{Kept: 1, Renamed: 1}, result.Stats)
	assert.Len(t, result.Checksum, 64)
	assert.Positive(t, result.Size)

	out, err := loader.LoadSafeTensors(result.Output)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out.Keys())

	a, ok := out.Tensor("a")
	require.True(t, ok)
	assert.Equal(t, tensor.Float16, a.DType())
	assert.Equal(t, []float32{1.5, 2.5}, a.AsFloat32())

	assert.Contains(t, logs.String(), "conversion successful, saving")
	assert.Contains(t, logs.String(), "from=model_ema.a")
}

func TestRun_TorchNoEMA(t *testing.T) {
	dir := t.TempDir()

	opts := config.DefaultOptions()
	opts.Input = writeWrappedTorchInput(t, dir)
	opts.Mode = checkpoint.NoEMA

	result, err := Run(opts, testLogger(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "model-no-ema-full.ckpt"), result.Output)

	root, err := loader.LoadTorch(result.Output)
	require.NoError(t, err)
	out := checkpoint.Unwrap(root)
	assert.Equal(t, []string{"a"}, out.Keys())

	a, _ := out.Tensor("a")
	assert.Equal(t, tensor.Float32, a.DType())
	assert.Equal(t, []float32{1, 2}, a.AsFloat32())
}

func TestRun_SafeTensorsRejectsScalars(t *testing.T) {
	dir := t.TempDir()

	opts := config.DefaultOptions()
	opts.Input = writeWrappedTorchInput(t, dir)
	opts.SafeTensors = true

	_, err := Run(opts, testLogger(&bytes.Buffer{}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, serialization.ErrNonTensorValue))

	_, statErr := os.Stat(opts.OutputPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_OutputExists(t *testing.T) {
	dir := t.TempDir()

	opts := config.DefaultOptions()
	opts.Input = writeEMAInput(t, dir)
	opts.SafeTensors = true

	_, err := Run(opts, testLogger(&bytes.Buffer{}))
	require.NoError(t, err)

	_, err = Run(opts, testLogger(&bytes.Buffer{}))
	assert.True(t, errors.Is(err, os.ErrExist))

	opts.Overwrite = true
	_, err = Run(opts, testLogger(&bytes.Buffer{}))
	assert.NoError(t, err)
}

func TestRun_MissingInput(t *testing.T) {
	dir := t.TempDir()

	opts := config.DefaultOptions()
	opts.Input = filepath.Join(dir, "missing.ckpt")

	_, err := Run(opts, nil)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing may be written when loading fails")
}

func TestRun_OutputDir(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()

	opts := config.DefaultOptions()
	opts.Input = writeEMAInput(t, dir)
	opts.SafeTensors = true
	opts.Precision = checkpoint.BF16
	opts.OutputDir = outDir

	result, err := Run(opts, testLogger(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "model-full-bfloat16.safetensors"), result.Output)

	out, err := loader.LoadSafeTensors(result.Output)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "model_ema.a"}, out.Keys())
}
