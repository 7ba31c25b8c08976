package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/born-ml/ckptconv/internal/checkpoint"
	"github.com/born-ml/ckptconv/internal/tensor"
)

// safeTensorsAlignment is the alignment of the data section start.
const safeTensorsAlignment = 8

// SafeTensorsWriter writes models in SafeTensors format.
// SafeTensors is the standard format for HuggingFace models.
type SafeTensorsWriter struct {
	w io.Writer
}

// SafeTensorHeader represents a tensor in the SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// NewSafeTensorsWriter creates a SafeTensors writer on top of w.
func NewSafeTensorsWriter(w io.Writer) *SafeTensorsWriter {
	return &SafeTensorsWriter{w: w}
}

// TensorsOf returns the tensors of sd keyed by name.
// Any non-tensor value fails with ErrNonTensorValue naming the key.
func TensorsOf(sd *checkpoint.StateDict) (map[string]*tensor.RawTensor, error) {
	tensors := make(map[string]*tensor.RawTensor, sd.Len())
	for key, value := range sd.All() {
		raw, ok := value.(*tensor.RawTensor)
		if !ok {
			return nil, fmt.Errorf("%w: %q holds %T (SafeTensors stores tensors only)", ErrNonTensorValue, key, value)
		}
		tensors[key] = raw
	}
	return tensors, nil
}

// WriteSafeTensors writes sd to path in SafeTensors format.
// Every value of sd must be a tensor; this is checked before the file is created.
func WriteSafeTensors(path string, sd *checkpoint.StateDict, opts WriteOptions) error {
	tensors, err := TensorsOf(sd)
	if err != nil {
		return err
	}

	metadata := opts.Metadata
	if metadata == nil {
		metadata = map[string]string{"format": "pt"}
	}

	return writeFile(path, opts.Overwrite, func(w io.Writer) error {
		return NewSafeTensorsWriter(w).WriteStateDict(tensors, metadata)
	})
}

// WriteStateDict writes a state dictionary in SafeTensors format.
//
// The state dictionary is a map from parameter names to tensors.
// Tensors are written in alphabetical order by name.
func (w *SafeTensorsWriter) WriteStateDict(stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	// Sort tensor names alphabetically
	tensorNames := make([]string, 0, len(stateDict))
	for name := range stateDict {
		tensorNames = append(tensorNames, name)
	}
	sort.Strings(tensorNames)

	header := make(map[string]interface{}, len(stateDict)+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}

	// Calculate data offsets for each tensor
	var currentOffset int64
	for _, name := range tensorNames {
		raw := stateDict[name]
		dtype, err := dtypeToSafeTensors(raw.DType())
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}

		shape := raw.Shape()
		shapeInt64 := make([]int64, len(shape))
		for i, dim := range shape {
			shapeInt64[i] = int64(dim)
		}

		size := int64(raw.ByteSize())
		header[name] = SafeTensorHeader{
			DType:       dtype,
			Shape:       shapeInt64,
			DataOffsets: [2]int64{currentOffset, currentOffset + size},
		}
		currentOffset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	// Pad with spaces so tensor data starts on an aligned offset.
	if rem := (8 + len(headerJSON)) % safeTensorsAlignment; rem != 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte{' '}, safeTensorsAlignment-rem)...)
	}

	// Write header size (8 bytes, little-endian uint64)
	if err := binary.Write(w.w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}

	if _, err := w.w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Write tensor data in alphabetical order
	for _, name := range tensorNames {
		if _, err := w.w.Write(stateDict[name].Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}

	return nil
}

// dtypeToSafeTensors converts tensor.DataType to SafeTensors dtype string.
func dtypeToSafeTensors(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return "F32", nil
	case tensor.Float64:
		return "F64", nil
	case tensor.Float16:
		return "F16", nil
	case tensor.BFloat16:
		return "BF16", nil
	case tensor.Int64:
		return "I64", nil
	case tensor.Int32:
		return "I32", nil
	case tensor.Int16:
		return "I16", nil
	case tensor.Int8:
		return "I8", nil
	case tensor.Uint8:
		return "U8", nil
	case tensor.Bool:
		return "BOOL", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDType, dt)
	}
}
