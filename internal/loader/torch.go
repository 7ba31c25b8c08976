package loader

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/born-ml/ckptconv/internal/checkpoint"
	"github.com/born-ml/ckptconv/internal/tensor"
)

// pyMapping is satisfied by gopickle's dict type.
type pyMapping interface {
	Keys() []interface{}
	Get(key interface{}) (interface{}, bool)
}

// pySequence is satisfied by gopickle's list and tuple types.
type pySequence interface {
	Len() int
	Get(i int) interface{}
}

// LoadTorch reads a PyTorch checkpoint (zip, tar or legacy pickle) written by torch.save.
// The top-level object must be a mapping with string keys.
func LoadTorch(path string) (*checkpoint.StateDict, error) {
	obj, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load torch checkpoint: %w", err)
	}

	value, err := convertValue(obj, "")
	if err != nil {
		return nil, err
	}

	root, ok := value.(*checkpoint.StateDict)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrUnsupportedRoot, obj)
	}
	return root, nil
}

// convertValue turns a gopickle object into the checkpoint value model.
// path names the value for error messages.
func convertValue(obj interface{}, path string) (interface{}, error) {
	switch v := obj.(type) {
	case *pytorch.Tensor:
		raw, err := convertTensor(v)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", path, err)
		}
		return raw, nil
	case *types.OrderedDict:
		entries := make([]entry, 0, v.List.Len())
		for e := v.List.Front(); e != nil; e = e.Next() {
			de := e.Value.(*types.OrderedDictEntry)
			entries = append(entries, entry{key: de.Key, value: de.Value})
		}
		return convertMapping(obj, entries, path)
	case pyMapping:
		keys := v.Keys()
		entries := make([]entry, 0, len(keys))
		for _, k := range keys {
			value, _ := v.Get(k)
			entries = append(entries, entry{key: k, value: value})
		}
		return convertMapping(obj, entries, path)
	case pySequence:
		items := make([]interface{}, v.Len())
		for i := range items {
			item, err := convertValue(v.Get(i), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			items[i] = item
		}
		return items, nil
	default:
		// Scalars, strings, None and unknown objects pass through as decoded.
		return obj, nil
	}
}

type entry struct {
	key   interface{}
	value interface{}
}

// convertMapping builds a StateDict from string-keyed entries. Mappings with
// other key types (optimizer state indexed by parameter id) are kept as the
// original decoded object.
func convertMapping(orig interface{}, entries []entry, path string) (interface{}, error) {
	for _, e := range entries {
		if _, ok := e.key.(string); !ok {
			return orig, nil
		}
	}

	sd := checkpoint.NewStateDict()
	for _, e := range entries {
		key := e.key.(string)
		childPath := key
		if path != "" {
			childPath = path + "." + key
		}
		value, err := convertValue(e.value, childPath)
		if err != nil {
			return nil, err
		}
		sd.Set(key, value)
	}
	return sd, nil
}

// storageWriter copies storage element idx into dst.
type storageWriter func(dst []byte, idx int)

// storageAccess maps a gopickle storage to a dtype, its element count and a copy function.
func storageAccess(source pytorch.StorageInterface) (tensor.DataType, int, storageWriter, error) {
	switch s := source.(type) {
	case *pytorch.FloatStorage:
		return tensor.Float32, len(s.Data), func(dst []byte, i int) {
			binary.LittleEndian.PutUint32(dst, math.Float32bits(s.Data[i]))
		}, nil
	case *pytorch.HalfStorage:
		// gopickle widens halves to float32; narrowing back is exact.
		return tensor.Float16, len(s.Data), func(dst []byte, i int) {
			binary.LittleEndian.PutUint16(dst, tensor.Float32ToFloat16(s.Data[i]))
		}, nil
	case *pytorch.BFloat16Storage:
		return tensor.BFloat16, len(s.Data), func(dst []byte, i int) {
			binary.LittleEndian.PutUint16(dst, tensor.Float32ToBFloat16(s.Data[i]))
		}, nil
	case *pytorch.DoubleStorage:
		return tensor.Float64, len(s.Data), func(dst []byte, i int) {
			binary.LittleEndian.PutUint64(dst, math.Float64bits(s.Data[i]))
		}, nil
	case *pytorch.LongStorage:
		return tensor.Int64, len(s.Data), func(dst []byte, i int) {
			binary.LittleEndian.PutUint64(dst, uint64(s.Data[i])) //nolint:gosec // G115: bit reinterpretation
		}, nil
	case *pytorch.IntStorage:
		return tensor.Int32, len(s.Data), func(dst []byte, i int) {
			binary.LittleEndian.PutUint32(dst, uint32(s.Data[i])) //nolint:gosec // G115: bit reinterpretation
		}, nil
	case *pytorch.ShortStorage:
		return tensor.Int16, len(s.Data), func(dst []byte, i int) {
			binary.LittleEndian.PutUint16(dst, uint16(s.Data[i])) //nolint:gosec // G115: bit reinterpretation
		}, nil
	case *pytorch.CharStorage:
		return tensor.Int8, len(s.Data), func(dst []byte, i int) {
			dst[0] = byte(s.Data[i])
		}, nil
	case *pytorch.ByteStorage:
		return tensor.Uint8, len(s.Data), func(dst []byte, i int) {
			dst[0] = s.Data[i]
		}, nil
	case *pytorch.BoolStorage:
		return tensor.Bool, len(s.Data), func(dst []byte, i int) {
			if s.Data[i] {
				dst[0] = 1
			} else {
				dst[0] = 0
			}
		}, nil
	default:
		return 0, 0, nil, fmt.Errorf("%w: %T", ErrUnsupportedStorage, source)
	}
}

// convertTensor materializes a (possibly strided) torch tensor as a contiguous RawTensor.
func convertTensor(t *pytorch.Tensor) (*tensor.RawTensor, error) {
	dtype, length, write, err := storageAccess(t.Source)
	if err != nil {
		return nil, err
	}

	shape := tensor.Shape(t.Size).Clone()
	raw, err := tensor.NewRaw(shape, dtype)
	if err != nil {
		return nil, err
	}

	numel := shape.NumElements()
	if numel == 0 {
		return raw, nil
	}

	strides := t.Stride
	if len(strides) != len(shape) {
		strides = shape.ComputeStrides()
	}

	size := dtype.Size()
	data := raw.Data()
	index := make([]int, len(shape))
	for i := 0; i < numel; i++ {
		offset := t.StorageOffset
		for d, idx := range index {
			offset += idx * strides[d]
		}
		if offset < 0 || offset >= length {
			return nil, fmt.Errorf("element %d at storage offset %d outside storage of %d elements", i, offset, length)
		}
		write(data[i*size:(i+1)*size], offset)

		// Advance the row-major multi-index.
		for d := len(index) - 1; d >= 0; d-- {
			index[d]++
			if index[d] < shape[d] {
				break
			}
			index[d] = 0
		}
	}

	return raw, nil
}
