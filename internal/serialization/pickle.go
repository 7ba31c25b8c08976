package serialization

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/born-ml/ckptconv/internal/checkpoint"
	"github.com/born-ml/ckptconv/internal/tensor"
)

// Pickle protocol 2 opcodes.
const (
	opProto      byte = 0x80
	opStop       byte = '.'
	opMark       byte = '('
	opNone       byte = 'N'
	opNewTrue    byte = 0x88
	opNewFalse   byte = 0x89
	opBinInt     byte = 'J'
	opBinInt1    byte = 'K'
	opBinInt2    byte = 'M'
	opLong1      byte = 0x8a
	opBinFloat   byte = 'G'
	opBinUnicode byte = 'X'
	opEmptyDict  byte = '}'
	opSetItems   byte = 'u'
	opEmptyList  byte = ']'
	opAppends    byte = 'e'
	opEmptyTuple byte = ')'
	opTuple      byte = 't'
	opGlobal     byte = 'c'
	opReduce     byte = 'R'
	opBinPersID  byte = 'Q'
)

// batchSize bounds the items between MARK and SETITEMS/APPENDS, as CPython does.
const batchSize = 1000

// storageRecord is one tensor payload referenced from the pickle by key.
type storageRecord struct {
	key  string
	data []byte
}

// pickler encodes a checkpoint object graph as a torch.save compatible pickle.
// Tensors are emitted as persistent storage references; their bytes are
// collected in storages for the caller to write next to the pickle.
type pickler struct {
	buf      bytes.Buffer
	storages []storageRecord
	seen     map[*tensor.RawTensor]string
}

func newPickler() *pickler {
	return &pickler{seen: make(map[*tensor.RawTensor]string)}
}

// dump encodes v as a complete pickle stream.
func (p *pickler) dump(v interface{}) error {
	p.buf.WriteByte(opProto)
	p.buf.WriteByte(2)
	if err := p.encode(v, ""); err != nil {
		return err
	}
	p.buf.WriteByte(opStop)
	return nil
}

func (p *pickler) encode(v interface{}, path string) error {
	switch x := v.(type) {
	case nil:
		p.buf.WriteByte(opNone)
	case bool:
		if x {
			p.buf.WriteByte(opNewTrue)
		} else {
			p.buf.WriteByte(opNewFalse)
		}
	case int:
		p.encodeInt(int64(x))
	case int8:
		p.encodeInt(int64(x))
	case int16:
		p.encodeInt(int64(x))
	case int32:
		p.encodeInt(int64(x))
	case int64:
		p.encodeInt(x)
	case uint8:
		p.encodeInt(int64(x))
	case uint16:
		p.encodeInt(int64(x))
	case uint32:
		p.encodeInt(int64(x))
	case *big.Int:
		if !x.IsInt64() {
			return fmt.Errorf("%w: %q integer %s exceeds 64 bits", ErrUnsupportedValue, path, x)
		}
		p.encodeInt(x.Int64())
	case float32:
		p.encodeFloat(float64(x))
	case float64:
		p.encodeFloat(x)
	case string:
		p.encodeString(x)
	case *tensor.RawTensor:
		return p.encodeTensor(x, path)
	case *checkpoint.StateDict:
		return p.encodeDict(x, path)
	case []interface{}:
		return p.encodeList(x, path)
	default:
		return fmt.Errorf("%w: %q holds %T", ErrUnsupportedValue, path, v)
	}
	return nil
}

func (p *pickler) encodeInt(v int64) {
	switch {
	case v >= 0 && v <= math.MaxUint8:
		p.buf.WriteByte(opBinInt1)
		p.buf.WriteByte(byte(v))
	case v >= 0 && v <= math.MaxUint16:
		p.buf.WriteByte(opBinInt2)
		p.buf.Write(binary.LittleEndian.AppendUint16(nil, uint16(v)))
	case v >= math.MinInt32 && v <= math.MaxInt32:
		p.buf.WriteByte(opBinInt)
		p.buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(int32(v)))) //nolint:gosec // G115: two's complement encoding
	default:
		// LONG1: length byte followed by two's complement little-endian bytes.
		p.buf.WriteByte(opLong1)
		p.buf.WriteByte(8)
		p.buf.Write(binary.LittleEndian.AppendUint64(nil, uint64(v))) //nolint:gosec // G115: two's complement encoding
	}
}

func (p *pickler) encodeFloat(v float64) {
	p.buf.WriteByte(opBinFloat)
	p.buf.Write(binary.BigEndian.AppendUint64(nil, math.Float64bits(v)))
}

func (p *pickler) encodeString(s string) {
	p.buf.WriteByte(opBinUnicode)
	p.buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(s)))) //nolint:gosec // G115: strings are far below 4GB
	p.buf.WriteString(s)
}

func (p *pickler) encodeGlobal(module, name string) {
	p.buf.WriteByte(opGlobal)
	p.buf.WriteString(module)
	p.buf.WriteByte('\n')
	p.buf.WriteString(name)
	p.buf.WriteByte('\n')
}

func (p *pickler) encodeIntTuple(values []int) {
	if len(values) == 0 {
		p.buf.WriteByte(opEmptyTuple)
		return
	}
	p.buf.WriteByte(opMark)
	for _, v := range values {
		p.encodeInt(int64(v))
	}
	p.buf.WriteByte(opTuple)
}

func (p *pickler) encodeDict(d *checkpoint.StateDict, path string) error {
	p.buf.WriteByte(opEmptyDict)

	n := 0
	for key, value := range d.All() {
		if n%batchSize == 0 {
			p.buf.WriteByte(opMark)
		}
		p.encodeString(key)
		childPath := key
		if path != "" {
			childPath = path + "." + key
		}
		if err := p.encode(value, childPath); err != nil {
			return err
		}
		n++
		if n%batchSize == 0 {
			p.buf.WriteByte(opSetItems)
		}
	}
	if n%batchSize != 0 {
		p.buf.WriteByte(opSetItems)
	}
	return nil
}

func (p *pickler) encodeList(items []interface{}, path string) error {
	p.buf.WriteByte(opEmptyList)

	for i, item := range items {
		if i%batchSize == 0 {
			p.buf.WriteByte(opMark)
		}
		if err := p.encode(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
		if (i+1)%batchSize == 0 {
			p.buf.WriteByte(opAppends)
		}
	}
	if len(items)%batchSize != 0 {
		p.buf.WriteByte(opAppends)
	}
	return nil
}

// encodeTensor emits torch._utils._rebuild_tensor_v2(storage, 0, size, stride, False, OrderedDict()).
// A tensor encoded twice shares one storage.
func (p *pickler) encodeTensor(t *tensor.RawTensor, path string) error {
	storageType, err := torchStorageType(t.DType())
	if err != nil {
		return fmt.Errorf("tensor %q: %w", path, err)
	}

	key, ok := p.seen[t]
	if !ok {
		key = strconv.Itoa(len(p.storages))
		p.seen[t] = key
		p.storages = append(p.storages, storageRecord{key: key, data: t.Data()})
	}

	p.encodeGlobal("torch._utils", "_rebuild_tensor_v2")
	p.buf.WriteByte(opMark)

	// Persistent id: ("storage", torch.<Type>Storage, key, "cpu", numel)
	p.buf.WriteByte(opMark)
	p.encodeString("storage")
	p.encodeGlobal("torch", storageType)
	p.encodeString(key)
	p.encodeString("cpu")
	p.encodeInt(int64(t.NumElements()))
	p.buf.WriteByte(opTuple)
	p.buf.WriteByte(opBinPersID)

	p.encodeInt(0)
	p.encodeIntTuple(t.Shape())
	p.encodeIntTuple(t.Shape().ComputeStrides())
	p.buf.WriteByte(opNewFalse)

	p.encodeGlobal("collections", "OrderedDict")
	p.buf.WriteByte(opEmptyTuple)
	p.buf.WriteByte(opReduce)

	p.buf.WriteByte(opTuple)
	p.buf.WriteByte(opReduce)
	return nil
}

// torchStorageType names the legacy typed storage class for dt.
func torchStorageType(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return "FloatStorage", nil
	case tensor.Float64:
		return "DoubleStorage", nil
	case tensor.Float16:
		return "HalfStorage", nil
	case tensor.BFloat16:
		return "BFloat16Storage", nil
	case tensor.Int64:
		return "LongStorage", nil
	case tensor.Int32:
		return "IntStorage", nil
	case tensor.Int16:
		return "ShortStorage", nil
	case tensor.Int8:
		return "CharStorage", nil
	case tensor.Uint8:
		return "ByteStorage", nil
	case tensor.Bool:
		return "BoolStorage", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDType, dt)
	}
}
