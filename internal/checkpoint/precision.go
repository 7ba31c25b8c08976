package checkpoint

import (
	"errors"
	"fmt"

	"github.com/born-ml/ckptconv/internal/tensor"
)

// ErrUnknownPrecision is returned when parsing an unrecognized precision.
var ErrUnknownPrecision = errors.New("unknown precision")

// Precision is the numeric format tensors are cast to.
type Precision int

// Supported precisions.
const (
	FP32 Precision = iota // full precision, identity cast
	FP16                  // IEEE 754 half precision
	BF16                  // bfloat16
)

// String returns the command-line identifier of the precision.
func (p Precision) String() string {
	switch p {
	case FP32:
		return "full"
	case FP16:
		return "half"
	case BF16:
		return "bfloat16"
	default:
		return "unknown"
	}
}

// ParsePrecision parses a command-line identifier.
// The short names fp32, fp16 and bf16 are accepted as aliases.
func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "full", "fp32":
		return FP32, nil
	case "half", "fp16":
		return FP16, nil
	case "bfloat16", "bf16":
		return BF16, nil
	default:
		return 0, fmt.Errorf("%w: %q (want full, half or bfloat16)", ErrUnknownPrecision, s)
	}
}

// Set implements the pflag.Value interface.
func (p *Precision) Set(s string) error {
	parsed, err := ParsePrecision(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Type implements the pflag.Value interface.
func (p *Precision) Type() string {
	return "precision"
}

// DataType returns the tensor dtype this precision casts to.
// FP32 reports false: it leaves tensors in whatever dtype they have.
func (p Precision) DataType() (tensor.DataType, bool) {
	switch p {
	case FP16:
		return tensor.Float16, true
	case BF16:
		return tensor.BFloat16, true
	default:
		return 0, false
	}
}

// Cast converts v to the precision. Values that are not tensors are
// returned unchanged, as are all values under FP32.
func (p Precision) Cast(v any) any {
	t, ok := v.(*tensor.RawTensor)
	if !ok {
		return v
	}
	dt, ok := p.DataType()
	if !ok {
		return t
	}
	return t.To(dt)
}
