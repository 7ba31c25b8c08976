package serialization

import "errors"

// Common errors.
var (
	ErrNonTensorValue   = errors.New("value is not a tensor")
	ErrUnsupportedValue = errors.New("value cannot be serialized")
	ErrUnsupportedDType = errors.New("unsupported dtype")
)
