package checkpoint

import "strings"

// Format identifies a checkpoint file encoding.
type Format int

// Supported formats.
const (
	FormatTorch       Format = iota // PyTorch pickle checkpoint (.ckpt, .pt, .pth, ...)
	FormatSafeTensors               // SafeTensors tensor-only container
)

// SafeTensorsExt is the file suffix that selects FormatSafeTensors.
const SafeTensorsExt = ".safetensors"

// TorchExt is the suffix used for Torch output files.
const TorchExt = ".ckpt"

// String returns a human-readable format name.
func (f Format) String() string {
	switch f {
	case FormatTorch:
		return "Torch"
	case FormatSafeTensors:
		return "SafeTensors"
	default:
		return "Unknown"
	}
}

// Extension returns the output file suffix for the format.
func (f Format) Extension() string {
	if f == FormatSafeTensors {
		return SafeTensorsExt
	}
	return TorchExt
}

// DetectFormat picks the input format from the file name.
// Anything not ending in .safetensors is treated as a Torch checkpoint.
func DetectFormat(path string) Format {
	if strings.HasSuffix(path, SafeTensorsExt) {
		return FormatSafeTensors
	}
	return FormatTorch
}
