package loader

import (
	"github.com/born-ml/ckptconv/internal/checkpoint"
)

// Load reads a checkpoint file, picking the decoder from the file suffix.
//
// The result is the file's top-level mapping. Torch checkpoints often wrap
// the parameters under "state_dict"; use checkpoint.Unwrap to reach them.
func Load(path string) (*checkpoint.StateDict, error) {
	switch checkpoint.DetectFormat(path) {
	case checkpoint.FormatSafeTensors:
		return LoadSafeTensors(path)
	default:
		return LoadTorch(path)
	}
}
