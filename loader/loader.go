// Package loader provides checkpoint loading for ckptconv.
//
// This package wraps the internal loaders and exports a small public API for
// reading PyTorch checkpoints and SafeTensors files into an ordered state dict.
//
// Example usage:
//
//	import "github.com/born-ml/ckptconv/loader"
//
//	sd, err := loader.LoadStateDict("v1-5-pruned.ckpt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, key := range sd.Keys() {
//	    fmt.Println(key)
//	}
package loader

import (
	"github.com/born-ml/ckptconv/internal/checkpoint"
	"github.com/born-ml/ckptconv/internal/loader"
)

// Format identifies a checkpoint file encoding.
type Format = checkpoint.Format

// Supported formats.
const (
	FormatTorch       Format = checkpoint.FormatTorch
	FormatSafeTensors Format = checkpoint.FormatSafeTensors
)

// StateDict is an insertion-ordered mapping from parameter names to values.
//
// Note: This is a type alias because its values reference internal tensor
// types that cannot be abstracted without a wrapper layer.
type StateDict = checkpoint.StateDict

// DetectFormat picks the format from the file name.
// Files ending in .safetensors are SafeTensors, everything else is Torch.
func DetectFormat(path string) Format {
	return checkpoint.DetectFormat(path)
}

// Load reads the top-level mapping of a checkpoint file.
//
// Torch checkpoints written by training frameworks usually nest parameters
// under "state_dict" next to optimizer state; use LoadStateDict to get the
// parameters directly.
func Load(path string) (*StateDict, error) {
	return loader.Load(path)
}

// LoadStateDict reads a checkpoint and returns its parameter mapping,
// unwrapping a top-level "state_dict" entry when present.
func LoadStateDict(path string) (*StateDict, error) {
	root, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	return checkpoint.Unwrap(root), nil
}
