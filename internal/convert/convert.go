// Package convert runs one checkpoint conversion end to end:
// load, unwrap, transform, save.
package convert

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/born-ml/ckptconv/internal/checkpoint"
	"github.com/born-ml/ckptconv/internal/config"
	"github.com/born-ml/ckptconv/internal/loader"
	"github.com/born-ml/ckptconv/internal/serialization"
)

// Result describes a completed conversion.
type Result struct {
	Output   string            // Path of the written file
	Format   checkpoint.Format // Format of the written file
	Stats    checkpoint.Stats  // Per-key outcome counts
	Size     int64             // Output size in bytes
	Checksum string            // Hex SHA-256 of the output
}

// Run converts opts.Input and writes the result to opts.OutputPath().
// Nothing is written when loading or transforming fails.
func Run(opts config.Options, log logrus.FieldLogger) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	log.WithFields(logrus.Fields{
		"input":  opts.Input,
		"format": checkpoint.DetectFormat(opts.Input).String(),
	}).Info("loading checkpoint")

	root, err := loader.Load(opts.Input)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load %s: %w", opts.Input, err)
	}

	sd := checkpoint.Unwrap(root)
	if sd != root {
		log.WithField("dropped_siblings", root.Len()-1).Debug("unwrapped state_dict")
	}

	out, stats := checkpoint.Transformer{
		Mode:      opts.Mode,
		Precision: opts.Precision,
		Log:       log,
	}.Apply(sd)

	result := Result{
		Output: opts.OutputPath(),
		Format: opts.OutputFormat(),
		Stats:  stats,
	}

	log.WithFields(logrus.Fields{
		"output": result.Output,
		"format": result.Format.String(),
	}).Info("conversion successful, saving")

	writeOpts := serialization.WriteOptions{Overwrite: opts.Overwrite}
	if err := serialization.Save(result.Output, out, result.Format, writeOpts); err != nil {
		return Result{}, fmt.Errorf("failed to save %s: %w", result.Output, err)
	}

	info, err := os.Stat(result.Output)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat output: %w", err)
	}
	result.Size = info.Size()

	result.Checksum, err = serialization.FileChecksum(result.Output)
	if err != nil {
		return Result{}, err
	}

	log.WithFields(logrus.Fields{
		"output": result.Output,
		"bytes":  result.Size,
		"sha256": result.Checksum,
	}).Info("saved")

	return result, nil
}
