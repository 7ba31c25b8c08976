// Package config holds the options of a single conversion run.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/born-ml/ckptconv/internal/checkpoint"
)

// ErrMissingInput is returned when no input file is configured.
var ErrMissingInput = errors.New("input file is required")

// DefaultInput is the input path used when none is given.
const DefaultInput = "model.ckpt"

// Options configures a conversion run.
type Options struct {
	Input       string               // Checkpoint to read
	Precision   checkpoint.Precision // Target precision for every tensor
	Mode        checkpoint.Mode      // EMA handling
	SafeTensors bool                 // Write SafeTensors instead of a Torch checkpoint
	Overwrite   bool                 // Replace an existing output file
	OutputDir   string               // Directory for the output; empty means next to the input
	LogLevel    string               // logrus level name
}

// DefaultOptions returns the options of a run with no flags set.
func DefaultOptions() Options {
	return Options{
		Input:     DefaultInput,
		Precision: checkpoint.FP32,
		Mode:      checkpoint.Full,
		LogLevel:  "info",
	}
}

// Validate checks that the options describe a runnable conversion.
func (o Options) Validate() error {
	if strings.TrimSpace(o.Input) == "" {
		return ErrMissingInput
	}
	if _, err := checkpoint.ParseMode(o.Mode.String()); err != nil {
		return err
	}
	if _, err := checkpoint.ParsePrecision(o.Precision.String()); err != nil {
		return err
	}
	return nil
}

// OutputFormat returns the format the output is written in.
func (o Options) OutputFormat() checkpoint.Format {
	if o.SafeTensors {
		return checkpoint.FormatSafeTensors
	}
	return checkpoint.FormatTorch
}

// OutputPath derives the output file name:
// <input without its final extension>-<mode>-<precision><format extension>.
func (o Options) OutputPath() string {
	stem := strings.TrimSuffix(o.Input, filepath.Ext(o.Input))
	name := fmt.Sprintf("%s-%s-%s%s", stem, o.Mode, o.Precision, o.OutputFormat().Extension())
	if o.OutputDir != "" {
		return filepath.Join(o.OutputDir, filepath.Base(name))
	}
	return name
}
