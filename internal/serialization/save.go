package serialization

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/ckptconv/internal/checkpoint"
)

// WriteOptions configures how an output file is written.
type WriteOptions struct {
	Overwrite bool              // Replace an existing file instead of failing
	Metadata  map[string]string // SafeTensors __metadata__ (default {"format": "pt"})
}

// Save writes sd to path in the given format.
func Save(path string, sd *checkpoint.StateDict, format checkpoint.Format, opts WriteOptions) error {
	switch format {
	case checkpoint.FormatSafeTensors:
		return WriteSafeTensors(path, sd, opts)
	case checkpoint.FormatTorch:
		return WriteTorch(path, sd, opts)
	default:
		return fmt.Errorf("unknown output format %d", format)
	}
}

// writeFile creates path and streams content into it through write.
// Without overwrite an existing file is an error wrapping os.ErrExist.
// A file left incomplete by a failed write is removed.
func writeFile(path string, overwrite bool, write func(w io.Writer) error) (err error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path) // Best effort cleanup
		}
	}()

	bw := bufio.NewWriter(file)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush file: %w", err)
	}
	return nil
}
