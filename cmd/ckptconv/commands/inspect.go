package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/born-ml/ckptconv/internal/checkpoint"
	"github.com/born-ml/ckptconv/internal/config"
	"github.com/born-ml/ckptconv/internal/loader"
	"github.com/born-ml/ckptconv/internal/logging"
	"github.com/born-ml/ckptconv/internal/tensor"
)

func newInspectCmd(opts *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [file]",
		Short: "List the entries of a checkpoint",
		Long:  "Print every key of a checkpoint's state dict with its dtype and shape.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.Init(opts.LogLevel, cmd.ErrOrStderr())
			log.WithField("input", args[0]).Debug("inspecting checkpoint")

			root, err := loader.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", args[0], err)
			}
			return printStateDict(cmd.OutOrStdout(), checkpoint.Unwrap(root))
		},
	}
}

// printStateDict writes one row per entry: key, dtype (or Go type) and shape.
func printStateDict(w io.Writer, sd *checkpoint.StateDict) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tTYPE\tSHAPE")

	var tensors, bytes int
	for key, value := range sd.All() {
		switch v := value.(type) {
		case *tensor.RawTensor:
			tensors++
			bytes += v.ByteSize()
			fmt.Fprintf(tw, "%s\t%s\t%s\n", key, v.DType(), v.Shape())
		case *checkpoint.StateDict:
			fmt.Fprintf(tw, "%s\tmapping\t%d entries\n", key, v.Len())
		default:
			fmt.Fprintf(tw, "%s\t%T\t%v\n", key, v, v)
		}
	}

	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d entries, %d tensors, %d bytes of tensor data\n", sd.Len(), tensors, bytes)
	return err
}
