// Package commands implements the ckptconv command tree.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/ckptconv/internal/config"
	"github.com/born-ml/ckptconv/internal/convert"
	"github.com/born-ml/ckptconv/internal/logging"
)

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree with fresh flag state.
func NewRootCmd() *cobra.Command {
	opts := config.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "ckptconv",
		Short: "Convert model checkpoints between precisions and formats",
		Long: `ckptconv loads a PyTorch checkpoint or SafeTensors file, optionally keeps
only the EMA weights (or drops them), casts every tensor to the requested
precision and writes the result as a new checkpoint next to the input.

The output is named <input>-<type>-<precision>.ckpt (or .safetensors).`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.Init(opts.LogLevel, cmd.ErrOrStderr())

			result, err := convert.Run(opts, log)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Output)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Input, "file", "f", opts.Input, "path to the model checkpoint")
	flags.VarP(&opts.Precision, "precision", "p", "tensor precision: full, half or bfloat16")
	flags.VarP(&opts.Mode, "type", "t", "EMA handling: full, ema-only or no-ema")
	flags.BoolVarP(&opts.SafeTensors, "safe-tensors", "s", false, "write SafeTensors instead of a Torch checkpoint")
	flags.BoolVar(&opts.Overwrite, "overwrite", false, "replace the output file if it exists")
	flags.StringVarP(&opts.OutputDir, "output-dir", "o", "", "directory for the output file (default: next to the input)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "log level: debug, info, warn or error")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newInspectCmd(&opts))

	return cmd
}
