package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-xcf/internal/index"
	"github.com/inodb/vibe-xcf/internal/xcf"
)

func newIndexCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "index <file>",
		Short: "Build a CSI or tabix index for a BGZF-compressed VCF or BCF",
		Long: `Build a CSI or tabix index for a sorted, BGZF-compressed VCF or BCF file.
Tabix indexes cover positions up to 2^29 and VCF text only; CSI grows its
binning depth to fit longer contigs unless --depth is set.`,
		Example: `  vibe-xcf index calls.vcf.gz               # writes calls.vcf.gz.csi
  vibe-xcf index --format tbi calls.vcf.gz  # writes calls.vcf.gz.tbi
  vibe-xcf index --min-shift 12 -o idx/calls.csi calls.bcf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := index.ParseKind(viper.GetString("index.format"))
			if err != nil {
				return err
			}
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			return runIndex(cmd.OutOrStdout(), args[0], xcf.IndexOptions{
				Kind:     kind,
				MinShift: viper.GetInt("index.min_shift"),
				Depth:    viper.GetInt("index.depth"),
				Output:   out,
				Logger:   logger,
			})
		},
	}

	cmd.Flags().String("format", "csi", "Index format: csi, tbi")
	cmd.Flags().Int("min-shift", 14, "CSI minimum interval size as a power of two")
	cmd.Flags().Int("depth", 0, "CSI binning depth (0 picks the smallest that fits)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Index path (default: <file>.csi or <file>.tbi)")

	viper.BindPFlag("index.format", cmd.Flags().Lookup("format"))
	viper.BindPFlag("index.min_shift", cmd.Flags().Lookup("min-shift"))
	viper.BindPFlag("index.depth", cmd.Flags().Lookup("depth"))

	return cmd
}

func runIndex(w io.Writer, path string, opts xcf.IndexOptions) error {
	out, err := xcf.BuildIndex(path, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)
	return nil
}
