package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-xcf/internal/xcf"
)

func newDetectCmd() *cobra.Command {
	var noIndex bool

	cmd := &cobra.Command{
		Use:   "detect <file>...",
		Short: "Report storage form, capabilities and index of variant files",
		Example: `  vibe-xcf detect calls.vcf.gz calls.bcf
  cat calls.vcf | vibe-xcf detect -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runDetect(cmd.OutOrStdout(), args, xcf.Options{Logger: logger, NoIndex: noIndex})
		},
	}
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "Do not look for an index")
	return cmd
}

func runDetect(w io.Writer, paths []string, opts xcf.Options) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tFORM\tSEEKABLE\tINDEXED\tINDEX\tCONTIGS\tSAMPLES")

	for _, path := range paths {
		r, err := openInput(path, opts)
		if err != nil {
			return err
		}

		idx := "-"
		if ix := r.Index(); ix != nil {
			idx = ix.Kind.String() + ":" + ix.Path
			if ix.Stale {
				idx += " (stale)"
			}
		}
		caps := r.Capabilities()
		h := r.Header()
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\t%d\t%d\n",
			path, r.Form(), caps.Seekable, caps.Indexed, idx,
			len(h.Contigs()), len(h.SampleNames))

		opts.Logger.Debug("detected",
			zap.String("path", path),
			zap.String("contigs", strings.Join(h.Contigs(), ",")))
		r.Close()
	}
	return tw.Flush()
}

// openInput opens a file, or standard input for "-".
func openInput(path string, opts xcf.Options) (*xcf.Reader, error) {
	if path == "-" {
		return xcf.NewReader(os.Stdin, opts)
	}
	return xcf.Open(path, opts)
}
