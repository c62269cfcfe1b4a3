package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-xcf/internal/duckdb"
	"github.com/inodb/vibe-xcf/internal/index"
	"github.com/inodb/vibe-xcf/internal/output"
	"github.com/inodb/vibe-xcf/internal/vcf"
	"github.com/inodb/vibe-xcf/internal/xcf"
)

type queryOptions struct {
	format      string
	output      string
	indexPath   string
	noIndex     bool
	regionsFile string
	duckdbPath  string
	split       bool
	workers     int
	infoColumns []string
}

func newQueryCmd() *cobra.Command {
	var o queryOptions

	cmd := &cobra.Command{
		Use:   "query <file> [region]...",
		Short: "Print the records overlapping one or more regions",
		Long: `Print the records whose position falls inside each region, region by
region, in the order the regions are given. Regions are chrom, chrom:start,
chrom:start- or chrom:start-end with 1-based inclusive coordinates.

Use '-' to read from standard input; regions must then be given in file
order, since a stream cannot be rewound.`,
		Example: `  vibe-xcf query calls.vcf.gz chr1:10000-20000 chr2
  vibe-xcf query -f tab --info DP,AF calls.bcf chr7:140753336
  vibe-xcf query -R regions.txt -w 4 --duckdb results.duckdb calls.vcf.gz
  vibe-xcf query 'calls.vcf.gz##idx##/data/idx/calls.csi' chr1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.format = viper.GetString("query.format")
			o.workers = viper.GetInt("query.workers")

			regions, err := collectRegions(args[1:], o.regionsFile)
			if err != nil {
				return err
			}
			if len(regions) == 0 {
				return fmt.Errorf("at least one region is required")
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			out := cmd.OutOrStdout()
			if o.output != "" {
				f, err := os.Create(o.output)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			return runQuery(cmd.Context(), out, args[0], regions, o, logger)
		},
	}

	cmd.Flags().StringVarP(&o.format, "format", "f", "vcf", "Output format: vcf, tab")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&o.indexPath, "index", "", "Index file (default: <file>.csi or <file>.tbi)")
	cmd.Flags().BoolVar(&o.noIndex, "no-index", false, "Ignore any index and scan")
	cmd.Flags().StringVarP(&o.regionsFile, "regions-file", "R", "", "File with one region per line")
	cmd.Flags().StringVar(&o.duckdbPath, "duckdb", "", "Also store results in this DuckDB database")
	cmd.Flags().BoolVar(&o.split, "split-multiallelic", false, "Write one record per ALT allele")
	cmd.Flags().IntVarP(&o.workers, "workers", "w", 1, "Query regions in parallel with this many readers")
	cmd.Flags().StringSliceVar(&o.infoColumns, "info", nil, "INFO keys to add as columns (tab format)")

	viper.BindPFlag("query.format", cmd.Flags().Lookup("format"))
	viper.BindPFlag("query.workers", cmd.Flags().Lookup("workers"))

	return cmd
}

// collectRegions parses regions from arguments and an optional regions
// file. Blank lines and lines starting with '#' are skipped.
func collectRegions(args []string, file string) ([]xcf.Region, error) {
	specs := append([]string(nil), args...)
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open regions file: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			specs = append(specs, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read regions file: %w", err)
		}
	}

	regions := make([]xcf.Region, 0, len(specs))
	for _, s := range specs {
		r, err := xcf.ParseRegion(s)
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, nil
}

func newRecordWriter(w io.Writer, h *vcf.Header, regions []xcf.Region, o queryOptions) (output.RecordWriter, error) {
	switch o.format {
	case "vcf":
		vw := output.NewVCFWriter(w, h)
		names := make([]string, len(regions))
		for i, r := range regions {
			names[i] = r.String()
		}
		vw.AddMeta(
			"vibe-xcfVersion="+version,
			"vibe-xcfRegions="+strings.Join(names, ","),
		)
		return vw, nil
	case "tab":
		tw := output.NewTabWriter(w)
		tw.SetInfoColumns(o.infoColumns)
		return tw, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", o.format)
	}
}

func runQuery(ctx context.Context, w io.Writer, path string, regions []xcf.Region, o queryOptions, logger *zap.Logger) error {
	opts := xcf.Options{Logger: logger, IndexPath: o.indexPath, NoIndex: o.noIndex}
	r, err := openInput(path, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	writer, err := newRecordWriter(w, r.Header(), regions, o)
	if err != nil {
		return err
	}
	if err := writer.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	source, _ := index.SplitPath(path)
	var store *duckdb.Store
	if o.duckdbPath != "" {
		store, err = duckdb.Open(o.duckdbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if path != "-" {
			fp, err := index.StatFile(source)
			if err != nil {
				return err
			}
			if err := store.RecordSource(fp, r.Form().String()); err != nil {
				return err
			}
		}
	}

	total := 0
	sink := func(res xcf.WorkResult) error {
		if res.Err != nil {
			return res.Err
		}
		n, err := output.WriteRecords(writer, res.Records, o.split)
		if err != nil {
			return fmt.Errorf("writing records: %w", err)
		}
		total += n
		logResult(logger, res)
		if store != nil {
			return store.WriteRecords(source, res.Region.String(), res.Seq, res.Records)
		}
		return nil
	}

	switch {
	case o.workers > 1 && path != "-":
		// Workers open their own readers.
		r.Close()
		err = xcf.QueryRegions(ctx, path, opts, regions, o.workers, sink)
	case store != nil:
		err = queryCollect(ctx, r, regions, sink)
	default:
		total, err = queryStream(ctx, r, regions, writer, o.split, logger)
	}
	if err != nil {
		return err
	}

	logger.Info("query finished",
		zap.String("path", path),
		zap.Int("regions", len(regions)),
		zap.Int("records", total))
	return writer.Flush()
}

// queryCollect answers regions in order on one reader, materialising each
// result so it can be stored.
func queryCollect(ctx context.Context, r *xcf.Reader, regions []xcf.Region, sink func(xcf.WorkResult) error) error {
	for i, region := range regions {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := r.Query(region)
		if err != nil {
			return err
		}
		records, err := s.Collect()
		if err != nil {
			return err
		}
		res := xcf.WorkResult{Seq: i, Region: region, Records: records, Path: s.Path(), Stats: s.Stats()}
		if err := sink(res); err != nil {
			return err
		}
	}
	return nil
}

// queryStream answers regions in order on one reader, writing records as
// they are decoded.
func queryStream(ctx context.Context, r *xcf.Reader, regions []xcf.Region, w output.RecordWriter, split bool, logger *zap.Logger) (int, error) {
	total := 0
	for i, region := range regions {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		s, err := r.Query(region)
		if err != nil {
			return total, err
		}
		n, err := output.Copy(w, s, split)
		s.Close()
		total += n
		if err != nil {
			return total, fmt.Errorf("%s: %w", region, err)
		}
		logResult(logger, xcf.WorkResult{Seq: i, Region: region, Path: s.Path(), Stats: s.Stats()})
	}
	return total, nil
}

func logResult(logger *zap.Logger, res xcf.WorkResult) {
	logger.Debug("region done",
		zap.Int("seq", res.Seq),
		zap.String("region", res.Region.String()),
		zap.Stringer("path", res.Path),
		zap.Int("emitted", res.Stats.Emitted),
		zap.Int("skipped", res.Stats.Skipped),
		zap.Int("seeks", res.Stats.Seeks),
		zap.Bool("rewound", res.Stats.Rewound))
}
