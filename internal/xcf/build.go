package xcf

import (
	"fmt"
	"os"

	"github.com/biogo/hts/bgzf"
	"go.uber.org/zap"

	"github.com/inodb/vibe-xcf/internal/index"
)

// IndexOptions configures BuildIndex.
type IndexOptions struct {
	Kind     index.Kind
	MinShift int
	Depth    int
	// Output defaults to <path>.csi or <path>.tbi.
	Output string
	Logger *zap.Logger
}

// BuildIndex writes a CSI or tabix index for the BGZF-compressed file at
// path and returns the index path. Records must be sorted.
func BuildIndex(path string, opts IndexOptions) (string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r, err := Open(path, Options{NoIndex: true, Logger: logger})
	if err != nil {
		return "", err
	}
	defer r.Close()

	src, ok := r.src.(*blockSource)
	if !ok {
		return "", fmt.Errorf("%s: %w", path, ErrNotBlockCompressed)
	}

	b, err := index.NewBuilder(index.BuildOptions{
		Kind:     opts.Kind,
		MinShift: opts.MinShift,
		Depth:    opts.Depth,
		Binary:   r.form.Binary(),
		Contigs:  src.contigs(),
	})
	if err != nil {
		return "", err
	}

	n := 0
	for {
		begin := src.tell()
		v, err := src.next()
		if err != nil {
			return "", err
		}
		if v == nil {
			break
		}
		chunk := bgzf.Chunk{Begin: begin, End: src.tell()}
		if err := b.Add(v.Chrom, v.Pos-1, v.End(), chunk); err != nil {
			return "", fmt.Errorf("%s: %w", path, err)
		}
		n++
	}

	out := opts.Output
	if out == "" {
		out = r.path + "." + opts.Kind.String()
	}
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("create index: %w", err)
	}
	if err := b.Encode(f); err != nil {
		f.Close()
		os.Remove(out)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write index: %w", err)
	}

	logger.Info("wrote index",
		zap.String("path", out),
		zap.Stringer("kind", opts.Kind),
		zap.Int("records", n))
	return out, nil
}
