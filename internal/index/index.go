// Package index loads, queries and builds the coordinate-sorted indexes
// (CSI and tabix) that accompany block-compressed variant files.
package index

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/csi"
	"github.com/biogo/hts/tabix"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned by Load when no index file exists for the data.
	ErrNotFound = errors.New("index not found")
	// ErrCorrupt is returned when an index exists but cannot be parsed or
	// does not describe the data file.
	ErrCorrupt = errors.New("index corrupt")
	// ErrUnsorted is returned by Builder.Add when records are not sorted.
	ErrUnsorted = errors.New("records are not sorted by sequence and position")
)

// Kind identifies the on-disk index format.
type Kind int

const (
	CSI Kind = iota
	Tabix
)

func (k Kind) String() string {
	switch k {
	case CSI:
		return "csi"
	case Tabix:
		return "tbi"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts "csi" or "tbi".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "csi":
		return CSI, nil
	case "tbi", "tabix":
		return Tabix, nil
	}
	return 0, fmt.Errorf("unknown index format %q (want csi or tbi)", s)
}

// Tabix windows are 16kb wide and the binning scheme is fixed.
const (
	tabixMinShift = 14
	tabixDepth    = 5
	windowShift   = 14
)

// LoadOptions configures Load.
type LoadOptions struct {
	// Path overrides index discovery.
	Path string
	// Binary is set when the data file is BCF. BCF indexes address
	// sequences by header contig order and must be CSI.
	Binary bool
	// Contigs lists the header contigs in declaration order.
	Contigs []string
	// DataSize is the size of the compressed data file. Chunks must start
	// and end inside it. Zero skips the check.
	DataSize int64
	Logger   *zap.Logger
}

// Index is a loaded CSI or tabix index.
type Index struct {
	Path     string
	Kind     Kind
	MinShift int
	Depth    int
	// Names lists the reference sequences by reference id.
	Names []string
	// Stale is set when the index is older than the data file.
	Stale bool

	rids      map[string]int
	nrefs     int
	intervals []int
	csi       *csi.Index
	tbi       *tabix.Index
}

// Load locates and reads the index for the data file at dataPath.
// ErrNotFound is returned when there is none; every problem with an
// index that does exist is reported as ErrCorrupt.
func Load(dataPath string, opts LoadOptions) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	path, err := Locate(dataPath, opts.Path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	defer f.Close()

	idx, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	idx.Path = path

	if stale, err := IsStale(path, dataPath); err == nil && stale {
		idx.Stale = true
		logger.Warn("index is older than data file",
			zap.String("index", path),
			zap.String("data", dataPath))
	}

	logger.Debug("loaded index",
		zap.String("path", path),
		zap.Stringer("kind", idx.Kind),
		zap.Int("refs", len(idx.Names)))
	return idx, nil
}

// Read parses a BGZF-compressed CSI or tabix index from r and checks it
// against the data described by opts.
func Read(r io.Reader, opts LoadOptions) (*Index, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrCorrupt, err)
	}

	l, err := parseLayout(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := l.check(opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	idx := &Index{
		Kind:      l.kind,
		MinShift:  l.minShift,
		Depth:     l.depth,
		Names:     l.names,
		nrefs:     l.refs,
		intervals: l.intervals,
	}
	if opts.Binary {
		idx.Names = append([]string(nil), opts.Contigs...)
	}
	idx.rids = make(map[string]int, len(idx.Names))
	for i, name := range idx.Names {
		if _, dup := idx.rids[name]; !dup {
			idx.rids[name] = i
		}
	}

	switch l.kind {
	case CSI:
		idx.csi, err = csi.ReadFrom(bytes.NewReader(data))
	case Tabix:
		idx.tbi, err = tabix.ReadFrom(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if opts.DataSize > 0 {
		if err := idx.checkExtent(opts.DataSize); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	return idx, nil
}

// checkExtent verifies that every chunk of every reference lies within a
// data file of size bytes.
func (x *Index) checkExtent(size int64) error {
	for rid := 0; rid < x.nrefs; rid++ {
		chunks, err := x.chunks(rid, 0, x.Span())
		if err != nil {
			return err
		}
		for _, c := range chunks {
			if c.Begin.File >= size || c.End.File > size {
				return fmt.Errorf("reference %d: chunk %d:%d-%d:%d lies beyond the %d byte data file",
					rid, c.Begin.File, c.Begin.Block, c.End.File, c.End.Block, size)
			}
		}
	}
	return nil
}

// Span returns the largest 0-based exclusive end the index can address.
func (x *Index) Span() int64 {
	return int64(1) << (x.MinShift + 3*x.Depth)
}

// Lookup returns the sorted, merged chunks that may hold records
// overlapping [beg, end) on chrom, with 0-based half-open coordinates.
// A sequence the index does not know yields no chunks.
func (x *Index) Lookup(chrom string, beg, end int64) ([]bgzf.Chunk, error) {
	rid, ok := x.rids[chrom]
	if !ok || rid >= x.nrefs {
		return nil, nil
	}
	if beg < 0 {
		beg = 0
	}
	end = min(end, x.Span())
	if beg >= end {
		return nil, nil
	}

	chunks, err := x.chunks(rid, beg, end)
	if err != nil {
		return nil, err
	}
	return Merge(chunks), nil
}

// chunks returns the raw chunks of reference rid for [beg, end).
func (x *Index) chunks(rid int, beg, end int64) ([]bgzf.Chunk, error) {
	switch x.Kind {
	case CSI:
		return x.csi.Chunks(rid, int(beg), int(end)), nil
	case Tabix:
		if rid >= len(x.intervals) || rid >= len(x.Names) || int(beg>>windowShift) >= x.intervals[rid] {
			return nil, nil
		}
		chrom := x.Names[rid]
		chunks, err := x.tbi.Chunks(chrom, int(beg), int(end))
		if err != nil {
			return nil, fmt.Errorf("tabix lookup %s:%d-%d: %w", chrom, beg, end, err)
		}
		return chunks, nil
	}
	return nil, nil
}

// Compare orders virtual offsets.
func Compare(a, b bgzf.Offset) int {
	switch {
	case a.File < b.File:
		return -1
	case a.File > b.File:
		return 1
	case a.Block < b.Block:
		return -1
	case a.Block > b.Block:
		return 1
	}
	return 0
}

// Merge sorts chunks by their begin offset and coalesces chunks that
// overlap or touch, so no byte range is visited twice.
func Merge(chunks []bgzf.Chunk) []bgzf.Chunk {
	if len(chunks) == 0 {
		return nil
	}
	sorted := append([]bgzf.Chunk(nil), chunks...)
	sort.Slice(sorted, func(i, j int) bool {
		return Compare(sorted[i].Begin, sorted[j].Begin) < 0
	})

	out := sorted[:1]
	for _, c := range sorted[1:] {
		last := &out[len(out)-1]
		if Compare(c.Begin, last.End) <= 0 {
			if Compare(c.End, last.End) > 0 {
				last.End = c.End
			}
			continue
		}
		out = append(out, c)
	}
	return out
}
