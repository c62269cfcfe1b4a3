package index

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/biogo/hts/bgzf"
)

// BuildOptions configures a Builder.
type BuildOptions struct {
	Kind Kind
	// MinShift and Depth set the CSI binning scheme. Zero selects 14 and
	// the smallest depth, at least 5, that covers every record.
	MinShift int
	Depth    int
	// Binary is set for BCF data: reference ids follow Contigs and no
	// sequence names are stored.
	Binary  bool
	Contigs []string
}

type entry struct {
	rid      int
	beg, end int64
	chunk    bgzf.Chunk
}

// Builder accumulates record placements and encodes them as a CSI or
// tabix index.
type Builder struct {
	opts    BuildOptions
	names   []string
	rids    map[string]int
	entries []entry
	maxEnd  int64
}

// NewBuilder returns a Builder for opts.
func NewBuilder(opts BuildOptions) (*Builder, error) {
	if opts.Binary && opts.Kind == Tabix {
		return nil, errors.New("tabix cannot index BCF data, use csi")
	}
	b := &Builder{opts: opts, rids: make(map[string]int)}
	if opts.Binary {
		for i, c := range opts.Contigs {
			if _, dup := b.rids[c]; !dup {
				b.rids[c] = i
			}
		}
		b.names = opts.Contigs
	}
	return b, nil
}

// Add records that the record spanning [beg, end) on chrom, 0-based, was
// read from chunk. Records must arrive sorted by sequence, in first-seen
// order for VCF and header order for BCF, then by position.
func (b *Builder) Add(chrom string, beg, end int64, chunk bgzf.Chunk) error {
	if beg < 0 {
		return fmt.Errorf("%s: negative position %d", chrom, beg+1)
	}
	if end <= beg {
		end = beg + 1
	}

	rid, ok := b.rids[chrom]
	switch {
	case !ok && b.opts.Binary:
		return fmt.Errorf("contig %q is not declared in the header", chrom)
	case !ok:
		rid = len(b.names)
		b.names = append(b.names, chrom)
		b.rids[chrom] = rid
	}

	if n := len(b.entries); n > 0 {
		last := b.entries[n-1]
		if rid < last.rid || (rid != last.rid && !b.opts.Binary && ok) ||
			(rid == last.rid && beg < last.beg) {
			return fmt.Errorf("%w: %s:%d after %s:%d",
				ErrUnsorted, chrom, beg+1, b.names[last.rid], last.beg+1)
		}
	}

	b.entries = append(b.entries, entry{rid: rid, beg: beg, end: end, chunk: chunk})
	b.maxEnd = max(b.maxEnd, end)
	return nil
}

// binning returns the min_shift and depth the index will be written with.
func (b *Builder) binning() (int, int, error) {
	if b.opts.Kind == Tabix {
		if b.maxEnd > int64(1)<<(tabixMinShift+3*tabixDepth) {
			return 0, 0, fmt.Errorf("position %d exceeds the tabix limit, use csi", b.maxEnd)
		}
		return tabixMinShift, tabixDepth, nil
	}
	minShift, depth := b.opts.MinShift, b.opts.Depth
	if minShift <= 0 {
		minShift = 14
	}
	if depth <= 0 {
		depth = 5
		for b.maxEnd > int64(1)<<(minShift+3*depth) {
			depth++
		}
	}
	if b.maxEnd > int64(1)<<(minShift+3*depth) {
		return 0, 0, fmt.Errorf("position %d exceeds min_shift=%d depth=%d", b.maxEnd, minShift, depth)
	}
	return minShift, depth, nil
}

// Reg2Bin returns the smallest bin fully containing [beg, end).
func Reg2Bin(beg, end int64, minShift, depth int) uint32 {
	end--
	s := minShift
	t := ((1 << (3 * depth)) - 1) / 7
	for l := depth; l > 0; l-- {
		if beg>>s == end>>s {
			return uint32(int64(t) + beg>>s)
		}
		s += 3
		t -= 1 << (3 * (l - 1))
	}
	return 0
}

type refIndex struct {
	bins      map[uint32][]bgzf.Chunk
	intervals []bgzf.Offset
	filled    []bool
}

func (b *Builder) collect(minShift, depth int) []*refIndex {
	refs := make([]*refIndex, len(b.names))
	for i := range refs {
		refs[i] = &refIndex{bins: make(map[uint32][]bgzf.Chunk)}
	}
	for _, e := range b.entries {
		ref := refs[e.rid]
		bin := Reg2Bin(e.beg, e.end, minShift, depth)
		chunks := ref.bins[bin]
		if n := len(chunks); n > 0 && Compare(chunks[n-1].End, e.chunk.Begin) >= 0 {
			if Compare(e.chunk.End, chunks[n-1].End) > 0 {
				chunks[n-1].End = e.chunk.End
			}
		} else {
			ref.bins[bin] = append(chunks, e.chunk)
		}

		if b.opts.Kind != Tabix {
			continue
		}
		first, last := int(e.beg>>windowShift), int((e.end-1)>>windowShift)
		for len(ref.intervals) <= last {
			ref.intervals = append(ref.intervals, bgzf.Offset{})
			ref.filled = append(ref.filled, false)
		}
		for w := first; w <= last; w++ {
			if !ref.filled[w] {
				ref.intervals[w] = e.chunk.Begin
				ref.filled[w] = true
			}
		}
	}

	// Empty windows take the offset of the nearest earlier window, which
	// never excludes a record.
	for _, ref := range refs {
		var prev bgzf.Offset
		for w := range ref.intervals {
			if ref.filled[w] {
				prev = ref.intervals[w]
				break
			}
		}
		for w := range ref.intervals {
			if ref.filled[w] {
				prev = ref.intervals[w]
			} else {
				ref.intervals[w] = prev
			}
		}
	}
	return refs
}

// Encode writes the BGZF-compressed index to w.
func (b *Builder) Encode(w io.Writer) error {
	minShift, depth, err := b.binning()
	if err != nil {
		return err
	}
	refs := b.collect(minShift, depth)

	var buf bytes.Buffer
	le := func(v interface{}) { binary.Write(&buf, binary.LittleEndian, v) }

	switch b.opts.Kind {
	case CSI:
		buf.Write(csiMagic)
		le(int32(minShift))
		le(int32(depth))
		var aux []byte
		if !b.opts.Binary {
			aux = vcfConfig(b.names)
		}
		le(int32(len(aux)))
		buf.Write(aux)
		le(int32(len(refs)))
	case Tabix:
		buf.Write(tbiMagic)
		le(int32(len(refs)))
		buf.Write(vcfConfig(b.names))
	}

	for _, ref := range refs {
		bins := make([]uint32, 0, len(ref.bins))
		for bin := range ref.bins {
			bins = append(bins, bin)
		}
		sort.Slice(bins, func(i, j int) bool { return bins[i] < bins[j] })

		le(int32(len(bins)))
		for _, bin := range bins {
			le(bin)
			if b.opts.Kind == CSI {
				le(uint64(0)) // loffset
			}
			chunks := ref.bins[bin]
			le(int32(len(chunks)))
			for _, c := range chunks {
				le(virtual(c.Begin))
				le(virtual(c.End))
			}
		}
		if b.opts.Kind == Tabix {
			le(int32(len(ref.intervals)))
			for _, off := range ref.intervals {
				le(virtual(off))
			}
		}
	}
	le(uint64(0)) // n_no_coor

	bw := bgzf.NewWriter(w, 1)
	if _, err := bw.Write(buf.Bytes()); err != nil {
		bw.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// virtual packs an offset as coffset<<16 | uoffset.
func virtual(o bgzf.Offset) uint64 {
	return uint64(o.File)<<16 | uint64(o.Block)
}

// vcfConfig encodes the tabix configuration for VCF: preset 2, sequence
// in column 1, position in column 2, no end column, '#' comment lines.
func vcfConfig(names []string) []byte {
	var nm bytes.Buffer
	for _, n := range names {
		nm.WriteString(n)
		nm.WriteByte(0)
	}
	var buf bytes.Buffer
	for _, v := range []int32{presetVCF, 1, 2, 0, '#', 0, int32(nm.Len())} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.Write(nm.Bytes())
	return buf.Bytes()
}
