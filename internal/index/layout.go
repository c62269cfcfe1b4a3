package index

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	csiMagic = []byte("CSI\x01")
	tbiMagic = []byte("TBI\x01")
)

// The low 16 bits of a tabix preset name the file type; 2 is VCF.
const (
	presetVCF  = 2
	presetMask = 0xFFFF
)

// layout is the part of an index file that the query path depends on:
// its kind, binning parameters, sequence names and, for tabix, the length
// of every linear index.
type layout struct {
	kind      Kind
	minShift  int
	depth     int
	refs      int
	hasAux    bool
	preset    int32
	names     []string
	intervals []int
}

var errShort = errors.New("unexpected end of index data")

type byteReader struct {
	b   []byte
	off int
	err error
}

func (r *byteReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.b) {
		r.err = errShort
		return nil
	}
	p := r.b[r.off : r.off+n]
	r.off += n
	return p
}

func (r *byteReader) i32() int32 {
	p := r.take(4)
	if p == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(p))
}

// count reads a non-negative int32 that sizes what follows.
func (r *byteReader) count(what string) int {
	n := r.i32()
	if n < 0 && r.err == nil {
		r.err = fmt.Errorf("negative %s count %d", what, n)
	}
	return int(n)
}

func (r *byteReader) skip(n int) {
	r.take(n)
}

func parseLayout(data []byte) (*layout, error) {
	if len(data) < 4 {
		return nil, errShort
	}
	r := &byteReader{b: data, off: 4}
	var l *layout
	switch {
	case bytes.Equal(data[:4], csiMagic):
		l = parseCSI(r)
	case bytes.Equal(data[:4], tbiMagic):
		l = parseTabix(r)
	default:
		return nil, fmt.Errorf("unknown index magic %q", data[:4])
	}
	if r.err != nil {
		return nil, r.err
	}
	// Only the optional n_no_coor counter may follow the references.
	if rest := len(data) - r.off; rest != 0 && rest != 8 {
		return nil, fmt.Errorf("%d trailing bytes after references", rest)
	}
	return l, nil
}

func parseCSI(r *byteReader) *layout {
	l := &layout{kind: CSI}
	l.minShift = int(r.i32())
	l.depth = int(r.i32())
	if r.err == nil && (l.minShift < 0 || l.depth < 0 || l.minShift+3*l.depth > 62) {
		r.err = fmt.Errorf("invalid binning min_shift=%d depth=%d", l.minShift, l.depth)
	}
	aux := r.take(r.count("aux"))
	if len(aux) > 0 {
		l.hasAux = true
		ar := &byteReader{b: aux}
		l.preset, l.names = parseNames(ar)
		if ar.err != nil && r.err == nil {
			r.err = fmt.Errorf("aux: %w", ar.err)
		}
	}
	l.refs = r.count("reference")
	for i := 0; i < l.refs && r.err == nil; i++ {
		bins := r.count("bin")
		for j := 0; j < bins && r.err == nil; j++ {
			r.skip(4 + 8) // bin, loffset
			r.skip(16 * r.count("chunk"))
		}
	}
	return l
}

func parseTabix(r *byteReader) *layout {
	l := &layout{kind: Tabix, minShift: tabixMinShift, depth: tabixDepth, hasAux: true}
	l.refs = r.count("reference")
	l.preset, l.names = parseNames(r)
	if r.err == nil && len(l.names) != l.refs {
		r.err = fmt.Errorf("%d sequence names for %d references", len(l.names), l.refs)
	}
	l.intervals = make([]int, 0, max(l.refs, 0))
	for i := 0; i < l.refs && r.err == nil; i++ {
		bins := r.count("bin")
		for j := 0; j < bins && r.err == nil; j++ {
			r.skip(4) // bin
			r.skip(16 * r.count("chunk"))
		}
		n := r.count("interval")
		r.skip(8 * n)
		l.intervals = append(l.intervals, n)
	}
	return l
}

// parseNames reads the tabix configuration block shared by TBI headers and
// CSI aux data: preset, three column numbers, meta char, skip and names.
func parseNames(r *byteReader) (int32, []string) {
	preset := r.i32()
	r.skip(4 * 5) // col_seq, col_beg, col_end, meta, skip
	blob := r.take(r.count("name byte"))
	if r.err != nil {
		return preset, nil
	}
	var names []string
	for len(blob) > 0 {
		end := bytes.IndexByte(blob, 0)
		if end < 0 {
			r.err = errors.New("sequence names are not NUL terminated")
			return preset, nil
		}
		names = append(names, string(blob[:end]))
		blob = blob[end+1:]
	}
	return preset, names
}

// check verifies that the index fits the data it is meant to address.
func (l *layout) check(opts LoadOptions) error {
	if opts.Binary {
		if l.kind == Tabix {
			return errors.New("tabix index cannot address BCF data")
		}
		if l.refs > len(opts.Contigs) {
			return fmt.Errorf("index has %d references, header declares %d contigs", l.refs, len(opts.Contigs))
		}
		return nil
	}
	if !l.hasAux {
		return errors.New("csi index carries no sequence names for VCF data")
	}
	if l.preset&presetMask != presetVCF {
		return fmt.Errorf("index preset %d is not VCF", l.preset&presetMask)
	}
	if len(l.names) != l.refs {
		return fmt.Errorf("%d sequence names for %d references", len(l.names), l.refs)
	}
	if len(opts.Contigs) > 0 {
		declared := make(map[string]bool, len(opts.Contigs))
		for _, c := range opts.Contigs {
			declared[c] = true
		}
		for _, name := range l.names {
			if !declared[name] {
				return fmt.Errorf("sequence %q is not a header contig", name)
			}
		}
	}
	return nil
}
