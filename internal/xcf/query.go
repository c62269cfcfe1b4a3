package xcf

import (
	"fmt"

	"github.com/biogo/hts/bgzf"

	"github.com/inodb/vibe-xcf/internal/index"
	"github.com/inodb/vibe-xcf/internal/vcf"
)

// indexedQuery seeks to each chunk the index returns for region and
// decodes forward. Index chunks are coarse, so records outside the region
// are filtered here. Chunks are merged and only ever entered by a forward
// seek, so no record is decoded twice.
func (r *Reader) indexedQuery(region Region) (*Stream, error) {
	src, ok := r.src.(*blockSource)
	if !ok {
		return nil, fmt.Errorf("indexed query on %s input", r.form)
	}
	chunks, err := r.idx.Lookup(region.Chrom, region.Start-1, region.End)
	if err != nil {
		return nil, err
	}

	// The scan cursor no longer describes the source position.
	r.resetCursor()

	c := &chunkCursor{src: src, chunks: chunks, region: region}
	return newStream(r, region, PathIndexed, c.next), nil
}

type chunkCursor struct {
	src    *blockSource
	chunks []bgzf.Chunk
	region Region
	i      int
	placed bool
}

func (c *chunkCursor) next(st *Stats) (*vcf.Variant, error) {
	for c.i < len(c.chunks) {
		chunk := c.chunks[c.i]
		if !c.placed || index.Compare(chunk.Begin, c.src.tell()) > 0 {
			if err := c.src.seek(chunk.Begin); err != nil {
				return nil, err
			}
			c.placed = true
			st.Seeks++
		}
		if index.Compare(c.src.tell(), chunk.End) >= 0 {
			c.i++
			continue
		}

		v, err := c.src.next()
		if err != nil || v == nil {
			return nil, err
		}
		switch {
		case v.Chrom != c.region.Chrom, v.Pos > c.region.End:
			// Sorted input: nothing further can fall in the region.
			c.i = len(c.chunks)
			return nil, nil
		case v.Pos < c.region.Start:
			st.Skipped++
			continue
		}
		return v, nil
	}
	return nil, nil
}

// scanQuery filters the record stream from the current cursor. A region
// behind the cursor needs a rewind, which only seekable inputs allow.
func (r *Reader) scanQuery(region Region) (*Stream, error) {
	rewound := false
	if r.behind(region) {
		if !r.caps.Seekable {
			return nil, fmt.Errorf("%w: %s after %s:%d",
				ErrUnorderedQuery, region, r.lastChrom, r.lastPos)
		}
		if err := r.src.rewind(); err != nil {
			return nil, err
		}
		r.resetCursor()
		rewound = true
	}

	s := newStream(r, region, PathScan, func(st *Stats) (*vcf.Variant, error) {
		return r.scanNext(region, st)
	})
	s.stats.Rewound = rewound
	return s, nil
}

// behind reports whether records of region may already have been
// consumed: its sequence was consumed before and the cursor is either on a
// later sequence or at or past the region start.
func (r *Reader) behind(region Region) bool {
	if !r.hasLast || !r.seen[region.Chrom] {
		return false
	}
	return r.lastChrom != region.Chrom || r.lastPos >= region.Start
}

// scanNext yields the next record in region. Records before the region,
// on its sequence or on sequences ahead of it, are discarded. The first
// record past the region stays pending for the next query.
func (r *Reader) scanNext(region Region, st *Stats) (*vcf.Variant, error) {
	for {
		v, err := r.peek()
		if err != nil || v == nil {
			return nil, err
		}
		if v.Chrom != region.Chrom {
			if r.seen[region.Chrom] || r.passed(v.Chrom, region.Chrom) {
				return nil, nil
			}
			r.consume()
			st.Skipped++
			continue
		}
		if v.Pos < region.Start {
			r.consume()
			st.Skipped++
			continue
		}
		if v.Pos > region.End {
			return nil, nil
		}
		return r.consume(), nil
	}
}

// passed reports whether a stream positioned on sequence cur can no longer
// hold records of sequence want. Seekable inputs rewind instead.
func (r *Reader) passed(cur, want string) bool {
	if r.caps.Seekable || r.unranked {
		return false
	}
	c, ok := r.rank[cur]
	if !ok {
		return false
	}
	w, ok := r.rank[want]
	return ok && c > w
}

func (r *Reader) peek() (*vcf.Variant, error) {
	if r.pending == nil && !r.exhausted {
		v, err := r.src.next()
		if err != nil {
			return nil, err
		}
		r.pending = v
		r.exhausted = v == nil
	}
	return r.pending, nil
}

func (r *Reader) consume() *vcf.Variant {
	v := r.pending
	r.pending = nil
	if r.hasLast && v.Chrom != r.lastChrom && !r.unranked {
		c, ok1 := r.rank[v.Chrom]
		l, ok2 := r.rank[r.lastChrom]
		if !ok1 || !ok2 || c < l {
			r.unranked = true
		}
	}
	r.hasLast = true
	r.lastChrom = v.Chrom
	r.lastPos = v.Pos
	r.seen[v.Chrom] = true
	return v
}

func (r *Reader) resetCursor() {
	r.pending = nil
	r.exhausted = false
	r.hasLast = false
	r.lastChrom = ""
	r.lastPos = 0
	clear(r.seen)
}
