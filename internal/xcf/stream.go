package xcf

import (
	"iter"

	"github.com/inodb/vibe-xcf/internal/vcf"
)

// Stats counts the work a Stream did.
type Stats struct {
	Emitted int // records returned
	Skipped int // records decoded and discarded before the region
	Seeks   int // index chunk seeks
	Rewound bool
}

// Stream is the lazy record sequence of one query. It is forward-only and
// ends permanently on exhaustion, on error or on Close; the Reader accepts
// a new Query after that. Closing a stream early always leaves the Reader
// usable.
type Stream struct {
	reader *Reader
	region Region
	path   QueryPath
	step   func(*Stats) (*vcf.Variant, error)
	stats  Stats
	done   bool
}

func newStream(r *Reader, region Region, path QueryPath, step func(*Stats) (*vcf.Variant, error)) *Stream {
	return &Stream{reader: r, region: region, path: path, step: step}
}

// Next returns the next record in the region.
// Returns nil, nil when there are no more records.
func (s *Stream) Next() (*vcf.Variant, error) {
	if s.done {
		return nil, nil
	}
	v, err := s.step(&s.stats)
	if err != nil || v == nil {
		s.finish()
		return nil, err
	}
	s.stats.Emitted++
	return v, nil
}

// Records iterates the remaining records. Breaking out of the loop closes
// the stream.
func (s *Stream) Records() iter.Seq2[*vcf.Variant, error] {
	return func(yield func(*vcf.Variant, error) bool) {
		defer s.Close()
		for {
			v, err := s.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if v == nil || !yield(v, nil) {
				return
			}
		}
	}
}

// Collect reads the remaining records into a slice.
func (s *Stream) Collect() ([]*vcf.Variant, error) {
	var out []*vcf.Variant
	for v, err := range s.Records() {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Close ends the stream. It is safe to call more than once.
func (s *Stream) Close() error {
	s.finish()
	return nil
}

func (s *Stream) finish() {
	if s.done {
		return
	}
	s.done = true
	s.reader.release(s)
}

// Region returns the queried region.
func (s *Stream) Region() Region {
	return s.region
}

// Path reports which strategy produced the stream.
func (s *Stream) Path() QueryPath {
	return s.path
}

// Stats returns the counters accumulated so far.
func (s *Stream) Stats() Stats {
	return s.stats
}
