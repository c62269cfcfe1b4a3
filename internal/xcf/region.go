package xcf

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxPos stands for the end of a sequence in an open-ended region.
const MaxPos = math.MaxInt64

// Region is a range on one sequence in 1-based, closed coordinates, the
// convention VCF positions use.
type Region struct {
	Chrom string
	Start int64
	End   int64
}

// ParseRegion parses "chr1", "chr1:100", "chr1:100-" and "chr1:100-200".
// Positions may contain thousands separators. A single position selects
// from that position to the end of the sequence.
func ParseRegion(s string) (Region, error) {
	s = strings.TrimSpace(s)
	r := Region{Chrom: s, Start: 1, End: MaxPos}

	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return r, r.Validate()
	}
	r.Chrom = s[:i]
	span := strings.ReplaceAll(s[i+1:], ",", "")

	startText, endText, ranged := strings.Cut(span, "-")
	start, err := strconv.ParseInt(startText, 10, 64)
	if err != nil {
		return Region{}, fmt.Errorf("%w: start in %q", ErrInvalidRegion, s)
	}
	r.Start = start
	if ranged && endText != "" {
		end, err := strconv.ParseInt(endText, 10, 64)
		if err != nil {
			return Region{}, fmt.Errorf("%w: end in %q", ErrInvalidRegion, s)
		}
		r.End = end
	}
	return r, r.Validate()
}

// Validate checks that the region names a sequence and 1 <= Start <= End.
func (r Region) Validate() error {
	switch {
	case r.Chrom == "":
		return fmt.Errorf("%w: empty sequence name", ErrInvalidRegion)
	case r.Start < 1:
		return fmt.Errorf("%w: start %d is before position 1", ErrInvalidRegion, r.Start)
	case r.Start > r.End:
		return fmt.Errorf("%w: start %d is after end %d", ErrInvalidRegion, r.Start, r.End)
	}
	return nil
}

// Contains reports whether chrom:pos lies in the region.
func (r Region) Contains(chrom string, pos int64) bool {
	return chrom == r.Chrom && pos >= r.Start && pos <= r.End
}

func (r Region) String() string {
	switch {
	case r.End == MaxPos && r.Start <= 1:
		return r.Chrom
	case r.End == MaxPos:
		return fmt.Sprintf("%s:%d-", r.Chrom, r.Start)
	}
	return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.End)
}
