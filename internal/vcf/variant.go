package vcf

import (
	"strconv"
	"strings"
)

// Variant represents a single genomic variant from a VCF or BCF file.
type Variant struct {
	Chrom         string                 // Chromosome name (e.g., "12", "chr12")
	Pos           int64                  // 1-based genomic position
	ID            string                 // Variant identifier (e.g., rs ID)
	Ref           string                 // Reference allele
	Alt           string                 // Alternate alleles, comma separated
	Qual          float64                // Quality score, 0 when missing
	Filter        string                 // Filter status (PASS or filter names)
	Info          map[string]interface{} // INFO field key-value pairs
	InfoKeys      []string               // INFO keys in record order
	SampleColumns string                 // FORMAT and sample columns, tab separated
}

// IsSNV returns true if the variant is a single nucleotide variant.
func (v *Variant) IsSNV() bool {
	return len(v.Ref) == 1 && len(v.Alt) == 1
}

// IsIndel returns true if the variant is an insertion or deletion.
func (v *Variant) IsIndel() bool {
	return len(v.Ref) != len(v.Alt)
}

// IsInsertion returns true if the variant is an insertion.
func (v *Variant) IsInsertion() bool {
	return len(v.Alt) > len(v.Ref)
}

// IsDeletion returns true if the variant is a deletion.
func (v *Variant) IsDeletion() bool {
	return len(v.Ref) > len(v.Alt)
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func (v *Variant) NormalizeChrom() string {
	if len(v.Chrom) > 3 && v.Chrom[:3] == "chr" {
		return v.Chrom[3:]
	}
	return v.Chrom
}

// End returns the 1-based inclusive end of the reference span. INFO/END
// takes precedence over the reference allele length.
func (v *Variant) End() int64 {
	if s, ok := v.Info["END"].(string); ok {
		if end, err := strconv.ParseInt(s, 10, 64); err == nil && end >= v.Pos {
			return end
		}
	}
	if len(v.Ref) == 0 {
		return v.Pos
	}
	return v.Pos + int64(len(v.Ref)) - 1
}

// FormatInfo renders the INFO column in record order.
func (v *Variant) FormatInfo() string {
	if len(v.Info) == 0 {
		return "."
	}
	keys := v.InfoKeys
	if len(keys) != len(v.Info) {
		keys = make([]string, 0, len(v.Info))
		for k := range v.Info {
			keys = append(keys, k)
		}
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch val := v.Info[k].(type) {
		case bool:
			if val {
				parts = append(parts, k)
			}
		case string:
			parts = append(parts, k+"="+val)
		}
	}
	return strings.Join(parts, ";")
}

// String renders the variant as a VCF data line without a trailing newline.
func (v *Variant) String() string {
	qual := "."
	if v.Qual != 0 {
		qual = strconv.FormatFloat(v.Qual, 'g', -1, 64)
	}
	fields := []string{
		v.Chrom,
		strconv.FormatInt(v.Pos, 10),
		orMissing(v.ID),
		v.Ref,
		orMissing(v.Alt),
		qual,
		orMissing(v.Filter),
		v.FormatInfo(),
	}
	if v.SampleColumns != "" {
		fields = append(fields, v.SampleColumns)
	}
	return strings.Join(fields, "\t")
}

func orMissing(s string) string {
	if s == "" {
		return "."
	}
	return s
}

// SplitMultiAllelic splits a multi-allelic variant into separate variants.
func SplitMultiAllelic(v *Variant) []*Variant {
	alts := strings.Split(v.Alt, ",")
	if len(alts) == 1 {
		return []*Variant{v}
	}

	variants := make([]*Variant, len(alts))
	for i, alt := range alts {
		split := *v
		split.Alt = alt
		variants[i] = &split // INFO is shared with v
	}

	return variants
}
