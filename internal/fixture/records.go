// Package fixture writes synthetic variant record sets in every storage form
// the reader supports. It backs the tests of the codec, index and query
// packages.
package fixture

import (
	"fmt"
	"strings"

	"github.com/inodb/vibe-xcf/internal/vcf"
)

// headerLines declares everything the synthetic records use.
var headerLines = []string{
	"##fileformat=VCFv4.2",
	"##FILTER=<ID=PASS,Description=\"All filters passed\">",
	"##FILTER=<ID=q10,Description=\"Quality below 10\">",
	"##INFO=<ID=DP,Number=1,Type=Integer,Description=\"Total depth\">",
	"##INFO=<ID=DB,Number=0,Type=Flag,Description=\"dbSNP membership\">",
	"##INFO=<ID=END,Number=1,Type=Integer,Description=\"End position\">",
	"##INFO=<ID=AF,Number=A,Type=Float,Description=\"Allele frequency\">",
	"##FORMAT=<ID=GT,Number=1,Type=String,Description=\"Genotype\">",
	"##FORMAT=<ID=DP,Number=1,Type=Integer,Description=\"Read depth\">",
}

// Header returns a header for the given contigs with a single sample S1.
func Header(contigs ...string) *vcf.Header {
	if len(contigs) == 0 {
		contigs = []string{"chr1", "chr2"}
	}
	lines := append([]string(nil), headerLines...)
	for _, c := range contigs {
		lines = append(lines, fmt.Sprintf("##contig=<ID=%s>", c))
	}
	lines = append(lines, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1")
	return &vcf.Header{Lines: lines, SampleNames: []string{"S1"}}
}

// Sparse returns records at 10, 20, 30 and 40 on chr1 and 5 and 15 on chr2.
func Sparse() []*vcf.Variant {
	return []*vcf.Variant{
		record("chr1", 10, "rs10", "A", "C", 50, "PASS", "DP=14;DB", "GT:DP\t0/1:14"),
		record("chr1", 20, ".", "G", "T,A", 29.5, "PASS", "DP=9;AF=0.25,0.5", "GT:DP\t1|2:9"),
		record("chr1", 30, "rs30", "CT", "C", 0, "q10", "DP=3", "GT:DP\t./.:3"),
		record("chr1", 40, ".", "T", "G", 12, ".", ".", "GT:DP\t1/1:."),
		record("chr2", 5, ".", "N", "<DEL>", 99, "PASS", "END=120;DP=30", "GT:DP\t0/1:30"),
		record("chr2", 15, "rs15", "C", "G", 0, "PASS", "DP=8", "GT:DP\t0|1:8"),
	}
}

// Dense returns n records per contig, step bases apart, starting at step.
// Every fifth position repeats the previous one so same-position records
// are exercised.
func Dense(contigs []string, n int, step int64) []*vcf.Variant {
	var out []*vcf.Variant
	for _, c := range contigs {
		pos := int64(0)
		for i := 0; i < n; i++ {
			if i%5 != 4 {
				pos += step
			}
			out = append(out, record(c, pos, fmt.Sprintf("v%d", i), "A", "C", 0, "PASS",
				fmt.Sprintf("DP=%d", i%100), fmt.Sprintf("GT:DP\t0/1:%d", i%50)))
		}
	}
	return out
}

func record(chrom string, pos int64, id, ref, alt string, qual float64, filter, info, samples string) *vcf.Variant {
	v := &vcf.Variant{
		Chrom:         chrom,
		Pos:           pos,
		ID:            id,
		Ref:           ref,
		Alt:           alt,
		Qual:          qual,
		Filter:        filter,
		Info:          make(map[string]interface{}),
		SampleColumns: samples,
	}
	if info != "." {
		for _, kv := range strings.Split(info, ";") {
			key, value, ok := strings.Cut(kv, "=")
			v.InfoKeys = append(v.InfoKeys, key)
			if ok {
				v.Info[key] = value
			} else {
				v.Info[key] = true
			}
		}
	}
	return v
}

// Text renders a complete VCF document.
func Text(h *vcf.Header, records []*vcf.Variant) string {
	var sb strings.Builder
	sb.WriteString(h.Text())
	for _, v := range records {
		sb.WriteString(v.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Filter returns the records whose position lies in [start, end] on chrom,
// in input order.
func Filter(records []*vcf.Variant, chrom string, start, end int64) []*vcf.Variant {
	var out []*vcf.Variant
	for _, v := range records {
		if v.Chrom == chrom && v.Pos >= start && v.Pos <= end {
			out = append(out, v)
		}
	}
	return out
}
