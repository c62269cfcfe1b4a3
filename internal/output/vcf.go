package output

import (
	"bufio"
	"io"
	"strings"

	"github.com/inodb/vibe-xcf/internal/vcf"
)

// VCFWriter writes query results as VCF text. The input header is copied
// through, with extra meta lines inserted just before the #CHROM line.
type VCFWriter struct {
	w      *bufio.Writer
	header *vcf.Header
	meta   []string // extra ## lines, written before #CHROM
	drop   map[string]bool
}

// NewVCFWriter creates a new VCF output writer.
func NewVCFWriter(w io.Writer, header *vcf.Header) *VCFWriter {
	return &VCFWriter{
		w:      bufio.NewWriter(w),
		header: header,
	}
}

// AddMeta registers meta-information lines (without the leading "##") to
// insert into the header.
func (vw *VCFWriter) AddMeta(lines ...string) {
	for _, line := range lines {
		vw.meta = append(vw.meta, "##"+strings.TrimPrefix(line, "##"))
	}
}

// DropInfo removes the given INFO keys from written records and their
// ##INFO definitions from the header.
func (vw *VCFWriter) DropInfo(keys ...string) {
	if vw.drop == nil {
		vw.drop = make(map[string]bool, len(keys))
	}
	for _, k := range keys {
		vw.drop[k] = true
	}
}

// WriteHeader writes the header lines.
func (vw *VCFWriter) WriteHeader() error {
	for _, line := range vw.header.Lines {
		if strings.HasPrefix(line, "#CHROM") {
			for _, m := range vw.meta {
				if _, err := vw.w.WriteString(m + "\n"); err != nil {
					return err
				}
			}
		}
		if vw.dropped(line) {
			continue
		}
		if _, err := vw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func (vw *VCFWriter) dropped(line string) bool {
	if len(vw.drop) == 0 || !strings.HasPrefix(line, "##INFO=") {
		return false
	}
	m, ok := vcf.ParseMetaLine(line)
	return ok && vw.drop[m.ID()]
}

// Write writes a single record.
func (vw *VCFWriter) Write(v *vcf.Variant) error {
	if len(vw.drop) > 0 {
		v = vw.stripInfo(v)
	}
	if _, err := vw.w.WriteString(v.String()); err != nil {
		return err
	}
	return vw.w.WriteByte('\n')
}

// stripInfo returns a shallow copy of v without the dropped INFO keys.
func (vw *VCFWriter) stripInfo(v *vcf.Variant) *vcf.Variant {
	// Fast path: nothing to remove
	hit := false
	for k := range vw.drop {
		if _, ok := v.Info[k]; ok {
			hit = true
			break
		}
	}
	if !hit {
		return v
	}

	out := *v
	out.Info = make(map[string]interface{}, len(v.Info))
	out.InfoKeys = make([]string, 0, len(v.InfoKeys))
	for _, k := range v.InfoKeys {
		if vw.drop[k] {
			continue
		}
		out.InfoKeys = append(out.InfoKeys, k)
	}
	for k, val := range v.Info {
		if !vw.drop[k] {
			out.Info[k] = val
		}
	}
	return &out
}

// Flush flushes any buffered data to the underlying writer.
func (vw *VCFWriter) Flush() error {
	return vw.w.Flush()
}
