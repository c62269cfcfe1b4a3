// Package output provides writers for region query results.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-xcf/internal/vcf"
)

// TabWriter writes records in tab-delimited format, one column per
// fixed VCF field plus one per requested INFO key.
type TabWriter struct {
	w        *bufio.Writer
	columns  []string
	infoKeys []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#CHROM",
			"POS",
			"END",
			"ID",
			"REF",
			"ALT",
			"QUAL",
			"FILTER",
		},
	}
}

// SetInfoColumns adds one column per INFO key. Flags render as "1" when set.
func (tw *TabWriter) SetInfoColumns(keys []string) {
	tw.infoKeys = keys
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	cols := append(append([]string(nil), tw.columns...), tw.infoKeys...)
	_, err := tw.w.WriteString(strings.Join(cols, "\t") + "\n")
	return err
}

// Write writes a single record.
func (tw *TabWriter) Write(v *vcf.Variant) error {
	qual := "-"
	if v.Qual != 0 {
		qual = strconv.FormatFloat(v.Qual, 'g', -1, 64)
	}

	values := make([]string, 0, len(tw.columns)+len(tw.infoKeys))
	values = append(values,
		v.Chrom,
		strconv.FormatInt(v.Pos, 10),
		strconv.FormatInt(v.End(), 10),
		dash(v.ID),
		v.Ref,
		dash(v.Alt),
		qual,
		dash(v.Filter),
	)
	for _, k := range tw.infoKeys {
		switch val := v.Info[k].(type) {
		case string:
			values = append(values, dash(val))
		case bool:
			if val {
				values = append(values, "1")
			} else {
				values = append(values, "-")
			}
		default:
			values = append(values, "-")
		}
	}

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

func dash(s string) string {
	if s == "" || s == "." {
		return "-"
	}
	return s
}
