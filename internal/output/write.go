package output

import "github.com/inodb/vibe-xcf/internal/vcf"

// RecordWriter is implemented by every output format.
type RecordWriter interface {
	WriteHeader() error
	Write(v *vcf.Variant) error
	Flush() error
}

// Copy drains p into w, optionally splitting multi-allelic records first.
// It returns the number of records written.
func Copy(w RecordWriter, p vcf.VariantParser, splitMultiAllelic bool) (int, error) {
	n := 0
	for {
		v, err := p.Next()
		if err != nil {
			return n, err
		}
		if v == nil {
			return n, nil
		}
		m, err := WriteRecords(w, []*vcf.Variant{v}, splitMultiAllelic)
		n += m
		if err != nil {
			return n, err
		}
	}
}

// WriteRecords writes records to w, optionally splitting multi-allelic
// records first. It returns the number of records written.
func WriteRecords(w RecordWriter, records []*vcf.Variant, splitMultiAllelic bool) (int, error) {
	n := 0
	for _, v := range records {
		split := []*vcf.Variant{v}
		if splitMultiAllelic {
			split = vcf.SplitMultiAllelic(v)
		}
		for _, r := range split {
			if err := w.Write(r); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
