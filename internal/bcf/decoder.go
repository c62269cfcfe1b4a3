package bcf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/inodb/vibe-xcf/internal/vcf"
)

// ErrBadMagic is returned when a stream does not start with the BCF 2.x
// signature.
var ErrBadMagic = errors.New("bcf: not a BCF 2.x stream")

// sharedFixed is the size of the fixed leading part of a record's shared
// section: CHROM, POS, rlen, QUAL, n_allele_info, n_fmt_sample.
const sharedFixed = 24

// DecodeError reports a malformed record together with the byte offset
// (in the uncompressed stream) where the record started.
type DecodeError struct {
	Offset  int64
	Message string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("bcf decode error at offset %d: %s", e.Offset, e.Message)
}

// Decoder reads BCF records from an uncompressed BCF stream. Block
// decompression is the caller's concern.
type Decoder struct {
	r          io.Reader
	header     *vcf.Header
	dict       *Dictionary
	offset     int64
	dataOffset int64
	buf        []byte
}

// NewDecoder reads the magic and header text from r. The decoder never
// reads past the bytes it needs, so r's position always matches Offset().
func NewDecoder(r io.Reader) (*Decoder, error) {
	d := &Decoder{r: r}

	var pre [9]byte
	if err := d.read(pre[:]); err != nil {
		return nil, fmt.Errorf("read bcf magic: %w", err)
	}
	if !bytes.Equal(pre[:len(Magic)], Magic) {
		return nil, ErrBadMagic
	}
	textLen := binary.LittleEndian.Uint32(pre[5:])
	text := make([]byte, textLen)
	if err := d.read(text); err != nil {
		return nil, fmt.Errorf("read bcf header text: %w", err)
	}

	h, err := vcf.ParseHeaderText(string(text))
	if err != nil {
		return nil, fmt.Errorf("parse bcf header: %w", err)
	}
	d.header = h
	d.dict = NewDictionary(h)
	d.dataOffset = d.offset
	return d, nil
}

func (d *Decoder) read(p []byte) error {
	n, err := io.ReadFull(d.r, p)
	d.offset += int64(n)
	return err
}

// Header returns the header parsed from the stream.
func (d *Decoder) Header() *vcf.Header {
	return d.header
}

// Dictionary returns the header dictionary used to resolve record keys.
func (d *Decoder) Dictionary() *Dictionary {
	return d.dict
}

// Offset returns the number of uncompressed bytes consumed.
func (d *Decoder) Offset() int64 {
	return d.offset
}

// DataOffset returns the uncompressed offset of the first record.
func (d *Decoder) DataOffset() int64 {
	return d.dataOffset
}

// Reset switches the decoder to r, positioned at uncompressed offset off
// of the same stream.
func (d *Decoder) Reset(r io.Reader, off int64) {
	d.r = r
	d.offset = off
}

// Next reads the next record.
// Returns nil, nil when there are no more records.
func (d *Decoder) Next() (*vcf.Variant, error) {
	start := d.offset

	var lens [8]byte
	n, err := io.ReadFull(d.r, lens[:])
	d.offset += int64(n)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, &DecodeError{Offset: start, Message: "truncated record length"}
		}
		return nil, fmt.Errorf("read bcf record: %w", err)
	}

	shared := binary.LittleEndian.Uint32(lens[0:])
	indiv := binary.LittleEndian.Uint32(lens[4:])
	total := int(shared) + int(indiv)
	if shared < sharedFixed || total < 0 {
		return nil, &DecodeError{Offset: start, Message: fmt.Sprintf("invalid record lengths %d/%d", shared, indiv)}
	}
	if cap(d.buf) < total {
		d.buf = make([]byte, total)
	}
	d.buf = d.buf[:total]
	if err := d.read(d.buf); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, &DecodeError{Offset: start, Message: "truncated record"}
		}
		return nil, fmt.Errorf("read bcf record: %w", err)
	}

	v, err := d.decode(d.buf[:shared], d.buf[shared:])
	if err != nil {
		return nil, &DecodeError{Offset: start, Message: err.Error()}
	}
	return v, nil
}

func (d *Decoder) decode(shared, indiv []byte) (*vcf.Variant, error) {
	c := &cursor{b: shared}
	fixed := make([]uint32, 6)
	for i := range fixed {
		fixed[i], _ = c.uint32()
	}
	chromID, pos, qualBits := int32(fixed[0]), int32(fixed[1]), fixed[3]
	nInfo := int(fixed[4] & 0xFFFF)
	nAllele := int(fixed[4] >> 16)
	nSample := int(fixed[5] & 0xFFFFFF)
	nFmt := int(fixed[5] >> 24)

	chrom, ok := d.dict.Contig(int(chromID))
	if !ok {
		return nil, fmt.Errorf("unknown contig id %d", chromID)
	}
	if pos < -1 {
		return nil, fmt.Errorf("invalid position %d", pos)
	}

	v := &vcf.Variant{
		Chrom: chrom,
		Pos:   int64(pos) + 1,
		Info:  make(map[string]interface{}),
	}
	if qualBits != FloatMissing {
		v.Qual = float64(math.Float32frombits(qualBits))
	}

	id, err := c.typed()
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	v.ID = id.text(";")

	alleles := make([]string, nAllele)
	for i := range alleles {
		a, err := c.typed()
		if err != nil {
			return nil, fmt.Errorf("allele %d: %w", i, err)
		}
		alleles[i] = strings.TrimRight(a.str, "\x00")
	}
	if nAllele > 0 {
		v.Ref = alleles[0]
	}
	v.Alt = "."
	if nAllele > 1 {
		v.Alt = strings.Join(alleles[1:], ",")
	}

	filters, err := c.typed()
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	v.Filter, err = d.filterText(filters)
	if err != nil {
		return nil, err
	}

	for i := 0; i < nInfo; i++ {
		key, err := c.typedInt()
		if err != nil {
			return nil, fmt.Errorf("info key %d: %w", i, err)
		}
		name, ok := d.dict.String(key)
		if !ok {
			return nil, fmt.Errorf("unknown info key %d", key)
		}
		val, err := c.typed()
		if err != nil {
			return nil, fmt.Errorf("info %s: %w", name, err)
		}
		if _, dup := v.Info[name]; !dup {
			v.InfoKeys = append(v.InfoKeys, name)
		}
		if val.n == 0 || d.dict.InfoType(name) == "Flag" {
			v.Info[name] = true
		} else {
			v.Info[name] = val.text(",")
		}
	}

	if nFmt > 0 && nSample > 0 {
		v.SampleColumns, err = d.decodeSamples(indiv, nFmt, nSample)
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (d *Decoder) filterText(filters value) (string, error) {
	if filters.n == 0 {
		return ".", nil
	}
	names := make([]string, 0, filters.n)
	for i := 0; i < filters.n; i++ {
		if filters.ints == nil {
			return "", fmt.Errorf("filter vector is not integer typed")
		}
		name, ok := d.dict.String(int(filters.ints[i]))
		if !ok {
			return "", fmt.Errorf("unknown filter key %d", filters.ints[i])
		}
		names = append(names, name)
	}
	return strings.Join(names, ";"), nil
}

// decodeSamples renders the FORMAT column and one column per sample.
func (d *Decoder) decodeSamples(indiv []byte, nFmt, nSample int) (string, error) {
	c := &cursor{b: indiv}
	keys := make([]string, nFmt)
	cols := make([][]string, nSample)

	for j := 0; j < nFmt; j++ {
		key, err := c.typedInt()
		if err != nil {
			return "", fmt.Errorf("format key %d: %w", j, err)
		}
		name, ok := d.dict.String(key)
		if !ok {
			return "", fmt.Errorf("unknown format key %d", key)
		}
		keys[j] = name

		typ, n, err := c.descriptor()
		if err != nil {
			return "", fmt.Errorf("format %s: %w", name, err)
		}
		for s := 0; s < nSample; s++ {
			val, err := c.vector(typ, n)
			if err != nil {
				return "", fmt.Errorf("format %s sample %d: %w", name, s, err)
			}
			if name == "GT" {
				cols[s] = append(cols[s], genotypeText(val))
			} else {
				cols[s] = append(cols[s], val.text(","))
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(keys, ":"))
	for _, col := range cols {
		sb.WriteByte('\t')
		sb.WriteString(strings.Join(col, ":"))
	}
	return sb.String(), nil
}

// genotypeText renders a GT vector. Each element is (allele+1)<<1 with the
// low bit set when the allele is phased against the previous one.
func genotypeText(v value) string {
	if v.ints == nil {
		return "."
	}
	var sb strings.Builder
	for i, x := range v.ints {
		if x == missingFor(v.typ)+1 {
			break
		}
		if i > 0 {
			if x&1 == 1 {
				sb.WriteByte('|')
			} else {
				sb.WriteByte('/')
			}
		}
		if x == missingFor(v.typ) || x>>1 == 0 {
			sb.WriteByte('.')
			continue
		}
		sb.WriteString(strconv.Itoa(int(x>>1) - 1))
	}
	if sb.Len() == 0 {
		return "."
	}
	return sb.String()
}
