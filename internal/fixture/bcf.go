package fixture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/inodb/vibe-xcf/internal/bcf"
	"github.com/inodb/vibe-xcf/internal/vcf"
)

// Generic sentinels used while collecting integers; narrowed on write.
const (
	intMissing = math.MinInt32
	intEOV     = math.MinInt32 + 1
)

// EncodeBCF writes an uncompressed BCF 2.2 stream.
func EncodeBCF(w io.Writer, h *vcf.Header, records []*vcf.Variant) error {
	dict := bcf.NewDictionary(h)

	text := h.Text() + "\x00"
	var pre bytes.Buffer
	pre.Write(bcf.Magic)
	binary.Write(&pre, binary.LittleEndian, uint32(len(text)))
	pre.WriteString(text)
	if _, err := w.Write(pre.Bytes()); err != nil {
		return err
	}

	for _, v := range records {
		shared, indiv, err := encodeRecord(dict, v)
		if err != nil {
			return fmt.Errorf("encode %s:%d: %w", v.Chrom, v.Pos, err)
		}
		var lens [8]byte
		binary.LittleEndian.PutUint32(lens[0:], uint32(len(shared)))
		binary.LittleEndian.PutUint32(lens[4:], uint32(len(indiv)))
		for _, b := range [][]byte{lens[:], shared, indiv} {
			if _, err := w.Write(b); err != nil {
				return err
			}
		}
	}
	return nil
}

func encodeRecord(dict *bcf.Dictionary, v *vcf.Variant) ([]byte, []byte, error) {
	chromID, ok := dict.ContigID(v.Chrom)
	if !ok {
		return nil, nil, fmt.Errorf("contig %q not in header", v.Chrom)
	}

	alleles := []string{v.Ref}
	if v.Alt != "" && v.Alt != "." {
		alleles = append(alleles, strings.Split(v.Alt, ",")...)
	}
	keys := v.InfoKeys

	var formatKeys []string
	var samples [][]string
	if v.SampleColumns != "" {
		cols := strings.Split(v.SampleColumns, "\t")
		formatKeys = strings.Split(cols[0], ":")
		for _, col := range cols[1:] {
			samples = append(samples, strings.Split(col, ":"))
		}
	}

	qual := bcf.FloatMissing
	if v.Qual != 0 {
		qual = math.Float32bits(float32(v.Qual))
	}

	s := &encoder{}
	s.u32(uint32(chromID))
	s.u32(uint32(int32(v.Pos - 1)))
	s.u32(uint32(v.End() - v.Pos + 1))
	s.u32(qual)
	s.u32(uint32(len(alleles))<<16 | uint32(len(keys)))
	s.u32(uint32(len(formatKeys))<<24 | uint32(len(samples)))

	if v.ID == "." {
		s.chars("")
	} else {
		s.chars(v.ID)
	}
	for _, a := range alleles {
		s.chars(a)
	}

	var filters []int32
	if v.Filter != "." && v.Filter != "" {
		for _, f := range strings.Split(v.Filter, ";") {
			id, ok := dict.StringID(f)
			if !ok {
				return nil, nil, fmt.Errorf("filter %q not in header", f)
			}
			filters = append(filters, int32(id))
		}
	}
	s.ints(filters)

	for _, key := range keys {
		id, ok := dict.StringID(key)
		if !ok {
			return nil, nil, fmt.Errorf("info %q not in header", key)
		}
		s.typedInt(id)
		switch dict.InfoType(key) {
		case "Flag":
			s.descriptor(bcf.TypeMissing, 0)
		case "Integer":
			s.ints(parseInts(v.Info[key]))
		case "Float":
			s.floats(parseFloats(v.Info[key]))
		default:
			str, _ := v.Info[key].(string)
			s.chars(str)
		}
	}

	d := &encoder{}
	for j, key := range formatKeys {
		id, ok := dict.StringID(key)
		if !ok {
			return nil, nil, fmt.Errorf("format %q not in header", key)
		}
		d.typedInt(id)

		values := make([][]int32, len(samples))
		width := 0
		for i, sample := range samples {
			field := "."
			if j < len(sample) {
				field = sample[j]
			}
			switch {
			case key == "GT":
				values[i] = parseGenotype(field)
			case dict.FormatType(key) == "Integer":
				values[i] = parseInts(field)
			default:
				return nil, nil, fmt.Errorf("format %q: only GT and Integer fields are encoded", key)
			}
			width = max(width, len(values[i]))
		}
		var flat []int32
		for _, vals := range values {
			for len(vals) < width {
				vals = append(vals, intEOV)
			}
			flat = append(flat, vals...)
		}
		d.intMatrix(flat, width)
	}

	return s.Bytes(), d.Bytes(), nil
}

func parseInts(x interface{}) []int32 {
	s, _ := x.(string)
	var out []int32
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			out = append(out, intMissing)
			continue
		}
		out = append(out, int32(n))
	}
	return out
}

func parseFloats(x interface{}) []uint32 {
	s, _ := x.(string)
	var out []uint32
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.ParseFloat(f, 32)
		if err != nil {
			out = append(out, bcf.FloatMissing)
			continue
		}
		out = append(out, math.Float32bits(float32(n)))
	}
	return out
}

// parseGenotype encodes "0/1", "1|2" or "./." as BCF GT integers.
func parseGenotype(gt string) []int32 {
	var out []int32
	phased := false
	for len(gt) > 0 {
		end := strings.IndexAny(gt, "/|")
		allele := gt
		next := ""
		if end >= 0 {
			allele, next = gt[:end], gt[end+1:]
		}
		x := int32(0)
		if n, err := strconv.Atoi(allele); err == nil {
			x = int32(n+1) << 1
		}
		if phased {
			x |= 1
		}
		out = append(out, x)
		if end < 0 {
			break
		}
		phased = gt[end] == '|'
		gt = next
	}
	return out
}

type encoder struct {
	bytes.Buffer
}

func (e *encoder) u32(x uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], x)
	e.Write(b[:])
}

func (e *encoder) descriptor(typ byte, n int) {
	if n < 15 {
		e.WriteByte(byte(n)<<4 | typ)
		return
	}
	e.WriteByte(15<<4 | typ)
	e.typedInt(n)
}

func (e *encoder) typedInt(x int) {
	e.ints([]int32{int32(x)})
}

func (e *encoder) chars(s string) {
	e.descriptor(bcf.TypeChar, len(s))
	e.WriteString(s)
}

func (e *encoder) floats(vals []uint32) {
	e.descriptor(bcf.TypeFloat, len(vals))
	for _, x := range vals {
		e.u32(x)
	}
}

// ints writes a typed integer vector using the narrowest type that holds
// every value. An empty vector is written as a zero-length int8 vector.
func (e *encoder) ints(vals []int32) {
	typ := intType(vals)
	e.descriptor(typ, len(vals))
	e.intValues(typ, vals)
}

// intMatrix writes one descriptor followed by len(vals)/width rows.
func (e *encoder) intMatrix(vals []int32, width int) {
	typ := intType(vals)
	e.descriptor(typ, width)
	e.intValues(typ, vals)
}

func (e *encoder) intValues(typ byte, vals []int32) {
	for _, x := range vals {
		switch typ {
		case bcf.TypeInt8:
			e.WriteByte(byte(int8(narrow(x, bcf.Int8Missing))))
		case bcf.TypeInt16:
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], uint16(int16(narrow(x, bcf.Int16Missing))))
			e.Write(b[:])
		default:
			e.u32(uint32(x))
		}
	}
}

// narrow maps the generic sentinels onto those of a narrower type.
func narrow(x int32, missing int32) int32 {
	switch x {
	case intMissing:
		return missing
	case intEOV:
		return missing + 1
	}
	return x
}

func intType(vals []int32) byte {
	typ := bcf.TypeInt8
	for _, x := range vals {
		if x == intMissing || x == intEOV {
			continue
		}
		switch {
		case x >= math.MinInt8+8 && x <= math.MaxInt8:
		case x >= math.MinInt16+8 && x <= math.MaxInt16:
			typ = max(typ, bcf.TypeInt16)
		default:
			typ = bcf.TypeInt32
		}
	}
	return typ
}
