package bcf

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Atomic value types of the BCF typed-value encoding.
const (
	TypeMissing byte = 0
	TypeInt8    byte = 1
	TypeInt16   byte = 2
	TypeInt32   byte = 3
	TypeFloat   byte = 5
	TypeChar    byte = 7
)

// Sentinel encodings for missing values and vector padding.
const (
	Int8Missing  = math.MinInt8
	Int8EOV      = math.MinInt8 + 1
	Int16Missing = math.MinInt16
	Int16EOV     = math.MinInt16 + 1
	Int32Missing = math.MinInt32
	Int32EOV     = math.MinInt32 + 1

	FloatMissing uint32 = 0x7F800001
	FloatEOV     uint32 = 0x7F800002
)

// Size returns the width in bytes of one element of typ.
func Size(typ byte) int {
	switch typ {
	case TypeInt8, TypeChar:
		return 1
	case TypeInt16:
		return 2
	case TypeInt32, TypeFloat:
		return 4
	}
	return 0
}

// value is one decoded typed vector.
type value struct {
	typ    byte
	ints   []int32
	floats []uint32
	str    string
	n      int
}

// element renders element i and reports whether it is the missing sentinel
// or end-of-vector padding.
func (v value) element(i int) (s string, missing, eov bool) {
	switch v.typ {
	case TypeInt8, TypeInt16, TypeInt32:
		x := v.ints[i]
		switch {
		case x == missingFor(v.typ):
			return "", true, false
		case x == missingFor(v.typ)+1:
			return "", false, true
		}
		return strconv.FormatInt(int64(x), 10), false, false
	case TypeFloat:
		bits := v.floats[i]
		switch bits {
		case FloatMissing:
			return "", true, false
		case FloatEOV:
			return "", false, true
		}
		return strconv.FormatFloat(float64(math.Float32frombits(bits)), 'g', -1, 32), false, false
	}
	return "", true, false
}

// text renders the vector as VCF text, elements joined by sep.
func (v value) text(sep string) string {
	if v.typ == TypeChar {
		s := strings.TrimRight(v.str, "\x00")
		if s == "" {
			return "."
		}
		return s
	}
	parts := make([]string, 0, v.n)
	for i := 0; i < v.n; i++ {
		s, missing, eov := v.element(i)
		if eov {
			break
		}
		if missing {
			s = "."
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, sep)
}

func missingFor(typ byte) int32 {
	switch typ {
	case TypeInt8:
		return Int8Missing
	case TypeInt16:
		return Int16Missing
	}
	return Int32Missing
}

// cursor walks a record buffer.
type cursor struct {
	b   []byte
	off int
}

func (c *cursor) need(n int) error {
	if n < 0 || c.off+n > len(c.b) {
		return fmt.Errorf("need %d bytes at %d, record has %d", n, c.off, len(c.b))
	}
	return nil
}

func (c *cursor) uint32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	x := binary.LittleEndian.Uint32(c.b[c.off:])
	c.off += 4
	return x, nil
}

// descriptor reads a type byte and its element count, following the
// overflow encoding when the count nibble is 15.
func (c *cursor) descriptor() (byte, int, error) {
	if err := c.need(1); err != nil {
		return 0, 0, err
	}
	b := c.b[c.off]
	c.off++
	typ, n := b&0x0F, int(b>>4)
	if n == 15 {
		var err error
		n, err = c.typedInt()
		if err != nil {
			return 0, 0, err
		}
		if n < 0 {
			return 0, 0, fmt.Errorf("negative vector length %d", n)
		}
	}
	return typ, n, nil
}

// typedInt reads a typed scalar integer.
func (c *cursor) typedInt() (int, error) {
	typ, n, err := c.descriptor()
	if err != nil {
		return 0, err
	}
	if n != 1 {
		return 0, fmt.Errorf("expected scalar integer, got %d elements", n)
	}
	v, err := c.vector(typ, 1)
	if err != nil {
		return 0, err
	}
	if len(v.ints) != 1 {
		return 0, fmt.Errorf("expected integer type, got type %d", typ)
	}
	return int(v.ints[0]), nil
}

// typed reads a descriptor and the vector it describes.
func (c *cursor) typed() (value, error) {
	typ, n, err := c.descriptor()
	if err != nil {
		return value{}, err
	}
	return c.vector(typ, n)
}

// vector reads n elements of typ.
func (c *cursor) vector(typ byte, n int) (value, error) {
	v := value{typ: typ, n: n}
	if typ == TypeMissing {
		v.n = 0
		return v, nil
	}
	size := Size(typ)
	if size == 0 {
		return value{}, fmt.Errorf("unknown value type %d", typ)
	}
	if err := c.need(size * n); err != nil {
		return value{}, err
	}
	b := c.b[c.off : c.off+size*n]
	c.off += size * n

	switch typ {
	case TypeChar:
		v.str = string(b)
	case TypeInt8:
		v.ints = make([]int32, n)
		for i := range n {
			v.ints[i] = int32(int8(b[i]))
		}
	case TypeInt16:
		v.ints = make([]int32, n)
		for i := range n {
			v.ints[i] = int32(int16(binary.LittleEndian.Uint16(b[2*i:])))
		}
	case TypeInt32:
		v.ints = make([]int32, n)
		for i := range n {
			v.ints[i] = int32(binary.LittleEndian.Uint32(b[4*i:]))
		}
	case TypeFloat:
		v.floats = make([]uint32, n)
		for i := range n {
			v.floats[i] = binary.LittleEndian.Uint32(b[4*i:])
		}
	}
	return v, nil
}
