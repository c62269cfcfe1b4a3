package xcf

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// sniffLen is how many leading bytes are inspected. It covers a whole
// BGZF block, so the first block always inflates.
const sniffLen = 1 << 16

var (
	gzipMagic   = []byte{0x1f, 0x8b}
	bcfMagic    = []byte("BCF\x02")
	vcfMagic    = []byte("##fileformat=VCF")
	chromHeader = []byte("#CHROM")
)

// Detect classifies the leading bytes of a variant file.
func Detect(peek []byte) (StorageForm, error) {
	if bytes.HasPrefix(peek, gzipMagic) {
		if !isBGZF(peek) {
			return 0, fmt.Errorf("%w: gzip data without BGZF framing", ErrUnrecognizedFormat)
		}
		inner, err := inflateHead(peek)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
		}
		switch {
		case bytes.HasPrefix(inner, bcfMagic):
			return BinaryCompressed, nil
		case isVCF(inner):
			return TextCompressed, nil
		}
		return 0, fmt.Errorf("%w: BGZF data is neither VCF nor BCF", ErrUnrecognizedFormat)
	}

	switch {
	case bytes.HasPrefix(peek, bcfMagic):
		return BinaryPlain, nil
	case isVCF(peek):
		return TextPlain, nil
	}
	return 0, ErrUnrecognizedFormat
}

func isVCF(b []byte) bool {
	return bytes.HasPrefix(b, vcfMagic) || bytes.HasPrefix(b, chromHeader)
}

// isBGZF checks for the FEXTRA flag and the "BC" subfield every BGZF block
// header carries.
func isBGZF(b []byte) bool {
	return len(b) >= 18 &&
		b[2] == 8 && b[3]&4 != 0 &&
		b[12] == 'B' && b[13] == 'C'
}

// inflateHead decompresses the start of the first block. A peek that cuts a
// block short still yields the bytes before the cut.
func inflateHead(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	head := make([]byte, len(vcfMagic))
	n, err := io.ReadFull(zr, head)
	if n == 0 && err != nil {
		return nil, err
	}
	return head[:n], nil
}

// input is a byte stream positioned at the start of a variant file,
// together with its leading bytes.
type input struct {
	r      io.Reader
	seeker io.ReadSeeker // nil when the stream cannot be repositioned
	base   int64         // offset of the file start within seeker
	head   []byte
}

// sniff reads the leading bytes of r without consuming them. Seekable
// inputs are read and rewound; anything else is wrapped in a buffered
// reader that is peeked and then used in place of r.
func sniff(r io.Reader) (*input, error) {
	if s, ok := r.(io.ReadSeeker); ok {
		if base, err := s.Seek(0, io.SeekCurrent); err == nil {
			head := make([]byte, sniffLen)
			n, err := io.ReadFull(s, head)
			if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("read leading bytes: %w", err)
			}
			if _, err := s.Seek(base, io.SeekStart); err != nil {
				return nil, fmt.Errorf("rewind after sniffing: %w", err)
			}
			return &input{r: s, seeker: s, base: base, head: head[:n]}, nil
		}
	}

	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read leading bytes: %w", err)
	}
	return &input{r: br, head: head}, nil
}
