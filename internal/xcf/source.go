package xcf

import (
	"bufio"
	"fmt"
	"io"

	"github.com/biogo/hts/bgzf"

	"github.com/inodb/vibe-xcf/internal/bcf"
	"github.com/inodb/vibe-xcf/internal/vcf"
)

// source is a decoded record stream over one of the storage forms. The set
// of implementations is closed: plainSource for uncompressed forms and
// blockSource for BGZF forms.
type source interface {
	header() *vcf.Header
	// contigs lists sequence names in the order the data addresses them.
	contigs() []string
	// next returns nil, nil at the end of the data.
	next() (*vcf.Variant, error)
	// rewind repositions at the first record. The input must be seekable.
	rewind() error
	close() error
}

// decoder is what both codecs offer once their header has been read.
type decoder interface {
	Header() *vcf.Header
	Next() (*vcf.Variant, error)
	DataOffset() int64
}

// plainSource reads VCF text or uncompressed BCF through a bufio.Reader.
type plainSource struct {
	file  io.ReadSeeker // nil when not seekable
	base  int64
	br    *bufio.Reader
	dec   decoder
	names []string
	reset func(br *bufio.Reader, off int64)
}

func newPlainSource(in *input, binary bool) (*plainSource, error) {
	s := &plainSource{file: in.seeker, base: in.base}
	s.br = bufio.NewReaderSize(in.r, sniffLen)

	if binary {
		d, err := bcf.NewDecoder(s.br)
		if err != nil {
			return nil, err
		}
		s.dec, s.names = d, d.Dictionary().Contigs
		s.reset = func(br *bufio.Reader, off int64) { d.Reset(br, off) }
		return s, nil
	}

	d, err := vcf.NewDecoder(s.br)
	if err != nil {
		return nil, err
	}
	s.dec, s.names = d, d.Header().Contigs()
	s.reset = func(br *bufio.Reader, off int64) { d.Reset(br, off) }
	return s, nil
}

func (s *plainSource) header() *vcf.Header         { return s.dec.Header() }
func (s *plainSource) contigs() []string           { return s.names }
func (s *plainSource) next() (*vcf.Variant, error) { return s.dec.Next() }
func (s *plainSource) close() error                { return nil }

func (s *plainSource) rewind() error {
	if s.file == nil {
		return fmt.Errorf("rewind: input is not seekable")
	}
	off := s.dec.DataOffset()
	if _, err := s.file.Seek(s.base+off, io.SeekStart); err != nil {
		return fmt.Errorf("rewind: %w", err)
	}
	s.br.Reset(s.file)
	s.reset(s.br, off)
	return nil
}

// blockSource reads BGZF-compressed VCF or BCF and tracks the virtual
// offset at which every record starts. Decoders read straight from the
// BGZF reader, never through a buffer, so the reader's last chunk always
// ends where the last record ended.
type blockSource struct {
	bg    *bgzf.Reader
	dec   decoder
	names []string
	// cur is the virtual offset of the next record, start the offset of
	// the first one.
	cur   bgzf.Offset
	start bgzf.Offset
	// resync updates decoder bookkeeping after a seek; known is false when
	// the uncompressed stream offset of the new position is unknown.
	resync func(known bool)
}

func newBlockSource(in *input, binary bool) (*blockSource, error) {
	bg, err := bgzf.NewReader(in.r, 1)
	if err != nil {
		return nil, fmt.Errorf("open bgzf stream: %w", err)
	}
	s := &blockSource{bg: bg}

	if binary {
		d, err := bcf.NewDecoder(bg)
		if err != nil {
			bg.Close()
			return nil, err
		}
		s.dec, s.names = d, d.Dictionary().Contigs
		s.resync = func(known bool) {
			if known {
				d.Reset(bg, d.DataOffset())
			} else {
				d.Reset(bg, 0)
			}
		}
	} else {
		lines := &byteLines{r: bg}
		d, err := vcf.NewDecoder(lines)
		if err != nil {
			bg.Close()
			return nil, err
		}
		s.dec, s.names = d, d.Header().Contigs()
		s.resync = func(known bool) {
			if known {
				d.Reset(lines, d.DataOffset())
			} else {
				d.Reset(lines, -1)
			}
		}
	}

	s.start = bg.LastChunk().End
	s.cur = s.start
	return s, nil
}

func (s *blockSource) header() *vcf.Header { return s.dec.Header() }
func (s *blockSource) contigs() []string   { return s.names }
func (s *blockSource) close() error        { return s.bg.Close() }

func (s *blockSource) next() (*vcf.Variant, error) {
	v, err := s.dec.Next()
	if v != nil {
		s.cur = s.bg.LastChunk().End
	}
	return v, err
}

// tell returns the virtual offset of the next record.
func (s *blockSource) tell() bgzf.Offset {
	return s.cur
}

func (s *blockSource) seek(off bgzf.Offset) error {
	if err := s.bg.Seek(off); err != nil {
		return fmt.Errorf("seek to %d:%d: %w", off.File, off.Block, err)
	}
	s.cur = off
	s.resync(off == s.start)
	return nil
}

func (s *blockSource) rewind() error {
	return s.seek(s.start)
}

// byteLines serves lines to the VCF decoder through the BGZF reader's
// ReadByte, so the reader is never read past the end of a record and its
// last chunk ends where the line did.
type byteLines struct {
	r   io.ByteReader
	buf []byte
}

func (l *byteLines) ReadString(delim byte) (string, error) {
	l.buf = l.buf[:0]
	for {
		c, err := l.r.ReadByte()
		if err != nil {
			return string(l.buf), err
		}
		l.buf = append(l.buf, c)
		if c == delim {
			return string(l.buf), nil
		}
	}
}
