// Package vcf provides VCF file parsing functionality.
package vcf

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// LineReader is the source a Decoder pulls lines from. *bufio.Reader
// satisfies it.
type LineReader interface {
	ReadString(delim byte) (string, error)
}

// Decoder reads variants from VCF text.
type Decoder struct {
	reader      LineReader
	header      *Header
	lineNumber  int
	offset      int64 // bytes consumed from reader
	headerLines int
	headerBytes int64
	lineUnknown bool // set after repositioning away from the first record
}

// NewDecoder reads the header from r and returns a decoder positioned at the
// first data line.
func NewDecoder(r LineReader) (*Decoder, error) {
	d := &Decoder{reader: r, header: &Header{}}
	if err := d.parseHeader(); err != nil {
		return nil, err
	}
	d.headerLines = d.lineNumber
	d.headerBytes = d.offset
	return d, nil
}

// parseHeader reads and stores VCF header lines.
func (d *Decoder) parseHeader() error {
	for {
		line, err := d.readLine()
		if err != nil && err != io.EOF {
			return fmt.Errorf("read header: %w", err)
		}
		if line == "" && err == io.EOF {
			break
		}

		done, perr := d.header.addLine(line, d.lineNumber)
		if perr != nil {
			return perr
		}
		if done {
			return nil
		}
		if err == io.EOF {
			break
		}
	}

	return &ParseError{
		Line:    d.lineNumber,
		Message: "no #CHROM header line found",
	}
}

// readLine returns the next line without its terminator. A final line with
// no newline is returned together with io.EOF.
func (d *Decoder) readLine() (string, error) {
	line, err := d.reader.ReadString('\n')
	d.offset += int64(len(line))
	if line != "" {
		d.lineNumber++
	}
	return strings.TrimRight(line, "\r\n"), err
}

// Header returns the parsed header.
func (d *Decoder) Header() *Header {
	return d.header
}

// Next reads the next variant.
// Returns nil, nil when there are no more variants.
func (d *Decoder) Next() (*Variant, error) {
	for {
		line, err := d.readLine()
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		if line == "" {
			if err == io.EOF {
				return nil, nil
			}
			continue // Skip empty lines
		}
		return d.parseLine(line)
	}
}

// Offset returns the number of bytes consumed from the underlying reader,
// counting from the start of the stream.
func (d *Decoder) Offset() int64 {
	return d.offset
}

// DataOffset returns the byte offset of the first data line.
func (d *Decoder) DataOffset() int64 {
	return d.headerBytes
}

// Reset switches the decoder to r, which must be positioned at byte offset
// off of the same stream. The header is kept. Line numbers are only exact
// when off is DataOffset().
func (d *Decoder) Reset(r LineReader, off int64) {
	d.reader = r
	d.offset = off
	d.lineNumber = d.headerLines
	d.lineUnknown = off != d.headerBytes
}

// LineNumber returns the current line number being processed, or 0 when
// the decoder has been repositioned into the middle of the stream.
func (d *Decoder) LineNumber() int {
	if d.lineUnknown {
		return 0
	}
	return d.lineNumber
}

// parseLine parses a single VCF data line into a Variant.
func (d *Decoder) parseLine(line string) (*Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return nil, &ParseError{
			Line:    d.LineNumber(),
			Message: fmt.Sprintf("expected at least 8 columns, found %d", len(fields)),
		}
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || pos < 0 {
		return nil, &ParseError{
			Line:    d.LineNumber(),
			Message: fmt.Sprintf("invalid position: %s", fields[1]),
		}
	}

	qual := 0.0
	if fields[5] != "." {
		qual, err = strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, &ParseError{
				Line:    d.LineNumber(),
				Message: fmt.Sprintf("invalid quality: %s", fields[5]),
			}
		}
	}

	v := &Variant{
		Chrom:  fields[0],
		Pos:    pos,
		ID:     fields[2],
		Ref:    fields[3],
		Alt:    fields[4],
		Qual:   qual,
		Filter: fields[6],
	}
	v.Info, v.InfoKeys = ParseInfo(fields[7])

	// Capture FORMAT + sample columns if present
	if len(fields) > 8 {
		v.SampleColumns = strings.Join(fields[8:], "\t")
	}

	return v, nil
}

// ParseInfo parses an INFO column into a map and the key order.
func ParseInfo(info string) (map[string]interface{}, []string) {
	result := make(map[string]interface{})
	if info == "." || info == "" {
		return result, nil
	}

	var keys []string
	for _, kv := range strings.Split(info, ";") {
		if kv == "" {
			continue
		}
		key, value, ok := strings.Cut(kv, "=")
		if _, dup := result[key]; !dup {
			keys = append(keys, key)
		}
		if ok {
			result[key] = value
		} else {
			// Flag-type INFO field
			result[key] = true
		}
	}

	return result, keys
}

// ParseError represents an error during VCF parsing with line context.
// Line is zero when the decoder was repositioned and the line is unknown.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("vcf parse error: %s", e.Message)
	}
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}
