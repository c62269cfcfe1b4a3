package vcf

import "strings"

// Header holds the meta-information lines and the #CHROM line of a VCF file.
type Header struct {
	Lines       []string // "##" lines followed by the "#CHROM" line
	SampleNames []string // sample names from the #CHROM line
}

// MetaLine is a parsed structured meta-information line such as
// ##INFO=<ID=DP,Number=1,Type=Integer,Description="Depth">.
type MetaLine struct {
	Key    string
	Fields map[string]string
	Order  []string
}

// ID returns the ID field of the meta line.
func (m MetaLine) ID() string {
	return m.Fields["ID"]
}

// ParseHeaderText parses a complete header block, as stored in BCF files.
// Trailing NUL padding is ignored.
func ParseHeaderText(text string) (*Header, error) {
	text = strings.TrimRight(text, "\x00")
	h := &Header{}
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		done, err := h.addLine(line, i+1)
		if err != nil {
			return nil, err
		}
		if done {
			return h, nil
		}
	}
	return nil, &ParseError{Line: len(h.Lines), Message: "no #CHROM header line found"}
}

// addLine appends one header line. It reports true once the #CHROM line has
// been seen.
func (h *Header) addLine(line string, lineNumber int) (bool, error) {
	if strings.HasPrefix(line, "##") {
		h.Lines = append(h.Lines, line)
		return false, nil
	}
	if strings.HasPrefix(line, "#CHROM") {
		h.Lines = append(h.Lines, line)
		fields := strings.Split(line, "\t")
		if len(fields) > 9 {
			h.SampleNames = fields[9:]
		}
		return true, nil
	}
	return false, &ParseError{
		Line:    lineNumber,
		Message: "expected #CHROM header line",
	}
}

// Meta returns the structured meta lines with the given key, e.g. "INFO",
// in header order.
func (h *Header) Meta(key string) []MetaLine {
	var out []MetaLine
	prefix := "##" + key + "=<"
	for _, line := range h.Lines {
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		if m, ok := ParseMetaLine(line); ok {
			out = append(out, m)
		}
	}
	return out
}

// Contigs returns contig names in header order.
func (h *Header) Contigs() []string {
	var names []string
	for _, m := range h.Meta("contig") {
		if id := m.ID(); id != "" {
			names = append(names, id)
		}
	}
	return names
}

// Text renders the header as newline-terminated lines.
func (h *Header) Text() string {
	var sb strings.Builder
	for _, line := range h.Lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ParseMetaLine parses a ##KEY=<k=v,...> line. Quoted values may contain
// commas and escaped quotes.
func ParseMetaLine(line string) (MetaLine, bool) {
	if !strings.HasPrefix(line, "##") {
		return MetaLine{}, false
	}
	key, rest, ok := strings.Cut(line[2:], "=")
	if !ok || len(rest) < 2 || rest[0] != '<' || rest[len(rest)-1] != '>' {
		return MetaLine{}, false
	}
	m := MetaLine{Key: key, Fields: make(map[string]string)}
	body := rest[1 : len(rest)-1]

	var (
		k, v    strings.Builder
		inValue bool
		quoted  bool
	)
	flush := func() {
		name := strings.TrimSpace(k.String())
		if name != "" {
			m.Fields[name] = v.String()
			m.Order = append(m.Order, name)
		}
		k.Reset()
		v.Reset()
		inValue = false
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case quoted && c == '\\' && i+1 < len(body):
			i++
			v.WriteByte(body[i])
		case c == '"':
			quoted = !quoted
		case !quoted && c == '=' && !inValue:
			inValue = true
		case !quoted && c == ',':
			flush()
		case inValue:
			v.WriteByte(c)
		default:
			k.WriteByte(c)
		}
	}
	flush()
	return m, true
}
