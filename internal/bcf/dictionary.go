// Package bcf decodes BCF2 binary variant files into vcf.Variant values.
package bcf

import (
	"strconv"

	"github.com/inodb/vibe-xcf/internal/vcf"
)

// Magic is the five-byte signature that opens every BCF 2.x stream.
var Magic = []byte{'B', 'C', 'F', 2, 2}

// Dictionary maps the integer keys stored in BCF records to header IDs.
// Index 0 of the string dictionary is always PASS.
type Dictionary struct {
	Strings []string
	Contigs []string

	stringIdx   map[string]int
	contigIdx   map[string]int
	infoTypes   map[string]string
	formatTypes map[string]string
}

// NewDictionary builds the string and contig dictionaries for h. IDX=
// attributes are honored; otherwise IDs are numbered in header order.
func NewDictionary(h *vcf.Header) *Dictionary {
	d := &Dictionary{
		stringIdx:   make(map[string]int),
		contigIdx:   make(map[string]int),
		infoTypes:   make(map[string]string),
		formatTypes: make(map[string]string),
	}
	d.Strings, d.stringIdx = place(d.Strings, d.stringIdx, "PASS", -1)

	for _, line := range h.Lines {
		m, ok := vcf.ParseMetaLine(line)
		if !ok || m.ID() == "" {
			continue
		}
		idx := -1
		if s, ok := m.Fields["IDX"]; ok {
			if n, err := strconv.Atoi(s); err == nil && n >= 0 {
				idx = n
			}
		}
		switch m.Key {
		case "contig":
			d.Contigs, d.contigIdx = place(d.Contigs, d.contigIdx, m.ID(), idx)
		case "INFO":
			d.infoTypes[m.ID()] = m.Fields["Type"]
			d.Strings, d.stringIdx = place(d.Strings, d.stringIdx, m.ID(), idx)
		case "FORMAT":
			d.formatTypes[m.ID()] = m.Fields["Type"]
			d.Strings, d.stringIdx = place(d.Strings, d.stringIdx, m.ID(), idx)
		case "FILTER":
			d.Strings, d.stringIdx = place(d.Strings, d.stringIdx, m.ID(), idx)
		}
	}
	return d
}

// place puts id at idx, or appends it when idx is negative. IDs already
// present keep their first slot.
func place(list []string, index map[string]int, id string, idx int) ([]string, map[string]int) {
	if _, ok := index[id]; ok {
		return list, index
	}
	if idx < 0 {
		idx = len(list)
	}
	for len(list) <= idx {
		list = append(list, "")
	}
	list[idx] = id
	index[id] = idx
	return list, index
}

// String returns the header ID stored at dictionary key i.
func (d *Dictionary) String(i int) (string, bool) {
	if i < 0 || i >= len(d.Strings) || d.Strings[i] == "" {
		return "", false
	}
	return d.Strings[i], true
}

// StringID returns the dictionary key of a FILTER, INFO or FORMAT ID.
func (d *Dictionary) StringID(id string) (int, bool) {
	i, ok := d.stringIdx[id]
	return i, ok
}

// Contig returns the contig name for a CHROM key.
func (d *Dictionary) Contig(i int) (string, bool) {
	if i < 0 || i >= len(d.Contigs) || d.Contigs[i] == "" {
		return "", false
	}
	return d.Contigs[i], true
}

// ContigID returns the CHROM key for a contig name.
func (d *Dictionary) ContigID(name string) (int, bool) {
	i, ok := d.contigIdx[name]
	return i, ok
}

// InfoType returns the declared Type of an INFO field.
func (d *Dictionary) InfoType(id string) string {
	return d.infoTypes[id]
}

// FormatType returns the declared Type of a FORMAT field.
func (d *Dictionary) FormatType(id string) string {
	return d.formatTypes[id]
}
