// Package xcf reads variant records by genomic region from VCF and BCF files
// in any of their four storage forms, with or without a companion index.
//
// A Reader classifies its input once at open, detects whether it can seek
// and whether a usable index exists, and answers each Query through one of
// two strategies: an index lookup followed by seeks, or a forward scan that
// skips records ahead of the region. Both strategies produce the same
// records through a Stream.
package xcf

import "fmt"

// StorageForm is the on-disk representation of a variant file.
type StorageForm int

const (
	TextPlain        StorageForm = iota // uncompressed VCF
	TextCompressed                      // BGZF-compressed VCF
	BinaryCompressed                    // BGZF-compressed BCF
	BinaryPlain                         // uncompressed BCF
)

var formNames = [...]string{
	TextPlain:        "vcf",
	TextCompressed:   "vcf.gz",
	BinaryCompressed: "bcf",
	BinaryPlain:      "ubcf",
}

func (f StorageForm) String() string {
	if f >= 0 && int(f) < len(formNames) {
		return formNames[f]
	}
	return fmt.Sprintf("StorageForm(%d)", int(f))
}

// Compressed reports whether records are stored in BGZF blocks.
func (f StorageForm) Compressed() bool {
	return f == TextCompressed || f == BinaryCompressed
}

// Binary reports whether records are BCF encoded.
func (f StorageForm) Binary() bool {
	return f == BinaryCompressed || f == BinaryPlain
}

// Capabilities records what random access an opened input supports.
// Indexed implies Seekable.
type Capabilities struct {
	Seekable bool
	Indexed  bool
}

// QueryPath names the strategy a Stream was produced by.
type QueryPath int

const (
	PathScan QueryPath = iota
	PathIndexed
)

func (p QueryPath) String() string {
	if p == PathIndexed {
		return "indexed"
	}
	return "scan"
}
