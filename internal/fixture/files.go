package fixture

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/biogo/hts/bgzf"

	"github.com/inodb/vibe-xcf/internal/vcf"
)

// Files holds one path per storage form of the same record set.
type Files struct {
	TextPlain        string // name.vcf
	TextCompressed   string // name.vcf.gz
	BinaryCompressed string // name.bcf
	BinaryPlain      string // name.ubcf
}

// Named lists the files with a short label each, in a stable order.
func (f Files) Named() []struct{ Label, Path string } {
	return []struct{ Label, Path string }{
		{"text-plain", f.TextPlain},
		{"text-compressed", f.TextCompressed},
		{"binary-compressed", f.BinaryCompressed},
		{"binary-plain", f.BinaryPlain},
	}
}

// Write renders records in all four storage forms under dir.
func Write(dir, name string, h *vcf.Header, records []*vcf.Variant) (Files, error) {
	files := Files{
		TextPlain:        filepath.Join(dir, name+".vcf"),
		TextCompressed:   filepath.Join(dir, name+".vcf.gz"),
		BinaryCompressed: filepath.Join(dir, name+".bcf"),
		BinaryPlain:      filepath.Join(dir, name+".ubcf"),
	}

	text := []byte(Text(h, records))
	var binary bytes.Buffer
	if err := EncodeBCF(&binary, h, records); err != nil {
		return Files{}, err
	}

	if err := os.WriteFile(files.TextPlain, text, 0644); err != nil {
		return Files{}, err
	}
	if err := os.WriteFile(files.BinaryPlain, binary.Bytes(), 0644); err != nil {
		return Files{}, err
	}
	if err := WriteBGZF(files.TextCompressed, bytes.NewReader(text)); err != nil {
		return Files{}, err
	}
	if err := WriteBGZF(files.BinaryCompressed, bytes.NewReader(binary.Bytes())); err != nil {
		return Files{}, err
	}
	return files, nil
}

// WriteBGZF compresses r into a BGZF file at path.
func WriteBGZF(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bgzf.NewWriter(f, 1)
	if _, err := io.Copy(bw, r); err != nil {
		bw.Close()
		f.Close()
		return fmt.Errorf("compress %s: %w", path, err)
	}
	if err := bw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("compress %s: %w", path, err)
	}
	return f.Close()
}
