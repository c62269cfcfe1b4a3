package xcf

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-xcf/internal/fixture"
)

// streamOnly hides every method but Read, like a pipe.
type streamOnly struct {
	io.Reader
}

func TestDetect_AllForms(t *testing.T) {
	files, err := fixture.Write(t.TempDir(), "sparse", fixture.Header(), fixture.Sparse())
	require.NoError(t, err)

	want := map[string]StorageForm{
		files.TextPlain:        TextPlain,
		files.TextCompressed:   TextCompressed,
		files.BinaryCompressed: BinaryCompressed,
		files.BinaryPlain:      BinaryPlain,
	}
	for path, form := range want {
		t.Run(form.String(), func(t *testing.T) {
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			got, err := Detect(data[:min(len(data), sniffLen)])
			require.NoError(t, err)
			assert.Equal(t, form, got)
		})
	}
}

func TestDetect_Unrecognized(t *testing.T) {
	var plainGzip bytes.Buffer
	zw := gzip.NewWriter(&plainGzip)
	_, err := zw.Write([]byte("##fileformat=VCFv4.2\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("chr1\t10\t.\tA\tC\t.\t.\t.\n")},
		{"gzip without bgzf framing", plainGzip.Bytes()},
		{"truncated gzip header", []byte{0x1f, 0x8b, 8, 4}},
		{"bam", []byte("BAM\x01")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Detect(tt.data)
			assert.ErrorIs(t, err, ErrUnrecognizedFormat)
		})
	}
}

func TestDetect_HeaderWithoutFileformat(t *testing.T) {
	form, err := Detect([]byte("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"))
	require.NoError(t, err)
	assert.Equal(t, TextPlain, form)
}

func TestSniff_Seekable(t *testing.T) {
	data := "junk" + fixture.Text(fixture.Header(), fixture.Sparse())
	rs := strings.NewReader(data)
	_, err := rs.Seek(4, io.SeekStart)
	require.NoError(t, err)

	in, err := sniff(rs)
	require.NoError(t, err)
	assert.NotNil(t, in.seeker)
	assert.Equal(t, int64(4), in.base)
	assert.Equal(t, data[4:], string(in.head))

	rest, err := io.ReadAll(in.r)
	require.NoError(t, err)
	assert.Equal(t, data[4:], string(rest), "sniffing must not consume input")
}

func TestSniff_Stream(t *testing.T) {
	data := fixture.Text(fixture.Header(), fixture.Dense([]string{"chr1"}, 3000, 3))
	require.Greater(t, len(data), sniffLen)

	in, err := sniff(streamOnly{strings.NewReader(data)})
	require.NoError(t, err)
	assert.Nil(t, in.seeker)
	assert.Len(t, in.head, sniffLen)

	rest, err := io.ReadAll(in.r)
	require.NoError(t, err)
	assert.Equal(t, data, string(rest))
}

func TestStorageForm(t *testing.T) {
	assert.True(t, TextCompressed.Compressed())
	assert.True(t, BinaryCompressed.Compressed())
	assert.False(t, TextPlain.Compressed())
	assert.False(t, BinaryPlain.Compressed())

	assert.True(t, BinaryPlain.Binary())
	assert.False(t, TextCompressed.Binary())

	assert.Equal(t, "vcf.gz", TextCompressed.String())
	assert.Equal(t, "StorageForm(9)", StorageForm(9).String())
	assert.Equal(t, "indexed", PathIndexed.String())
	assert.Equal(t, "scan", PathScan.String())
}
