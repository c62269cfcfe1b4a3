package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-xcf/internal/fixture"
)

func TestVCFWriter_Header(t *testing.T) {
	h := fixture.Header("chr1")

	var buf bytes.Buffer
	w := NewVCFWriter(&buf, h)
	w.AddMeta("vibe-xcfQuery=chr1:10-20", "##vibe-xcfPath=indexed")
	if err := w.WriteHeader(); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if lines[0] != "##fileformat=VCFv4.2" {
		t.Errorf("first line = %q, want ##fileformat=VCFv4.2", lines[0])
	}
	n := len(lines)
	if lines[n-3] != "##vibe-xcfQuery=chr1:10-20" || lines[n-2] != "##vibe-xcfPath=indexed" {
		t.Errorf("meta lines not inserted before #CHROM: %q", lines[n-3:n-1])
	}
	if !strings.HasPrefix(lines[n-1], "#CHROM") {
		t.Errorf("last header line = %q, want #CHROM", lines[n-1])
	}
}

func TestVCFWriter_Records(t *testing.T) {
	records := fixture.Sparse()

	var buf bytes.Buffer
	w := NewVCFWriter(&buf, fixture.Header())
	require.NoError(t, w.WriteHeader())
	for _, v := range records {
		require.NoError(t, w.Write(v))
	}
	require.NoError(t, w.Flush())

	assert.Equal(t, fixture.Text(fixture.Header(), records), buf.String())
}

func TestVCFWriter_DropInfo(t *testing.T) {
	records := fixture.Sparse()

	var buf bytes.Buffer
	w := NewVCFWriter(&buf, fixture.Header())
	w.DropInfo("DP")
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write(records[0]))
	require.NoError(t, w.Write(records[2]))
	require.NoError(t, w.Flush())

	out := buf.String()
	assert.NotContains(t, out, "##INFO=<ID=DP,")
	assert.Contains(t, out, "##FORMAT=<ID=DP,")
	assert.Contains(t, out, "chr1\t10\trs10\tA\tC\t50\tPASS\tDB\tGT:DP\t0/1:14\n")
	assert.Contains(t, out, "chr1\t30\trs30\tCT\tC\t.\tq10\t.\tGT:DP\t./.:3\n")

	// The input record is left untouched.
	assert.Equal(t, "14", records[0].Info["DP"])
	assert.Equal(t, []string{"DP", "DB"}, records[0].InfoKeys)
}
