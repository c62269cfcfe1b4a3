package vcf

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVCF = "##fileformat=VCFv4.2\n" +
	"##contig=<ID=chr1,length=1000>\n" +
	"##contig=<ID=chr2>\n" +
	"##INFO=<ID=DP,Number=1,Type=Integer,Description=\"Total depth, all samples\">\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n" +
	"chr1\t10\trs1\tA\tC\t50\tPASS\tDP=10;DB\tGT\t0/1\n" +
	"\n" +
	"chr1\t20\t.\tG\tT,A\t.\t.\t.\tGT\t1|2\n" +
	"chr2\t5\t.\tC\tG\t.\tq10\tDP=3"

func newTestDecoder(t *testing.T, text string) *Decoder {
	t.Helper()
	d, err := NewDecoder(bufio.NewReader(strings.NewReader(text)))
	require.NoError(t, err)
	return d
}

func TestDecoder_Header(t *testing.T) {
	d := newTestDecoder(t, testVCF)

	h := d.Header()
	require.Len(t, h.Lines, 5)
	assert.Equal(t, "##fileformat=VCFv4.2", h.Lines[0])
	assert.True(t, strings.HasPrefix(h.Lines[4], "#CHROM"))
	assert.Equal(t, []string{"S1"}, h.SampleNames)
	assert.Equal(t, []string{"chr1", "chr2"}, h.Contigs())
	assert.Equal(t, 5, d.LineNumber())
	assert.Equal(t, int64(strings.Index(testVCF, "chr1\t10")), d.DataOffset())
}

func TestDecoder_Records(t *testing.T) {
	d := newTestDecoder(t, testVCF)

	v, err := d.Next()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "chr1", v.Chrom)
	assert.Equal(t, int64(10), v.Pos)
	assert.Equal(t, "rs1", v.ID)
	assert.Equal(t, 50.0, v.Qual)
	assert.Equal(t, "10", v.Info["DP"])
	assert.Equal(t, true, v.Info["DB"])
	assert.Equal(t, []string{"DP", "DB"}, v.InfoKeys)
	assert.Equal(t, "GT\t0/1", v.SampleColumns)

	// The blank line is skipped.
	v, err = d.Next()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, int64(20), v.Pos)
	assert.Equal(t, "T,A", v.Alt)
	assert.Empty(t, v.Info)

	// Last line has no trailing newline.
	v, err = d.Next()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "chr2", v.Chrom)
	assert.Equal(t, "q10", v.Filter)

	v, err = d.Next()
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, int64(len(testVCF)), d.Offset())
}

func TestDecoder_Reset(t *testing.T) {
	d := newTestDecoder(t, testVCF)
	for {
		v, err := d.Next()
		require.NoError(t, err)
		if v == nil {
			break
		}
	}

	off := d.DataOffset()
	d.Reset(bufio.NewReader(strings.NewReader(testVCF[off:])), off)
	assert.Equal(t, 5, d.LineNumber())

	v, err := d.Next()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, int64(10), v.Pos)
}

func TestDecoder_Errors(t *testing.T) {
	header := "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"

	tests := []struct {
		name string
		text string
		msg  string
	}{
		{"missing chrom line", "##fileformat=VCFv4.2\n", "no #CHROM header line found"},
		{"data before chrom line", "##fileformat=VCFv4.2\nchr1\t1\n", "expected #CHROM header line"},
		{"too few columns", header + "chr1\t10\t.\tA\n", "expected at least 8 columns, found 4"},
		{"bad position", header + "chr1\tx\t.\tA\tC\t.\t.\t.\n", "invalid position: x"},
		{"bad quality", header + "chr1\t1\t.\tA\tC\tq\t.\t.\n", "invalid quality: q"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDecoder(bufio.NewReader(strings.NewReader(tt.text)))
			if err == nil {
				_, err = d.Next()
			}
			require.Error(t, err)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.msg, perr.Message)
		})
	}
}

func TestParseError(t *testing.T) {
	err := &ParseError{Line: 42, Message: "expected 8 columns, found 7"}
	assert.Equal(t, "vcf parse error at line 42: expected 8 columns, found 7", err.Error())

	err = &ParseError{Message: "invalid position: x"}
	assert.Equal(t, "vcf parse error: invalid position: x", err.Error())
}

func TestParseMetaLine(t *testing.T) {
	m, ok := ParseMetaLine(`##INFO=<ID=DP,Number=1,Type=Integer,Description="Depth, \"raw\"">`)
	require.True(t, ok)
	assert.Equal(t, "INFO", m.Key)
	assert.Equal(t, "DP", m.ID())
	assert.Equal(t, "Integer", m.Fields["Type"])
	assert.Equal(t, `Depth, "raw"`, m.Fields["Description"])
	assert.Equal(t, []string{"ID", "Number", "Type", "Description"}, m.Order)

	_, ok = ParseMetaLine("##fileformat=VCFv4.2")
	assert.False(t, ok)
}

func TestParseHeaderText(t *testing.T) {
	h, err := ParseHeaderText("##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n\x00")
	require.NoError(t, err)
	assert.Len(t, h.Lines, 2)
	assert.Equal(t, "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n", h.Text())

	_, err = ParseHeaderText("##fileformat=VCFv4.2\n")
	require.Error(t, err)
}
