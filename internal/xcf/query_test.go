package xcf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-xcf/internal/fixture"
	"github.com/inodb/vibe-xcf/internal/index"
	"github.com/inodb/vibe-xcf/internal/vcf"
)

// writeIndexed writes records in all four forms and a CSI index next to
// both compressed files.
func writeIndexed(t *testing.T, h *vcf.Header, records []*vcf.Variant) fixture.Files {
	t.Helper()
	files, err := fixture.Write(t.TempDir(), "calls", h, records)
	require.NoError(t, err)
	for _, p := range []string{files.TextCompressed, files.BinaryCompressed} {
		_, err := BuildIndex(p, IndexOptions{Kind: index.CSI})
		require.NoError(t, err)
	}
	return files
}

// opener opens one storage form with one capability combination.
type opener struct {
	name     string
	open     func(t *testing.T) *Reader
	path     QueryPath
	seekable bool
}

func openPath(path string, opts Options) func(t *testing.T) *Reader {
	return func(t *testing.T) *Reader {
		t.Helper()
		r, err := Open(path, opts)
		require.NoError(t, err)
		t.Cleanup(func() { r.Close() })
		return r
	}
}

func openStream(path string) func(t *testing.T) *Reader {
	return func(t *testing.T) *Reader {
		t.Helper()
		f, err := os.Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { f.Close() })
		r, err := NewReader(streamOnly{f}, Options{})
		require.NoError(t, err)
		t.Cleanup(func() { r.Close() })
		return r
	}
}

// openers lists every storage form and capability combination of files.
func openers(files fixture.Files) []opener {
	var out []opener
	for _, f := range files.Named() {
		compressed := f.Path == files.TextCompressed || f.Path == files.BinaryCompressed
		if compressed {
			out = append(out, opener{f.Label + "/indexed", openPath(f.Path, Options{}), PathIndexed, true})
		}
		out = append(out,
			opener{f.Label + "/seekable", openPath(f.Path, Options{NoIndex: true}), PathScan, true},
			opener{f.Label + "/stream", openStream(f.Path), PathScan, false},
		)
	}
	return out
}

func query(t *testing.T, r *Reader, region Region) ([]*vcf.Variant, *Stream) {
	t.Helper()
	s, err := r.Query(region)
	require.NoError(t, err)
	var out []*vcf.Variant
	for {
		v, err := s.Next()
		require.NoError(t, err)
		if v == nil {
			break
		}
		out = append(out, v)
	}
	return out, s
}

func positions(vs []*vcf.Variant) []int64 {
	out := []int64{}
	for _, v := range vs {
		out = append(out, v.Pos)
	}
	return out
}

func TestQuery_RegionBetweenRecords(t *testing.T) {
	records := fixture.Sparse()
	files := writeIndexed(t, fixture.Header(), records)

	for _, o := range openers(files) {
		t.Run(o.name, func(t *testing.T) {
			r := o.open(t)
			assert.Equal(t, o.seekable, r.Capabilities().Seekable)
			assert.Equal(t, o.path == PathIndexed, r.Capabilities().Indexed)

			got, s := query(t, r, Region{"chr1", 15, 35})
			assert.Equal(t, []int64{20, 30}, positions(got))
			assert.Equal(t, fixture.Filter(records, "chr1", 15, 35), got)
			assert.Equal(t, o.path, s.Path())
			assert.Equal(t, 2, s.Stats().Emitted)
		})
	}
}

func TestQuery_CrossFormEquivalence(t *testing.T) {
	contigs := []string{"chr1", "chr2", "chr3"}
	records := fixture.Dense(contigs, 3000, 7)
	files := writeIndexed(t, fixture.Header(contigs...), records)

	// Ascending, so every combination can answer them in one pass.
	regions := []Region{
		{"chr1", 1, 100},
		{"chr1", 5000, 5100},
		{"chr1", 15000, 17000},
		{"chr2", 35, 35},
		{"chr2", 16380, 16400},
		{"chr3", 1, MaxPos},
	}

	for _, o := range openers(files) {
		t.Run(o.name, func(t *testing.T) {
			r := o.open(t)
			for _, region := range regions {
				got, s := query(t, r, region)
				want := fixture.Filter(records, region.Chrom, region.Start, region.End)
				require.NotEmpty(t, want, region.String())
				assert.Equal(t, want, got, region.String())
				assert.Equal(t, o.path, s.Path())
				assert.False(t, s.Stats().Rewound)
			}
		})
	}
}

func TestQuery_IndexAndScanAgree(t *testing.T) {
	contigs := []string{"chr1", "chr2"}
	records := fixture.Dense(contigs, 4000, 5)
	files := writeIndexed(t, fixture.Header(contigs...), records)

	regions := []Region{
		{"chr2", 100, 900},
		{"chr1", 1, 5},
		{"chr1", 7, 13},
		{"chr1", 16000, 16500},
		{"chr2", 19990, MaxPos},
		{"chr1", 1, MaxPos},
		{"chr2", 30000, 40000},
		{"chrM", 1, 100},
	}

	for _, path := range []string{files.TextCompressed, files.BinaryCompressed} {
		indexed, err := Open(path, Options{})
		require.NoError(t, err)
		defer indexed.Close()
		scan, err := Open(path, Options{NoIndex: true})
		require.NoError(t, err)
		defer scan.Close()
		require.True(t, indexed.Capabilities().Indexed)

		for _, region := range regions {
			a, as := query(t, indexed, region)
			b, bs := query(t, scan, region)
			assert.Equal(t, b, a, "%s %s", filepath.Base(path), region)
			assert.Equal(t, PathIndexed, as.Path())
			assert.Equal(t, PathScan, bs.Path())
		}
	}
}

func TestQuery_TabixIndex(t *testing.T) {
	records := fixture.Dense([]string{"chr1", "chr2"}, 2000, 11)
	files, err := fixture.Write(t.TempDir(), "calls", fixture.Header(), records)
	require.NoError(t, err)
	tbi, err := BuildIndex(files.TextCompressed, IndexOptions{Kind: index.Tabix})
	require.NoError(t, err)
	assert.Equal(t, files.TextCompressed+".tbi", tbi)

	r, err := Open(files.TextCompressed, Options{})
	require.NoError(t, err)
	defer r.Close()
	require.True(t, r.Capabilities().Indexed)
	assert.Equal(t, index.Tabix, r.Index().Kind)

	for _, region := range []Region{{"chr1", 15, 35}, {"chr1", 16000, 18000}, {"chr2", 20000, 30000}} {
		got, _ := query(t, r, region)
		assert.Equal(t, fixture.Filter(records, region.Chrom, region.Start, region.End), got, region.String())
	}
}

func TestQuery_SkipCount(t *testing.T) {
	files := writeIndexed(t, fixture.Header(), fixture.Sparse())

	for _, o := range openers(files) {
		if o.path == PathIndexed {
			continue
		}
		t.Run(o.name, func(t *testing.T) {
			r := o.open(t)
			_, s := query(t, r, Region{"chr1", 15, 35})
			assert.Equal(t, 1, s.Stats().Skipped)

			// 40 was read as the lookahead of the previous query and is
			// skipped now, then chr2:5.
			got, s := query(t, r, Region{"chr2", 10, 20})
			assert.Equal(t, []int64{15}, positions(got))
			assert.Equal(t, 2, s.Stats().Skipped)
		})
	}

	r, err := Open(files.TextCompressed, Options{NoIndex: true})
	require.NoError(t, err)
	defer r.Close()
	_, s := query(t, r, Region{"chr2", 10, 20})
	assert.Equal(t, 5, s.Stats().Skipped, "four chr1 records and chr2:5 precede the region")
}

func TestQuery_Ordering(t *testing.T) {
	files := writeIndexed(t, fixture.Header(), fixture.Sparse())

	for _, o := range openers(files) {
		t.Run(o.name, func(t *testing.T) {
			r := o.open(t)

			got, _ := query(t, r, Region{"chr1", 15, 25})
			assert.Equal(t, []int64{20}, positions(got))

			// 30 stopped the previous query and must not be lost.
			got, _ = query(t, r, Region{"chr1", 30, 30})
			assert.Equal(t, []int64{30}, positions(got))

			got, _ = query(t, r, Region{"chr2", 1, 100})
			assert.Equal(t, []int64{5, 15}, positions(got))

			s, err := r.Query(Region{"chr1", 1, 15})
			if !o.seekable {
				assert.ErrorIs(t, err, ErrUnorderedQuery)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			got, err = s.Collect()
			require.NoError(t, err)
			assert.Equal(t, []int64{10}, positions(got))
			if o.path == PathScan {
				assert.True(t, s.Stats().Rewound)
			}
		})
	}
}

func TestQuery_AbsentSequence(t *testing.T) {
	// chrM is declared between the two sequences that hold records.
	files := writeIndexed(t, fixture.Header("chr1", "chrM", "chr2"), fixture.Sparse())

	for _, o := range openers(files) {
		t.Run(o.name, func(t *testing.T) {
			r := o.open(t)

			got, _ := query(t, r, Region{"chr1", 15, 25})
			assert.Equal(t, []int64{20}, positions(got))

			got, s := query(t, r, Region{"chrM", 1, 100})
			assert.Empty(t, got)
			if !o.seekable {
				assert.Equal(t, 2, s.Stats().Skipped, "the scan stops at chr2:5")
			}

			got, _ = query(t, r, Region{"chr2", 1, 100})
			assert.Equal(t, []int64{5, 15}, positions(got))
		})
	}
}

func TestQuery_UndeclaredSequenceOnStream(t *testing.T) {
	files := writeIndexed(t, fixture.Header(), fixture.Sparse())
	r := openStream(files.TextPlain)(t)

	got, s := query(t, r, Region{"chrUn", 1, 100})
	assert.Empty(t, got)
	assert.Equal(t, 6, s.Stats().Skipped)

	_, err := r.Query(Region{"chr2", 1, 100})
	assert.ErrorIs(t, err, ErrUnorderedQuery)
}

func TestQuery_RepeatedRegionRewinds(t *testing.T) {
	files := writeIndexed(t, fixture.Header(), fixture.Sparse())

	r, err := Open(files.BinaryPlain, Options{})
	require.NoError(t, err)
	defer r.Close()

	for i := 0; i < 3; i++ {
		got, s := query(t, r, Region{"chr1", 15, 35})
		assert.Equal(t, []int64{20, 30}, positions(got))
		assert.Equal(t, i > 0, s.Stats().Rewound)
	}
}

func TestQuery_EmptyRegions(t *testing.T) {
	files := writeIndexed(t, fixture.Header(), fixture.Sparse())

	for _, o := range openers(files) {
		t.Run(o.name, func(t *testing.T) {
			r := o.open(t)
			for _, region := range []Region{
				{"chr1", 11, 19},
				{"chr1", 1000, 2000},
				{"chr2", 16, MaxPos},
				{"chrX", 1, 100},
			} {
				got, s := query(t, r, region)
				assert.Empty(t, got, region.String())
				assert.Equal(t, 0, s.Stats().Emitted)
			}
		})
	}
}

func TestQuery_SamePositionKeepsFileOrder(t *testing.T) {
	records := fixture.Dense([]string{"chr1"}, 10, 10)
	require.Equal(t, records[3].Pos, records[4].Pos)
	files := writeIndexed(t, fixture.Header("chr1"), records)

	for _, o := range openers(files) {
		t.Run(o.name, func(t *testing.T) {
			r := o.open(t)
			got, _ := query(t, r, Region{"chr1", records[3].Pos, records[3].Pos})
			require.Len(t, got, 2)
			assert.Equal(t, "v3", got[0].ID)
			assert.Equal(t, "v4", got[1].ID)
		})
	}
}

func TestQuery_StreamExclusive(t *testing.T) {
	files := writeIndexed(t, fixture.Header(), fixture.Sparse())

	for _, o := range openers(files) {
		t.Run(o.name, func(t *testing.T) {
			r := o.open(t)

			s, err := r.Query(Region{"chr1", 1, 100})
			require.NoError(t, err)
			_, err = r.Query(Region{"chr2", 1, 100})
			assert.ErrorIs(t, err, ErrStreamActive)

			v, err := s.Next()
			require.NoError(t, err)
			assert.Equal(t, int64(10), v.Pos)
			require.NoError(t, s.Close())

			v, err = s.Next()
			require.NoError(t, err)
			assert.Nil(t, v, "a closed stream stays ended")

			// The abandoned stream leaves the reader usable.
			got, _ := query(t, r, Region{"chr2", 1, 100})
			assert.Equal(t, []int64{5, 15}, positions(got))
		})
	}
}

func TestStream_RecordsBreakReleasesReader(t *testing.T) {
	files := writeIndexed(t, fixture.Header(), fixture.Sparse())
	r, err := Open(files.TextCompressed, Options{})
	require.NoError(t, err)
	defer r.Close()

	s, err := r.Query(Region{"chr1", 1, MaxPos})
	require.NoError(t, err)
	n := 0
	for v, err := range s.Records() {
		require.NoError(t, err)
		require.NotNil(t, v)
		n++
		break
	}
	assert.Equal(t, 1, n)

	all, err := r.Query(Region{"chr1", 1, MaxPos})
	require.NoError(t, err)
	got, err := all.Collect()
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30, 40}, positions(got))
}

func TestQuery_InvalidRegion(t *testing.T) {
	files := writeIndexed(t, fixture.Header(), fixture.Sparse())
	r, err := Open(files.TextPlain, Options{})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Query(Region{"chr1", 30, 20})
	assert.ErrorIs(t, err, ErrInvalidRegion)
	_, err = r.Query(Region{"", 1, 2})
	assert.ErrorIs(t, err, ErrInvalidRegion)
}

func TestReader_Closed(t *testing.T) {
	files := writeIndexed(t, fixture.Header(), fixture.Sparse())
	r, err := Open(files.BinaryCompressed, Options{})
	require.NoError(t, err)

	s, err := r.Query(Region{"chr1", 1, 100})
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	v, err := s.Next()
	assert.NoError(t, err)
	assert.Nil(t, v)

	_, err = r.Query(Region{"chr1", 1, 100})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpen_Header(t *testing.T) {
	files := writeIndexed(t, fixture.Header(), fixture.Sparse())
	for _, f := range files.Named() {
		t.Run(f.Label, func(t *testing.T) {
			r, err := Open(f.Path, Options{})
			require.NoError(t, err)
			defer r.Close()
			assert.Equal(t, []string{"chr1", "chr2"}, r.Header().Contigs())
			assert.Equal(t, []string{"S1"}, r.Header().SampleNames)
			assert.Equal(t, f.Path, r.Path())
		})
	}
}

func TestOpen_Unrecognized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0644))
	_, err := Open(path, Options{})
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)

	_, err = Open(filepath.Join(t.TempDir(), "missing.vcf"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_CorruptIndex(t *testing.T) {
	files := writeIndexed(t, fixture.Header(), fixture.Sparse())

	for _, path := range []string{files.TextCompressed, files.BinaryCompressed} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			require.NoError(t, os.WriteFile(path+".csi", []byte("not an index"), 0644))
			_, err := Open(path, Options{})
			assert.ErrorIs(t, err, ErrIndexCorrupt)

			require.NoError(t, os.Remove(path+".csi"))
			r, err := Open(path, Options{})
			require.NoError(t, err)
			defer r.Close()
			assert.False(t, r.Capabilities().Indexed)
			assert.True(t, r.Capabilities().Seekable)

			got, s := query(t, r, Region{"chr1", 15, 35})
			assert.Equal(t, []int64{20, 30}, positions(got))
			assert.Equal(t, PathScan, s.Path())
		})
	}
}

func TestOpen_MismatchedIndex(t *testing.T) {
	files := writeIndexed(t, fixture.Header(), fixture.Sparse())

	// A tabix index cannot describe BCF.
	tbi, err := BuildIndex(files.TextCompressed, IndexOptions{Kind: index.Tabix})
	require.NoError(t, err)
	_, err = Open(files.BinaryCompressed, Options{IndexPath: tbi})
	assert.ErrorIs(t, err, ErrIndexCorrupt)

	// A BCF index carries no names for VCF.
	_, err = Open(files.TextCompressed, Options{IndexPath: files.BinaryCompressed + ".csi"})
	assert.ErrorIs(t, err, ErrIndexCorrupt)
}

// copyIndex places the CSI index of from next to to.
func copyIndex(t *testing.T, from, to string) {
	t.Helper()
	data, err := os.ReadFile(from + ".csi")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(to+".csi", data, 0o644))
}

func TestOpen_IndexForOtherSequences(t *testing.T) {
	chr1 := writeIndexed(t, fixture.Header(), fixture.Sparse())
	chrA, err := fixture.Write(t.TempDir(), "other", fixture.Header("chrA"),
		fixture.Dense([]string{"chrA"}, 10, 100))
	require.NoError(t, err)
	copyIndex(t, chr1.TextCompressed, chrA.TextCompressed)

	_, err = Open(chrA.TextCompressed, Options{})
	assert.ErrorIs(t, err, ErrIndexCorrupt)

	// Scanning without the index still finds every record.
	r, err := Open(chrA.TextCompressed, Options{NoIndex: true})
	require.NoError(t, err)
	defer r.Close()
	got, _ := query(t, r, Region{"chrA", 1, 1000})
	assert.Len(t, got, 10)
}

func TestOpen_IndexFromLargerFile(t *testing.T) {
	large := writeIndexed(t, fixture.Header(), fixture.Dense([]string{"chr1", "chr2"}, 20000, 10))
	small, err := fixture.Write(t.TempDir(), "small", fixture.Header(), fixture.Sparse())
	require.NoError(t, err)

	for _, pair := range [][2]string{
		{large.TextCompressed, small.TextCompressed},
		{large.BinaryCompressed, small.BinaryCompressed},
	} {
		t.Run(filepath.Base(pair[1]), func(t *testing.T) {
			copyIndex(t, pair[0], pair[1])
			_, err := Open(pair[1], Options{})
			assert.ErrorIs(t, err, ErrIndexCorrupt)

			f, err := os.Open(pair[1])
			require.NoError(t, err)
			defer f.Close()
			_, err = NewReader(f, Options{IndexPath: pair[1] + ".csi"})
			assert.ErrorIs(t, err, ErrIndexCorrupt)
		})
	}
}

func TestOpen_ExplicitIndexPath(t *testing.T) {
	files := writeIndexed(t, fixture.Header(), fixture.Sparse())
	moved := filepath.Join(t.TempDir(), "elsewhere.csi")
	require.NoError(t, os.Rename(files.BinaryCompressed+".csi", moved))

	r, err := Open(files.BinaryCompressed, Options{})
	require.NoError(t, err)
	assert.False(t, r.Capabilities().Indexed)
	r.Close()

	r, err = Open(files.BinaryCompressed+index.IndexSeparator+moved, Options{})
	require.NoError(t, err)
	defer r.Close()
	assert.True(t, r.Capabilities().Indexed)
	assert.Equal(t, moved, r.Index().Path)
	assert.Equal(t, files.BinaryCompressed, r.Path())

	got, _ := query(t, r, Region{"chr2", 1, 10})
	assert.Equal(t, []int64{5}, positions(got))

	_, err = Open(files.BinaryCompressed, Options{IndexPath: moved + ".missing"})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_IndexDroppedWithoutSeek(t *testing.T) {
	files := writeIndexed(t, fixture.Header(), fixture.Sparse())

	f, err := os.Open(files.TextCompressed)
	require.NoError(t, err)
	defer f.Close()

	r, err := NewReader(streamOnly{f}, Options{IndexPath: files.TextCompressed + ".csi"})
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, Capabilities{Seekable: false, Indexed: false}, r.Capabilities())

	got, s := query(t, r, Region{"chr1", 15, 35})
	assert.Equal(t, []int64{20, 30}, positions(got))
	assert.Equal(t, PathScan, s.Path())
}

func TestOpen_SeekableReaderWithIndex(t *testing.T) {
	files := writeIndexed(t, fixture.Header(), fixture.Sparse())

	f, err := os.Open(files.BinaryCompressed)
	require.NoError(t, err)
	defer f.Close()

	r, err := NewReader(f, Options{IndexPath: files.BinaryCompressed + ".csi"})
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, Capabilities{Seekable: true, Indexed: true}, r.Capabilities())
}

func TestOpen_StaleIndexStillUsed(t *testing.T) {
	files := writeIndexed(t, fixture.Header(), fixture.Sparse())
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(files.TextCompressed+".csi", old, old))

	r, err := Open(files.TextCompressed, Options{})
	require.NoError(t, err)
	defer r.Close()
	assert.True(t, r.Capabilities().Indexed)
	assert.True(t, r.Index().Stale)
}
