package xcf

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/inodb/vibe-xcf/internal/index"
	"github.com/inodb/vibe-xcf/internal/vcf"
)

// Options configures Open and NewReader.
type Options struct {
	Logger *zap.Logger
	// IndexPath names the index explicitly instead of looking for
	// <path>.csi and <path>.tbi.
	IndexPath string
	// NoIndex skips index discovery; every query scans.
	NoIndex bool
}

// Reader answers region queries against one variant file. It exclusively
// owns the file, the decoder and the loaded index, and serves one Stream
// at a time. A Reader is not safe for concurrent use; open one Reader per
// goroutine instead.
type Reader struct {
	path   string
	file   *os.File // set when the Reader opened the file itself
	form   StorageForm
	caps   Capabilities
	src    source
	idx    *index.Index
	logger *zap.Logger

	// Scan cursor. pending is a record read from src but not yet handed
	// out or skipped; last and seen describe the records consumed so far.
	pending   *vcf.Variant
	exhausted bool
	hasLast   bool
	lastChrom string
	lastPos   int64
	seen      map[string]bool
	// rank orders the declared sequences; unranked is set once the records
	// are seen to leave that order.
	rank     map[string]int
	unranked bool

	active *Stream
	closed bool
}

// Open opens the variant file at path. The path may carry an explicit
// index as "<data>##idx##<index>".
func Open(path string, opts Options) (*Reader, error) {
	dataPath, indexPath := index.SplitPath(path)
	if indexPath != "" && opts.IndexPath == "" {
		opts.IndexPath = indexPath
	}

	f, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("open variant file: %w", err)
	}
	r, err := newReader(f, dataPath, opts)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", dataPath, err)
	}
	r.file = f
	return r, nil
}

// NewReader reads variants from rd. Seeking, and with it index use and
// out-of-order queries, is available when rd is an io.Seeker that can
// report its position. Without a path, an index is only used when
// Options.IndexPath names one.
func NewReader(rd io.Reader, opts Options) (*Reader, error) {
	return newReader(rd, "", opts)
}

func newReader(rd io.Reader, path string, opts Options) (*Reader, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reader{path: path, logger: logger, seen: make(map[string]bool)}

	in, err := sniff(rd)
	if err != nil {
		return nil, err
	}
	r.form, err = Detect(in.head)
	if err != nil {
		return nil, err
	}

	if r.form.Compressed() {
		r.src, err = newBlockSource(in, r.form.Binary())
	} else {
		r.src, err = newPlainSource(in, r.form.Binary())
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", r.form, err)
	}

	contigs := r.src.contigs()
	r.rank = make(map[string]int, len(contigs))
	for i, c := range contigs {
		r.rank[c] = i
	}

	if err := r.detectCapabilities(in, opts); err != nil {
		r.src.close()
		return nil, err
	}

	logger.Debug("opened variant file",
		zap.String("path", path),
		zap.Stringer("form", r.form),
		zap.Bool("seekable", r.caps.Seekable),
		zap.Bool("indexed", r.caps.Indexed))
	return r, nil
}

// detectCapabilities derives the capabilities of the opened input. A missing index only
// leaves the reader unindexed; an unusable one fails the open.
func (r *Reader) detectCapabilities(in *input, opts Options) error {
	r.caps.Seekable = in.seeker != nil
	if r.caps.Seekable && r.form.Compressed() && in.base != 0 {
		// Virtual offsets are absolute file positions.
		r.logger.Debug("block-compressed input does not start at offset 0, disabling seeks",
			zap.Int64("offset", in.base))
		r.caps.Seekable = false
	}

	if !r.form.Compressed() {
		if opts.IndexPath != "" {
			r.logger.Warn("ignoring index for uncompressed input", zap.String("index", opts.IndexPath))
		}
		return nil
	}
	if opts.NoIndex || (r.path == "" && opts.IndexPath == "") {
		return nil
	}

	idx, err := index.Load(r.path, index.LoadOptions{
		Path:     opts.IndexPath,
		Binary:   r.form.Binary(),
		Contigs:  r.src.contigs(),
		DataSize: r.dataSize(in),
		Logger:   r.logger,
	})
	switch {
	case errors.Is(err, index.ErrNotFound):
		r.logger.Debug("no index found", zap.String("path", r.path))
		return nil
	case err != nil:
		return fmt.Errorf("load index: %w", err)
	}

	if !r.caps.Seekable {
		r.logger.Debug("index dropped, input is not seekable", zap.String("index", idx.Path))
		return nil
	}
	r.idx = idx
	r.caps.Indexed = true
	return nil
}

// dataSize returns the size of the underlying data, or 0 when it cannot
// be determined without consuming the input.
func (r *Reader) dataSize(in *input) int64 {
	if r.path != "" {
		if fi, err := os.Stat(r.path); err == nil && fi.Mode().IsRegular() {
			return fi.Size()
		}
	}
	if in.seeker == nil {
		return 0
	}
	cur, err := in.seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	end, err := in.seeker.Seek(0, io.SeekEnd)
	if _, rerr := in.seeker.Seek(cur, io.SeekStart); rerr != nil || err != nil {
		return 0
	}
	return end
}

// Path returns the data path the Reader was opened with, if any.
func (r *Reader) Path() string {
	return r.path
}

// Header returns the file header.
func (r *Reader) Header() *vcf.Header {
	return r.src.header()
}

// Form returns the detected storage form.
func (r *Reader) Form() StorageForm {
	return r.form
}

// Capabilities returns the capabilities detected at open.
func (r *Reader) Capabilities() Capabilities {
	return r.caps
}

// Index returns the loaded index, or nil.
func (r *Reader) Index() *index.Index {
	return r.idx
}

// Query returns the records whose position lies in region, in file order.
// Indexed, seekable inputs are answered by seeking to the index chunks;
// everything else scans forward from the current position, rewinding when
// the region lies behind it and the input allows.
//
// On an input that cannot seek, a scan for a sequence stops at the first
// record on a sequence the header declares after it, so a region on a
// sequence absent from the data leaves later sequences queryable. Such a
// scan assumes records follow the header's contig order until they are
// seen not to. A region on a sequence the header does not declare still
// reads to the end of the data.
func (r *Reader) Query(region Region) (*Stream, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if err := region.Validate(); err != nil {
		return nil, err
	}
	if r.active != nil {
		return nil, ErrStreamActive
	}

	var (
		s   *Stream
		err error
	)
	switch {
	case r.caps.Indexed && r.caps.Seekable:
		s, err = r.indexedQuery(region)
	default:
		s, err = r.scanQuery(region)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Debug("query",
		zap.Stringer("region", region),
		zap.Stringer("path", s.path))
	r.active = s
	return s, nil
}

// Close releases the decoder and the file. Streams still open on the
// Reader end.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.active != nil {
		r.active.Close()
	}
	err := r.src.close()
	if r.file != nil {
		if ferr := r.file.Close(); err == nil {
			err = ferr
		}
	}
	return err
}

// release is called by a Stream when it ends.
func (r *Reader) release(s *Stream) {
	if r.active == s {
		r.active = nil
	}
}
