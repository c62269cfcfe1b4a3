package xcf

import (
	"errors"

	"github.com/inodb/vibe-xcf/internal/index"
)

var (
	// ErrUnrecognizedFormat is returned by Detect and Open when the input
	// matches none of the four storage forms.
	ErrUnrecognizedFormat = errors.New("unrecognized variant file format")
	// ErrIndexCorrupt is returned by Open when a companion index exists but
	// cannot be read or does not describe the data file.
	ErrIndexCorrupt = index.ErrCorrupt
	// ErrUnorderedQuery is returned by Query when a region lies behind the
	// stream cursor and the input cannot be repositioned.
	ErrUnorderedQuery = errors.New("region precedes the stream position and the input is not seekable")
	// ErrInvalidRegion is returned for malformed or empty regions.
	ErrInvalidRegion = errors.New("invalid region")
	// ErrStreamActive is returned by Query while a previous stream on the
	// same Reader is still open.
	ErrStreamActive = errors.New("another query stream is active on this reader")
	// ErrClosed is returned when using a closed Reader.
	ErrClosed = errors.New("reader is closed")
	// ErrNotBlockCompressed is returned by BuildIndex for inputs that are not
	// BGZF compressed.
	ErrNotBlockCompressed = errors.New("only BGZF-compressed files can be indexed")
)
