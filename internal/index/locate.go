package index

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

// IndexSeparator joins a data path and an explicit index path in a single
// argument, as in "calls.vcf.gz##idx##calls.vcf.gz.csi".
const IndexSeparator = "##idx##"

// SplitPath separates a "<data>##idx##<index>" argument. Paths without the
// separator are returned unchanged with an empty index path.
func SplitPath(p string) (data, index string) {
	data, index, _ = strings.Cut(p, IndexSeparator)
	return data, index
}

// Candidates returns the companion index paths tried for dataPath, in
// order of preference.
func Candidates(dataPath string) []string {
	return []string{dataPath + ".csi", dataPath + ".tbi"}
}

// Locate returns the index path for dataPath. An explicit path must exist;
// otherwise the first existing candidate wins and ErrNotFound is returned
// when there is none.
func Locate(dataPath, explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("index %s: %w", explicit, err)
		}
		return explicit, nil
	}
	for _, p := range Candidates(dataPath) {
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat index %s: %w", p, err)
		}
	}
	return "", ErrNotFound
}

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// IsStale reports whether the index file was last written before the data
// file it indexes.
func IsStale(indexPath, dataPath string) (bool, error) {
	idx, err := StatFile(indexPath)
	if err != nil {
		return false, err
	}
	data, err := StatFile(dataPath)
	if err != nil {
		return false, err
	}
	return idx.ModTime.Before(data.ModTime), nil
}
