package duckdb

import (
	"fmt"
	"time"

	"github.com/inodb/vibe-xcf/internal/index"
)

// Source describes a file whose query results are stored.
type Source struct {
	Path    string
	Form    string
	Size    int64
	ModTime time.Time
}

// RecordSource registers the fingerprint of a queried file. A file that
// changed since it was last recorded has its stored records dropped.
func (s *Store) RecordSource(fp index.FileFingerprint, form string) error {
	current, err := s.SourceCurrent(fp)
	if err != nil {
		return err
	}
	if current {
		return nil
	}
	if err := s.ClearSource(fp.Path); err != nil {
		return err
	}
	if _, err := s.db.Exec(`INSERT INTO query_sources (path, form, size, mod_time_ns) VALUES (?, ?, ?, ?)`,
		fp.Path, form, fp.Size, fp.ModTime.UnixNano()); err != nil {
		return fmt.Errorf("record source: %w", err)
	}
	return nil
}

// SourceCurrent reports whether the stored fingerprint for fp.Path matches.
func (s *Store) SourceCurrent(fp index.FileFingerprint) (bool, error) {
	var n int64
	err := s.db.QueryRow(`SELECT count(*) FROM query_sources WHERE path=? AND size=? AND mod_time_ns=?`,
		fp.Path, fp.Size, fp.ModTime.UnixNano()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check source: %w", err)
	}
	return n > 0, nil
}

// ClearSource removes a source and all of its stored records.
func (s *Store) ClearSource(path string) error {
	if _, err := s.db.Exec("DELETE FROM query_records WHERE source=?", path); err != nil {
		return fmt.Errorf("clear source records: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM query_sources WHERE path=?", path); err != nil {
		return fmt.Errorf("clear source: %w", err)
	}
	return nil
}

// Sources lists the recorded sources ordered by path.
func (s *Store) Sources() ([]Source, error) {
	rows, err := s.db.Query("SELECT path, form, size, mod_time_ns FROM query_sources ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var (
			src Source
			ns  int64
		)
		if err := rows.Scan(&src.Path, &src.Form, &src.Size, &ns); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		src.ModTime = time.Unix(0, ns)
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return sources, nil
}
