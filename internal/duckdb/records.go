package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-xcf/internal/vcf"
)

// RecordResult is a stored record together with the query it answered.
type RecordResult struct {
	Source  string
	Region  string
	Seq     int64 // position of the region in the request
	Ord     int64 // position of the record within the region's result
	Variant *vcf.Variant
}

// WriteRecords stores the result of one region query using the Appender
// API. Earlier rows for the same source and region are replaced.
func (s *Store) WriteRecords(source, region string, seq int, records []*vcf.Variant) error {
	if _, err := s.db.Exec("DELETE FROM query_records WHERE source=? AND region=?", source, region); err != nil {
		return fmt.Errorf("replace region results: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "query_records")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for i, v := range records {
		if err := appender.AppendRow(
			source, region, int64(seq), int64(i),
			v.Chrom, v.Pos, v.End(), v.ID, v.Ref, v.Alt,
			v.Qual, v.Filter, v.FormatInfo(), v.SampleColumns,
		); err != nil {
			return fmt.Errorf("append record: %w", err)
		}
	}

	return appender.Flush()
}

// LookupRegion returns the stored records for a region in result order.
func (s *Store) LookupRegion(source, region string) ([]*vcf.Variant, error) {
	results, err := s.query(`WHERE source=? AND region=? ORDER BY ord`, source, region)
	if err != nil {
		return nil, fmt.Errorf("query region: %w", err)
	}
	variants := make([]*vcf.Variant, len(results))
	for i, r := range results {
		variants[i] = r.Variant
	}
	return variants, nil
}

// SearchByID returns every stored record with the given ID.
func (s *Store) SearchByID(id string) ([]RecordResult, error) {
	results, err := s.query(`WHERE id=? ORDER BY source, seq, ord`, id)
	if err != nil {
		return nil, fmt.Errorf("query by id: %w", err)
	}
	return results, nil
}

// CountRecords returns the number of stored records for a source.
func (s *Store) CountRecords(source string) (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT count(*) FROM query_records WHERE source=?", source).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// ClearRecords removes all stored records.
func (s *Store) ClearRecords() error {
	_, err := s.db.Exec("DELETE FROM query_records")
	return err
}

func (s *Store) query(where string, args ...any) ([]RecordResult, error) {
	rows, err := s.db.Query(`SELECT
		source, region, seq, ord,
		chrom, pos, id, ref, alt, qual, filters, info, samples
		FROM query_records `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RecordResult
	for rows.Next() {
		var (
			r    RecordResult
			v    vcf.Variant
			info string
		)
		if err := rows.Scan(
			&r.Source, &r.Region, &r.Seq, &r.Ord,
			&v.Chrom, &v.Pos, &v.ID, &v.Ref, &v.Alt, &v.Qual, &v.Filter, &info, &v.SampleColumns,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		v.Info, v.InfoKeys = vcf.ParseInfo(info)
		r.Variant = &v
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return results, nil
}
