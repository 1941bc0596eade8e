package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// RecordStore persists raw provider records in the provider_records table.
// Insertion order is preserved through the serial id so that a reload
// reproduces the upstream order.
type RecordStore struct {
	pool *pgxpool.Pool
}

func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

var recordColumns = []string{
	"npi_number", "provider_name", "primary_hcp_segment", "affiliated_hco",
	"city", "county", "state", "zip_code",
	"total_whipple_procedures", "total_pancreatic_cancer", "url",
}

const recordCols = `npi_number, provider_name, primary_hcp_segment, affiliated_hco,
	city, county, state, zip_code,
	total_whipple_procedures, total_pancreatic_cancer, url`

func scanRecords(rows pgx.Rows) ([]RawProviderRecord, error) {
	defer rows.Close()
	records := []RawProviderRecord{}
	for rows.Next() {
		var r RawProviderRecord
		if err := rows.Scan(&r.NPINumber, &r.ProviderName, &r.PrimaryHCPSegment, &r.AffiliatedHCO,
			&r.City, &r.County, &r.State, &r.ZipCode,
			&r.TotalWhippleProcedures, &r.TotalPancreaticCancer, &r.URL); err != nil {
			return nil, fmt.Errorf("scan provider record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider records: %w", err)
	}
	return records, nil
}

func (s *RecordStore) list(ctx context.Context, q queryable) ([]RawProviderRecord, error) {
	rows, err := q.Query(ctx, `SELECT `+recordCols+` FROM provider_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query provider records: %w", err)
	}
	return scanRecords(rows)
}

// Fetch implements Source.
func (s *RecordStore) Fetch(ctx context.Context) ([]RawProviderRecord, error) {
	return s.list(ctx, s.pool)
}

// Raw implements Source by re-encoding the stored rows as a JSON array.
func (s *RecordStore) Raw(ctx context.Context) ([]byte, error) {
	records, err := s.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(records)
}

// Replace swaps the stored dataset for records in one transaction and
// returns the number of rows written.
func (s *RecordStore) Replace(ctx context.Context, records []RawProviderRecord) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM provider_records`); err != nil {
		return 0, fmt.Errorf("clear provider records: %w", err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"provider_records"}, recordColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			return []any{
				string(r.NPINumber), string(r.ProviderName), string(r.PrimaryHCPSegment), string(r.AffiliatedHCO),
				string(r.City), string(r.County), string(r.State), string(r.ZipCode),
				string(r.TotalWhippleProcedures), string(r.TotalPancreaticCancer), string(r.URL),
			}, nil
		}))
	if err != nil {
		return 0, fmt.Errorf("copy provider records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit provider records: %w", err)
	}
	return n, nil
}

// Count returns the number of stored records.
func (s *RecordStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM provider_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count provider records: %w", err)
	}
	return n, nil
}
