package provider

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

// ParquetRow is the columnar export layout of one doctor.
type ParquetRow struct {
	State                  string  `parquet:"state"`
	Rank                   int32   `parquet:"rank"`
	NPINumber              string  `parquet:"npi_number"`
	Name                   string  `parquet:"name"`
	Specialty              string  `parquet:"specialty"`
	Address                string  `parquet:"address"`
	County                 *string `parquet:"county,optional"`
	TotalWhippleProcedures string  `parquet:"total_whipple_procedures"`
	TotalPancreaticCancer  string  `parquet:"total_pancreatic_cancer"`
	WhippleCount           int64   `parquet:"whipple_count"`
	CancerCount            int64   `parquet:"cancer_count"`
	URL                    string  `parquet:"url"`
}

const parquetFlushInterval = 50_000

// WriteParquet writes every doctor of the catalog to w, bucket by bucket,
// with Rank giving the position inside the state bucket. It returns the
// number of rows written.
func WriteParquet(w io.Writer, cat *Catalog) (int, error) {
	writer := parquet.NewGenericWriter[ParquetRow](w,
		parquet.Compression(&parquet.Snappy),
	)

	count := 0
	for _, state := range cat.keys {
		for i := range cat.buckets[state] {
			d := &cat.buckets[state][i]
			row := ParquetRow{
				State:                  state,
				Rank:                   int32(i + 1),
				NPINumber:              d.NPINumber,
				Name:                   d.Name,
				Specialty:              d.Specialty,
				Address:                d.Address,
				County:                 d.County,
				TotalWhippleProcedures: d.TotalWhippleProcedures,
				TotalPancreaticCancer:  d.TotalPancreaticCancer,
				WhippleCount:           int64(d.WhippleCount()),
				CancerCount:            int64(d.CancerCount()),
				URL:                    d.URL,
			}
			if _, err := writer.Write([]ParquetRow{row}); err != nil {
				return count, fmt.Errorf("failed to write parquet record: %w", err)
			}
			count++

			if count%parquetFlushInterval == 0 {
				if err := writer.Flush(); err != nil {
					return count, fmt.Errorf("failed to flush parquet row group: %w", err)
				}
			}
		}
	}

	if err := writer.Close(); err != nil {
		return count, fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return count, nil
}
