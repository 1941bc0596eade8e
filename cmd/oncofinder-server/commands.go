package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/oncofinder/oncofinder/internal/config"
	"github.com/oncofinder/oncofinder/internal/domain/provider"
	"github.com/oncofinder/oncofinder/internal/geo"
	"github.com/oncofinder/oncofinder/internal/platform/blobstore"
	"github.com/oncofinder/oncofinder/internal/platform/db"
	"github.com/oncofinder/oncofinder/internal/platform/tablefmt"
	"github.com/oncofinder/oncofinder/migrations"
	"github.com/oncofinder/oncofinder/pkg/pagination"
)

// ParquetContentType is the media type used for uploaded exports.
const ParquetContentType = "application/vnd.apache.parquet"

// withDeps loads config, opens shared resources and runs fn. CLI commands
// log to stderr so their stdout stays clean for output.
func withDeps(cmd *cobra.Command, fn func(ctx context.Context, d *deps) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg).Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	d, err := openDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.close()
	return fn(ctx, d)
}

func findCmd() *cobra.Command {
	var (
		state, specialty, county, query string
		page                            int
	)
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Print one page of the directory as a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !provider.IsKnownSpecialty(specialty) {
				return fmt.Errorf("unknown specialty %q", specialty)
			}
			return withDeps(cmd, func(ctx context.Context, d *deps) error {
				sel := provider.NewSelection().
					WithState(resolveState(d.table, state)).
					WithSpecialty(specialty).
					WithCounty(county).
					WithSearch(query).
					WithPage(page)

				svc, err := d.service()
				if err != nil {
					return err
				}
				cat, err := svc.Reload(ctx)
				if err != nil {
					return err
				}
				return printPage(cmd.OutOrStdout(), cat, sel)
			})
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "State name or two-letter postal code")
	cmd.Flags().StringVar(&specialty, "specialty", "", "Surgical Oncology, Radiation Oncology or Medical Oncology")
	cmd.Flags().StringVar(&county, "county", "", "County name")
	cmd.Flags().StringVar(&query, "q", "", "Name search")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	return cmd
}

// resolveState turns a --state value into a bucket key, so "TX", "tx" and
// "texas" all select Texas.
func resolveState(table *geo.Table, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	return table.StateKey(raw)
}

// printPage renders the finder page for sel with a running rank column.
func printPage(w io.Writer, cat *provider.Catalog, sel provider.Selection) error {
	res, _ := provider.Browse(cat, sel)
	if res.Total == 0 {
		_, err := fmt.Fprintln(w, "no providers match")
		return err
	}

	tbl := tablefmt.New("#", "NPI", "Name", "Specialty", "County", "Whipple", "Cancer")
	tbl.MaxCellWidth = 40
	offset := (res.Page - 1) * pagination.PageSize
	for i := range res.Doctors {
		doc := &res.Doctors[i]
		tbl.Append(
			strconv.Itoa(offset+i+1),
			doc.NPINumber,
			doc.Name,
			doc.Specialty,
			doc.CountyName(),
			strconv.Itoa(doc.WhippleCount()),
			strconv.Itoa(doc.CancerCount()),
		)
	}
	if err := tbl.Render(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "page %d of %d, %d providers\n", res.Page, res.TotalPages, res.Total)
	return err
}

func exportCmd() *cobra.Command {
	var out, s3Key string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the normalized directory as Parquet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, func(ctx context.Context, d *deps) error {
				svc, err := d.service()
				if err != nil {
					return err
				}
				cat, err := svc.Reload(ctx)
				if err != nil {
					return err
				}

				if s3Key != "" {
					if d.blobs == nil {
						return errors.New("--s3-key needs DATASET_S3_BUCKET")
					}
					n, err := uploadParquet(ctx, d.blobs, s3Key, cat)
					if err != nil {
						return err
					}
					d.logger.Info().Int("rows", n).Str("key", s3Key).Msg("export uploaded")
					return nil
				}

				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				n, err := provider.WriteParquet(f, cat)
				if cerr := f.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				d.logger.Info().Int("rows", n).Str("file", out).Msg("export written")
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "providers.parquet", "Output file")
	cmd.Flags().StringVar(&s3Key, "s3-key", "", "Upload to this key in DATASET_S3_BUCKET instead of writing a file")
	return cmd
}

func uploadParquet(ctx context.Context, store blobstore.Store, key string, cat *provider.Catalog) (int, error) {
	var buf bytes.Buffer
	n, err := provider.WriteParquet(&buf, cat)
	if err != nil {
		return 0, err
	}
	if err := store.Put(ctx, key, ParquetContentType, &buf); err != nil {
		return 0, fmt.Errorf("upload %s: %w", key, err)
	}
	return n, nil
}

func importCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load the raw dataset into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, func(ctx context.Context, d *deps) error {
				if d.pool == nil {
					return errors.New("import needs DATABASE_URL")
				}

				var src provider.Source
				switch {
				case file != "":
					src = provider.NewFileSource(file)
				case d.cfg.DatasetSource == config.SourcePostgres:
					return errors.New("DATASET_SOURCE is postgres; pass --file or choose another source")
				default:
					var err error
					if src, err = d.source(); err != nil {
						return err
					}
				}

				if _, err := db.NewMigrator(d.pool, migrations.FS).Up(ctx, d.cfg.DBSchema); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				n, err := importRecords(ctx, src, provider.NewRecordStore(d.pool))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d provider record(s).\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Import this JSON file instead of the configured source")
	return cmd
}

// recordWriter is the write side of *provider.RecordStore.
type recordWriter interface {
	Replace(ctx context.Context, records []provider.RawProviderRecord) (int64, error)
}

func importRecords(ctx context.Context, src provider.Source, dst recordWriter) (int64, error) {
	records, err := src.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch dataset: %w", err)
	}
	n, err := dst.Replace(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("store records: %w", err)
	}
	return n, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	var schema string
	cmd.PersistentFlags().StringVar(&schema, "schema", "", "Target schema (default DB_SCHEMA)")

	migrator := func(d *deps) (*db.Migrator, string, error) {
		if d.pool == nil {
			return nil, "", errors.New("migrate needs DATABASE_URL")
		}
		target := schema
		if target == "" {
			target = d.cfg.DBSchema
		}
		return db.NewMigrator(d.pool, migrations.FS), target, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, func(ctx context.Context, d *deps) error {
				m, target, err := migrator(d)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", target)
				count, err := m.Up(ctx, target)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, func(ctx context.Context, d *deps) error {
				m, target, err := migrator(d)
				if err != nil {
					return err
				}
				statuses, err := m.Status(ctx, target)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				return printMigrationStatus(cmd.OutOrStdout(), target, statuses)
			})
		},
	})

	return cmd
}

func printMigrationStatus(w io.Writer, schema string, statuses []db.MigrationStatus) error {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	tbl := tablefmt.New("VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		tbl.Append(strconv.Itoa(s.Version), s.Name, status, appliedAt)
	}
	return tbl.Render(w)
}
