package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/Harikeshav-R/Penny/internal/logger"
	"google.golang.org/api/iterator"
)

const schemaMigrationsTable = "schema_migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationPattern matches 0001_name.sql.
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is one schema file rendered for a dataset.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	// Checksum is taken before placeholders are replaced, so the same file
	// has the same checksum in every dataset.
	Checksum string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// LoadMigrations reads the embedded migrations rendered for ds.
func LoadMigrations(ds Dataset) ([]Migration, error) {
	return parseMigrations(migrationsFS, "migrations", ds)
}

// parseMigrations reads every NNNN_name.sql file in dir sorted by version.
// Files with other names are skipped.
func parseMigrations(fsys fs.FS, dir string, ds Dataset) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("parseMigrations: reading %s: %w", dir, err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := migrationPattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		version, _ := strconv.Atoi(matches[1])
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("parseMigrations: version %04d used by %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("parseMigrations: reading %s: %w", entry.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", ds.ProjectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", ds.DatasetID)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: entry.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// pendingMigrations returns the migrations whose version is not applied.
// A changed checksum for an applied version is an error.
func pendingMigrations(all []Migration, applied []AppliedMigration) ([]Migration, error) {
	done := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		done[am.Version] = am
	}

	var pending []Migration
	for _, m := range all {
		am, ok := done[m.Version]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if am.Checksum != "" && am.Checksum != m.Checksum {
			return nil, fmt.Errorf("migration %04d_%s was modified after it was applied", m.Version, m.Name)
		}
	}
	return pending, nil
}

// Migrate applies pending migrations in order and returns how many ran.
func (r *AnalysisRunRepository) Migrate(ctx context.Context, appliedBy string) (int, error) {
	return MigrateWithClient(ctx, r.client, r.ds, appliedBy)
}

// MigrateWithClient applies pending migrations to ds.
func MigrateWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, appliedBy string) (int, error) {
	log := logger.Component(logger.FromContext(ctx), "migrate")

	migrations, err := LoadMigrations(ds)
	if err != nil {
		return 0, fmt.Errorf("Migrate: %w", err)
	}
	log.Info().Int("found", len(migrations)).Str("dataset", ds.DatasetID).Msg("Loaded migrations")

	// 0001 creates the bookkeeping table itself.
	if len(migrations) > 0 && migrations[0].Version == 1 {
		if err := runDML(ctx, client.Query(migrations[0].SQL)); err != nil {
			return 0, fmt.Errorf("Migrate: ensuring %s: %w", schemaMigrationsTable, err)
		}
	}

	applied, err := appliedMigrations(ctx, client, ds)
	if err != nil {
		return 0, fmt.Errorf("Migrate: %w", err)
	}

	pending, err := pendingMigrations(migrations, applied)
	if err != nil {
		return 0, fmt.Errorf("Migrate: %w", err)
	}

	for _, m := range pending {
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applying migration")

		if err := runDML(ctx, client.Query(m.SQL)); err != nil {
			return 0, fmt.Errorf("Migrate: executing %s: %w", m.Filename, err)
		}
		if err := recordMigration(ctx, client, ds, m, appliedBy); err != nil {
			return 0, fmt.Errorf("Migrate: recording %s: %w", m.Filename, err)
		}
	}

	if len(pending) == 0 {
		log.Info().Msg("No new migrations to apply, dataset is up to date")
	}
	return len(pending), nil
}

func appliedMigrations(ctx context.Context, client *bigquery.Client, ds Dataset) ([]AppliedMigration, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, ds.table(schemaMigrationsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64               `bigquery:"version"`
			Name      string              `bigquery:"name"`
			AppliedAt time.Time           `bigquery:"applied_at"`
			Checksum  bigquery.NullString `bigquery:"checksum"`
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating applied migrations: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

func recordMigration(ctx context.Context, client *bigquery.Client, ds Dataset, m Migration, appliedBy string) error {
	q := client.Query(fmt.Sprintf(`
		INSERT INTO %s (version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, ds.table(schemaMigrationsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: appliedBy},
	}
	return runDML(ctx, q)
}
