package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// MigrationStatus reports whether a migration has been applied to a schema.
type MigrationStatus struct {
	Version int64  `json:"version"`
	Name    string `json:"name"`
	Applied bool   `json:"applied"`
}

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// Migrator applies embedded goose migrations to a tenant schema. Each schema
// carries its own goose_db_version table.
type Migrator struct {
	pool *pgxpool.Pool
	fsys fs.FS
}

func NewMigrator(pool *pgxpool.Pool, fsys fs.FS) *Migrator {
	return &Migrator{pool: pool, fsys: fsys}
}

// open returns a database/sql handle whose connections default to schema.
func (m *Migrator) open(schema string) *sql.DB {
	cfg := m.pool.Config().ConnConfig.Copy()
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = map[string]string{}
	}
	cfg.RuntimeParams["search_path"] = schema + ", public"
	return stdlib.OpenDB(*cfg)
}

func (m *Migrator) setup() error {
	goose.SetBaseFS(m.fsys)
	goose.SetLogger(goose.NopLogger())
	return goose.SetDialect("pgx")
}

// Migrations lists the embedded migrations in version order.
func (m *Migrator) Migrations() ([]MigrationStatus, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := m.setup(); err != nil {
		return nil, err
	}
	return m.collect(0)
}

func (m *Migrator) collect(current int64) ([]MigrationStatus, error) {
	migs, err := goose.CollectMigrations(".", 0, goose.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("collect migrations: %w", err)
	}
	out := make([]MigrationStatus, 0, len(migs))
	for _, mig := range migs {
		out = append(out, MigrationStatus{
			Version: mig.Version,
			Name:    path.Base(mig.Source),
			Applied: mig.Version <= current,
		})
	}
	return out, nil
}

// Up applies pending migrations to schema and returns how many ran.
func (m *Migrator) Up(ctx context.Context, schema string) (int, error) {
	if !identPattern.MatchString(schema) {
		return 0, fmt.Errorf("invalid schema: %s", schema)
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := m.setup(); err != nil {
		return 0, err
	}

	sqlDB := m.open(schema)
	defer sqlDB.Close()

	before, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return 0, fmt.Errorf("read version of %s: %w", schema, err)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return 0, fmt.Errorf("migrate %s: %w", schema, err)
	}
	after, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return 0, fmt.Errorf("read version of %s: %w", schema, err)
	}

	all, err := m.collect(after)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range all {
		if s.Version > before && s.Version <= after {
			n++
		}
	}
	return n, nil
}

// Status lists every embedded migration with its state in schema.
func (m *Migrator) Status(ctx context.Context, schema string) ([]MigrationStatus, error) {
	if !identPattern.MatchString(schema) {
		return nil, fmt.Errorf("invalid schema: %s", schema)
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := m.setup(); err != nil {
		return nil, err
	}

	sqlDB := m.open(schema)
	defer sqlDB.Close()

	current, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return nil, fmt.Errorf("read version of %s: %w", schema, err)
	}
	return m.collect(current)
}
