package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type storageRecord struct {
	bun.BaseModel `bun:"table:storage_records,alias:sr"`

	Namespace string    `bun:"namespace,pk"`
	Key       string    `bun:"record_key,pk"`
	Data      []byte    `bun:"data,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// SQLBackend implements a storage backend on a relational database through bun.
// SQLite and PostgreSQL are supported; all namespaces share one table.
type SQLBackend struct {
	db          *bun.DB
	driver      string
	log         *slog.Logger
	locationURI string
}

// NewSQLiteBackend opens (or creates) an SQLite database from a go-sqlite3 DSN.
func NewSQLiteBackend(ctx context.Context, dsn string, locationURI string, log *slog.Logger) (*SQLBackend, error) {
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// sqlite serializes writers, one connection avoids SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)

	return newSQLBackend(ctx, bun.NewDB(sqlDB, sqlitedialect.New()), "sqlite3", locationURI, log)
}

// NewPostgresBackend connects to PostgreSQL using a lib/pq connection string or URL.
func NewPostgresBackend(ctx context.Context, dsn string, locationURI string, log *slog.Logger) (*SQLBackend, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	return newSQLBackend(ctx, bun.NewDB(sqlDB, pgdialect.New()), "postgres", locationURI, log)
}

func newSQLBackend(ctx context.Context, db *bun.DB, driver, locationURI string, log *slog.Logger) (*SQLBackend, error) {
	b := &SQLBackend{
		db:          db,
		driver:      driver,
		log:         log,
		locationURI: locationURI,
	}
	if err := b.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLBackend) migrate(ctx context.Context) error {
	_, err := b.db.NewCreateTable().
		Model((*storageRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create storage table: %w", err)
	}
	return nil
}

// Fetch retrieves a record row.
func (b *SQLBackend) Fetch(ctx context.Context, ns interfaces.Namespace, key string) ([]byte, error) {
	record := &storageRecord{}
	err := b.db.NewSelect().
		Model(record).
		Where("?TableAlias.namespace = ?", ns.String()).
		Where("?TableAlias.record_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to select record: %w", err)
	}

	b.log.Debug("Fetched record from database",
		slog.String("namespace", ns.String()),
		slog.String("key", key),
		slog.Int("size", len(record.Data)))

	return record.Data, nil
}

// Store upserts a record row.
func (b *SQLBackend) Store(ctx context.Context, ns interfaces.Namespace, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	record := &storageRecord{
		Namespace: ns.String(),
		Key:       key,
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := b.db.NewInsert().
		Model(record).
		On("CONFLICT (namespace, record_key) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}

	b.log.Debug("Stored record in database",
		slog.String("namespace", ns.String()),
		slog.String("key", key),
		slog.Int("size", len(data)))

	return nil
}

// List returns the keys of a namespace in ascending order.
func (b *SQLBackend) List(ctx context.Context, ns interfaces.Namespace) ([]string, error) {
	keys := []string{}
	err := b.db.NewSelect().
		Model((*storageRecord)(nil)).
		Column("record_key").
		Where("?TableAlias.namespace = ?", ns.String()).
		OrderExpr("?TableAlias.record_key ASC").
		Scan(ctx, &keys)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return keys, nil
}

// Available pings the database.
func (b *SQLBackend) Available(ctx context.Context) bool {
	if err := b.db.PingContext(ctx); err != nil {
		b.log.Debug("Database backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *SQLBackend) Name() string {
	return fmt.Sprintf("sql-%s", b.driver)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *SQLBackend) LocationURI() string {
	return b.locationURI
}

// Close releases the database handle.
func (b *SQLBackend) Close() error {
	return b.db.Close()
}
