// Package sqlstore is a store.Backend persisted in a SQLite database.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/harun/nodeshell/pkg/content"
	"github.com/harun/nodeshell/pkg/store"
)

// Backend stores node records in SQLite
type Backend struct {
	db     *sql.DB
	logger zerolog.Logger
}

var _ store.Backend = (*Backend)(nil)

// Open opens (or creates) the database at dsn and makes sure the default
// workspace exists. dsn is a file path or a go-sqlite3 DSN.
func Open(ctx context.Context, dsn string, logger zerolog.Logger) (*Backend, error) {
	if dsn == "" {
		return nil, errors.New("sqlite dsn is required")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers and keeps :memory: databases intact
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	b := &Backend{
		db:     db,
		logger: logger.With().Str("component", "sqlstore").Logger(),
	}

	if err := b.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := b.ensureWorkspace(ctx, store.DefaultWorkspace); err != nil {
		db.Close()
		return nil, err
	}

	b.logger.Debug().Str("dsn", dsn).Msg("SQLite store opened")
	return b, nil
}

func (b *Backend) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS workspaces (
			name TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS nodes (
			workspace TEXT NOT NULL,
			path TEXT NOT NULL,
			identifier TEXT NOT NULL,
			primary_type TEXT NOT NULL,
			children TEXT NOT NULL,
			properties TEXT NOT NULL,
			PRIMARY KEY (workspace, path),
			FOREIGN KEY (workspace) REFERENCES workspaces(name) ON DELETE CASCADE
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_nodes_identifier ON nodes(workspace, identifier);

		CREATE TABLE IF NOT EXISTS namespaces (
			prefix TEXT PRIMARY KEY,
			uri TEXT NOT NULL
		);
	`
	_, err := b.db.ExecContext(ctx, schema)
	return err
}

func (b *Backend) ensureWorkspace(ctx context.Context, name string) error {
	var exists int
	err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workspaces WHERE name = ?", name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check workspace: %w", err)
	}
	if exists > 0 {
		return nil
	}
	return b.createWorkspace(ctx, name)
}

func (b *Backend) createWorkspace(ctx context.Context, name string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO workspaces (name, created_at) VALUES (?, ?)", name, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	if err := putRecord(ctx, tx, name, store.NewRootRecord()); err != nil {
		return err
	}
	return tx.Commit()
}

func (b *Backend) Name() string { return "sqlite" }

func (b *Backend) Workspaces(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT name FROM workspaces ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query workspaces: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (b *Backend) CreateWorkspace(ctx context.Context, name string) error {
	var exists int
	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workspaces WHERE name = ?", name).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check workspace: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("workspace %q: %w", name, content.ErrItemExists)
	}
	return b.createWorkspace(ctx, name)
}

func (b *Backend) checkWorkspace(ctx context.Context, name string) error {
	var exists int
	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workspaces WHERE name = ?", name).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check workspace: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("workspace %q: %w", name, content.ErrNoSuchWorkspace)
	}
	return nil
}

func scanRecord(row *sql.Row) (*store.Record, error) {
	var (
		rec        store.Record
		children   string
		properties string
	)
	if err := row.Scan(&rec.Path, &rec.Identifier, &rec.PrimaryType, &children, &properties); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(children), &rec.Children); err != nil {
		return nil, fmt.Errorf("failed to decode children of %s: %w", rec.Path, err)
	}
	if err := json.Unmarshal([]byte(properties), &rec.Properties); err != nil {
		return nil, fmt.Errorf("failed to decode properties of %s: %w", rec.Path, err)
	}
	return &rec, nil
}

func (b *Backend) Get(ctx context.Context, workspace, path string) (*store.Record, error) {
	if err := b.checkWorkspace(ctx, workspace); err != nil {
		return nil, err
	}
	row := b.db.QueryRowContext(ctx, `
		SELECT path, identifier, primary_type, children, properties
		FROM nodes WHERE workspace = ? AND path = ?`, workspace, path)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("node %s: %w", path, content.ErrNotFound)
	}
	return rec, err
}

func (b *Backend) GetByIdentifier(ctx context.Context, workspace, id string) (*store.Record, error) {
	if err := b.checkWorkspace(ctx, workspace); err != nil {
		return nil, err
	}
	row := b.db.QueryRowContext(ctx, `
		SELECT path, identifier, primary_type, children, properties
		FROM nodes WHERE workspace = ? AND identifier = ?`, workspace, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("identifier %s: %w", id, content.ErrNotFound)
	}
	return rec, err
}

func putRecord(ctx context.Context, tx *sql.Tx, workspace string, rec *store.Record) error {
	children := rec.Children
	if children == nil {
		children = []string{}
	}
	props := rec.Properties
	if props == nil {
		props = []content.Property{}
	}
	cj, err := json.Marshal(children)
	if err != nil {
		return fmt.Errorf("failed to encode children: %w", err)
	}
	pj, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("failed to encode properties: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO nodes (workspace, path, identifier, primary_type, children, properties)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace, path) DO UPDATE SET
			identifier = excluded.identifier,
			primary_type = excluded.primary_type,
			children = excluded.children,
			properties = excluded.properties`,
		workspace, rec.Path, rec.Identifier, rec.PrimaryType, string(cj), string(pj))
	if err != nil {
		return fmt.Errorf("failed to write node %s: %w", rec.Path, err)
	}
	return nil
}

// Commit applies the batch in a single transaction
func (b *Backend) Commit(ctx context.Context, workspace string, batch *store.Batch) error {
	if err := b.checkWorkspace(ctx, workspace); err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, path := range batch.Deletes {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM nodes WHERE workspace = ? AND path = ?", workspace, path); err != nil {
			return fmt.Errorf("failed to delete node %s: %w", path, err)
		}
	}
	for _, rec := range batch.Puts {
		if err := putRecord(ctx, tx, workspace, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	b.logger.Debug().
		Str("workspace", workspace).
		Int("deletes", len(batch.Deletes)).
		Int("puts", len(batch.Puts)).
		Msg("Batch committed")
	return nil
}

func (b *Backend) Namespaces(ctx context.Context) (map[string]string, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT prefix, uri FROM namespaces")
	if err != nil {
		return nil, fmt.Errorf("failed to query namespaces: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var prefix, uri string
		if err := rows.Scan(&prefix, &uri); err != nil {
			return nil, err
		}
		out[prefix] = uri
	}
	return out, rows.Err()
}

func (b *Backend) RegisterNamespace(ctx context.Context, prefix, uri string) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO namespaces (prefix, uri) VALUES (?, ?)
		ON CONFLICT(prefix) DO UPDATE SET uri = excluded.uri`, prefix, uri)
	if err != nil {
		return fmt.Errorf("failed to register namespace: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}
