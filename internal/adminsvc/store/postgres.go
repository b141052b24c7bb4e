package store

import (
	"context"
	"fmt"

	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres mirrors the shared dataset into a local database for
// reporting queries. The share stays the source of truth; the mirror is
// rebuilt wholesale on every applied or published snapshot.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the mirror tables when they are missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS groups (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS employees (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			card_id TEXT NOT NULL,
			daily_hours DOUBLE PRECISION NOT NULL,
			group_id UUID
		)`,
		`CREATE TABLE IF NOT EXISTS special_days (
			card_id TEXT NOT NULL,
			day DATE NOT NULL,
			kind TEXT NOT NULL,
			PRIMARY KEY (card_id, day)
		)`,
		`CREATE TABLE IF NOT EXISTS sync_meta (
			id INT PRIMARY KEY DEFAULT 1,
			version BIGINT NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate mirror: %w", err)
		}
	}
	return nil
}

// ReplaceAll rewrites the entire mirror inside one transaction, so
// readers never observe a half-applied snapshot.
func (p *Postgres) ReplaceAll(ctx context.Context, snap *models.Snapshot) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("mirror tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"special_days", "employees", "groups"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("mirror clear %s: %w", table, err)
		}
	}
	for _, g := range snap.Groups {
		if _, err := tx.Exec(ctx,
			`INSERT INTO groups (id, name) VALUES ($1, $2)`, g.ID, g.Name); err != nil {
			return fmt.Errorf("mirror group %s: %w", g.ID, err)
		}
	}
	for _, e := range snap.Employees {
		if _, err := tx.Exec(ctx,
			`INSERT INTO employees (id, name, card_id, daily_hours, group_id)
			 VALUES ($1, $2, $3, $4, $5)`,
			e.ID, e.Name, e.CardID, e.DailyHours, e.GroupID); err != nil {
			return fmt.Errorf("mirror employee %s: %w", e.ID, err)
		}
	}
	for _, sd := range snap.SpecialDays {
		if _, err := tx.Exec(ctx,
			`INSERT INTO special_days (card_id, day, kind) VALUES ($1, $2, $3)`,
			sd.CardID, sd.Date.Time, string(sd.Type)); err != nil {
			return fmt.Errorf("mirror special day %s/%s: %w", sd.CardID, sd.Date, err)
		}
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO sync_meta (id, version, last_updated) VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET version = $1, last_updated = $2`,
		snap.Version, snap.LastUpdated); err != nil {
		return fmt.Errorf("mirror version: %w", err)
	}
	return tx.Commit(ctx)
}

// Version reports the snapshot version the mirror last absorbed.
func (p *Postgres) Version(ctx context.Context) (int64, error) {
	var v int64
	err := p.pool.QueryRow(ctx, `SELECT version FROM sync_meta WHERE id = 1`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("mirror version: %w", err)
	}
	return v, nil
}
