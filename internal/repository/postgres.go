// Package repository persists MCP server records.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mozilla-ai/mcphub/internal/contracts"
	"github.com/mozilla-ai/mcphub/internal/domain"
	errorsint "github.com/mozilla-ai/mcphub/internal/errors"
)

// DB is the subset of pgxpool.Pool used by Postgres.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const serverColumns = `id, name, config, user_id, visibility, created_at, updated_at`

// errUndecodableConfig marks a row whose stored config cannot be decoded.
var errUndecodableConfig = errors.New("undecodable server config")

// Postgres is an MCPRepository backed by PostgreSQL.
type Postgres struct {
	logger hclog.Logger
	db     DB
	now    func() time.Time
}

var _ contracts.MCPRepository = (*Postgres)(nil)

// Connect opens a connection pool to the database at url and verifies it is reachable.
func Connect(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// NewPostgres returns a repository using the given database handle.
func NewPostgres(logger hclog.Logger, db DB) (*Postgres, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}

	return &Postgres{
		logger: logger.Named("repository"),
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Save inserts rec, generating an ID when it has none.
// When a row with the same ID exists only its config and updated_at are changed.
func (p *Postgres) Save(ctx context.Context, rec domain.ServerRecord) (domain.ServerRecord, error) {
	cfg, err := domain.EncodeServerConfig(rec.Config)
	if err != nil {
		return domain.ServerRecord{}, fmt.Errorf("%w: %w", errorsint.ErrBadRequest, err)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Visibility == "" {
		rec.Visibility = domain.VisibilityPrivate
	}
	now := p.now()

	q := `
		INSERT INTO mcp_servers (id, name, config, enabled, user_id, visibility, created_at, updated_at)
		VALUES ($1, $2, $3, true, $4, $5, $6, $6)
		ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config, updated_at = EXCLUDED.updated_at
		RETURNING ` + serverColumns

	row := p.db.QueryRow(ctx, q, rec.ID, rec.Name, string(cfg), nullable(rec.UserID), string(rec.Visibility), now)
	saved, err := scanRecord(row)
	if err != nil {
		return domain.ServerRecord{}, fmt.Errorf("%w: save server %s: %w", errorsint.ErrPersistence, rec.ID, err)
	}

	return saved, nil
}

// SelectByID returns the record with the given ID.
func (p *Postgres) SelectByID(ctx context.Context, id string) (domain.ServerRecord, error) {
	return p.selectOne(ctx, `SELECT `+serverColumns+` FROM mcp_servers WHERE id = $1`, id)
}

// SelectByServerName returns the record with the given name.
func (p *Postgres) SelectByServerName(ctx context.Context, name string) (domain.ServerRecord, error) {
	return p.selectOne(ctx, `SELECT `+serverColumns+` FROM mcp_servers WHERE name = $1 ORDER BY created_at, id LIMIT 1`, name)
}

// SelectAll returns every record.
func (p *Postgres) SelectAll(ctx context.Context) ([]domain.ServerRecord, error) {
	return p.selectMany(ctx, `SELECT `+serverColumns+` FROM mcp_servers ORDER BY created_at, id`)
}

// SelectAllByAccess returns records owned by userID plus all shared records.
func (p *Postgres) SelectAllByAccess(ctx context.Context, userID string) ([]domain.ServerRecord, error) {
	q := `
		SELECT ` + serverColumns + ` FROM mcp_servers
		WHERE user_id = $1 OR visibility IN ('public', 'readonly')
		ORDER BY created_at, id`
	return p.selectMany(ctx, q, userID)
}

// DeleteByID removes the record with the given ID.
func (p *Postgres) DeleteByID(ctx context.Context, id string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM mcp_servers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete server %s: %w", errorsint.ErrPersistence, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", errorsint.ErrServerNotFound, id)
	}
	return nil
}

// ExistsByServerName reports whether a record uses the given name.
func (p *Postgres) ExistsByServerName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM mcp_servers WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: check server name %s: %w", errorsint.ErrPersistence, name, err)
	}
	return exists, nil
}

// CheckAccess reports whether userID may access the record with the given ID.
// Unknown IDs are never accessible.
func (p *Postgres) CheckAccess(ctx context.Context, id string, userID string, destructive bool) (bool, error) {
	var owner *string
	var visibility string
	err := p.db.QueryRow(ctx, `SELECT user_id, visibility FROM mcp_servers WHERE id = $1`, id).Scan(&owner, &visibility)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%w: check access %s: %w", errorsint.ErrPersistence, id, err)
	}

	rec := domain.ServerRecord{ID: id, Visibility: domain.Visibility(visibility)}
	if owner != nil {
		rec.UserID = *owner
	}
	return domain.CanAccess(rec, userID, destructive), nil
}

// UpdateVisibility sets the visibility of the record with the given ID.
func (p *Postgres) UpdateVisibility(ctx context.Context, id string, visibility domain.Visibility) error {
	if !visibility.IsValid() {
		return fmt.Errorf("%w: invalid visibility %q", errorsint.ErrBadRequest, visibility)
	}

	tag, err := p.db.Exec(ctx,
		`UPDATE mcp_servers SET visibility = $2, updated_at = $3 WHERE id = $1`,
		id, string(visibility), p.now(),
	)
	if err != nil {
		return fmt.Errorf("%w: update visibility %s: %w", errorsint.ErrPersistence, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", errorsint.ErrServerNotFound, id)
	}
	return nil
}

// Ping checks that the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", errorsint.ErrPersistence, err)
	}
	return nil
}

func (p *Postgres) selectOne(ctx context.Context, q string, arg string) (domain.ServerRecord, error) {
	rec, err := scanRecord(p.db.QueryRow(ctx, q, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ServerRecord{}, fmt.Errorf("%w: %s", errorsint.ErrServerNotFound, arg)
		}
		return domain.ServerRecord{}, fmt.Errorf("%w: select server %s: %w", errorsint.ErrPersistence, arg, err)
	}
	return rec, nil
}

func (p *Postgres) selectMany(ctx context.Context, q string, args ...any) ([]domain.ServerRecord, error) {
	rows, err := p.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: select servers: %w", errorsint.ErrPersistence, err)
	}
	defer rows.Close()

	records := make([]domain.ServerRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if errors.Is(err, errUndecodableConfig) {
			p.logger.Warn("Skipping server with invalid stored config", "id", rec.ID, "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: scan server: %w", errorsint.ErrPersistence, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate servers: %w", errorsint.ErrPersistence, err)
	}

	return records, nil
}

func scanRecord(row pgx.Row) (domain.ServerRecord, error) {
	var (
		rec        domain.ServerRecord
		cfg        []byte
		owner      *string
		visibility string
	)
	if err := row.Scan(&rec.ID, &rec.Name, &cfg, &owner, &visibility, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return domain.ServerRecord{}, err
	}

	decoded, err := domain.DecodeServerConfig(cfg)
	if err != nil {
		return domain.ServerRecord{ID: rec.ID}, fmt.Errorf("%w: %w", errUndecodableConfig, err)
	}
	rec.Config = decoded
	rec.Visibility = domain.Visibility(visibility)
	if owner != nil {
		rec.UserID = *owner
	}

	return rec, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
