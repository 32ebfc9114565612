package analyzer

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labgate/labgate/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const cols = `id, name, plugin, source, protocol_version, status, ident_pattern,
	last_activated_at, created_at, updated_at`

func scan(row pgx.Row) (*Analyzer, error) {
	var a Analyzer
	err := row.Scan(&a.ID, &a.Name, &a.Plugin, &a.Source, &a.ProtocolVersion, &a.Status,
		&a.IdentPattern, &a.LastActivatedAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Analyzer) error {
	a.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO analyzer (id, name, plugin, source, protocol_version, status, ident_pattern, last_activated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.Name, a.Plugin, a.Source, a.ProtocolVersion, a.Status, a.IdentPattern, a.LastActivatedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Analyzer, error) {
	return scan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cols+` FROM analyzer WHERE id = $1`, id))
}

func (r *repoPG) GetActiveByPlugin(ctx context.Context, plugin string) (*Analyzer, error) {
	return scan(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+cols+` FROM analyzer WHERE plugin = $1 AND status = $2`, plugin, StatusActive))
}

func (r *repoPG) Update(ctx context.Context, a *Analyzer) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE analyzer SET name=$2, plugin=$3, source=$4, protocol_version=$5,
			status=$6, ident_pattern=$7, last_activated_at=$8, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Name, a.Plugin, a.Source, a.ProtocolVersion,
		a.Status, a.IdentPattern, a.LastActivatedAt)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Analyzer, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM analyzer`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `SELECT `+cols+` FROM analyzer ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Analyzer
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
