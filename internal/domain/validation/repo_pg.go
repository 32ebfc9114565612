package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labgate/labgate/internal/platform/db"
)

var ErrNotFound = errors.New("validation: rule not found")

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const cols = `id, name, rule_type, expression, message, field_type_id, active, created_at, updated_at`

func scan(row pgx.Row) (*Rule, error) {
	var r Rule
	err := row.Scan(&r.ID, &r.Name, &r.Type, &r.Expression, &r.Message,
		&r.FieldTypeID, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &r, err
}

func (p *repoPG) Create(ctx context.Context, r *Rule) error {
	r.ID = uuid.New()
	_, err := db.Conn(ctx, p.pool).Exec(ctx, `
		INSERT INTO validation_rule (id, name, rule_type, expression, message, field_type_id, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		r.ID, r.Name, r.Type, r.Expression, r.Message, r.FieldTypeID, r.Active)
	return err
}

func (p *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Rule, error) {
	return scan(db.Conn(ctx, p.pool).QueryRow(ctx, `SELECT `+cols+` FROM validation_rule WHERE id = $1`, id))
}

func (p *repoPG) ListActiveByFieldType(ctx context.Context, fieldTypeID string) ([]*Rule, error) {
	rows, err := db.Conn(ctx, p.pool).Query(ctx,
		`SELECT `+cols+` FROM validation_rule WHERE field_type_id = $1 AND active ORDER BY created_at`, fieldTypeID)
	if err != nil {
		return nil, fmt.Errorf("list rules for field type %s: %w", fieldTypeID, err)
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (p *repoPG) List(ctx context.Context, limit, offset int) ([]*Rule, int, error) {
	conn := db.Conn(ctx, p.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM validation_rule`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `SELECT `+cols+` FROM validation_rule ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		rules = append(rules, r)
	}
	return rules, total, rows.Err()
}

func (p *repoPG) Update(ctx context.Context, r *Rule) error {
	_, err := db.Conn(ctx, p.pool).Exec(ctx, `
		UPDATE validation_rule SET name=$2, rule_type=$3, expression=$4, message=$5,
			field_type_id=$6, active=$7, updated_at=NOW()
		WHERE id = $1`,
		r.ID, r.Name, r.Type, r.Expression, r.Message, r.FieldTypeID, r.Active)
	return err
}
