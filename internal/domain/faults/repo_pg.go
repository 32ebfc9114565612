package faults

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labgate/labgate/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Insert(ctx context.Context, e *AnalyzerError) error {
	e.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO analyzer_error (id, analyzer_id, kind, message, context, source)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.AnalyzerID, e.Kind, e.Message, e.Context, e.Source)
	return err
}

func (r *repoPG) List(ctx context.Context, q Query) ([]*AnalyzerError, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	n := 0
	arg := func(v interface{}) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}
	if q.AnalyzerID != nil {
		where += " AND analyzer_id = " + arg(*q.AnalyzerID)
	}
	if q.Kind != "" {
		where += " AND kind = " + arg(q.Kind)
	}
	if !q.From.IsZero() {
		where += " AND created_at >= " + arg(q.From)
	}
	if !q.To.IsZero() {
		where += " AND created_at < " + arg(q.To)
	}

	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM analyzer_error `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, analyzer_id, kind, message, context, source, created_at
		FROM analyzer_error ` + where +
		` ORDER BY created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(q.Offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*AnalyzerError
	for rows.Next() {
		var e AnalyzerError
		if err := rows.Scan(&e.ID, &e.AnalyzerID, &e.Kind, &e.Message, &e.Context, &e.Source, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &e)
	}
	return items, total, rows.Err()
}
