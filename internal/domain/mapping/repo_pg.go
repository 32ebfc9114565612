package mapping

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

const cols = `id, analyzer_id, vendor_code, lab_field_id, lab_field_type, kind,
	required, active, specimen_type, panel, version, created_at, updated_at`

func scan(row pgx.Row) (*FieldMapping, error) {
	var m FieldMapping
	err := row.Scan(&m.ID, &m.AnalyzerID, &m.VendorCode, &m.LabFieldID, &m.LabFieldType, &m.Kind,
		&m.Required, &m.Active, &m.SpecimenType, &m.Panel, &m.Version, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *FieldMapping) error {
	m.ID = uuid.New()
	m.Version = 1
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO field_mapping (id, analyzer_id, vendor_code, lab_field_id, lab_field_type,
			kind, required, active, specimen_type, panel, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		m.ID, m.AnalyzerID, m.VendorCode, m.LabFieldID, m.LabFieldType,
		m.Kind, m.Required, m.Active, m.SpecimenType, m.Panel, m.Version)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*FieldMapping, error) {
	return scan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cols+` FROM field_mapping WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, m *FieldMapping) error {
	m.Version++
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE field_mapping SET lab_field_id=$2, lab_field_type=$3, kind=$4, required=$5,
			active=$6, specimen_type=$7, panel=$8, version=$9, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.LabFieldID, m.LabFieldType, m.Kind, m.Required,
		m.Active, m.SpecimenType, m.Panel, m.Version)
	return err
}

func (r *repoPG) ListActive(ctx context.Context, analyzerID uuid.UUID, vendorCode string) ([]*FieldMapping, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+cols+` FROM field_mapping WHERE analyzer_id = $1 AND vendor_code = $2 AND active`,
		analyzerID, vendorCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*FieldMapping
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *repoPG) FindActiveConflict(ctx context.Context, analyzerID uuid.UUID, vendorCode string, specimenType, panel *string) (*FieldMapping, error) {
	return scan(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+cols+` FROM field_mapping
		WHERE analyzer_id = $1 AND vendor_code = $2 AND active
		  AND specimen_type IS NOT DISTINCT FROM $3
		  AND panel IS NOT DISTINCT FROM $4`,
		analyzerID, vendorCode, specimenType, panel))
}

func (r *repoPG) ListByAnalyzer(ctx context.Context, analyzerID uuid.UUID, limit, offset int) ([]*FieldMapping, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM field_mapping WHERE analyzer_id = $1`, analyzerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx,
		`SELECT `+cols+` FROM field_mapping WHERE analyzer_id = $1 ORDER BY vendor_code, created_at LIMIT $2 OFFSET $3`,
		analyzerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*FieldMapping
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

type dictionaryRepoPG struct{ pool *pgxpool.Pool }

func NewDictionaryRepoPG(pool *pgxpool.Pool) DictionaryRepository {
	return &dictionaryRepoPG{pool: pool}
}

func (r *dictionaryRepoPG) Add(ctx context.Context, e *DictionaryEntry) error {
	e.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO dictionary_entry (id, lab_field_id, raw_value, coded_value)
		VALUES ($1,$2,$3,$4)`,
		e.ID, e.LabFieldID, e.RawValue, e.CodedValue)
	return err
}

func (r *dictionaryRepoPG) Lookup(ctx context.Context, labFieldID, rawValue string) (string, error) {
	var coded string
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT coded_value FROM dictionary_entry WHERE lab_field_id = $1 AND raw_value = $2`,
		labFieldID, rawValue).Scan(&coded)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return coded, err
}
