package documents

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/pkg/apperrors"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const docCols = `id, client_id, file_name, content_type, size, sha256, storage_key, uploaded_by, created_at`

var docColumns = []interface{}{"id", "client_id", "file_name", "content_type", "size", "sha256", "storage_key", "uploaded_by", "created_at"}

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.ClientID, &d.FileName, &d.ContentType, &d.Size, &d.SHA256,
		&d.StorageKey, &d.UploadedBy, &d.CreatedAt)
	if err != nil {
		return nil, db.Classify(err, "document")
	}
	return &d, nil
}

func (r *repoPG) Create(ctx context.Context, d *Document) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO client_documents (id, client_id, file_name, content_type, size, sha256, storage_key, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		d.ID, d.ClientID, d.FileName, d.ContentType, d.Size, d.SHA256, d.StorageKey, d.UploadedBy,
	).Scan(&d.CreatedAt)
	return db.Classify(err, "document")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	return scanDocument(r.conn(ctx).QueryRow(ctx, `SELECT `+docCols+` FROM client_documents WHERE id = $1`, id))
}

func (r *repoPG) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*Document, int, error) {
	ds := goqu.Dialect("postgres").From("client_documents").Where(goqu.Ex{"client_id": clientID})
	items, total, err := db.QueryPage(ctx, r.conn(ctx), ds, db.Page{
		Columns: docColumns,
		Order:   []exp.OrderedExpression{goqu.I("created_at").Desc(), goqu.I("id").Asc()},
		Limit:   limit,
		Offset:  offset,
	}, scanDocument)
	if err != nil {
		return nil, 0, db.Classify(err, "document")
	}
	return items, total, nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM client_documents WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err, "document")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("document not found")
	}
	return nil
}

func (r *repoPG) StorageKeys(ctx context.Context, clientID uuid.UUID) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT storage_key FROM client_documents WHERE client_id = $1`, clientID)
	if err != nil {
		return nil, db.Classify(err, "document")
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, db.Classify(err, "document")
	}
	return keys, nil
}
