package doctors

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

const doctorCols = `id, user_id, name, specialty, phone, active, approved, created_at, updated_at`

var doctorSelect = []interface{}{"id", "user_id", "name", "specialty", "phone", "active", "approved", "created_at", "updated_at"}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	if err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Specialty, &d.Phone, &d.Active, &d.Approved, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, db.Classify(err, "doctor")
	}
	return &d, nil
}

func (r *repoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (id, user_id, name, specialty, phone, active, approved)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		d.ID, d.UserID, d.Name, d.Specialty, d.Phone, d.Active, d.Approved).Scan(&d.CreatedAt, &d.UpdatedAt)
	return db.Classify(err, "doctor")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

// Update writes the editable fields. Lifecycle flags only change through
// SetFlags.
func (r *repoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctors SET name = $2, specialty = $3, phone = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING user_id, active, approved, created_at, updated_at`,
		d.ID, d.Name, d.Specialty, d.Phone).Scan(&d.UserID, &d.Active, &d.Approved, &d.CreatedAt, &d.UpdatedAt)
	return db.Classify(err, "doctor")
}

func (r *repoPG) SetFlags(ctx context.Context, id uuid.UUID, active, approved bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE doctors SET active = $2, approved = $3, updated_at = NOW() WHERE id = $1`, id, active, approved)
	if err != nil {
		return db.Classify(err, "doctor")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("doctor not found")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return &apperrors.AppError{Type: apperrors.ErrorTypeConflict, Message: "doctor has appointments", Err: err}
		}
		return db.Classify(err, "doctor")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("doctor not found")
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Doctor, int, error) {
	ds := db.Dialect.From("doctors")
	if f.Q != "" {
		pat := db.ContainsPattern(f.Q)
		ds = ds.Where(goqu.Or(
			goqu.C("name").ILike(pat),
			goqu.C("specialty").ILike(pat),
			goqu.C("phone").ILike(pat),
		))
	}
	if f.Active != nil {
		ds = ds.Where(goqu.Ex{"active": *f.Active})
	}
	if f.Approved != nil {
		ds = ds.Where(goqu.Ex{"approved": *f.Approved})
	}
	items, total, err := db.QueryPage(ctx, r.conn(ctx), ds, db.Page{
		Columns: doctorSelect,
		Order:   []exp.OrderedExpression{goqu.I("name").Asc(), goqu.I("id").Asc()},
		Limit:   limit,
		Offset:  offset,
	}, scanDoctor)
	if err != nil {
		return nil, 0, db.Classify(err, "doctor")
	}
	return items, total, nil
}

func (r *repoPG) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE approved AND active),
			COUNT(*) FILTER (WHERE approved AND NOT active),
			COUNT(*) FILTER (WHERE NOT approved)
		FROM doctors`).Scan(&c.Total, &c.Active, &c.Inactive, &c.Pending)
	if err != nil {
		return Counts{}, db.Classify(err, "doctor")
	}
	return c, nil
}

func (r *repoPG) FindByName(ctx context.Context, name string) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctors WHERE LOWER(name) = LOWER($1) ORDER BY approved DESC, created_at LIMIT 1`, name))
}
