package clients

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/pkg/apperrors"
	"github.com/clinic/clinic/pkg/civil"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const clientCols = `id, name, birth_date, email, phone, notes, created_at, updated_at`

var clientSelect = []interface{}{"id", "name", "birth_date", "email", "phone", "notes", "created_at", "updated_at"}

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	var birth time.Time
	if err := row.Scan(&c.ID, &c.Name, &birth, &c.Email, &c.Phone, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, db.Classify(err, "client")
	}
	c.BirthDate = civil.DateOf(birth)
	return &c, nil
}

func (r *repoPG) Create(ctx context.Context, c *Client) error {
	c.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clients (id, name, birth_date, email, phone, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.BirthDate.Time, c.Email, c.Phone, c.Notes).Scan(&c.CreatedAt, &c.UpdatedAt)
	return db.Classify(err, "client")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	return scanClient(r.conn(ctx).QueryRow(ctx, `SELECT `+clientCols+` FROM clients WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, c *Client) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE clients SET name = $2, birth_date = $3, email = $4, phone = $5, notes = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.BirthDate.Time, c.Email, c.Phone, c.Notes).Scan(&c.CreatedAt, &c.UpdatedAt)
	return db.Classify(err, "client")
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return &apperrors.AppError{Type: apperrors.ErrorTypeConflict, Message: "client has appointments", Err: err}
		}
		return db.Classify(err, "client")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("client not found")
	}
	return nil
}

func (r *repoPG) Lock(ctx context.Context, id uuid.UUID) error {
	var got uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `SELECT id FROM clients WHERE id = $1 FOR UPDATE`, id).Scan(&got)
	return db.Classify(err, "client")
}

func (r *repoPG) Search(ctx context.Context, q string, limit, offset int) ([]*Client, int, error) {
	ds := db.Dialect.From("clients")
	if q != "" {
		pat := db.ContainsPattern(q)
		ds = ds.Where(goqu.Or(
			goqu.C("name").ILike(pat),
			goqu.C("email").ILike(pat),
			goqu.C("phone").ILike(pat),
		))
	}
	items, total, err := db.QueryPage(ctx, r.conn(ctx), ds, db.Page{
		Columns: clientSelect,
		Order:   []exp.OrderedExpression{goqu.I("name").Asc(), goqu.I("id").Asc()},
		Limit:   limit,
		Offset:  offset,
	}, scanClient)
	if err != nil {
		return nil, 0, db.Classify(err, "client")
	}
	return items, total, nil
}

func (r *repoPG) Stats(ctx context.Context, id uuid.UUID, now time.Time) (Stats, error) {
	var s Stats
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'done'),
			COUNT(*) FILTER (WHERE status = 'canceled'),
			MAX(date) FILTER (WHERE date <= $2 AND status <> 'canceled'),
			MIN(date) FILTER (WHERE date > $2 AND status = 'scheduled')
		FROM appointments WHERE client_id = $1`, id, now).
		Scan(&s.Appointments, &s.Done, &s.Canceled, &s.LastVisit, &s.NextVisit)
	if err != nil {
		return Stats{}, db.Classify(err, "client")
	}
	return s, nil
}

func (r *repoPG) History(ctx context.Context, id uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE client_id = $1`, id).Scan(&total); err != nil {
		return nil, 0, db.Classify(err, "appointment")
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.id, a.date, a.duration_min, a.status, d.name, rm.name
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		LEFT JOIN rooms rm ON rm.id = a.room_id
		WHERE a.client_id = $1
		ORDER BY a.date DESC, a.id
		LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, 0, db.Classify(err, "appointment")
	}
	defer rows.Close()
	var items []*Visit
	for rows.Next() {
		var v Visit
		if err := rows.Scan(&v.AppointmentID, &v.Date, &v.DurationMin, &v.Status, &v.DoctorName, &v.RoomName); err != nil {
			return nil, 0, db.Classify(err, "appointment")
		}
		items = append(items, &v)
	}
	return items, total, db.Classify(rows.Err(), "appointment")
}

func (r *repoPG) Names(ctx context.Context) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT name FROM clients`)
	if err != nil {
		return nil, db.Classify(err, "client")
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, db.Classify(err, "client")
	}
	return names, nil
}

func (r *repoPG) FindByName(ctx context.Context, name string) (*Client, error) {
	return scanClient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+clientCols+` FROM clients WHERE LOWER(name) = LOWER($1) ORDER BY created_at LIMIT 1`, name))
}
