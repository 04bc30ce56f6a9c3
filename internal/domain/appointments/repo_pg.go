package appointments

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
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const appointmentCols = `id, client_id, doctor_id, room_id, date, duration_min, status, notes, created_at, updated_at`

var joinedSelect = []interface{}{
	goqu.I("a.id"), goqu.I("a.client_id"), goqu.I("a.doctor_id"), goqu.I("a.room_id"),
	goqu.I("a.date"), goqu.I("a.duration_min"), goqu.I("a.status"), goqu.I("a.notes"),
	goqu.I("a.created_at"), goqu.I("a.updated_at"),
	goqu.I("c.name"), goqu.I("d.name"), goqu.I("rm.name"),
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(&a.ID, &a.ClientID, &a.DoctorID, &a.RoomID, &a.Date, &a.DurationMin, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, db.Classify(err, "appointment")
	}
	return &a, nil
}

func scanJoined(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(&a.ID, &a.ClientID, &a.DoctorID, &a.RoomID, &a.Date, &a.DurationMin, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
		&a.ClientName, &a.DoctorName, &a.RoomName); err != nil {
		return nil, db.Classify(err, "appointment")
	}
	return &a, nil
}

func joined() *goqu.SelectDataset {
	return db.Dialect.From(goqu.T("appointments").As("a")).
		LeftJoin(goqu.T("clients").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("a.client_id")))).
		LeftJoin(goqu.T("doctors").As("d"), goqu.On(goqu.I("d.id").Eq(goqu.I("a.doctor_id")))).
		LeftJoin(goqu.T("rooms").As("rm"), goqu.On(goqu.I("rm.id").Eq(goqu.I("a.room_id"))))
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, client_id, doctor_id, room_id, date, duration_min, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		a.ID, a.ClientID, a.DoctorID, a.RoomID, a.Date, a.DurationMin, a.Status, a.Notes).Scan(&a.CreatedAt, &a.UpdatedAt)
	return db.Classify(err, "appointment")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	sql, args, err := joined().Select(joinedSelect...).Where(goqu.I("a.id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("build appointment query", err)
	}
	return scanJoined(r.conn(ctx).QueryRow(ctx, sql, args...))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET client_id = $2, doctor_id = $3, room_id = $4, date = $5,
			duration_min = $6, status = $7, notes = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		a.ID, a.ClientID, a.DoctorID, a.RoomID, a.Date, a.DurationMin, a.Status, a.Notes).Scan(&a.CreatedAt, &a.UpdatedAt)
	return db.Classify(err, "appointment")
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return db.Classify(err, "appointment")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("appointment not found")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err, "appointment")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("appointment not found")
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	ds := joined()
	if f.From != nil {
		ds = ds.Where(goqu.I("a.date").Gte(*f.From))
	}
	if f.To != nil {
		ds = ds.Where(goqu.I("a.date").Lt(*f.To))
	}
	if f.RoomID != nil {
		ds = ds.Where(goqu.Ex{"a.room_id": *f.RoomID})
	}
	if f.DoctorID != nil {
		ds = ds.Where(goqu.Ex{"a.doctor_id": *f.DoctorID})
	}
	if f.ClientID != nil {
		ds = ds.Where(goqu.Ex{"a.client_id": *f.ClientID})
	}
	if f.Status != "" {
		ds = ds.Where(goqu.Ex{"a.status": string(f.Status)})
	}
	if f.Q != "" {
		pat := db.ContainsPattern(f.Q)
		ds = ds.Where(goqu.Or(
			goqu.I("c.name").ILike(pat),
			goqu.I("d.name").ILike(pat),
			goqu.I("a.notes").ILike(pat),
		))
	}
	items, total, err := db.QueryPage(ctx, r.conn(ctx), ds, db.Page{
		Columns: joinedSelect,
		Order:   []exp.OrderedExpression{goqu.I("a.date").Asc(), goqu.I("a.id").Asc()},
		Limit:   limit,
		Offset:  offset,
	}, scanJoined)
	if err != nil {
		return nil, 0, db.Classify(err, "appointment")
	}
	return items, total, nil
}

func (r *repoPG) CountByStatus(ctx context.Context, from, to time.Time) (map[Status]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT status, COUNT(*) FROM appointments
		WHERE date >= $1 AND date < $2
		GROUP BY status`, from, to)
	if err != nil {
		return nil, db.Classify(err, "appointment")
	}
	defer rows.Close()
	out := make(map[Status]int)
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, db.Classify(err, "appointment")
		}
		out[s] = n
	}
	return out, db.Classify(rows.Err(), "appointment")
}
