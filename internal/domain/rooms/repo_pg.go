package rooms

import (
	"context"

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

const roomCols = `id, name, location, notes, created_at, updated_at`

func scanRoom(row pgx.Row) (*Room, error) {
	var rm Room
	if err := row.Scan(&rm.ID, &rm.Name, &rm.Location, &rm.Notes, &rm.CreatedAt, &rm.UpdatedAt); err != nil {
		return nil, db.Classify(err, "room")
	}
	return &rm, nil
}

func (r *repoPG) Create(ctx context.Context, rm *Room) error {
	rm.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO rooms (id, name, location, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		rm.ID, rm.Name, rm.Location, rm.Notes).Scan(&rm.CreatedAt, &rm.UpdatedAt)
	return db.Classify(err, "room")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	return scanRoom(r.conn(ctx).QueryRow(ctx, `SELECT `+roomCols+` FROM rooms WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, rm *Room) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE rooms SET name = $2, location = $3, notes = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		rm.ID, rm.Name, rm.Location, rm.Notes).Scan(&rm.CreatedAt, &rm.UpdatedAt)
	return db.Classify(err, "room")
}

// Delete removes the room. Its appointments keep their slot with no room.
func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err, "room")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("room not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context) ([]*Room, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+roomCols+` FROM rooms ORDER BY name, id`)
	if err != nil {
		return nil, db.Classify(err, "room")
	}
	defer rows.Close()
	var items []*Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rm)
	}
	return items, db.Classify(rows.Err(), "room")
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&n)
	return n, db.Classify(err, "room")
}

func (r *repoPG) FindByName(ctx context.Context, name string) (*Room, error) {
	return scanRoom(r.conn(ctx).QueryRow(ctx,
		`SELECT `+roomCols+` FROM rooms WHERE LOWER(name) = LOWER($1) ORDER BY id LIMIT 1`, name))
}
