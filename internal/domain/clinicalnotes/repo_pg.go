package clinicalnotes

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const noteCols = `id, appointment_id, summary, diagnosis, prescription, is_private, urgency, created_by, updated_by, created_at, updated_at`

const versionCols = `id, note_id, version_number, summary, diagnosis, prescription, is_private, urgency, edited_by, edited_at`

func scanNote(row pgx.Row) (*Note, error) {
	var n Note
	if err := row.Scan(&n.ID, &n.AppointmentID, &n.Summary, &n.Diagnosis, &n.Prescription, &n.IsPrivate, &n.Urgency,
		&n.CreatedBy, &n.UpdatedBy, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, db.Classify(err, "clinical note")
	}
	return &n, nil
}

func scanVersion(row pgx.Row) (*Version, error) {
	var v Version
	if err := row.Scan(&v.ID, &v.NoteID, &v.VersionNumber, &v.Summary, &v.Diagnosis, &v.Prescription, &v.IsPrivate, &v.Urgency,
		&v.EditedBy, &v.EditedAt); err != nil {
		return nil, db.Classify(err, "note version")
	}
	return &v, nil
}

func (r *repoPG) Create(ctx context.Context, n *Note) error {
	n.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinical_notes (id, appointment_id, summary, diagnosis, prescription, is_private, urgency, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING created_at, updated_at`,
		n.ID, n.AppointmentID, n.Summary, n.Diagnosis, n.Prescription, n.IsPrivate, n.Urgency, n.CreatedBy).
		Scan(&n.CreatedAt, &n.UpdatedAt)
	if err == nil {
		n.UpdatedBy = n.CreatedBy
	}
	return db.Classify(err, "clinical note")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Note, error) {
	return scanNote(r.conn(ctx).QueryRow(ctx, `SELECT `+noteCols+` FROM clinical_notes WHERE id = $1`, id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Note, error) {
	return scanNote(r.conn(ctx).QueryRow(ctx, `SELECT `+noteCols+` FROM clinical_notes WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, n *Note) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE clinical_notes
		SET summary = $2, diagnosis = $3, prescription = $4, is_private = $5, urgency = $6,
			updated_by = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING appointment_id, created_by, created_at, updated_at`,
		n.ID, n.Summary, n.Diagnosis, n.Prescription, n.IsPrivate, n.Urgency, n.UpdatedBy).
		Scan(&n.AppointmentID, &n.CreatedBy, &n.CreatedAt, &n.UpdatedAt)
	return db.Classify(err, "clinical note")
}

func (r *repoPG) CountVersions(ctx context.Context, noteID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM clinical_note_versions WHERE note_id = $1`, noteID).Scan(&n)
	return n, db.Classify(err, "note version")
}

func (r *repoPG) CreateVersion(ctx context.Context, v *Version) error {
	v.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinical_note_versions
			(id, note_id, version_number, summary, diagnosis, prescription, is_private, urgency, edited_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING edited_at`,
		v.ID, v.NoteID, v.VersionNumber, v.Summary, v.Diagnosis, v.Prescription, v.IsPrivate, v.Urgency, v.EditedBy).
		Scan(&v.EditedAt)
	return db.Classify(err, "note version")
}

func (r *repoPG) ListVersions(ctx context.Context, noteID uuid.UUID) ([]*Version, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+versionCols+` FROM clinical_note_versions WHERE note_id = $1 ORDER BY version_number`, noteID)
	if err != nil {
		return nil, db.Classify(err, "note version")
	}
	defer rows.Close()
	var items []*Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, db.Classify(rows.Err(), "note version")
}

func (r *repoPG) ListByAppointment(ctx context.Context, appointmentID, viewer uuid.UUID) ([]*Note, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+noteCols+` FROM clinical_notes
		WHERE appointment_id = $1 AND (NOT is_private OR created_by = $2)
		ORDER BY created_at DESC, id`, appointmentID, viewer)
	if err != nil {
		return nil, db.Classify(err, "clinical note")
	}
	defer rows.Close()
	var items []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, db.Classify(rows.Err(), "clinical note")
}
