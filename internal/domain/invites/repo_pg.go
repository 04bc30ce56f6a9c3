package invites

import (
	"context"
	"strings"
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

const inviteCols = `id, email, role, invited_by, token_hash, expires_at, accepted, accepted_at, created_at`

var inviteSelect = []interface{}{"id", "email", "role", "invited_by", "token_hash", "expires_at", "accepted", "accepted_at", "created_at"}

func scanInvite(row pgx.Row) (*Invite, error) {
	var inv Invite
	if err := row.Scan(&inv.ID, &inv.Email, &inv.Role, &inv.InvitedBy, &inv.TokenHash, &inv.ExpiresAt,
		&inv.Accepted, &inv.AcceptedAt, &inv.CreatedAt); err != nil {
		return nil, db.Classify(err, "invite")
	}
	return &inv, nil
}

func (r *repoPG) Create(ctx context.Context, inv *Invite) error {
	inv.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO user_invites (id, email, role, invited_by, token_hash, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		inv.ID, inv.Email, inv.Role, inv.InvitedBy, inv.TokenHash, inv.ExpiresAt).Scan(&inv.CreatedAt)
	return db.Classify(err, "invite")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invite, error) {
	return scanInvite(r.conn(ctx).QueryRow(ctx, `SELECT `+inviteCols+` FROM user_invites WHERE id = $1`, id))
}

func (r *repoPG) GetByTokenHash(ctx context.Context, hash string) (*Invite, error) {
	return scanInvite(r.conn(ctx).QueryRow(ctx, `SELECT `+inviteCols+` FROM user_invites WHERE token_hash = $1`, hash))
}

func (r *repoPG) GetByTokenHashForUpdate(ctx context.Context, hash string) (*Invite, error) {
	return scanInvite(r.conn(ctx).QueryRow(ctx,
		`SELECT `+inviteCols+` FROM user_invites WHERE token_hash = $1 FOR UPDATE`, hash))
}

func (r *repoPG) HasPending(ctx context.Context, email string, now time.Time) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_invites
			WHERE LOWER(email) = LOWER($1) AND NOT accepted AND expires_at > $2
		)`, email, now).Scan(&exists)
	return exists, db.Classify(err, "invite")
}

func (r *repoPG) LockEmail(ctx context.Context, email string) error {
	return db.AdvisoryLock(ctx, r.conn(ctx), "invite:"+strings.ToLower(email))
}

func (r *repoPG) List(ctx context.Context, status string, now time.Time, limit, offset int) ([]*Invite, int, error) {
	ds := db.Dialect.From("user_invites")
	switch status {
	case StatusPending:
		ds = ds.Where(goqu.C("accepted").IsFalse(), goqu.C("expires_at").Gt(now))
	case StatusAccepted:
		ds = ds.Where(goqu.C("accepted").IsTrue())
	case StatusExpired:
		ds = ds.Where(goqu.C("accepted").IsFalse(), goqu.C("expires_at").Lte(now))
	}
	items, total, err := db.QueryPage(ctx, r.conn(ctx), ds, db.Page{
		Columns: inviteSelect,
		Order:   []exp.OrderedExpression{goqu.I("created_at").Desc(), goqu.I("id").Asc()},
		Limit:   limit,
		Offset:  offset,
	}, scanInvite)
	if err != nil {
		return nil, 0, db.Classify(err, "invite")
	}
	return items, total, nil
}

func (r *repoPG) MarkAccepted(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE user_invites SET accepted = TRUE, accepted_at = $2 WHERE id = $1 AND NOT accepted`, id, at)
	if err != nil {
		return db.Classify(err, "invite")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("invite not found")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM user_invites WHERE id = $1 AND NOT accepted`, id)
	if err != nil {
		return db.Classify(err, "invite")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("invite not found")
	}
	return nil
}

func (r *repoPG) CountPending(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM user_invites WHERE NOT accepted AND expires_at > $1`, now).Scan(&n)
	return n, db.Classify(err, "invite")
}
