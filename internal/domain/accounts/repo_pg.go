package accounts

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

const accountCols = `id, email, password_hash, created_at`

const profileCols = `user_id, role, name, email, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	if err := row.Scan(&p.UserID, &p.Role, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, db.Classify(err, "profile")
	}
	return &p, nil
}

func (r *repoPG) CreateAccount(ctx context.Context, a *Account) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO user_accounts (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		a.ID, a.Email, a.PasswordHash).Scan(&a.CreatedAt)
	return db.Classify(err, "account")
}

func (r *repoPG) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	var a Account
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM user_accounts WHERE LOWER(email) = LOWER($1)`, email).
		Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		return nil, db.Classify(err, "account")
	}
	return &a, nil
}

func (r *repoPG) CreateProfile(ctx context.Context, p *Profile) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO user_profiles (user_id, role, name, email)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		p.UserID, p.Role, p.Name, p.Email).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.Classify(err, "profile")
}

func (r *repoPG) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return scanProfile(r.conn(ctx).QueryRow(ctx, `SELECT `+profileCols+` FROM user_profiles WHERE user_id = $1`, userID))
}

func (r *repoPG) GetProfileByEmail(ctx context.Context, email string) (*Profile, error) {
	return scanProfile(r.conn(ctx).QueryRow(ctx, `SELECT `+profileCols+` FROM user_profiles WHERE LOWER(email) = LOWER($1)`, email))
}

func (r *repoPG) ListProfiles(ctx context.Context, role string, limit, offset int) ([]*Profile, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM user_profiles WHERE ($1 = '' OR role = $1)`, role).Scan(&total); err != nil {
		return nil, 0, db.Classify(err, "profile")
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+profileCols+` FROM user_profiles
		WHERE ($1 = '' OR role = $1)
		ORDER BY name, user_id LIMIT $2 OFFSET $3`, role, limit, offset)
	if err != nil {
		return nil, 0, db.Classify(err, "profile")
	}
	defer rows.Close()
	var items []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, db.Classify(rows.Err(), "profile")
}

func (r *repoPG) UpdateRole(ctx context.Context, userID uuid.UUID, role string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE user_profiles SET role = $2, updated_at = NOW() WHERE user_id = $1`, userID, role)
	if err != nil {
		return db.Classify(err, "profile")
	}
	if tag.RowsAffected() == 0 {
		return db.Classify(pgx.ErrNoRows, "profile")
	}
	return nil
}

func (r *repoPG) CountAdmins(ctx context.Context) (int, error) {
	q := `SELECT user_id FROM user_profiles WHERE role IN ('admin', 'admin_doctor')`
	if db.InTx(ctx) {
		q += ` FOR UPDATE`
	}
	rows, err := r.conn(ctx).Query(ctx, q)
	if err != nil {
		return 0, db.Classify(err, "profile")
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	return n, db.Classify(rows.Err(), "profile")
}

func (r *repoPG) LockBootstrap(ctx context.Context) error {
	return db.AdvisoryLock(ctx, r.conn(ctx), "accounts:bootstrap")
}
