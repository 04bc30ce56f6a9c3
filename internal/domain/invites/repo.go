package invites

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, inv *Invite) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invite, error)
	GetByTokenHash(ctx context.Context, hash string) (*Invite, error)
	// GetByTokenHashForUpdate locks the invite row for the enclosing
	// transaction.
	GetByTokenHashForUpdate(ctx context.Context, hash string) (*Invite, error)
	// HasPending reports whether an unaccepted, unexpired invite exists
	// for email.
	HasPending(ctx context.Context, email string, now time.Time) (bool, error)
	// LockEmail serialises invite issuing for one e-mail within the
	// enclosing transaction.
	LockEmail(ctx context.Context, email string) error
	List(ctx context.Context, status string, now time.Time, limit, offset int) ([]*Invite, int, error)
	MarkAccepted(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountPending(ctx context.Context, now time.Time) (int, error)
}
