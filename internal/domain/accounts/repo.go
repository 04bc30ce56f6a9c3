package accounts

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	CreateProfile(ctx context.Context, p *Profile) error
	GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*Profile, error)
	ListProfiles(ctx context.Context, role string, limit, offset int) ([]*Profile, int, error)
	UpdateRole(ctx context.Context, userID uuid.UUID, role string) error
	// CountAdmins counts admin and admin_doctor profiles. Inside a
	// transaction it locks them, so concurrent demotions serialise.
	CountAdmins(ctx context.Context) (int, error)
	// LockBootstrap serialises first-admin creation for the enclosing
	// transaction; with no admin rows there is nothing to lock.
	LockBootstrap(ctx context.Context) error
}
