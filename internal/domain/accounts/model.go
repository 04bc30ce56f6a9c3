package accounts

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/auth"
)

// Account maps to the user_accounts table: the login identity.
type Account struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Profile maps to the user_profiles table. Role is the only source of
// authority the server trusts.
type Profile struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Role      string    `db:"role" json:"role"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Profile   *Profile  `json:"profile"`
}

// Me is the caller's own profile with the capabilities derived from its role.
type Me struct {
	Profile      *Profile          `json:"profile"`
	Capabilities auth.Capabilities `json:"capabilities"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// NewMember is what invite redemption and bootstrap need to create a login.
type NewMember struct {
	Email    string
	Name     string
	Password string
	Role     string
}
