package invites

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/accounts"
)

// List filters.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusExpired  = "expired"
	StatusAll      = "all"
)

func validStatus(s string) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusExpired, StatusAll:
		return true
	}
	return false
}

// Invite maps to user_invites. Only the hash of the token is kept.
type Invite struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Email      string     `db:"email" json:"email"`
	Role       string     `db:"role" json:"role"`
	InvitedBy  *uuid.UUID `db:"invited_by" json:"invited_by,omitempty"`
	TokenHash  string     `db:"token_hash" json:"-"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	Accepted   bool       `db:"accepted" json:"accepted"`
	AcceptedAt *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Expired reports whether the invite can no longer be redeemed at now.
func (i *Invite) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Status is the invite's list status at now.
func (i *Invite) Status(now time.Time) string {
	switch {
	case i.Accepted:
		return StatusAccepted
	case i.Expired(now):
		return StatusExpired
	}
	return StatusPending
}

type IssueRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Issued is returned once, right after issuing. The raw token is not
// recoverable afterwards.
type Issued struct {
	Invite *Invite `json:"invite"`
	Token  string  `json:"token"`
	Link   string  `json:"link"`
	// Notified is false when the invite e-mail could not be queued; the
	// admin can still hand the link over.
	Notified bool `json:"notified"`
}

// Lookup is the public view of a pending invite.
type Lookup struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type RedeemRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type Redeemed struct {
	Profile  *accounts.Profile `json:"profile"`
	DoctorID *uuid.UUID        `json:"doctor_id,omitempty"`
}
