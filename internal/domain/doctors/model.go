package doctors

import (
	"time"

	"github.com/google/uuid"
)

// PlaceholderSpecialty is set on doctors created from an invite until they
// fill in their own.
const PlaceholderSpecialty = "A definir"

// Doctor maps to the doctors table.
type Doctor struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	Name      string     `db:"name" json:"name"`
	Specialty string     `db:"specialty" json:"specialty"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	Active    bool       `db:"active" json:"active"`
	Approved  bool       `db:"approved" json:"approved"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Pending reports whether the doctor still awaits an admin decision.
func (d *Doctor) Pending() bool { return !d.Approved }

// Bookable reports whether appointments may be booked with the doctor.
func (d *Doctor) Bookable() bool { return d.Approved && d.Active }

// Filter narrows a doctor search. Nil flags match both values.
type Filter struct {
	Q        string
	Active   *bool
	Approved *bool
}

// Counts backs the admin page header.
type Counts struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
	Pending  int `json:"pending"`
}
