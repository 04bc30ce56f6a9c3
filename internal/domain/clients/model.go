package clients

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/pkg/civil"
)

// Client maps to the clients table: a patient of the practice.
type Client struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	BirthDate civil.Date `db:"birth_date" json:"birth_date"`
	Email     *string    `db:"email" json:"email,omitempty"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	Notes     *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Visit is one row of a client's appointment history.
type Visit struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Date          time.Time `json:"date"`
	DurationMin   int       `json:"duration_min"`
	Status        string    `json:"status"`
	DoctorName    string    `json:"doctor_name"`
	RoomName      *string   `json:"room_name,omitempty"`
}

// Stats aggregates a client's appointments.
type Stats struct {
	Appointments int        `json:"appointments"`
	Done         int        `json:"done"`
	Canceled     int        `json:"canceled"`
	LastVisit    *time.Time `json:"last_visit,omitempty"`
	NextVisit    *time.Time `json:"next_visit,omitempty"`
}

// Summary is the client detail page: the record plus its stats.
type Summary struct {
	Client *Client `json:"client"`
	Stats  Stats   `json:"stats"`
}
