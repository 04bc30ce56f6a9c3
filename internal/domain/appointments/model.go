package appointments

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/pkg/apperrors"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCanceled   Status = "canceled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusScheduled, StatusInProgress, StatusDone, StatusCanceled}

// Duration bounds in minutes.
const (
	DefaultDuration = 60
	MinDuration     = 15
	MaxDuration     = 480
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusDone, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusCanceled
}

// CanTransition reports whether an appointment may move from one status to
// another. Staying in the same status is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusScheduled:
		return to == StatusInProgress || to == StatusDone || to == StatusCanceled
	case StatusInProgress:
		return to == StatusDone || to == StatusCanceled
	}
	return false
}

var legacyStatuses = map[string]Status{
	"agendada":     StatusScheduled,
	"agendado":     StatusScheduled,
	"em andamento": StatusInProgress,
	"em_andamento": StatusInProgress,
	"concluída":    StatusDone,
	"concluida":    StatusDone,
	"realizada":    StatusDone,
	"cancelada":    StatusCanceled,
	"cancelado":    StatusCanceled,
}

// ParseStatus accepts the status codes and the Portuguese labels used by
// the legacy spreadsheets, case-insensitively.
func ParseStatus(s string) (Status, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if st := Status(v); st.Valid() {
		return st, nil
	}
	if st, ok := legacyStatuses[v]; ok {
		return st, nil
	}
	return "", apperrors.Validationf("invalid status: %s", s)
}

// Appointment maps to the appointments table. The *Name fields are joined
// in on reads and ignored on writes.
type Appointment struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ClientID    uuid.UUID  `db:"client_id" json:"client_id"`
	DoctorID    uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	RoomID      *uuid.UUID `db:"room_id" json:"room_id,omitempty"`
	Date        time.Time  `db:"date" json:"date"`
	DurationMin int        `db:"duration_min" json:"duration_min"`
	Status      Status     `db:"status" json:"status"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`

	ClientName *string `json:"client_name,omitempty"`
	DoctorName *string `json:"doctor_name,omitempty"`
	RoomName   *string `json:"room_name,omitempty"`
}

// End is the time the appointment's slot ends.
func (a *Appointment) End() time.Time {
	d := a.DurationMin
	if d == 0 {
		d = DefaultDuration
	}
	return a.Date.Add(time.Duration(d) * time.Minute)
}

// Filter narrows an appointment search. From is inclusive and To exclusive.
type Filter struct {
	From     *time.Time
	To       *time.Time
	RoomID   *uuid.UUID
	DoctorID *uuid.UUID
	ClientID *uuid.UUID
	Status   Status
	Q        string
}
