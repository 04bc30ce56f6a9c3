package clinicalnotes

import (
	"time"

	"github.com/google/uuid"
)

// Urgency levels.
const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

// MinSummaryLen is the shortest accepted summary.
const MinSummaryLen = 10

func validUrgency(u string) bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// Note is the clinical record of one consultation. An appointment may have
// several; the newest is the one the editor works on.
type Note struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	AppointmentID uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	Summary       *string    `db:"summary" json:"summary,omitempty"`
	Diagnosis     *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	Prescription  *string    `db:"prescription" json:"prescription,omitempty"`
	IsPrivate     bool       `db:"is_private" json:"is_private"`
	Urgency       string     `db:"urgency" json:"urgency"`
	CreatedBy     *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy     *uuid.UUID `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// VisibleTo reports whether viewer may read the note. Private notes are
// visible only to their author.
func (n *Note) VisibleTo(viewer uuid.UUID) bool {
	return !n.IsPrivate || (n.CreatedBy != nil && *n.CreatedBy == viewer)
}

// Version is a snapshot of a note as it was before one edit.
type Version struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	NoteID        uuid.UUID  `db:"note_id" json:"note_id"`
	VersionNumber int        `db:"version_number" json:"version_number"`
	Summary       *string    `db:"summary" json:"summary,omitempty"`
	Diagnosis     *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	Prescription  *string    `db:"prescription" json:"prescription,omitempty"`
	IsPrivate     bool       `db:"is_private" json:"is_private"`
	Urgency       string     `db:"urgency" json:"urgency"`
	EditedBy      *uuid.UUID `db:"edited_by" json:"edited_by,omitempty"`
	EditedAt      time.Time  `db:"edited_at" json:"edited_at"`
}

// NoteInput is the editable part of a note.
type NoteInput struct {
	Summary            *string `json:"summary"`
	Diagnosis          *string `json:"diagnosis"`
	Prescription       *string `json:"prescription"`
	IsPrivate          bool    `json:"is_private"`
	Urgency            string  `json:"urgency"`
	FinishConsultation bool    `json:"finish_consultation"`
}
