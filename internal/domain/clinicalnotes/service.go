package clinicalnotes

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/appointments"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/internal/platform/telemetry"
	"github.com/clinic/clinic/pkg/apperrors"
	"github.com/clinic/clinic/pkg/validate"
)

// Consultations is the part of the appointments service notes depend on.
type Consultations interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
	Finish(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
}

type Service struct {
	repo          Repository
	tx            db.Transactor
	consultations Consultations
	events        *events.Emitter
	metrics       *telemetry.Metrics
}

func NewService(repo Repository, tx db.Transactor, consultations Consultations, emitter *events.Emitter, metrics *telemetry.Metrics) *Service {
	return &Service{repo: repo, tx: tx, consultations: consultations, events: emitter, metrics: metrics}
}

// actor returns the calling user, who must hold a clinical role.
func actor(ctx context.Context) (uuid.UUID, error) {
	if !auth.CanAccessClinicalNotes(auth.RoleFromContext(ctx)) {
		return uuid.Nil, apperrors.NewForbiddenError("clinical notes require a doctor role")
	}
	id, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, apperrors.NewUnauthorizedError("unknown user")
	}
	return id, nil
}

func validateInput(in *NoteInput) error {
	in.Summary = validate.Trimmed(in.Summary)
	if in.Summary == nil {
		return apperrors.NewValidationError("summary is required")
	}
	if err := validate.MinLen("summary", *in.Summary, MinSummaryLen); err != nil {
		return err
	}
	in.Diagnosis = validate.Trimmed(in.Diagnosis)
	in.Prescription = validate.Trimmed(in.Prescription)
	in.Urgency = strings.ToLower(strings.TrimSpace(in.Urgency))
	if in.Urgency == "" {
		in.Urgency = UrgencyLow
	}
	if !validUrgency(in.Urgency) {
		return apperrors.Validationf("invalid urgency: %s", in.Urgency)
	}
	return nil
}

// visible loads a note, hiding other authors' private notes as not found.
func (s *Service) visible(ctx context.Context, id, viewer uuid.UUID) (*Note, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.VisibleTo(viewer) {
		return nil, apperrors.NewNotFoundError("clinical note not found")
	}
	return n, nil
}

// CreateNote records a note for an appointment. When asked to, or when the
// appointment is still scheduled, the consultation is finished in the same
// transaction.
func (s *Service) CreateNote(ctx context.Context, appointmentID uuid.UUID, in NoteInput) (*Note, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	n := &Note{
		AppointmentID: appointmentID,
		Summary:       in.Summary,
		Diagnosis:     in.Diagnosis,
		Prescription:  in.Prescription,
		IsPrivate:     in.IsPrivate,
		Urgency:       in.Urgency,
		CreatedBy:     &userID,
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		appt, err := s.consultations.GetAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if err := s.repo.Create(ctx, n); err != nil {
			return err
		}
		if (in.FinishConsultation && appt.Status != appointments.StatusDone) || appt.Status == appointments.StatusScheduled {
			if _, err := s.consultations.Finish(ctx, appointmentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, events.Event{
		Type:     events.NoteCreated,
		EntityID: n.ID.String(),
		Data:     map[string]interface{}{"appointment_id": appointmentID.String()},
	})
	return n, nil
}

// UpdateNote snapshots the current note as the next version and then
// applies the edit. Both happen under the note's row lock, so concurrent
// edits get consecutive version numbers.
func (s *Service) UpdateNote(ctx context.Context, id uuid.UUID, in NoteInput) (*Note, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	var n *Note
	var version int
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		cur, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !cur.VisibleTo(userID) {
			return apperrors.NewNotFoundError("clinical note not found")
		}
		count, err := s.repo.CountVersions(ctx, id)
		if err != nil {
			return err
		}
		version = count + 1
		if err := s.repo.CreateVersion(ctx, &Version{
			NoteID:        id,
			VersionNumber: version,
			Summary:       cur.Summary,
			Diagnosis:     cur.Diagnosis,
			Prescription:  cur.Prescription,
			IsPrivate:     cur.IsPrivate,
			Urgency:       cur.Urgency,
			EditedBy:      &userID,
		}); err != nil {
			return err
		}

		cur.Summary = in.Summary
		cur.Diagnosis = in.Diagnosis
		cur.Prescription = in.Prescription
		cur.IsPrivate = in.IsPrivate
		cur.Urgency = in.Urgency
		cur.UpdatedBy = &userID
		if err := s.repo.Update(ctx, cur); err != nil {
			return err
		}
		if in.FinishConsultation {
			appt, err := s.consultations.GetAppointment(ctx, cur.AppointmentID)
			if err != nil {
				return err
			}
			if appt.Status != appointments.StatusDone {
				if _, err := s.consultations.Finish(ctx, cur.AppointmentID); err != nil {
					return err
				}
			}
		}
		n = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.NoteVersionWritten()
	s.events.Emit(ctx, events.Event{
		Type:     events.NoteUpdated,
		EntityID: n.ID.String(),
		Data:     map[string]interface{}{"appointment_id": n.AppointmentID.String(), "version": version},
	})
	return n, nil
}

func (s *Service) GetNote(ctx context.Context, id uuid.UUID) (*Note, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.visible(ctx, id, userID)
}

// ListByAppointment returns the appointment's notes the caller may see,
// newest first.
func (s *Service) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Note, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.consultations.GetAppointment(ctx, appointmentID); err != nil {
		return nil, err
	}
	return s.repo.ListByAppointment(ctx, appointmentID, userID)
}

// ListVersions returns the note's history, oldest first.
func (s *Service) ListVersions(ctx context.Context, noteID uuid.UUID) ([]*Version, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.visible(ctx, noteID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, noteID)
}

// UpsertForAppointment backs the single-note editor: it edits the newest
// note the caller can see, or creates the first one.
func (s *Service) UpsertForAppointment(ctx context.Context, appointmentID uuid.UUID, in NoteInput) (*Note, bool, error) {
	notes, err := s.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, false, err
	}
	if len(notes) == 0 {
		n, err := s.CreateNote(ctx, appointmentID, in)
		return n, true, err
	}
	n, err := s.UpdateNote(ctx, notes[0].ID, in)
	return n, false, err
}
