package appointments

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/clients"
	"github.com/clinic/clinic/internal/domain/doctors"
	"github.com/clinic/clinic/internal/domain/rooms"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/internal/platform/telemetry"
	"github.com/clinic/clinic/pkg/apperrors"
	"github.com/clinic/clinic/pkg/validate"
)

// Invalidator drops cached calendar layouts.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

type ClientGetter interface {
	GetClient(ctx context.Context, id uuid.UUID) (*clients.Client, error)
}

type DoctorGetter interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*doctors.Doctor, error)
}

type RoomGetter interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*rooms.Room, error)
}

// Lookups resolves the rows an appointment references.
type Lookups struct {
	Clients ClientGetter
	Doctors DoctorGetter
	Rooms   RoomGetter
}

type Service struct {
	repo     Repository
	tx       db.Transactor
	lookups  Lookups
	calendar Invalidator
	events   *events.Emitter
	metrics  *telemetry.Metrics
}

func NewService(repo Repository, tx db.Transactor, lookups Lookups, calendar Invalidator, emitter *events.Emitter, metrics *telemetry.Metrics) *Service {
	return &Service{repo: repo, tx: tx, lookups: lookups, calendar: calendar, events: emitter, metrics: metrics}
}

func (s *Service) validate(a *Appointment) error {
	if a.ClientID == uuid.Nil {
		return apperrors.NewValidationError("client_id is required")
	}
	if a.DoctorID == uuid.Nil {
		return apperrors.NewValidationError("doctor_id is required")
	}
	if a.Date.IsZero() {
		return apperrors.NewValidationError("date is required")
	}
	if a.DurationMin == 0 {
		a.DurationMin = DefaultDuration
	}
	if a.DurationMin < MinDuration || a.DurationMin > MaxDuration {
		return apperrors.Validationf("duration_min must be between %d and %d", MinDuration, MaxDuration)
	}
	if a.Status != "" && !a.Status.Valid() {
		return apperrors.Validationf("invalid status: %s", a.Status)
	}
	if a.RoomID != nil && *a.RoomID == uuid.Nil {
		a.RoomID = nil
	}
	a.Notes = validate.Trimmed(a.Notes)
	return nil
}

// checkRefs verifies the referenced client and room exist and, when
// checkDoctor is set, that the doctor can take bookings.
func (s *Service) checkRefs(ctx context.Context, a *Appointment, checkDoctor bool) error {
	if _, err := s.lookups.Clients.GetClient(ctx, a.ClientID); err != nil {
		return missingRef(err, "client")
	}
	if checkDoctor {
		d, err := s.lookups.Doctors.GetDoctor(ctx, a.DoctorID)
		if err != nil {
			return missingRef(err, "doctor")
		}
		if !d.Bookable() {
			return apperrors.NewValidationError("doctor is not approved and active")
		}
	}
	if a.RoomID != nil {
		if _, err := s.lookups.Rooms.GetRoom(ctx, *a.RoomID); err != nil {
			return missingRef(err, "room")
		}
	}
	return nil
}

func missingRef(err error, entity string) error {
	if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		return apperrors.Validationf("%s does not exist", entity)
	}
	return err
}

// changed runs the side effects of a write once it is committed.
func (s *Service) changed(ctx context.Context, eventType string, a *Appointment, data map[string]interface{}) {
	db.AfterCommit(ctx, func() {
		if s.calendar != nil {
			s.calendar.Invalidate(ctx)
		}
		s.events.Emit(ctx, events.Event{Type: eventType, EntityID: a.ID.String(), Data: data})
	})
}

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if err := s.validate(a); err != nil {
		return err
	}
	if err := s.checkRefs(ctx, a, true); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}
	s.changed(ctx, events.AppointmentCreated, a, map[string]interface{}{"status": a.Status})
	return nil
}

// GetAppointment returns the appointment with client, doctor and room names.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateAppointment replaces the editable fields. An empty status keeps the
// current one; a status change must be a legal transition. The doctor is
// re-checked only when it changes.
func (s *Service) UpdateAppointment(ctx context.Context, a *Appointment) error {
	if err := s.validate(a); err != nil {
		return err
	}
	var from Status
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		cur, err := s.repo.GetForUpdate(ctx, a.ID)
		if err != nil {
			return err
		}
		from = cur.Status
		if a.Status == "" {
			a.Status = cur.Status
		}
		if !CanTransition(cur.Status, a.Status) {
			return apperrors.Validationf("cannot change status from %s to %s", cur.Status, a.Status)
		}
		if err := s.checkRefs(ctx, a, a.DoctorID != cur.DoctorID); err != nil {
			return err
		}
		return s.repo.Update(ctx, a)
	})
	if err != nil {
		return err
	}
	if from != a.Status {
		db.AfterCommit(ctx, func() { s.metrics.AppointmentTransition(string(from), string(a.Status)) })
	}
	s.changed(ctx, events.AppointmentUpdated, a, map[string]interface{}{"status": a.Status})
	return nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, events.AppointmentDeleted, &Appointment{ID: id}, nil)
	return nil
}

func (s *Service) SearchAppointments(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperrors.Validationf("invalid status: %s", f.Status)
	}
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		return nil, 0, apperrors.NewValidationError("to must be after from")
	}
	f.Q = strings.TrimSpace(f.Q)
	return s.repo.Search(ctx, f, limit, offset)
}

// CountByStatus counts appointments starting in [from, to) per status.
// Every status is present in the result.
func (s *Service) CountByStatus(ctx context.Context, from, to time.Time) (map[Status]int, error) {
	counts, err := s.repo.CountByStatus(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[Status]int, len(Statuses))
	for _, st := range Statuses {
		out[st] = counts[st]
	}
	return out, nil
}

// StartConsultation moves a scheduled appointment to in_progress.
func (s *Service) StartConsultation(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusInProgress)
}

// Finish moves a scheduled or in-progress appointment to done. It joins the
// caller's transaction when there is one.
func (s *Service) Finish(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusDone)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCanceled)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	var a *Appointment
	var from Status
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		cur, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = cur.Status
		if from == to || !CanTransition(from, to) {
			return apperrors.Validationf("cannot change status from %s to %s", from, to)
		}
		if err := s.repo.SetStatus(ctx, id, to); err != nil {
			return err
		}
		a, err = s.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	db.AfterCommit(ctx, func() { s.metrics.AppointmentTransition(string(from), string(to)) })
	s.changed(ctx, events.AppointmentStatus, a, map[string]interface{}{"from": from, "to": to})
	return a, nil
}
