package invites

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/accounts"
	"github.com/clinic/clinic/internal/domain/doctors"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/internal/platform/notification"
	"github.com/clinic/clinic/internal/platform/telemetry"
	"github.com/clinic/clinic/pkg/apperrors"
	"github.com/clinic/clinic/pkg/validate"
)

const (
	minPasswordLen = 6
	defaultTTL     = 7 * 24 * time.Hour
)

// Members creates and looks up logins; accounts.Service implements it.
type Members interface {
	CreateMember(ctx context.Context, m accounts.NewMember) (*accounts.Profile, error)
	EmailRegistered(ctx context.Context, email string) (bool, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*accounts.Profile, error)
}

// Doctors creates the doctor row of a redeemed doctor invite.
type Doctors interface {
	CreateLinked(ctx context.Context, userID uuid.UUID, name string) (*doctors.Doctor, error)
}

type Config struct {
	TTL        time.Duration
	BaseURL    string
	ClinicName string
	Logger     zerolog.Logger
}

type Service struct {
	repo     Repository
	tx       db.Transactor
	members  Members
	doctors  Doctors
	notifier *notification.Notifier
	events   *events.Emitter
	metrics  *telemetry.Metrics
	cfg      Config
	now      func() time.Time
}

func NewService(repo Repository, tx db.Transactor, members Members, docs Doctors, notifier *notification.Notifier,
	emitter *events.Emitter, metrics *telemetry.Metrics, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	return &Service{
		repo:     repo,
		tx:       tx,
		members:  members,
		doctors:  docs,
		notifier: notifier,
		events:   emitter,
		metrics:  metrics,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *Service) link(token string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/" + url.PathEscape(token)
}

// Issue creates an invite and e-mails its link. The raw token is returned
// only here.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	email, err := validate.Email(req.Email)
	if err != nil {
		return nil, err
	}
	role := strings.TrimSpace(req.Role)
	if !auth.ValidRole(role) {
		return nil, apperrors.Validationf("invalid role: %s", req.Role)
	}
	now := s.now()

	raw, hash, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, apperrors.NewInternalError("generate invite token", err)
	}
	inv := &Invite{
		Email:     email,
		Role:      role,
		TokenHash: hash,
		ExpiresAt: now.Add(s.cfg.TTL),
	}
	if uid, err := uuid.Parse(auth.UserIDFromContext(ctx)); err == nil {
		inv.InvitedBy = &uid
	}

	// The e-mail lock makes the pending check and the insert one step for
	// concurrent issuers.
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockEmail(ctx, email); err != nil {
			return err
		}
		pending, err := s.repo.HasPending(ctx, email, now)
		if err != nil {
			return err
		}
		if pending {
			return apperrors.NewConflictError("pending invite")
		}
		registered, err := s.members.EmailRegistered(ctx, email)
		if err != nil {
			return err
		}
		if registered {
			return apperrors.NewConflictError("already registered")
		}
		return s.repo.Create(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	out := &Issued{Invite: inv, Token: raw, Link: s.link(raw)}
	out.Notified = s.notify(ctx, notification.TemplateUserInvite, map[string]string{
		"clinic":     s.cfg.ClinicName,
		"role":       role,
		"link":       out.Link,
		"expires_at": inv.ExpiresAt.Format("2006-01-02 15:04"),
	}, email)

	s.metrics.InviteEvent("issued")
	s.events.Emit(ctx, events.Event{Type: events.InviteIssued, EntityID: inv.ID.String(), Data: map[string]interface{}{"role": role}})
	return out, nil
}

// notify sends a templated message. Failures are logged and counted; the
// invite flow never fails because of them.
func (s *Service) notify(ctx context.Context, template string, data map[string]string, recipient string) bool {
	if s.notifier == nil {
		return false
	}
	if _, err := s.notifier.SendFromTemplate(ctx, template, data, recipient); err != nil {
		s.cfg.Logger.Warn().Err(err).Str("template", template).Msg("failed to send notification")
		s.metrics.SideEffectFailed("notification")
		return false
	}
	return true
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Invite, int, error) {
	if status == "" {
		status = StatusAll
	}
	if !validStatus(status) {
		return nil, 0, apperrors.Validationf("invalid status: %s", status)
	}
	return s.repo.List(ctx, status, s.now(), limit, offset)
}

// Revoke deletes an invite that has not been accepted.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if inv.Accepted {
		return apperrors.NewConflictError("invite already accepted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.InviteEvent("revoked")
	s.events.Emit(ctx, events.Event{Type: events.InviteRevoked, EntityID: id.String()})
	return nil
}

// checkRedeemable maps an accepted invite to not found and an expired one
// to a validation error.
func (s *Service) checkRedeemable(inv *Invite, now time.Time) error {
	if inv.Accepted {
		return apperrors.NewNotFoundError("invite not found")
	}
	if inv.Expired(now) {
		return apperrors.NewValidationError("invite expired")
	}
	return nil
}

// Lookup shows a pending invite to the person holding its token.
func (s *Service) Lookup(ctx context.Context, token string) (*Lookup, error) {
	inv, err := s.repo.GetByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		return nil, err
	}
	if err := s.checkRedeemable(inv, s.now()); err != nil {
		return nil, err
	}
	return &Lookup{Email: inv.Email, Role: inv.Role, ExpiresAt: inv.ExpiresAt}, nil
}

// Redeem turns an invite into a login. Account, profile, the doctor row for
// doctor roles and the acceptance mark are written in one transaction: a
// failure at any step leaves nothing behind.
func (s *Service) Redeem(ctx context.Context, token string, req RedeemRequest) (*Redeemed, error) {
	name := strings.TrimSpace(req.Name)
	if err := validate.MinLen("name", name, 2); err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLen {
		return nil, apperrors.Validationf("password must be at least %d characters", minPasswordLen)
	}

	var inv *Invite
	out := &Redeemed{}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.GetByTokenHashForUpdate(ctx, auth.HashToken(token))
		if err != nil {
			return err
		}
		now := s.now()
		if err := s.checkRedeemable(inv, now); err != nil {
			return err
		}
		out.Profile, err = s.members.CreateMember(ctx, accounts.NewMember{
			Email:    inv.Email,
			Name:     name,
			Password: req.Password,
			Role:     inv.Role,
		})
		if err != nil {
			return err
		}
		if auth.CanAccessClinicalNotes(inv.Role) {
			d, err := s.doctors.CreateLinked(ctx, out.Profile.UserID, name)
			if err != nil {
				return err
			}
			out.DoctorID = &d.ID
		}
		return s.repo.MarkAccepted(ctx, inv.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InviteEvent("redeemed")
	s.events.Emit(ctx, events.Event{
		Type:     events.InviteRedeemed,
		EntityID: inv.ID.String(),
		Actor:    out.Profile.UserID.String(),
		Data:     map[string]interface{}{"role": inv.Role},
	})
	if inv.InvitedBy != nil {
		if inviter, err := s.members.GetProfile(ctx, *inv.InvitedBy); err == nil {
			s.notify(ctx, notification.TemplateInviteAccepted, map[string]string{
				"name":  name,
				"email": inv.Email,
				"role":  inv.Role,
			}, inviter.Email)
		}
	}
	return out, nil
}

// CountPending backs the dashboard.
func (s *Service) CountPending(ctx context.Context) (int, error) {
	return s.repo.CountPending(ctx, s.now())
}
