package accounts

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/pkg/apperrors"
	"github.com/clinic/clinic/pkg/validate"
)

const minPasswordLen = 6

type Service struct {
	repo   Repository
	tx     db.Transactor
	hasher *auth.PasswordHasher
	tokens *auth.TokenIssuer
}

func NewService(repo Repository, tx db.Transactor, hasher *auth.PasswordHasher, tokens *auth.TokenIssuer) *Service {
	return &Service{repo: repo, tx: tx, hasher: hasher, tokens: tokens}
}

var errInvalidCredentials = apperrors.NewUnauthorizedError("invalid credentials")

// Login checks the password and issues an access token. Unknown e-mail and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if s.tokens == nil {
		return nil, apperrors.NewForbiddenError("password login is disabled in development auth mode")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, errInvalidCredentials
	}

	acct, err := s.repo.GetAccountByEmail(ctx, email)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	ok, err := s.hasher.Verify(acct.PasswordHash, password)
	if err != nil {
		return nil, apperrors.NewInternalError("verify password", err)
	}
	if !ok {
		return nil, errInvalidCredentials
	}

	profile, err := s.repo.GetProfile(ctx, acct.ID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewForbiddenError("no profile for this account")
		}
		return nil, err
	}

	token, exp, err := s.tokens.Issue(acct.ID.String())
	if err != nil {
		return nil, apperrors.NewInternalError("issue token", err)
	}
	return &LoginResult{Token: token, ExpiresAt: exp, Profile: profile}, nil
}

// Me returns the caller's profile. In development auth mode the synthetic
// user has no row; a profile is made up from the context role.
func (s *Service) Me(ctx context.Context) (*Me, error) {
	uid, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("not authenticated")
	}
	role := auth.RoleFromContext(ctx)

	profile, err := s.repo.GetProfile(ctx, uid)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrorTypeNotFound) || uid.String() != auth.DevUserID {
			return nil, err
		}
		profile = &Profile{UserID: uid, Role: role, Name: "Development User"}
	}
	return &Me{Profile: profile, Capabilities: auth.CapabilitiesFor(role)}, nil
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

func (s *Service) ListProfiles(ctx context.Context, role string, limit, offset int) ([]*Profile, int, error) {
	if role != "" && !auth.ValidRole(role) {
		return nil, 0, apperrors.Validationf("invalid role: %s", role)
	}
	return s.repo.ListProfiles(ctx, role, limit, offset)
}

// UpdateRole changes a profile's role. Demoting the last admin is refused so
// the practice cannot lock itself out.
func (s *Service) UpdateRole(ctx context.Context, userID uuid.UUID, role string) (*Profile, error) {
	if !auth.ValidRole(role) {
		return nil, apperrors.Validationf("invalid role: %s", role)
	}

	var out *Profile
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		if auth.IsAdmin(p.Role) && !auth.IsAdmin(role) {
			n, err := s.repo.CountAdmins(ctx)
			if err != nil {
				return err
			}
			if n <= 1 {
				return apperrors.NewConflictError("cannot demote the last admin")
			}
		}
		if err := s.repo.UpdateRole(ctx, userID, role); err != nil {
			return err
		}
		p.Role = role
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveRole implements auth.RoleResolver.
func (s *Service) ResolveRole(ctx context.Context, userID string) (string, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return "", apperrors.NewUnauthorizedError("invalid subject")
	}
	p, err := s.repo.GetProfile(ctx, uid)
	if err != nil {
		return "", err
	}
	return p.Role, nil
}

// CreateMember creates the account and profile for m. It joins the
// caller's transaction when there is one.
func (s *Service) CreateMember(ctx context.Context, m NewMember) (*Profile, error) {
	email, err := validate.Email(m.Email)
	if err != nil {
		return nil, err
	}
	if err := validate.MinLen("name", m.Name, 2); err != nil {
		return nil, err
	}
	if len(m.Password) < minPasswordLen {
		return nil, apperrors.Validationf("password must be at least %d characters", minPasswordLen)
	}
	if !auth.ValidRole(m.Role) {
		return nil, apperrors.Validationf("invalid role: %s", m.Role)
	}

	hash, err := s.hasher.Hash(m.Password)
	if err != nil {
		return nil, apperrors.NewInternalError("hash password", err)
	}

	var profile *Profile
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		acct := &Account{Email: email, PasswordHash: hash}
		if err := s.repo.CreateAccount(ctx, acct); err != nil {
			if apperrors.Is(err, apperrors.ErrorTypeConflict) {
				return apperrors.NewConflictError("already registered")
			}
			return err
		}
		profile = &Profile{UserID: acct.ID, Role: m.Role, Name: strings.TrimSpace(m.Name), Email: email}
		return s.repo.CreateProfile(ctx, profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// EmailRegistered reports whether a profile exists for email.
func (s *Service) EmailRegistered(ctx context.Context, email string) (bool, error) {
	_, err := s.repo.GetProfileByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		return false, nil
	}
	return false, err
}

// Bootstrap creates the first admin. It is refused once any admin exists.
func (s *Service) Bootstrap(ctx context.Context, email, name, password string) (*Profile, error) {
	var out *Profile
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockBootstrap(ctx); err != nil {
			return err
		}
		n, err := s.repo.CountAdmins(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperrors.NewConflictError("an admin already exists")
		}
		out, err = s.CreateMember(ctx, NewMember{Email: email, Name: name, Password: password, Role: auth.RoleAdmin})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
