package admins

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/TrackDesk/internal/metrics"
	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/validation"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

type Repository interface {
	ListAdmins(ctx context.Context) ([]*models.AdminUser, error)
	GetAdmin(ctx context.Context, id uuid.UUID) (*models.AdminUser, error)
	GetAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	CreateAdmin(ctx context.Context, a *models.AdminUser) error
	UpdateAdmin(ctx context.Context, a *models.AdminUser) error
	DeleteAdmin(ctx context.Context, id uuid.UUID) error
	TouchAdminLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	CountAdmins(ctx context.Context) (int, error)
}

type Sessions interface {
	Create(ctx context.Context, sess *models.Session) (string, error)
	Get(ctx context.Context, token string) (*models.Session, bool, error)
	Delete(ctx context.Context, token string) error
}

type CreateInput struct {
	Name     string           `json:"name" validate:"required"`
	Email    string           `json:"email" validate:"required,email"`
	Password string           `json:"password" validate:"required,min=8,bcrypt_len"`
	Role     models.AdminRole `json:"role" validate:"required,oneof=admin super_admin viewer"`
}

type UpdateInput struct {
	Name  string           `json:"name" validate:"required"`
	Email string           `json:"email" validate:"required,email"`
	Role  models.AdminRole `json:"role" validate:"required,oneof=admin super_admin viewer"`
	// Password меняется, только если передан.
	Password *string `json:"password" validate:"omitempty,min=8,bcrypt_len"`
}

type Service struct {
	repo     Repository
	sessions Sessions
	cost     int
	now      func() time.Time

	// dummyHash сравнивается при неизвестном email, чтобы время ответа не выдавало, есть ли такой админ.
	dummyHash []byte
}

func New(repo Repository, sessions Sessions) *Service {
	return NewWithCost(repo, sessions, bcrypt.DefaultCost)
}

func NewWithCost(repo Repository, sessions Sessions, cost int) *Service {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("trackdesk-dummy-password"), cost)
	return &Service{
		repo:      repo,
		sessions:  sessions,
		cost:      cost,
		now:       func() time.Time { return time.Now().UTC() },
		dummyHash: dummy,
	}
}

func (s *Service) List(ctx context.Context) ([]*models.AdminUser, error) {
	return s.repo.ListAdmins(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	return s.repo.GetAdmin(ctx, id)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.AdminUser, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Role == "" {
		in.Role = models.AdminRoleAdmin
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	a := &models.AdminUser{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateAdmin(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.AdminUser, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Password != nil && *in.Password == "" {
		in.Password = nil
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	a, err := s.repo.GetAdmin(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Name = in.Name
	a.Email = in.Email
	a.Role = in.Role
	if in.Password != nil {
		hash, err := s.hash(*in.Password)
		if err != nil {
			return nil, err
		}
		a.PasswordHash = hash
	}
	a.UpdatedAt = s.now()

	if err := s.repo.UpdateAdmin(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteAdmin(ctx, id)
}

// Authenticate checks the credentials. Unknown email and wrong password both
// yield models.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.AdminUser, error) {
	a, err := s.repo.GetAdminByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, models.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		return nil, models.ErrInvalidCredentials
	}

	now := s.now()
	if err := s.repo.TouchAdminLogin(ctx, a.ID, now); err != nil {
		slog.Warn("touch admin login", "admin_id", a.ID, "error", err.Error())
	} else {
		a.LastLogin = &now
	}
	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	return a, nil
}

// Login authenticates and opens a server-side session.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.AdminUser, error) {
	a, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", nil, err
	}
	token, err := s.sessions.Create(ctx, &models.Session{
		AdminID:  a.ID,
		Email:    a.Email,
		Name:     a.Name,
		Role:     a.Role,
		IssuedAt: s.now(),

		PasswordStamp: passwordStamp(a.PasswordHash),
	})
	if err != nil {
		return "", nil, err
	}
	return token, a, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// Session resolves a bearer token; unknown or expired tokens give models.ErrInvalidCredentials.
// The admin is re-read on every call: a deleted admin or a changed password
// revokes the session, and name and role changes apply at once.
func (s *Service) Session(ctx context.Context, token string) (*models.Session, error) {
	sess, ok, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrInvalidCredentials
	}

	a, err := s.repo.GetAdmin(ctx, sess.AdminID)
	if errors.Is(err, models.ErrNotFound) {
		s.revoke(ctx, token, "admin deleted")
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(sess.PasswordStamp), []byte(passwordStamp(a.PasswordHash))) != 1 {
		s.revoke(ctx, token, "password changed")
		return nil, models.ErrInvalidCredentials
	}

	return &models.Session{
		AdminID:  a.ID,
		Email:    a.Email,
		Name:     a.Name,
		Role:     a.Role,
		IssuedAt: sess.IssuedAt,
	}, nil
}

func (s *Service) revoke(ctx context.Context, token, reason string) {
	if err := s.sessions.Delete(ctx, token); err != nil {
		slog.Warn("revoke session", "reason", reason, "error", err.Error())
	}
}

// EnsureBootstrapAdmin creates the first super_admin when there are no admins yet.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, name, email, password string) (bool, error) {
	n, err := s.repo.CountAdmins(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if name == "" {
		name = "Administrator"
	}
	if _, err := s.Create(ctx, CreateInput{Name: name, Email: email, Password: password, Role: models.AdminRoleSuperAdmin}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(b), nil
}

// passwordStamp не раскрывает сам bcrypt-хэш, но меняется вместе с ним.
func passwordStamp(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
