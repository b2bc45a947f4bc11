package admins

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memRepo struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*models.AdminUser
	touched int
}

func newMemRepo() *memRepo {
	return &memRepo{byID: map[uuid.UUID]*models.AdminUser{}}
}

func (r *memRepo) ListAdmins(ctx context.Context) ([]*models.AdminUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.AdminUser, 0, len(r.byID))
	for _, a := range r.byID {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memRepo) GetAdmin(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) GetAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memRepo) emailTaken(email string, except uuid.UUID) bool {
	for id, a := range r.byID {
		if id != except && strings.EqualFold(a.Email, email) {
			return true
		}
	}
	return false
}

func (r *memRepo) CreateAdmin(ctx context.Context, a *models.AdminUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTaken(a.Email, uuid.Nil) {
		return models.ErrConflict
	}
	cp := *a
	r.byID[a.ID] = &cp
	return nil
}

func (r *memRepo) UpdateAdmin(ctx context.Context, a *models.AdminUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[a.ID]; !ok {
		return models.ErrNotFound
	}
	if r.emailTaken(a.Email, a.ID) {
		return models.ErrConflict
	}
	cp := *a
	r.byID[a.ID] = &cp
	return nil
}

func (r *memRepo) DeleteAdmin(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *memRepo) TouchAdminLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched++
	if a, ok := r.byID[id]; ok {
		a.LastLogin = &at
	}
	return nil
}

func (r *memRepo) CountAdmins(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID), nil
}

type memSessions struct {
	m map[string]*models.Session
}

func (s *memSessions) Create(ctx context.Context, sess *models.Session) (string, error) {
	token := uuid.NewString()
	s.m[token] = sess
	return token, nil
}

func (s *memSessions) Get(ctx context.Context, token string) (*models.Session, bool, error) {
	sess, ok := s.m[token]
	return sess, ok, nil
}

func (s *memSessions) Delete(ctx context.Context, token string) error {
	delete(s.m, token)
	return nil
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewWithCost(repo, &memSessions{m: map[string]*models.Session{}}, bcrypt.MinCost), repo
}

func TestCreate_HashesPassword(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{Name: " Ana ", Email: " Ana@Example.com ", Password: "s3cretpass"})
	require.NoError(t, err)
	require.Equal(t, "Ana", a.Name)
	require.Equal(t, "ana@example.com", a.Email)
	require.Equal(t, models.AdminRoleAdmin, a.Role)

	stored := repo.byID[a.ID]
	require.NotEqual(t, "s3cretpass", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cretpass")))

	_, err = svc.Create(ctx, CreateInput{Name: "Other", Email: "ANA@example.com", Password: "anotherpass"})
	require.ErrorIs(t, err, models.ErrConflict)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), CreateInput{Name: "", Email: "not-an-email", Password: "short", Role: "owner"})
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)

	fields := map[string]bool{}
	for _, f := range ve.Fields {
		fields[f.Field] = true
	}
	require.True(t, fields["name"])
	require.True(t, fields["email"])
	require.True(t, fields["password"])
	require.True(t, fields["role"])
}

func TestAuthenticate(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{Name: "Ana", Email: "ana@example.com", Password: "s3cretpass", Role: models.AdminRoleViewer})
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, "ANA@example.com", "s3cretpass")
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)
	require.NotNil(t, got.LastLogin)
	require.Equal(t, 1, repo.touched)

	_, err = svc.Authenticate(ctx, "ana@example.com", "wrong-pass")
	require.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "s3cretpass")
	require.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestUpdate_PasswordOnlyWhenGiven(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{Name: "Ana", Email: "ana@example.com", Password: "s3cretpass"})
	require.NoError(t, err)
	oldHash := repo.byID[a.ID].PasswordHash

	empty := ""
	upd, err := svc.Update(ctx, a.ID, UpdateInput{Name: "Ana Cruz", Email: "ana@example.com", Role: models.AdminRoleSuperAdmin, Password: &empty})
	require.NoError(t, err)
	require.Equal(t, "Ana Cruz", upd.Name)
	require.Equal(t, oldHash, repo.byID[a.ID].PasswordHash)

	pw := "brandnewpass"
	_, err = svc.Update(ctx, a.ID, UpdateInput{Name: "Ana Cruz", Email: "ana@example.com", Role: models.AdminRoleSuperAdmin, Password: &pw})
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "ana@example.com", "brandnewpass")
	require.NoError(t, err)

	_, err = svc.Update(ctx, uuid.New(), UpdateInput{Name: "X", Email: "x@example.com", Role: models.AdminRoleAdmin})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestLoginLogoutSession(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "Ana", Email: "ana@example.com", Password: "s3cretpass"})
	require.NoError(t, err)

	token, a, err := svc.Login(ctx, "ana@example.com", "s3cretpass")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sess, err := svc.Session(ctx, token)
	require.NoError(t, err)
	require.Equal(t, a.ID, sess.AdminID)

	require.NoError(t, svc.Logout(ctx, token))
	_, err = svc.Session(ctx, token)
	require.True(t, errors.Is(err, models.ErrInvalidCredentials))

	_, _, err = svc.Login(ctx, "ana@example.com", "nope-nope")
	require.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestPassword_TooLongForBcrypt(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "Ana", Email: "ana@example.com", Password: strings.Repeat("p", 80)})
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "password", ve.Fields[0].Field)
	require.Empty(t, repo.byID)

	a, err := svc.Create(ctx, CreateInput{Name: "Ana", Email: "ana@example.com", Password: strings.Repeat("p", 72)})
	require.NoError(t, err)

	long := strings.Repeat("й", 40)
	_, err = svc.Update(ctx, a.ID, UpdateInput{Name: "Ana", Email: "ana@example.com", Role: models.AdminRoleAdmin, Password: &long})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "password", ve.Fields[0].Field)
}

func TestSession_RevokedWhenAdminDeleted(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{Name: "Ana", Email: "ana@example.com", Password: "s3cretpass"})
	require.NoError(t, err)
	token, _, err := svc.Login(ctx, "ana@example.com", "s3cretpass")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, a.ID))

	_, err = svc.Session(ctx, token)
	require.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, ok := svc.sessions.(*memSessions).m[token]
	require.False(t, ok)
}

func TestSession_RevokedOnPasswordChange(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{Name: "Ana", Email: "ana@example.com", Password: "s3cretpass"})
	require.NoError(t, err)
	token, _, err := svc.Login(ctx, "ana@example.com", "s3cretpass")
	require.NoError(t, err)

	// профиль без пароля: сессия жива и видит новую роль
	_, err = svc.Update(ctx, a.ID, UpdateInput{Name: "Ana Cruz", Email: "ana@example.com", Role: models.AdminRoleViewer})
	require.NoError(t, err)
	sess, err := svc.Session(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "Ana Cruz", sess.Name)
	require.Equal(t, models.AdminRoleViewer, sess.Role)
	require.Empty(t, sess.PasswordStamp)

	pw := "brandnewpass"
	_, err = svc.Update(ctx, a.ID, UpdateInput{Name: "Ana Cruz", Email: "ana@example.com", Role: models.AdminRoleViewer, Password: &pw})
	require.NoError(t, err)
	_, err = svc.Session(ctx, token)
	require.ErrorIs(t, err, models.ErrInvalidCredentials)

	token, _, err = svc.Login(ctx, "ana@example.com", "brandnewpass")
	require.NoError(t, err)
	_, err = svc.Session(ctx, token)
	require.NoError(t, err)
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.EnsureBootstrapAdmin(ctx, "", "root@example.com", "rootpassword")
	require.NoError(t, err)
	require.True(t, created)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, models.AdminRoleSuperAdmin, list[0].Role)
	require.Equal(t, "Administrator", list[0].Name)

	created, err = svc.EnsureBootstrapAdmin(ctx, "Root", "root2@example.com", "rootpassword")
	require.NoError(t, err)
	require.False(t, created)
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{Name: "Ana", Email: "ana@example.com", Password: "s3cretpass"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, a.ID))
	require.ErrorIs(t, svc.Delete(ctx, a.ID), models.ErrNotFound)
	_, err = svc.Get(ctx, a.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}
