package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/services/admins"
	"github.com/BearBump/TrackDesk/internal/services/orders"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type (
	ordersRepository = orders.Repository
	adminsRepository = admins.Repository
)

// fakeStore реализует только то, что вызывают команды.
type fakeStore struct {
	ordersRepository
	adminsRepository

	list    []*models.AdminUser
	created []*models.AdminUser
	order   *models.Order
	history []*models.TrackingEvent
}

func (s *fakeStore) ListAdmins(ctx context.Context) ([]*models.AdminUser, error) { return s.list, nil }

func (s *fakeStore) CreateAdmin(ctx context.Context, a *models.AdminUser) error {
	s.created = append(s.created, a)
	return nil
}

func (s *fakeStore) GetOrderByTrackingNumber(ctx context.Context, tn string) (*models.Order, error) {
	if s.order != nil && s.order.TrackingNumber == tn {
		return s.order, nil
	}
	return nil, errors.Wrapf(models.ErrNotFound, "order %s", tn)
}

func (s *fakeStore) ListTrackingHistory(ctx context.Context, id uuid.UUID) ([]*models.TrackingEvent, error) {
	return s.history, nil
}

func run(t *testing.T, st *fakeStore, args ...string) (string, error) {
	t.Helper()
	closed := false
	root := newRootCmd(func(string) (cliStore, func(), error) {
		return st, func() { closed = true }, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		require.True(t, closed, "store must be closed")
	}
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	out, err := run(t, &fakeStore{}, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "schema is up to date")
}

func TestAdminCreate(t *testing.T) {
	st := &fakeStore{}
	out, err := run(t, st, "admin", "create", "--name", "Ops", "--email", " Ops@Example.com ", "--password", "password1", "--role", "super_admin")
	require.NoError(t, err)
	require.Contains(t, out, "created admin Ops <ops@example.com> role=super_admin")

	require.Len(t, st.created, 1)
	a := st.created[0]
	require.NotEqual(t, "password1", a.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte("password1")))
}

func TestAdminCreate_Validation(t *testing.T) {
	st := &fakeStore{}
	_, err := run(t, st, "admin", "create", "--name", "Ops", "--email", "ops@example.com", "--password", "short")
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Empty(t, st.created)

	_, err = run(t, st, "admin", "create", "--name", "Ops")
	require.ErrorContains(t, err, "required flag")
}

func TestAdminList(t *testing.T) {
	login := time.Date(2024, 5, 2, 1, 30, 0, 0, time.UTC)
	st := &fakeStore{list: []*models.AdminUser{
		{ID: uuid.New(), Name: "Ann", Email: "ann@example.com", Role: models.AdminRoleAdmin, LastLogin: &login},
		{ID: uuid.New(), Name: "Bob", Email: "bob@example.com", Role: models.AdminRoleViewer},
	}}
	out, err := run(t, st, "admin", "list")
	require.NoError(t, err)
	require.Contains(t, out, "ann@example.com")
	require.Contains(t, out, "May 2, 2024 09:30 AM")
	require.Contains(t, out, "N/A")
}

func TestOrderShow(t *testing.T) {
	created := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	loc := "Manila Hub"
	o := &models.Order{
		ID: uuid.New(), TrackingNumber: "LBC12345", Status: models.StatusInTransit,
		ProductName: "Shoes", Weight: 1.5, Currency: "PHP", TotalAmount: 5250,
		CreatedAt: created,
	}
	st := &fakeStore{
		order: o,
		history: []*models.TrackingEvent{
			{ID: uuid.New(), OrderID: o.ID, Status: models.StatusInTransit, Location: &loc, Timestamp: created.Add(time.Hour)},
			{ID: uuid.New(), OrderID: o.ID, Status: models.StatusPending, Timestamp: created},
		},
	}

	out, err := run(t, st, "order", "show", "LBC12345")
	require.NoError(t, err)
	require.Contains(t, out, "LBC12345")
	require.Contains(t, out, "In Transit (in_progress)")
	require.Contains(t, out, "5250.00 PHP")
	require.Contains(t, out, "Manila Hub")
	require.Contains(t, out, "March 1, 2024")

	_, err = run(t, st, "order", "show", "LBC00000")
	require.ErrorIs(t, err, models.ErrNotFound)
}
