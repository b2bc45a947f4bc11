package pgstore

import (
	"context"
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const adminColumns = `id, name, email, password_hash, role, created_at, updated_at, last_login`

func (s *Storage) ListAdmins(ctx context.Context) ([]*models.AdminUser, error) {
	out := []*models.AdminUser{}
	if err := pgxscan.Select(ctx, s.db, &out, `SELECT `+adminColumns+` FROM admin_users ORDER BY name ASC, id ASC`); err != nil {
		return nil, storeErr(err, "select admins")
	}
	return out, nil
}

func (s *Storage) GetAdmin(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	var a models.AdminUser
	err := pgxscan.Get(ctx, s.db, &a, `SELECT `+adminColumns+` FROM admin_users WHERE id = $1`, id)
	if pgxscan.NotFound(err) {
		return nil, errors.Wrapf(models.ErrNotFound, "admin %s", id)
	}
	if err != nil {
		return nil, storeErr(err, "select admin")
	}
	return &a, nil
}

func (s *Storage) GetAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var a models.AdminUser
	err := pgxscan.Get(ctx, s.db, &a, `SELECT `+adminColumns+` FROM admin_users WHERE lower(email) = lower($1)`, email)
	if pgxscan.NotFound(err) {
		return nil, errors.Wrapf(models.ErrNotFound, "admin %s", email)
	}
	if err != nil {
		return nil, storeErr(err, "select admin")
	}
	return &a, nil
}

func (s *Storage) CreateAdmin(ctx context.Context, a *models.AdminUser) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO admin_users (`+adminColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, a.ID, a.Name, a.Email, a.PasswordHash, string(a.Role), a.CreatedAt.UTC(), a.UpdatedAt.UTC(), a.LastLogin)
	if uniqueViolation(err, constraintAdminEmail) {
		return errors.Wrapf(models.ErrConflict, "email %s already in use", a.Email)
	}
	return storeErr(err, "insert admin")
}

func (s *Storage) UpdateAdmin(ctx context.Context, a *models.AdminUser) error {
	tag, err := s.db.Exec(ctx, `
UPDATE admin_users
SET name = $2, email = $3, password_hash = $4, role = $5, updated_at = $6
WHERE id = $1
`, a.ID, a.Name, a.Email, a.PasswordHash, string(a.Role), a.UpdatedAt.UTC())
	if uniqueViolation(err, constraintAdminEmail) {
		return errors.Wrapf(models.ErrConflict, "email %s already in use", a.Email)
	}
	if err != nil {
		return storeErr(err, "update admin")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, "admin %s", a.ID)
	}
	return nil
}

func (s *Storage) DeleteAdmin(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM admin_users WHERE id = $1`, id)
	if err != nil {
		return storeErr(err, "delete admin")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, "admin %s", id)
	}
	return nil
}

func (s *Storage) TouchAdminLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE admin_users SET last_login = $2 WHERE id = $1`, id, at.UTC())
	return storeErr(err, "touch admin login")
}

func (s *Storage) CountAdmins(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM admin_users`).Scan(&n); err != nil {
		return 0, storeErr(err, "count admins")
	}
	return n, nil
}
