package pgstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const orderColumns = `
  id, tracking_number, status,
  product_name, weight, dimensions, package_value, package_description,
  shipping_company, shipping_method, delivery_date, currency, shipping_cost, total_amount,
  sender_name, sender_phone, sender_address,
  recipient_name, recipient_phone, recipient_address,
  officer_name, officer_id,
  version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var status string
	if err := row.Scan(
		&o.ID, &o.TrackingNumber, &status,
		&o.ProductName, &o.Weight, &o.Dimensions, &o.PackageValue, &o.PackageDescription,
		&o.ShippingCompany, &o.ShippingMethod, &o.DeliveryDate, &o.Currency, &o.ShippingCost, &o.TotalAmount,
		&o.Sender.Name, &o.Sender.Phone, &o.Sender.Address,
		&o.Recipient.Name, &o.Recipient.Phone, &o.Recipient.Address,
		&o.OfficerName, &o.OfficerID,
		&o.Version, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.Status = models.Status(status)
	return &o, nil
}

// InsertOrder stores a new order together with its seed history event and the
// outbox message announcing it. A clash on tracking_number is reported as
// models.ErrDuplicateTrackingNumber so the caller can retry with a fresh number.
func (s *Storage) InsertOrder(ctx context.Context, o *models.Order, seed *models.TrackingEvent, out *Outbox) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeErr(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
INSERT INTO orders (`+orderColumns+`
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
`,
		o.ID, o.TrackingNumber, string(o.Status),
		o.ProductName, o.Weight, o.Dimensions, o.PackageValue, o.PackageDescription,
		o.ShippingCompany, o.ShippingMethod, o.DeliveryDate, o.Currency, o.ShippingCost, o.TotalAmount,
		o.Sender.Name, o.Sender.Phone, o.Sender.Address,
		o.Recipient.Name, o.Recipient.Phone, o.Recipient.Address,
		o.OfficerName, o.OfficerID,
		o.Version, o.CreatedAt.UTC(), o.UpdatedAt.UTC(),
	)
	if err != nil {
		if uniqueViolation(err, constraintTrackingNumber) {
			return errors.Wrapf(models.ErrDuplicateTrackingNumber, "tracking number %s", o.TrackingNumber)
		}
		return storeErr(err, "insert order")
	}

	if seed != nil {
		if err := insertEvent(ctx, tx, seed); err != nil {
			return err
		}
	}
	if err := insertOutbox(ctx, tx, out); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr(err, "commit tx")
	}
	return nil
}

func (s *Storage) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "order %s", id)
	}
	if err != nil {
		return nil, storeErr(err, "select order")
	}
	return o, nil
}

func (s *Storage) GetOrderByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE tracking_number = $1`, trackingNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "order %s", trackingNumber)
	}
	if err != nil {
		return nil, storeErr(err, "select order")
	}
	return o, nil
}

// ListOrders returns one page of orders matching the filter plus the total
// number of matching rows.
func (s *Storage) ListOrders(ctx context.Context, f models.OrderFilter, limit, offset int) ([]*models.Order, int, error) {
	var where []string
	var args []any
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(tracking_number ILIKE $%d OR recipient_name ILIKE $%d OR sender_name ILIKE $%d)", n, n, n))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM orders`+cond, args...).Scan(&total); err != nil {
		return nil, 0, storeErr(err, "count orders")
	}

	args = append(args, limit, offset)
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
SELECT %s
FROM orders%s
ORDER BY created_at DESC, id DESC
LIMIT $%d OFFSET $%d
`, orderColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, storeErr(err, "select orders")
	}
	defer rows.Close()

	out := make([]*models.Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, storeErr(err, "scan order")
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, 0, storeErr(rows.Err(), "rows")
	}
	return out, total, nil
}

func (s *Storage) CountOrdersByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.db.Query(ctx, `SELECT status, count(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, storeErr(err, "count by status")
	}
	defer rows.Close()

	out := make(map[models.Status]int)
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, storeErr(err, "scan status count")
		}
		out[models.Status(st)] = n
	}
	if rows.Err() != nil {
		return nil, storeErr(rows.Err(), "rows")
	}
	return out, nil
}

// DeleteOrder removes the order and its history in one transaction.
func (s *Storage) DeleteOrder(ctx context.Context, id uuid.UUID, out *Outbox) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeErr(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM tracking_history WHERE order_id = $1`, id); err != nil {
		return storeErr(err, "delete history")
	}
	tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return storeErr(err, "delete order")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, "order %s", id)
	}
	if err := insertOutbox(ctx, tx, out); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr(err, "commit tx")
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
