package pgstore

import (
	"context"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// TrackingUpdate описывает одну смену статуса заказа. FromVersion: версия, которую видел вызывающий.
type TrackingUpdate struct {
	FromVersion int64
	Event       *models.TrackingEvent
	Outbox      *Outbox
}

// AppendTrackingEvent applies a status change with compare-and-swap on the
// order version. The order row, the history event and the outbox message are
// written in one transaction. A version mismatch yields models.ErrConflict.
func (s *Storage) AppendTrackingEvent(ctx context.Context, upd TrackingUpdate) (*models.Order, error) {
	ev := upd.Event
	if ev == nil {
		return nil, errors.New("event is required")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storeErr(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `
UPDATE orders
SET
  status = $3,
  version = version + 1,
  updated_at = GREATEST(updated_at, $4)
WHERE id = $1 AND version = $2
RETURNING `+orderColumns,
		ev.OrderID, upd.FromVersion, string(ev.Status), ev.Timestamp.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, ev.OrderID).Scan(&exists); err != nil {
			return nil, storeErr(err, "check order")
		}
		if !exists {
			return nil, errors.Wrapf(models.ErrNotFound, "order %s", ev.OrderID)
		}
		return nil, errors.Wrapf(models.ErrConflict, "order %s changed since version %d", ev.OrderID, upd.FromVersion)
	}
	if err != nil {
		return nil, storeErr(err, "update order status")
	}

	if err := insertEvent(ctx, tx, ev); err != nil {
		return nil, err
	}
	if err := insertOutbox(ctx, tx, upd.Outbox); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr(err, "commit tx")
	}
	return o, nil
}

// ListTrackingHistory returns the order's events newest first. Events with
// equal timestamps are ordered by insertion, later first.
func (s *Storage) ListTrackingHistory(ctx context.Context, orderID uuid.UUID) ([]*models.TrackingEvent, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, order_id, status, location, description, "timestamp"
FROM tracking_history
WHERE order_id = $1
ORDER BY "timestamp" DESC, seq DESC
`, orderID)
	if err != nil {
		return nil, storeErr(err, "select history")
	}
	defer rows.Close()

	out := []*models.TrackingEvent{}
	for rows.Next() {
		var e models.TrackingEvent
		var status string
		if err := rows.Scan(&e.ID, &e.OrderID, &status, &e.Location, &e.Description, &e.Timestamp); err != nil {
			return nil, storeErr(err, "scan event")
		}
		e.Status = models.Status(status)
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, storeErr(rows.Err(), "rows")
	}
	return out, nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, e *models.TrackingEvent) error {
	_, err := tx.Exec(ctx, `
INSERT INTO tracking_history (id, order_id, status, location, description, "timestamp")
VALUES ($1,$2,$3,$4,$5,$6)
`, e.ID, e.OrderID, string(e.Status), e.Location, e.Description, e.Timestamp.UTC())
	return storeErr(err, "insert tracking event")
}
