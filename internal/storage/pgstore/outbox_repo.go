package pgstore

import (
	"context"
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
)

// Outbox: сообщение, которое уйдёт в Kafka после коммита транзакции.
type Outbox struct {
	Topic   string
	Key     string
	Payload []byte
}

type OutboxFailure struct {
	ID            uint64
	Attempts      int32
	NextAttemptAt time.Time
	Error         string
	Dead          bool
}

const outboxColumns = `id, topic, msg_key, payload, status, attempts, next_attempt_at, last_error, created_at, sent_at`

func insertOutbox(ctx context.Context, tx pgx.Tx, m *Outbox) error {
	if m == nil {
		return nil
	}
	_, err := tx.Exec(ctx, `
INSERT INTO outbox (topic, msg_key, payload, status, attempts, next_attempt_at, created_at)
VALUES ($1,$2,$3,'pending',0, now(), now())
`, m.Topic, m.Key, string(m.Payload))
	return storeErr(err, "insert outbox")
}

// ClaimDueOutbox выбирает пачку готовых к отправке сообщений и сдвигает им
// next_attempt_at на lease, чтобы параллельный релей их не подобрал.
// Использует SELECT ... FOR UPDATE SKIP LOCKED.
// Сообщение берётся, только если по его ключу нет более раннего pending:
// события одного заказа уходят в Kafka строго по порядку, даже когда голова
// очереди ждёт backoff или уже взята другим релеем.
func (s *Storage) ClaimDueOutbox(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.OutboxMessage, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storeErr(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var picked []*models.OutboxMessage
	err = pgxscan.Select(ctx, tx, &picked, `
SELECT `+outboxColumns+`
FROM outbox
WHERE status = 'pending'
  AND next_attempt_at <= $1
  AND NOT EXISTS (
    SELECT 1 FROM outbox prev
    WHERE prev.msg_key = outbox.msg_key
      AND prev.status = 'pending'
      AND prev.id < outbox.id
  )
ORDER BY next_attempt_at ASC, id ASC
LIMIT $2
FOR UPDATE SKIP LOCKED
`, now.UTC(), limit)
	if err != nil {
		return nil, storeErr(err, "select due outbox")
	}
	if len(picked) == 0 {
		return picked, nil
	}

	ids := make([]int64, 0, len(picked))
	for _, m := range picked {
		ids = append(ids, int64(m.ID))
	}
	leaseUntil := now.UTC().Add(lease)
	if _, err := tx.Exec(ctx, `UPDATE outbox SET next_attempt_at = $2 WHERE id = ANY($1)`, ids, leaseUntil); err != nil {
		return nil, storeErr(err, "lease outbox")
	}
	for _, m := range picked {
		m.NextAttemptAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr(err, "commit tx")
	}
	return picked, nil
}

func (s *Storage) MarkOutboxSent(ctx context.Context, id uint64, at time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE outbox
SET status = 'sent', sent_at = $2, attempts = attempts + 1, last_error = NULL
WHERE id = $1
`, int64(id), at.UTC())
	return storeErr(err, "mark outbox sent")
}

func (s *Storage) MarkOutboxFailed(ctx context.Context, f OutboxFailure) error {
	status := models.OutboxStatusPending
	if f.Dead {
		status = models.OutboxStatusDead
	}
	_, err := s.db.Exec(ctx, `
UPDATE outbox
SET status = $2, attempts = $3, next_attempt_at = $4, last_error = $5
WHERE id = $1
`, int64(f.ID), status, f.Attempts, f.NextAttemptAt.UTC(), f.Error)
	return storeErr(err, "mark outbox failed")
}

// CountOutboxByStatus is used by the relay /stats endpoint.
func (s *Storage) CountOutboxByStatus(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := pgxscan.Select(ctx, s.db, &rows, `SELECT status, count(*) AS n FROM outbox GROUP BY status`); err != nil {
		return nil, storeErr(err, "count outbox")
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
