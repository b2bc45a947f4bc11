package pgstore

import (
	"context"

	"github.com/pkg/errors"
)

const (
	constraintTrackingNumber = "uq_orders_tracking_number"
	constraintAdminEmail     = "uq_admin_users_email"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  id UUID PRIMARY KEY,
  tracking_number TEXT NOT NULL,
  status TEXT NOT NULL,
  product_name TEXT NOT NULL,
  weight NUMERIC(12,3) NOT NULL,
  dimensions TEXT NULL,
  package_value NUMERIC(14,2) NULL,
  package_description TEXT NULL,
  shipping_company TEXT NOT NULL,
  shipping_method TEXT NOT NULL,
  delivery_date DATE NULL,
  currency TEXT NOT NULL,
  shipping_cost NUMERIC(14,2) NOT NULL,
  total_amount NUMERIC(14,2) NOT NULL,
  sender_name TEXT NOT NULL,
  sender_phone TEXT NOT NULL,
  sender_address TEXT NOT NULL,
  recipient_name TEXT NOT NULL,
  recipient_phone TEXT NOT NULL,
  recipient_address TEXT NOT NULL,
  officer_name TEXT NULL,
  officer_id TEXT NULL,
  version BIGINT NOT NULL DEFAULT 1,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  CONSTRAINT uq_orders_tracking_number UNIQUE (tracking_number),
  CONSTRAINT chk_orders_weight CHECK (weight > 0),
  CONSTRAINT chk_orders_shipping_cost CHECK (shipping_cost >= 0),
  CONSTRAINT chk_orders_package_value CHECK (package_value IS NULL OR package_value >= 0)
)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
		`
CREATE TABLE IF NOT EXISTS tracking_history (
  seq BIGSERIAL PRIMARY KEY,
  id UUID NOT NULL UNIQUE,
  order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  status TEXT NOT NULL,
  location TEXT NULL,
  description TEXT NULL,
  "timestamp" TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_history_order_ts ON tracking_history(order_id, "timestamp" DESC, seq DESC)`,
		`
CREATE TABLE IF NOT EXISTS admin_users (
  id UUID PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  last_login TIMESTAMPTZ NULL
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_admin_users_email ON admin_users(lower(email))`,
		`
CREATE TABLE IF NOT EXISTS outbox (
  id BIGSERIAL PRIMARY KEY,
  topic TEXT NOT NULL,
  msg_key TEXT NOT NULL,
  payload JSONB NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  attempts INT NOT NULL DEFAULT 0,
  next_attempt_at TIMESTAMPTZ NOT NULL,
  last_error TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  sent_at TIMESTAMPTZ NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_due ON outbox(next_attempt_at) WHERE status = 'pending'`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_key_pending ON outbox(msg_key, id) WHERE status = 'pending'`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
