// Package dbtest opens in-memory sqlite databases carrying the same tables as
// the goose migrations, for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE restaurants (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'Active',
  currency TEXT NOT NULL DEFAULT 'INR',
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE restaurant_tables (
  id TEXT PRIMARY KEY,
  restaurant_id TEXT NOT NULL,
  label TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE food_items (
  id TEXT PRIMARY KEY,
  restaurant_id TEXT NOT NULL,
  name TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'Active',
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE food_item_variants (
  id TEXT PRIMARY KEY,
  food_item_id TEXT NOT NULL,
  name TEXT NOT NULL,
  price NUMERIC NOT NULL,
  is_available INTEGER NOT NULL DEFAULT 1,
  sort_order INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`,
	`CREATE TABLE food_item_addons (
  id TEXT PRIMARY KEY,
  food_item_id TEXT NOT NULL,
  name TEXT NOT NULL,
  price NUMERIC NOT NULL,
  is_available INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME
);`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  order_no TEXT NOT NULL UNIQUE,
  restaurant_id TEXT NOT NULL,
  table_id TEXT,
  customer_id TEXT,
  delivery_type TEXT NOT NULL,
  channel TEXT NOT NULL DEFAULT 'online',
  status TEXT NOT NULL DEFAULT 'Pending',
  payment_status TEXT NOT NULL DEFAULT 'Unpaid',
  payment_method TEXT,
  total_amount NUMERIC NOT NULL,
  tax_amount NUMERIC NOT NULL DEFAULT 0,
  discount_amount NUMERIC NOT NULL DEFAULT 0,
  tips_amount NUMERIC NOT NULL DEFAULT 0,
  net_amount NUMERIC NOT NULL,
  currency TEXT NOT NULL,
  note TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  food_item_id TEXT NOT NULL,
  variant_id TEXT,
  item_name TEXT NOT NULL,
  variant_name TEXT,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  addons_total NUMERIC NOT NULL DEFAULT 0,
  total_price NUMERIC NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE order_item_addons (
  id TEXT PRIMARY KEY,
  order_item_id TEXT NOT NULL,
  addon_id TEXT NOT NULL,
  name TEXT NOT NULL,
  price NUMERIC NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE kitchen_tickets (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  restaurant_id TEXT NOT NULL,
  ticket_no TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'Queued',
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE kitchen_ticket_items (
  id TEXT PRIMARY KEY,
  ticket_id TEXT NOT NULL,
  order_item_id TEXT NOT NULL,
  item_name TEXT NOT NULL,
  variant_name TEXT,
  quantity INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'Queued',
  created_at DATETIME
);`,
	`CREATE TABLE order_status_history (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  from_status TEXT,
  to_status TEXT NOT NULL,
  actor_id TEXT,
  actor_type TEXT,
  note TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE order_events (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  actor_id TEXT,
  payload TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE restaurant_payment_gateways (
  id TEXT PRIMARY KEY,
  restaurant_id TEXT NOT NULL UNIQUE,
  provider TEXT NOT NULL,
  environment TEXT NOT NULL DEFAULT 'sandbox',
  access_token TEXT,
  location_id TEXT,
  webhook_secret TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE split_bills (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  label TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  paid INTEGER NOT NULL DEFAULT 0,
  payment_id TEXT,
  is_partial INTEGER NOT NULL DEFAULT 0,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  restaurant_id TEXT NOT NULL,
  customer_id TEXT,
  split_bill_id TEXT,
  amount NUMERIC NOT NULL,
  currency TEXT NOT NULL,
  provider TEXT NOT NULL,
  provider_ref TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'Unpaid',
  method TEXT NOT NULL,
  gateway_ref TEXT,
  failure_reason TEXT,
  captured_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE payment_idempotency_markers (
  id TEXT PRIMARY KEY,
  marker_key TEXT NOT NULL UNIQUE,
  owner TEXT NOT NULL,
  provider_ref TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL UNIQUE,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns an isolated in-memory database with every table created.
// Timestamps are written in UTC so that range filters compare correctly.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// one connection keeps the shared in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}
