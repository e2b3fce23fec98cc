package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, Validate(Migrations()))
	require.NoError(t, ValidateDir("migrations"))
}

func TestOrderingSchemaContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CONSTRAINT uq_orders_order_no UNIQUE (order_no)",
		"CONSTRAINT uq_kitchen_tickets_ticket_no UNIQUE (ticket_no)",
		"CREATE TABLE IF NOT EXISTS order_status_history",
		"CREATE TABLE IF NOT EXISTS order_events",
		"net_amount numeric(12,2) NOT NULL CHECK (net_amount >= 0)",
		"quantity integer NOT NULL CHECK (quantity > 0)",
	} {
		require.Contains(t, content, sub)
	}
}

func TestSettlementSchemaContainsMarkers(t *testing.T) {
	content := readMigration(t, "*_create_payments.sql")

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS payments",
		"CREATE TABLE IF NOT EXISTS split_bills",
		"CONSTRAINT uq_payment_idempotency_markers_key UNIQUE (marker_key)",
		"CREATE INDEX IF NOT EXISTS idx_payments_provider_ref",
	} {
		require.Contains(t, content, sub)
	}
}

func TestValidateRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "create_orders.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	assert.ErrorContains(t, ValidateDir(dir), "invalid migration filename")

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_orders.sql"), []byte("-- +goose Up\n"), 0o644))
	assert.ErrorContains(t, ValidateDir(dir), "-- +goose Down")

	assert.ErrorContains(t, ValidateDir(t.TempDir()), "no migrations found")
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "  Add Tip Column! ", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260304050607_add_tip_column.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "add tip column", now)
	assert.ErrorContains(t, err, "already exists")

	_, err = CreateSQLMigration(dir, "!!!", now)
	assert.Error(t, err)
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := fs.Glob(Migrations(), pattern)
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no migration matching %s", pattern)
	data, err := fs.ReadFile(Migrations(), matches[0])
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}
