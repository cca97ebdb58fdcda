package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/rtwroastery/roastery-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestOrdersMigrationContainsSchemas(t *testing.T) {
	content := readMigration(t, "*_create_orders_and_payments.sql")

	checks := []string{
		"CREATE TYPE order_status AS ENUM ('pending', 'processing', 'shipped', 'delivered')",
		"CREATE TYPE payment_status AS ENUM ('open', 'paid', 'expired')",
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE TABLE IF NOT EXISTS payment_transactions",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_pending_fingerprint",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_transactions_session",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCartMigrationEnforcesSingleReference(t *testing.T) {
	content := readMigration(t, "*_create_custom_blends_and_cart.sql")
	if !strings.Contains(content, "cart_items_single_reference") {
		t.Fatal("expected one-of reference constraint on cart_items")
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	if err := migrate.ValidateEmbedded(); err != nil {
		t.Fatalf("ValidateEmbedded: %v", err)
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	first, err := migrate.CreateSQLMigration(dir, "Add Roast Notes!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if !strings.HasSuffix(first, "_add_roast_notes.sql") {
		t.Fatalf("unexpected filename %s", first)
	}
	second, err := migrate.CreateSQLMigration(dir, "add roast notes")
	if err != nil {
		t.Fatalf("second CreateSQLMigration: %v", err)
	}
	if filepath.Base(first)[:14] == filepath.Base(second)[:14] {
		t.Fatalf("versions collide: %s and %s", first, second)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migrations should validate: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatal("expected unusable name to fail")
	}
}

func TestValidateFSRejects(t *testing.T) {
	const ok = "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 2;\n"
	cases := map[string]fstest.MapFS{
		"bad name":     {"1_init.sql": {Data: []byte(ok)}},
		"bad version":  {"20261399000000_init.sql": {Data: []byte(ok)}},
		"missing down": {"20260101000000_init.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}},
		"down first":   {"20260101000000_init.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")}},
		"unterminated": {"20260101000000_init.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n")}},
		"stray end":    {"20260101000000_init.sql": {Data: []byte("-- +goose Up\n-- +goose StatementEnd\n-- +goose Down\n")}},
		"dup version": {
			"20260101000000_a.sql": {Data: []byte(ok)},
			"20260101000000_b.sql": {Data: []byte(ok)},
		},
	}
	for name, fsys := range cases {
		if err := migrate.ValidateFS(fsys); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
	if err := migrate.ValidateFS(fstest.MapFS{
		"20260101000000_init.sql": {Data: []byte(ok)},
		"README.md":               {Data: []byte("ignored")},
	}); err != nil {
		t.Fatalf("valid set rejected: %v", err)
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
