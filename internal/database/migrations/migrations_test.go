package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrationLifecycle(t *testing.T) {
	db := openTestDB(t)

	if err := CheckDBMigrationStatus(db); !errors.Is(err, ErrNoSchema) {
		t.Fatalf("CheckDBMigrationStatus() on empty db = %v, want ErrNoSchema", err)
	}

	for i := range 2 {
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() run %d error = %v", i+1, err)
		}
		if err := CheckDBMigrationStatus(db); err != nil {
			t.Fatalf("CheckDBMigrationStatus() after run %d error = %v", i+1, err)
		}
	}

	for _, table := range []string{"operations", "submitted_records", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestLatestVersion(t *testing.T) {
	latest, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if latest != 2 {
		t.Errorf("LatestVersion() = %d, want 2", latest)
	}

	version, err := Version(migratedDB(t))
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if version != latest {
		t.Errorf("Version() = %d, want %d", version, latest)
	}
}

func TestSchemaConstraints(t *testing.T) {
	tests := []struct {
		name    string
		setup   []string
		stmt    string
		wantErr bool
	}{
		{
			name:    "record needs an operation",
			stmt:    `INSERT INTO submitted_records (operation_id, step, kind, record_id, track) VALUES (42, 'cover', 'single-cover', 'record-1', 0)`,
			wantErr: true,
		},
		{
			name:  "record of existing operation",
			setup: []string{`INSERT INTO operations (ref, name, address, started_at, state) VALUES ('ref-1', 'single', 'addr', 0, 'draft')`},
			stmt:  `INSERT INTO submitted_records (operation_id, step, kind, record_id) VALUES (1, 'cover', 'single-cover', 'record-1')`,
		},
		{
			name: "record id confirmed once",
			setup: []string{
				`INSERT INTO operations (ref, name, address, started_at, state) VALUES ('ref-1', 'single', 'addr', 0, 'draft')`,
				`INSERT INTO submitted_records (operation_id, step, kind, record_id) VALUES (1, 'cover', 'single-cover', 'record-1')`,
			},
			stmt:    `INSERT INTO submitted_records (operation_id, step, kind, record_id) VALUES (1, 'media', 'single-music', 'record-1')`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := migratedDB(t)
			for _, s := range tt.setup {
				if _, err := db.Exec(s); err != nil {
					t.Fatalf("setup %q: %v", s, err)
				}
			}
			_, err := db.Exec(tt.stmt)
			if (err != nil) != tt.wantErr {
				t.Errorf("Exec() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchema_OperationDefaults(t *testing.T) {
	db := migratedDB(t)

	res, err := db.Exec(`
		INSERT INTO operations (ref, name, address, started_at, state)
		VALUES ('ref-1', 'single', 'addr', 1700000000000, 'draft')
	`)
	if err != nil {
		t.Fatalf("inserting operation: %v", err)
	}
	id, _ := res.LastInsertId()

	var title, failedStep, errText string
	err = db.QueryRow("SELECT title, failed_step, error FROM operations WHERE id = ?", id).Scan(&title, &failedStep, &errText)
	if err != nil {
		t.Fatalf("reading operation: %v", err)
	}
	if title != "" || failedStep != "" || errText != "" {
		t.Errorf("defaults = (%q, %q, %q), want empty strings", title, failedStep, errText)
	}
}

// openTestDB opens an in-memory SQLite database with foreign keys enforced.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enabling foreign keys: %v", err)
	}
	return db
}

func migratedDB(t *testing.T) *sql.DB {
	t.Helper()
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	return db
}
