package database

import (
	"context"
	"testing"
	"testing/fstest"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260301_080000_create_widgets.up.sql": {Data: []byte(
			"CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL);")},
		"20260301_080000_create_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
		"20260302_090000_widget_index.up.sql": {Data: []byte(
			"CREATE INDEX idx_widgets_name ON widgets(name);")},
		"20260302_090000_widget_index.down.sql": {Data: []byte("DROP INDEX idx_widgets_name;")},
		"README.md":                             {Data: []byte("ignored")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table','index') AND name = ?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("sqlite_master query: %v", err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup
	ctx := context.Background()
	fsys := testMigrations()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "widgets") || !tableExists(t, db, "idx_widgets_name") {
		t.Fatal("migrations not applied")
	}

	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Fatalf("applied=%d pending=%d, want 2/0", len(applied), len(pending))
	}
	if applied[0].Version != "20260301_080000" || applied[0].AppliedAt.IsZero() {
		t.Errorf("first record = %+v", applied[0])
	}

	// Idempotent
	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup
	ctx := context.Background()
	fsys := testMigrations()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "idx_widgets_name") {
		t.Error("latest migration not rolled back")
	}
	if !tableExists(t, db, "widgets") {
		t.Error("earlier migration should remain")
	}

	_, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "widget_index" {
		t.Errorf("pending = %+v, want widget_index", pending)
	}
}

func TestMigrateDown_Empty(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup

	if err := db.MigrateDown(context.Background(), testMigrations()); err != nil {
		t.Errorf("MigrateDown() with nothing applied error = %v", err)
	}
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup
	ctx := context.Background()

	fsys := testMigrations()
	fsys["20260303_100000_broken.up.sql"] = &fstest.MapFile{Data: []byte(
		"CREATE TABLE half (id INTEGER); INSERT INTO nowhere VALUES (1);")}

	if err := db.Migrate(ctx, fsys); err == nil {
		t.Fatal("Migrate() should fail on broken migration")
	}
	if tableExists(t, db, "half") {
		t.Error("failed migration left partial schema")
	}

	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 1 {
		t.Errorf("applied=%d pending=%d, want 2/1", len(applied), len(pending))
	}
}

func TestLoadMigrations(t *testing.T) {
	tests := []struct {
		name    string
		fsys    fstest.MapFS
		want    []string
		wantErr bool
	}{
		{
			name: "sorted by version",
			fsys: fstest.MapFS{
				"20260302_000000_b.up.sql": {Data: []byte("SELECT 2;")},
				"20260301_000000_a.up.sql": {Data: []byte("SELECT 1;")},
			},
			want: []string{"a", "b"},
		},
		{
			name: "down without up",
			fsys: fstest.MapFS{
				"20260301_000000_a.down.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: true,
		},
		{
			name: "empty",
			fsys: fstest.MapFS{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadMigrations(tt.fsys)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadMigrations() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d migrations, want %d", len(got), len(tt.want))
			}
			for i, m := range got {
				if m.Name != tt.want[i] {
					t.Errorf("migration %d = %q, want %q", i, m.Name, tt.want[i])
				}
			}
		})
	}

	if got, err := LoadMigrations(nil); got != nil || err != nil {
		t.Errorf("LoadMigrations(nil) = %v, %v", got, err)
	}
}

func TestParseMigrationFile(t *testing.T) {
	tests := []struct {
		filename string
		want     migrationFile
		wantOk   bool
	}{
		{"20260301_080000_tag_history.up.sql", migrationFile{"20260301_080000", "tag_history", true}, true},
		{"20260301_080001_fill_cycles.down.sql", migrationFile{"20260301_080001", "fill_cycles", false}, true},
		{"readme.txt", migrationFile{}, false},
		{"20260301_080000_tag_history.sql", migrationFile{}, false},
		{"invalid.up.sql", migrationFile{}, false},
		{"2026_08_x.up.sql", migrationFile{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := parseMigrationFile(tt.filename)
			if ok != tt.wantOk || got != tt.want {
				t.Errorf("parseMigrationFile(%q) = %+v, %v; want %+v, %v", tt.filename, got, ok, tt.want, tt.wantOk)
			}
		})
	}
}
