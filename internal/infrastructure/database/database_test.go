package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/config"
)

func TestOpen(t *testing.T) {
	t.Run("creates nested directory and file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "data", "nested", "plant.db")

		db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // test cleanup

		if _, err := os.Stat(dbPath); err != nil {
			t.Errorf("database file not created: %v", err)
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("requires path", func(t *testing.T) {
		if _, err := Open(Config{}); err == nil {
			t.Error("Open() with empty path should fail")
		}
	})

	t.Run("wal mode", func(t *testing.T) {
		db := openTestDB(t)
		defer db.Close() //nolint:errcheck // test cleanup

		var mode string
		if err := db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("PRAGMA error = %v", err)
		}
		if mode != "wal" {
			t.Errorf("journal_mode = %q, want wal", mode)
		}
	})
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    []string
		without string
	}{
		{
			name: "wal",
			cfg:  Config{Path: "/var/lib/vp/plant.db", WALMode: true, BusyTimeout: 5},
			want: []string{"file:/var/lib/vp/plant.db?", "_busy_timeout=5000", "_journal_mode=WAL", "_synchronous=NORMAL", "_foreign_keys=on"},
		},
		{
			name:    "rollback journal",
			cfg:     Config{Path: "plant.db", BusyTimeout: 1},
			want:    []string{"file:plant.db?", "_busy_timeout=1000"},
			without: "_journal_mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dsn(tt.cfg)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("dsn() = %q, missing %q", got, w)
				}
			}
			if tt.without != "" && strings.Contains(got, tt.without) {
				t.Errorf("dsn() = %q, should not contain %q", got, tt.without)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	got := FromConfig(config.DatabaseConfig{Path: "./data/plant.db", WALMode: true, BusyTimeout: 3})
	want := Config{Path: "./data/plant.db", WALMode: true, BusyTimeout: 3}
	if got != want {
		t.Errorf("FromConfig() = %+v, want %+v", got, want)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() after Close should fail")
	}

	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup

	if stats := db.Stats(); stats.MaxOpenConnections != 1 {
		t.Errorf("MaxOpenConnections = %v, want 1", stats.MaxOpenConnections)
	}
}

// openTestDB creates a temporary database for testing.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}
