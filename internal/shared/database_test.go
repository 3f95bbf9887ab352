package shared

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteDSN(t *testing.T) {
	tc := []struct {
		path string
		want string
	}{
		{"./wavecrawl.db", "./wavecrawl.db?_foreign_keys=on"},
		{":memory:", ":memory:?_foreign_keys=on"},
		{"file:jobs.db?cache=shared", "file:jobs.db?cache=shared&_foreign_keys=on"},
	}

	for _, tt := range tc {
		t.Run(tt.path, func(t *testing.T) {
			if got := SQLiteDSN(tt.path); got != tt.want {
				t.Errorf("SQLiteDSN(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestOpenDatabase(t *testing.T) {
	t.Run("every pooled sqlite connection enforces foreign keys", func(t *testing.T) {
		ctx := context.Background()
		cfg := DatabaseConfig{
			Driver:       DriverSQLite,
			Path:         filepath.Join(t.TempDir(), "jobs.db"),
			MaxOpenConns: 4,
			MaxIdleConns: 4,
		}

		db, dialect, err := OpenDatabase(ctx, cfg)
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if dialect != DialectSQLite {
			t.Errorf("expected sqlite dialect, got %s", dialect)
		}

		// hold the connections at once so the pool has to dial separate ones
		for i := range 3 {
			conn, err := db.Conn(ctx)
			if err != nil {
				t.Fatalf("failed to get connection %d: %v", i, err)
			}
			defer conn.Close()

			var enabled int
			if err := conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled); err != nil {
				t.Fatalf("failed to read pragma on connection %d: %v", i, err)
			}
			if enabled != 1 {
				t.Errorf("expected foreign keys on for connection %d, got %d", i, enabled)
			}
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		if _, _, err := OpenDatabase(context.Background(), DatabaseConfig{Driver: DriverSupabase}); err == nil {
			t.Error("expected error for a driver without a SQL connection")
		}
	})
}
