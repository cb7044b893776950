package db

import (
	"testing"

	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	log, _ := logger.New("test")
	svc, err := Open(Config{Driver: DriverSQLite, SQLitePath: SQLiteMemoryDSN(t.Name())}, log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	if err := svc.AutoMigrateAll(); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	// Idempotent.
	if err := svc.AutoMigrateAll(); err != nil {
		t.Fatalf("second AutoMigrateAll: %v", err)
	}
	for _, table := range []string{"project", "story_block"} {
		if !svc.DB().Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
	if !svc.DB().Migrator().HasIndex("story_block", "idx_story_block_project_order") {
		t.Fatalf("missing unique order index")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	log, _ := logger.New("test")
	if _, err := Open(Config{Driver: "mysql"}, log); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestPostgresDSN(t *testing.T) {
	c := Config{PostgresHost: "h", PostgresPort: "5432", PostgresUser: "u", PostgresPassword: "p", PostgresName: "n"}
	if got := c.postgresDSN(); got != "postgres://u:p@h:5432/n?sslmode=disable" {
		t.Fatalf("dsn: %s", got)
	}
	c.DSN = "postgres://override"
	if c.postgresDSN() != "postgres://override" {
		t.Fatalf("DSN override ignored")
	}
}
