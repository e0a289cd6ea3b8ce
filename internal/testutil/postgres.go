package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Opener creates a migrated database for one test.
type Opener func(t testing.TB, models ...interface{}) *gorm.DB

// Backend pairs an Opener with the name used for subtests.
type Backend struct {
	Name string
	Open Opener
}

// Backends lists every database the concurrency tests run against.
// Postgres is skipped unless TEST_DATABASE_URL is set.
func Backends() []Backend {
	return []Backend{
		{Name: "sqlite", Open: OpenDB},
		{Name: "postgres", Open: OpenPostgres},
	}
}

// OpenPostgres migrates the models into a throwaway schema of the database at
// TEST_DATABASE_URL. The schema is dropped when the test ends.
func OpenPostgres(t testing.TB, models ...interface{}) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	admin, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := admin.Exec(fmt.Sprintf("CREATE SCHEMA %s", schema)).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}

	db, err := gorm.Open(postgres.Open(withSearchPath(dsn, schema)), cfg)
	if err != nil {
		t.Fatalf("open schema: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(16)

	t.Cleanup(func() {
		_ = sqlDB.Close()
		admin.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema))
		if adminDB, err := admin.DB(); err == nil {
			_ = adminDB.Close()
		}
	})

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	return db
}

func withSearchPath(dsn, schema string) string {
	if !strings.Contains(dsn, "://") {
		return dsn + " search_path=" + schema
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&search_path=" + schema
	}
	return dsn + "?search_path=" + schema
}
