// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB returns an isolated in-memory database with the given models migrated.
// A single connection serializes transactions the way row locks do on postgres.
func OpenDB(t testing.TB, models ...interface{}) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	return db
}

// SequenceDice replays fixed rolls; the last value repeats once the sequence is used up.
type SequenceDice struct {
	mu    sync.Mutex
	rolls []float64
	next  int
}

func NewSequenceDice(rolls ...float64) *SequenceDice {
	if len(rolls) == 0 {
		rolls = []float64{0}
	}
	return &SequenceDice{rolls: rolls}
}

func (d *SequenceDice) Roll() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := d.rolls[d.next]
	if d.next < len(d.rolls)-1 {
		d.next++
	}
	return v
}
