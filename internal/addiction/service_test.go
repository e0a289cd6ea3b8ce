package addiction

import (
	"errors"
	"testing"
	"time"

	"streetlab/internal/catalog"
	"streetlab/internal/common"
	"streetlab/internal/config"
	"streetlab/internal/player"
	"streetlab/internal/testutil"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, rolls ...float64) (*gorm.DB, *Service) {
	t.Helper()
	db := testutil.OpenDB(t, &catalog.Drug{}, &player.Player{}, &player.CashTransaction{}, &DrugAddiction{})
	svc := NewService(db, player.NewLedger(), config.DefaultTuning().Addiction, testutil.NewSequenceDice(rolls...), nil)
	svc.now = func() time.Time { return t0 }
	return db, svc
}

func newPlayer(t *testing.T, db *gorm.DB, cash int64) uuid.UUID {
	t.Helper()
	p := player.Player{Username: "user", Cash: cash}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("create player: %v", err)
	}
	return p.ID
}

func dose(t *testing.T, db *gorm.DB, svc *Service, user uuid.UUID, drugID string, at time.Time) *DrugAddiction {
	t.Helper()
	var a *DrugAddiction
	if err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		a, err = svc.RecordDose(tx, user, drugID, at)
		return err
	}); err != nil {
		t.Fatalf("record dose: %v", err)
	}
	return a
}

func TestSeverity(t *testing.T) {
	cases := []struct {
		level int
		since time.Duration
		want  int
	}{
		{1, time.Hour, 0},
		{5, 24 * time.Hour, 0},
		{1, 25 * time.Hour, 1},
		{1, 36 * time.Hour, 2},
		{3, 47 * time.Hour, 4},
		{3, 48 * time.Hour, 5},
		{9, 100 * time.Hour, 10},
	}
	for _, tc := range cases {
		if got := Severity(tc.level, t0.Add(-tc.since), t0); got != tc.want {
			t.Errorf("Severity(%d, %s) = %d, want %d", tc.level, tc.since, got, tc.want)
		}
	}
}

func TestRecordDoseCreatesThenLevelsUp(t *testing.T) {
	db, svc := setup(t, 25)
	user := newPlayer(t, db, 0)

	first := dose(t, db, svc, user, "speed", t0)
	effects := config.DefaultTuning().Addiction.WithdrawalEffects
	if first.Level != 1 || first.WithdrawalEffect != effects[1] {
		t.Fatalf("unexpected new addiction %+v", first)
	}

	var last *DrugAddiction
	for i := 1; i <= 12; i++ {
		last = dose(t, db, svc, user, "speed", t0.Add(time.Duration(i)*time.Hour))
		if last.Level < 1 || last.Level > MaxLevel {
			t.Fatalf("level out of range: %d", last.Level)
		}
	}
	if last.Level != MaxLevel {
		t.Fatalf("expected level capped at %d, got %d", MaxLevel, last.Level)
	}
	if last.WithdrawalEffect != first.WithdrawalEffect {
		t.Fatalf("withdrawal effect must stay fixed")
	}

	var count int64
	db.Model(&DrugAddiction{}).Where("user_id = ?", user).Count(&count)
	if count != 1 {
		t.Fatalf("expected a single addiction row, got %d", count)
	}
}

func TestWithdrawals(t *testing.T) {
	db, svc := setup(t)
	user := newPlayer(t, db, 0)
	db.Create(&catalog.Drug{ID: "meth", Name: "Meth", RiskLevel: 8, DurationHours: 6})

	dose(t, db, svc, user, "weed", t0.Add(-23*time.Hour))
	dose(t, db, svc, user, "meth", t0.Add(-50*time.Hour))
	dose(t, db, svc, user, "meth", t0.Add(-50*time.Hour))

	list, err := svc.Withdrawals(user)
	if err != nil {
		t.Fatalf("withdrawals: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one withdrawal, got %d", len(list))
	}
	w := list[0]
	if w.DrugID != "meth" || w.DrugName != "Meth" || w.Severity != 4 || w.HoursSinceLastDose != 50 {
		t.Fatalf("unexpected withdrawal %+v", w)
	}
}

func TestGetAndRehab(t *testing.T) {
	db, svc := setup(t)
	user := newPlayer(t, db, 6000)
	other := newPlayer(t, db, 0)

	dose(t, db, svc, user, "cocaine", t0)
	a := dose(t, db, svc, user, "cocaine", t0)

	if _, err := svc.Get(other, a.ID); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.Get(user, uuid.New()); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	res, err := svc.Rehab(user, a.ID)
	if err != nil {
		t.Fatalf("rehab: %v", err)
	}
	if res.Cost != 5000 || res.Level != 2 {
		t.Fatalf("unexpected rehab result %+v", res)
	}
	var p player.Player
	db.First(&p, "id = ?", user)
	if p.Cash != 1000 {
		t.Fatalf("expected 1000 cash left, got %d", p.Cash)
	}
	if list, _ := svc.List(user); len(list) != 0 {
		t.Fatalf("addiction should be cleared, got %d", len(list))
	}

	b := dose(t, db, svc, user, "cocaine", t0)
	if _, err := svc.Rehab(user, b.ID); !errors.Is(err, common.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if list, _ := svc.List(user); len(list) != 1 {
		t.Fatalf("failed rehab must keep the addiction")
	}
}
