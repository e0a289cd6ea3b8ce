package player

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"streetlab/internal/common"
	"streetlab/internal/testutil"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newPlayer(t *testing.T, db *gorm.DB, cash int64) uuid.UUID {
	t.Helper()
	p := Player{Username: "p", Cash: cash}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("create player: %v", err)
	}
	return p.ID
}

func TestDebitAndCredit(t *testing.T) {
	db := testutil.OpenDB(t, &Player{}, &CashTransaction{})
	ledger := NewLedger()
	user := newPlayer(t, db, 1000)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := ledger.Debit(tx, user, 400, "lab"); err != nil {
			return err
		}
		return ledger.Credit(tx, user, 50, "deal")
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if cash, _ := ledger.Balance(db, user); cash != 650 {
		t.Fatalf("expected 650, got %d", cash)
	}

	var entries []CashTransaction
	db.Order("balance_after ASC").Find(&entries)
	if len(entries) != 2 || entries[0].Amount != -400 || entries[0].BalanceAfter != 600 || entries[1].BalanceAfter != 650 {
		t.Fatalf("unexpected audit rows %+v", entries)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		return ledger.Debit(tx, user, 651, "too much")
	})
	if !errors.Is(err, common.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if cash, _ := ledger.Balance(db, user); cash != 650 {
		t.Fatalf("failed debit must not change cash, got %d", cash)
	}

	if err := ledger.LockUsers(db, uuid.New()); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
}

func TestApplyBonusAndRestrict(t *testing.T) {
	db := testutil.OpenDB(t, &Player{}, &CashTransaction{})
	ledger := NewLedger()
	user := newPlayer(t, db, 0)

	bonus := common.Bonuses{Strength: 3, Charisma: -1}
	if err := ledger.ApplyBonus(db, user, bonus); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := ledger.ApplyBonus(db, user, bonus.Negate()); err != nil {
		t.Fatalf("revert: %v", err)
	}
	var p Player
	db.First(&p, "id = ?", user)
	if !p.Stats.IsZero() {
		t.Fatalf("expected stats back at zero, got %+v", p.Stats)
	}

	now := time.Now().UTC().Truncate(time.Second)
	long := now.Add(10 * time.Hour)
	if err := ledger.Restrict(db, user, long, "busted"); err != nil {
		t.Fatalf("restrict: %v", err)
	}
	if err := ledger.Restrict(db, user, now.Add(time.Hour), "busted again"); err != nil {
		t.Fatalf("restrict: %v", err)
	}
	db.First(&p, "id = ?", user)
	if p.RestrictedUntil == nil || !p.RestrictedUntil.Equal(long) || !p.IsRestricted(now) {
		t.Fatalf("expected the longer restriction to stay, got %v", p.RestrictedUntil)
	}

	svc := NewService(db, ledger)
	until, err := svc.RestrictedUntil(user)
	if err != nil || until == nil {
		t.Fatalf("expected active restriction, got %v (%v)", until, err)
	}
	if until, _ := svc.RestrictedUntil(uuid.New()); until != nil {
		t.Fatalf("unknown users are not restricted")
	}
}

func TestEnsurePlayer(t *testing.T) {
	db := testutil.OpenDB(t, &Player{}, &CashTransaction{})
	svc := NewService(db, NewLedger())
	id := uuid.New()

	p, err := svc.EnsurePlayer(id, "newbie")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if p.ID != id || p.Cash != StartingCash {
		t.Fatalf("unexpected new player %+v", p)
	}
	db.Model(&Player{}).Where("id = ?", id).Update("cash", 1)
	again, _ := svc.EnsurePlayer(id, "newbie")
	if again.Cash != 1 {
		t.Fatalf("existing player must be returned unchanged, got %d", again.Cash)
	}
}

func TestEnsurePlayerConcurrentFirstRequests(t *testing.T) {
	for _, backend := range testutil.Backends() {
		t.Run(backend.Name, func(t *testing.T) {
			db := backend.Open(t, &Player{}, &CashTransaction{})
			svc := NewService(db, NewLedger())
			id := uuid.New()

			const requests = 8
			errs := make(chan error, requests)
			start := make(chan struct{})
			var wg sync.WaitGroup
			for i := 0; i < requests; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					p, err := svc.EnsurePlayer(id, "newbie")
					if err == nil && p.ID != id {
						err = fmt.Errorf("got player %s", p.ID)
					}
					errs <- err
				}()
			}
			close(start)
			wg.Wait()
			close(errs)

			for err := range errs {
				if err != nil {
					t.Fatalf("ensure: %v", err)
				}
			}
			var rows int64
			db.Model(&Player{}).Where("id = ?", id).Count(&rows)
			if rows != 1 {
				t.Fatalf("expected one player row, found %d", rows)
			}
		})
	}
}
