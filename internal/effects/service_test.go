package effects

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"streetlab/internal/addiction"
	"streetlab/internal/catalog"
	"streetlab/internal/common"
	"streetlab/internal/config"
	"streetlab/internal/inventory"
	"streetlab/internal/player"
	"streetlab/internal/testutil"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db     *gorm.DB
	svc    *Service
	ledger *inventory.Ledger
	clock  *time.Time
}

func setup(t *testing.T, tuning config.EffectsTuning, rolls ...float64) *fixture {
	t.Helper()
	return setupOn(t, testutil.OpenDB, tuning, rolls...)
}

func setupOn(t *testing.T, open testutil.Opener, tuning config.EffectsTuning, rolls ...float64) *fixture {
	t.Helper()
	db := open(t,
		&catalog.Drug{}, &catalog.Ingredient{}, &catalog.Recipe{},
		&player.Player{}, &player.CashTransaction{},
		&inventory.UserDrugInventory{}, &inventory.UserIngredientInventory{},
		&addiction.DrugAddiction{}, &UserDrugEffect{},
	)
	if _, err := catalog.NewService(db, nil).SeedDefaults(); err != nil {
		t.Fatalf("seed: %v", err)
	}

	dice := testutil.NewSequenceDice(rolls...)
	stats := player.NewLedger()
	addictions := addiction.NewService(db, stats, config.DefaultTuning().Addiction, dice, nil)
	ledger := inventory.NewLedger()
	svc := NewService(db, ledger, stats, addictions, tuning, dice, nil)

	clock := t0
	svc.now = func() time.Time { return clock }
	return &fixture{db: db, svc: svc, ledger: ledger, clock: &clock}
}

func (f *fixture) holder(t *testing.T, drugID string, n int) uuid.UUID {
	t.Helper()
	p := player.Player{Username: "user"}
	if err := f.db.Create(&p).Error; err != nil {
		t.Fatalf("create player: %v", err)
	}
	if n > 0 {
		if err := f.db.Transaction(func(tx *gorm.DB) error {
			return f.ledger.Grant(tx, p.ID, inventory.KindDrug, drugID, n)
		}); err != nil {
			t.Fatalf("grant: %v", err)
		}
	}
	return p.ID
}

func (f *fixture) stats(t *testing.T, user uuid.UUID) common.Bonuses {
	t.Helper()
	var p player.Player
	if err := f.db.First(&p, "id = ?", user).Error; err != nil {
		t.Fatalf("load player: %v", err)
	}
	return p.Stats
}

func TestUseDrugStartsAddiction(t *testing.T) {
	f := setup(t, config.EffectsTuning{}, 25)
	user := f.holder(t, "speed", 2)

	res, err := f.svc.UseDrug(user, "speed")
	if err != nil {
		t.Fatalf("use: %v", err)
	}
	if res.Addiction == nil || res.Addiction.Level != 1 || res.Addiction.WithdrawalEffect == "" {
		t.Fatalf("expected new addiction at level 1, got %+v", res.Addiction)
	}
	if res.Remaining != 1 {
		t.Fatalf("expected 1 left, got %d", res.Remaining)
	}
	if !res.Effect.ExpiresAt.Equal(t0.Add(4 * time.Hour)) {
		t.Fatalf("unexpected expiry %s", res.Effect.ExpiresAt)
	}

	want := common.Bonuses{Strength: 3, Stealth: 2}
	if got := f.stats(t, user); got != want {
		t.Fatalf("expected stats %+v, got %+v", want, got)
	}
}

func TestUseDrugAboveAddictionRate(t *testing.T) {
	f := setup(t, config.EffectsTuning{}, 30.5)
	user := f.holder(t, "speed", 1)

	res, err := f.svc.UseDrug(user, "speed")
	if err != nil {
		t.Fatalf("use: %v", err)
	}
	if res.Addiction != nil {
		t.Fatalf("roll above the addiction rate must not addict")
	}
	var count int64
	f.db.Model(&addiction.DrugAddiction{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no addiction rows, got %d", count)
	}
}

func TestUseDrugNotHeld(t *testing.T) {
	f := setup(t, config.EffectsTuning{})
	user := f.holder(t, "weed", 0)

	if _, err := f.svc.UseDrug(user, "weed"); !errors.Is(err, common.ErrInsufficientInventory) {
		t.Fatalf("expected insufficient inventory, got %v", err)
	}
	if _, err := f.svc.UseDrug(user, "nope"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := f.stats(t, user); !got.IsZero() {
		t.Fatalf("stats must be untouched, got %+v", got)
	}
}

func TestEffectsAccumulateAndExpire(t *testing.T) {
	f := setup(t, config.EffectsTuning{RevertOnExpiry: true}, 99)
	user := f.holder(t, "weed", 2)

	if _, err := f.svc.UseDrug(user, "weed"); err != nil {
		t.Fatalf("use: %v", err)
	}
	*f.clock = t0.Add(time.Hour)
	if _, err := f.svc.UseDrug(user, "weed"); err != nil {
		t.Fatalf("use: %v", err)
	}

	total, err := f.svc.ActiveBonuses(user)
	if err != nil {
		t.Fatalf("bonuses: %v", err)
	}
	if total != (common.Bonuses{Charisma: 4, Intelligence: -2}) {
		t.Fatalf("unexpected active bonuses %+v", total)
	}

	*f.clock = t0.Add(2*time.Hour + time.Minute)
	active, _ := f.svc.ActiveEffects(user)
	if len(active) != 1 {
		t.Fatalf("expected one active effect, got %d", len(active))
	}

	n, err := f.svc.RevertExpired(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("expected one revert, got %d (%v)", n, err)
	}
	if got := f.stats(t, user); got != (common.Bonuses{Charisma: 2, Intelligence: -1}) {
		t.Fatalf("unexpected stats after revert %+v", got)
	}
	if n, _ := f.svc.RevertExpired(context.Background()); n != 0 {
		t.Fatalf("effects revert only once, got %d", n)
	}
}

func TestRevertDisabled(t *testing.T) {
	f := setup(t, config.EffectsTuning{RevertOnExpiry: false}, 99)
	user := f.holder(t, "weed", 1)
	if _, err := f.svc.UseDrug(user, "weed"); err != nil {
		t.Fatalf("use: %v", err)
	}
	*f.clock = t0.Add(48 * time.Hour)
	if n, _ := f.svc.RevertExpired(context.Background()); n != 0 {
		t.Fatalf("expected no reverts, got %d", n)
	}
	if got := f.stats(t, user); got != (common.Bonuses{Charisma: 2, Intelligence: -1}) {
		t.Fatalf("bonus must stay applied, got %+v", got)
	}
}

func TestConcurrentUseConsumesSingleDose(t *testing.T) {
	for _, backend := range testutil.Backends() {
		t.Run(backend.Name, func(t *testing.T) {
			f := setupOn(t, backend.Open, config.EffectsTuning{}, 99)
			user := f.holder(t, "weed", 1)

			const attempts = 8
			errs := make(chan error, attempts)
			start := make(chan struct{})
			var wg sync.WaitGroup
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, err := f.svc.UseDrug(user, "weed")
					errs <- err
				}()
			}
			close(start)
			wg.Wait()
			close(errs)

			var used, refused int
			for err := range errs {
				switch {
				case err == nil:
					used++
				case errors.Is(err, common.ErrInsufficientInventory):
					refused++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}
			if used != 1 || refused != attempts-1 {
				t.Fatalf("expected one dose used, got %d used and %d refused", used, refused)
			}
			if got := f.stats(t, user); got.Charisma != 2 || got.Intelligence != -1 {
				t.Fatalf("bonuses must apply once, got %+v", got)
			}
			var effects int64
			f.db.Model(&UserDrugEffect{}).Where("user_id = ?", user).Count(&effects)
			if effects != 1 {
				t.Fatalf("expected one effect row, found %d", effects)
			}
		})
	}
}
