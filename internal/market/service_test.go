package market

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"streetlab/internal/catalog"
	"streetlab/internal/common"
	"streetlab/internal/config"
	"streetlab/internal/inventory"
	"streetlab/internal/player"
	"streetlab/internal/territory"
	"streetlab/internal/testutil"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db     *gorm.DB
	svc    *Service
	ledger *inventory.Ledger
}

func setup(t *testing.T, rolls ...float64) *fixture {
	t.Helper()
	return setupOn(t, testutil.OpenDB, rolls...)
}

func setupOn(t *testing.T, open testutil.Opener, rolls ...float64) *fixture {
	t.Helper()
	db := open(t,
		&catalog.Drug{}, &catalog.Ingredient{}, &catalog.Recipe{},
		&player.Player{}, &player.CashTransaction{},
		&inventory.UserDrugInventory{}, &inventory.UserIngredientInventory{},
		&territory.DrugTerritory{}, &DrugDeal{},
	)
	if _, err := catalog.NewService(db, nil).SeedDefaults(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ledger := inventory.NewLedger()
	svc := NewService(db, ledger, player.NewLedger(), territory.NewService(db),
		config.DefaultTuning().Market, testutil.NewSequenceDice(rolls...), nil, nil)
	svc.now = func() time.Time { return t0 }
	return &fixture{db: db, svc: svc, ledger: ledger}
}

func (f *fixture) player(t *testing.T, cash int64, drugID string, n int) uuid.UUID {
	t.Helper()
	p := player.Player{Username: "dealer", Cash: cash}
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

func (f *fixture) load(t *testing.T, id uuid.UUID) player.Player {
	t.Helper()
	var p player.Player
	if err := f.db.First(&p, "id = ?", id).Error; err != nil {
		t.Fatalf("load player: %v", err)
	}
	return p
}

func (f *fixture) held(t *testing.T, user uuid.UUID, drugID string) int {
	t.Helper()
	n, err := f.ledger.DrugBalance(f.db, user, drugID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return n
}

func (f *fixture) list(t *testing.T, seller uuid.UUID, drugID string, qty int, price int64) *DrugDeal {
	t.Helper()
	deal, err := f.svc.CreateDeal(seller, &CreateDealRequest{DrugID: drugID, Quantity: qty, PricePerUnit: price})
	if err != nil {
		t.Fatalf("create deal: %v", err)
	}
	return deal
}

func TestCreateDealReservesInventory(t *testing.T) {
	f := setup(t)
	seller := f.player(t, 0, "ecstasy", 10)

	deal := f.list(t, seller, "ecstasy", 4, 250)
	if deal.Status != StatusPending || deal.TotalPrice != 1000 || deal.RiskLevel != 4 || !deal.IsPublic {
		t.Fatalf("unexpected deal %+v", deal)
	}
	if n := f.held(t, seller, "ecstasy"); n != 6 {
		t.Fatalf("expected 6 left after reservation, got %d", n)
	}

	_, err := f.svc.CreateDeal(seller, &CreateDealRequest{DrugID: "ecstasy", Quantity: 7, PricePerUnit: 1})
	if !errors.Is(err, common.ErrInsufficientInventory) {
		t.Fatalf("expected insufficient inventory, got %v", err)
	}
	if _, err := f.svc.CreateDeal(seller, &CreateDealRequest{DrugID: "ecstasy", Quantity: 1, PricePerUnit: 0}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	missing := uuid.New()
	if _, err := f.svc.CreateDeal(seller, &CreateDealRequest{DrugID: "ecstasy", Quantity: 1, PricePerUnit: 1, TerritoryID: &missing}); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected territory not found, got %v", err)
	}
	if n := f.held(t, seller, "ecstasy"); n != 6 {
		t.Fatalf("failed listings must not reserve, got %d", n)
	}
}

func TestBuyDealInterdiction(t *testing.T) {
	f := setup(t, 3.2)
	seller := f.player(t, 0, "ecstasy", 5)
	buyer := f.player(t, 10000, "", 0)
	deal := f.list(t, seller, "ecstasy", 5, 1000)

	res, err := f.svc.BuyDeal(buyer, deal.ID)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !res.Interdicted || res.Deal.Status != StatusFailed || res.CombinedRisk != 4 {
		t.Fatalf("expected interdiction, got %+v", res)
	}

	b := f.load(t, buyer)
	if b.Cash != 10000 {
		t.Fatalf("no funds may move, buyer has %d", b.Cash)
	}
	if b.RestrictedUntil == nil || !b.RestrictedUntil.Equal(t0.Add(5*time.Hour)) {
		t.Fatalf("expected restriction until %s, got %v", t0.Add(5*time.Hour), b.RestrictedUntil)
	}
	if s := f.load(t, seller); s.Cash != 0 {
		t.Fatalf("seller must not be paid, has %d", s.Cash)
	}
	if f.held(t, buyer, "ecstasy") != 0 || f.held(t, seller, "ecstasy") != 0 {
		t.Fatalf("interdicted goods must be confiscated")
	}

	if _, err := f.svc.BuyDeal(buyer, deal.ID); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected invalid state on failed deal, got %v", err)
	}
	if _, err := f.svc.CancelDeal(seller, deal.ID); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected invalid state on cancel, got %v", err)
	}
}

func TestBuyDealCompletes(t *testing.T) {
	f := setup(t, 50)
	seller := f.player(t, 100, "weed", 3)
	buyer := f.player(t, 1000, "", 0)
	deal := f.list(t, seller, "weed", 3, 200)

	res, err := f.svc.BuyDeal(buyer, deal.ID)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if res.Interdicted || res.Deal.Status != StatusCompleted || *res.Deal.BuyerID != buyer {
		t.Fatalf("expected completed deal, got %+v", res)
	}
	if c := f.load(t, buyer).Cash; c != 400 {
		t.Fatalf("expected buyer cash 400, got %d", c)
	}
	if c := f.load(t, seller).Cash; c != 700 {
		t.Fatalf("expected seller cash 700, got %d", c)
	}
	if n := f.held(t, buyer, "weed"); n != 3 {
		t.Fatalf("expected buyer to hold 3, got %d", n)
	}

	other := f.player(t, 1000, "", 0)
	if _, err := f.svc.BuyDeal(other, deal.ID); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("completed deal must be terminal, got %v", err)
	}
}

func TestBuyDealGuards(t *testing.T) {
	f := setup(t, 99)
	seller := f.player(t, 0, "cocaine", 2)
	poor := f.player(t, 100, "", 0)
	deal := f.list(t, seller, "cocaine", 2, 1200)

	if _, err := f.svc.BuyDeal(poor, uuid.New()); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.BuyDeal(seller, deal.ID); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("expected forbidden self-buy, got %v", err)
	}
	_, err := f.svc.BuyDeal(poor, deal.ID)
	if !errors.Is(err, common.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	var appErr *common.Error
	errors.As(err, &appErr)
	if appErr.Details["required"] != int64(2400) || appErr.Details["available"] != int64(100) {
		t.Fatalf("unexpected details %+v", appErr.Details)
	}

	got, err := f.svc.GetDeal(deal.ID)
	if err != nil || got.Status != StatusPending {
		t.Fatalf("deal must stay pending, got %+v (%v)", got, err)
	}
}

func TestTerritoryRaisesInterdictionRisk(t *testing.T) {
	f := setup(t, 10)
	gang := uuid.New()
	turf := territory.DrugTerritory{Name: "Docks", RiskModifier: 3, ControlledByGangID: &gang}
	if err := f.db.Create(&turf).Error; err != nil {
		t.Fatalf("create territory: %v", err)
	}

	seller := f.player(t, 0, "ecstasy", 1)
	buyer := f.player(t, 1000, "", 0)
	deal, err := f.svc.CreateDeal(seller, &CreateDealRequest{DrugID: "ecstasy", Quantity: 1, PricePerUnit: 500, TerritoryID: &turf.ID})
	if err != nil {
		t.Fatalf("create deal: %v", err)
	}

	res, err := f.svc.BuyDeal(buyer, deal.ID)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !res.Interdicted || res.CombinedRisk != 12 {
		t.Fatalf("expected interdiction at risk 12, got %+v", res)
	}
	if b := f.load(t, buyer); !b.RestrictedUntil.Equal(t0.Add(time.Hour)) {
		t.Fatalf("expected minimum restriction of 1h, got %v", b.RestrictedUntil)
	}
}

func TestCancelDeal(t *testing.T) {
	f := setup(t)
	seller := f.player(t, 0, "meth", 4)
	other := f.player(t, 0, "", 0)
	deal := f.list(t, seller, "meth", 4, 1500)

	if _, err := f.svc.CancelDeal(other, deal.ID); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	cancelled, err := f.svc.CancelDeal(seller, deal.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if n := f.held(t, seller, "meth"); n != 4 {
		t.Fatalf("reserved quantity must return, got %d", n)
	}
	if _, err := f.svc.CancelDeal(seller, deal.ID); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if _, err := f.svc.BuyDeal(other, deal.ID); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("cancelled deal must be terminal, got %v", err)
	}
}

func TestListDeals(t *testing.T) {
	f := setup(t)
	seller := f.player(t, 0, "weed", 10)
	f.list(t, seller, "weed", 1, 300)
	f.list(t, seller, "weed", 1, 100)
	private := false
	if _, err := f.svc.CreateDeal(seller, &CreateDealRequest{DrugID: "weed", Quantity: 1, PricePerUnit: 50, IsPublic: &private}); err != nil {
		t.Fatalf("create private deal: %v", err)
	}

	deals, err := f.svc.ListDeals(DealFilter{DrugID: "weed"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(deals) != 2 || deals[0].PricePerUnit != 100 {
		t.Fatalf("expected two public deals cheapest first, got %+v", deals)
	}
	if deals, _ := f.svc.ListDeals(DealFilter{MaxPrice: 200}); len(deals) != 1 {
		t.Fatalf("expected price filter to keep one deal, got %d", len(deals))
	}

	mine, err := f.svc.MyDeals(seller)
	if err != nil || len(mine) != 3 {
		t.Fatalf("expected all three deals for the seller, got %d (%v)", len(mine), err)
	}
}

func TestPrivateDealIsStoredPrivate(t *testing.T) {
	f := setup(t)
	seller := f.player(t, 0, "weed", 2)
	private := false
	deal, err := f.svc.CreateDeal(seller, &CreateDealRequest{DrugID: "weed", Quantity: 1, PricePerUnit: 80, IsPublic: &private})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stored, err := f.svc.GetDeal(deal.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.IsPublic {
		t.Fatalf("private deal was persisted as public")
	}
	if deals, _ := f.svc.ListDeals(DealFilter{}); len(deals) != 0 {
		t.Fatalf("private deal must not be listed, got %d", len(deals))
	}
}

func TestCreateDealRejectsOverflowingTotal(t *testing.T) {
	f := setup(t)
	seller := f.player(t, 0, "weed", 2)

	_, err := f.svc.CreateDeal(seller, &CreateDealRequest{DrugID: "weed", Quantity: 2, PricePerUnit: math.MaxInt64})
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n := f.held(t, seller, "weed"); n != 2 {
		t.Fatalf("rejected listing must not reserve, got %d", n)
	}
}

func TestRestrictionClamp(t *testing.T) {
	svc := &Service{tuning: config.DefaultTuning().Market}
	cases := map[int64]time.Duration{
		0:       time.Hour,
		999:     time.Hour,
		2500:    2 * time.Hour,
		24000:   24 * time.Hour,
		1000000: 24 * time.Hour,
	}
	for price, want := range cases {
		if got := svc.restrictionFor(price); got != want {
			t.Errorf("restrictionFor(%d) = %s, want %s", price, got, want)
		}
	}
}

func TestConcurrentBuyersSettleOnce(t *testing.T) {
	for _, backend := range testutil.Backends() {
		t.Run(backend.Name, func(t *testing.T) {
			f := setupOn(t, backend.Open, 99)
			seller := f.player(t, 0, "weed", 1)
			deal := f.list(t, seller, "weed", 1, 100)

			const buyers = 6
			ids := make([]uuid.UUID, buyers)
			for i := range ids {
				ids[i] = f.player(t, 1000, "", 0)
			}

			errs := make(chan error, buyers)
			start := make(chan struct{})
			var wg sync.WaitGroup
			for _, buyer := range ids {
				wg.Add(1)
				go func(buyer uuid.UUID) {
					defer wg.Done()
					<-start
					_, err := f.svc.BuyDeal(buyer, deal.ID)
					errs <- err
				}(buyer)
			}
			close(start)
			wg.Wait()
			close(errs)

			var settled, rejected int
			for err := range errs {
				switch {
				case err == nil:
					settled++
				case errors.Is(err, common.ErrInvalidState):
					rejected++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}
			if settled != 1 || rejected != buyers-1 {
				t.Fatalf("expected one settlement, got %d settled and %d rejected", settled, rejected)
			}

			if got := f.load(t, seller).Cash; got != 100 {
				t.Fatalf("seller must be paid once, got %d", got)
			}
			var spent int64
			var holders int
			for _, buyer := range ids {
				cash := f.load(t, buyer).Cash
				if cash < 0 {
					t.Fatalf("buyer %s went negative: %d", buyer, cash)
				}
				spent += 1000 - cash
				if f.held(t, buyer, "weed") > 0 {
					holders++
				}
			}
			if spent != 100 || holders != 1 {
				t.Fatalf("expected one buyer to pay 100 and hold the weed, got spent=%d holders=%d", spent, holders)
			}
		})
	}
}
