package lab

import (
	"errors"
	"testing"

	"streetlab/internal/achievement"
	"streetlab/internal/common"
	"streetlab/internal/config"
	"streetlab/internal/player"
	"streetlab/internal/testutil"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, *Service) {
	t.Helper()
	db := testutil.OpenDB(t, &player.Player{}, &player.CashTransaction{}, &DrugLab{}, &LabUpgradeHistory{})
	return db, NewService(db, player.NewLedger(), config.DefaultTuning().Lab, achievement.LogHook{})
}

func newPlayer(t *testing.T, db *gorm.DB, cash int64) uuid.UUID {
	t.Helper()
	p := player.Player{Username: "cook", Cash: cash}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("create player: %v", err)
	}
	return p.ID
}

func cashOf(t *testing.T, db *gorm.DB, id uuid.UUID) int64 {
	t.Helper()
	var p player.Player
	if err := db.Where("id = ?", id).First(&p).Error; err != nil {
		t.Fatalf("load player: %v", err)
	}
	return p.Cash
}

func TestUpgradedProgression(t *testing.T) {
	l := DrugLab{Level: 2, SecurityLevel: 2, Capacity: 15, CostToUpgrade: 1000, DiscoveryChance: 2}

	next := Upgraded(l)
	if next.Level != 3 || next.SecurityLevel != 3 || next.Capacity != 20 {
		t.Fatalf("unexpected progression %+v", next)
	}
	if next.CostToUpgrade != 1500 {
		t.Fatalf("expected cost 1500, got %d", next.CostToUpgrade)
	}
	if next.DiscoveryChance != 1 {
		t.Fatalf("expected discovery 1, got %d", next.DiscoveryChance)
	}

	again := Upgraded(Upgraded(next))
	if again.DiscoveryChance != 1 {
		t.Fatalf("discovery chance must not drop below 1, got %d", again.DiscoveryChance)
	}
	if again.CostToUpgrade != 3375 {
		t.Fatalf("expected floor(1500*1.5*1.5)=3375, got %d", again.CostToUpgrade)
	}

	odd := Upgraded(DrugLab{CostToUpgrade: 1001, DiscoveryChance: 5})
	if odd.CostToUpgrade != 1501 {
		t.Fatalf("expected floored cost 1501, got %d", odd.CostToUpgrade)
	}
}

func TestCreateLabChargesSetupCost(t *testing.T) {
	db, svc := setup(t)
	user := newPlayer(t, db, 10000)

	lab, err := svc.CreateLab(user, "Garage", "abandoned_warehouse")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if lab.Level != 1 || lab.SecurityLevel != 1 || lab.Capacity != 10 || lab.DiscoveryChance != 10 {
		t.Fatalf("unexpected initial lab %+v", lab)
	}
	if lab.RiskModifier != 5 || lab.ProductionModifier != 10 || lab.CostToUpgrade != 5000 {
		t.Fatalf("location modifiers not applied: %+v", lab)
	}
	if got := cashOf(t, db, user); got != 5000 {
		t.Fatalf("expected 5000 cash left, got %d", got)
	}

	if _, err := svc.CreateLab(user, "Second", "suburban_basement"); err != nil {
		t.Fatalf("second lab: %v", err)
	}
	labs, _ := svc.ListLabs(user)
	if len(labs) != 2 {
		t.Fatalf("expected two labs, got %d", len(labs))
	}

	if _, err := svc.CreateLab(user, "Moon Base", "moon"); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected unknown location to fail validation, got %v", err)
	}
	if _, err := svc.CreateLab(user, "Bunker", "underground_bunker"); !errors.Is(err, common.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestUpgradeLab(t *testing.T) {
	db, svc := setup(t)
	owner := newPlayer(t, db, 3000+1000)
	stranger := newPlayer(t, db, 100000)

	lab, err := svc.CreateLab(owner, "Basement", "suburban_basement")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.Model(&DrugLab{}).Where("id = ?", lab.ID).Update("cost_to_upgrade", 1000).Error; err != nil {
		t.Fatalf("set cost: %v", err)
	}

	if _, err := svc.UpgradeLab(uuid.New(), owner); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.UpgradeLab(lab.ID, stranger); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	res, err := svc.UpgradeLab(lab.ID, owner)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if res.FromLevel != 1 || res.ToLevel != 2 || res.CashSpent != 1000 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Lab.CostToUpgrade != 1500 || res.Lab.Capacity != 15 || res.Lab.SecurityLevel != 2 || res.Lab.DiscoveryChance != 9 {
		t.Fatalf("unexpected lab after upgrade %+v", res.Lab)
	}
	if got := cashOf(t, db, owner); got != 0 {
		t.Fatalf("expected cash 0, got %d", got)
	}

	if _, err := svc.UpgradeLab(lab.ID, owner); !errors.Is(err, common.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	stored, _ := svc.GetLab(lab.ID, owner)
	if stored.Level != 2 {
		t.Fatalf("failed upgrade must not change the lab, level=%d", stored.Level)
	}

	var history []LabUpgradeHistory
	db.Where("lab_id = ?", lab.ID).Find(&history)
	if len(history) != 1 || history[0].CashSpent != 1000 {
		t.Fatalf("expected one history row, got %+v", history)
	}
}

func TestRenameAndDeleteLab(t *testing.T) {
	db, svc := setup(t)
	owner := newPlayer(t, db, 5000)

	lab, err := svc.CreateLab(owner, "Shed", "suburban_basement")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	renamed, err := svc.RenameLab(lab.ID, owner, "  Cook Shack ")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "Cook Shack" {
		t.Fatalf("unexpected name %q", renamed.Name)
	}
	if _, err := svc.RenameLab(lab.ID, owner, " "); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := svc.DeleteLab(lab.ID, owner); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetLab(lab.ID, owner); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected deleted lab to be gone, got %v", err)
	}
}

func TestLocationsSorted(t *testing.T) {
	_, svc := setup(t)
	locs := svc.Locations()
	if len(locs) != 6 {
		t.Fatalf("expected 6 locations, got %d", len(locs))
	}
	if locs[0].Key != "suburban_basement" || locs[len(locs)-1].Key != "underground_bunker" {
		t.Fatalf("unexpected order %v", locs)
	}
}
