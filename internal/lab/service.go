package lab

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"streetlab/internal/achievement"
	"streetlab/internal/common"
	"streetlab/internal/config"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// =============================================
// 1. SERVICE STRUCTURE
// =============================================

// CashLedger is the slice of the player ledger labs are paid from.
type CashLedger interface {
	LockUsers(tx *gorm.DB, userIDs ...uuid.UUID) error
	Debit(tx *gorm.DB, userID uuid.UUID, amount int64, reason string) error
}

type Service struct {
	db        *gorm.DB
	cash      CashLedger
	locations LocationTable
	tuning    config.LabTuning
	hook      achievement.Hook
}

func NewService(db *gorm.DB, cash CashLedger, tuning config.LabTuning, hook achievement.Hook) *Service {
	return &Service{
		db:        db,
		cash:      cash,
		locations: LocationsFromTuning(tuning),
		tuning:    tuning,
		hook:      achievement.OrLog(hook),
	}
}

// =============================================
// 2. LAB LIFECYCLE
// =============================================

// CreateLab builds a new lab at location and charges its setup cost. The setup
// cost also becomes the price of the first upgrade.
func (s *Service) CreateLab(userID uuid.UUID, name, location string) (*DrugLab, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, common.Validation("lab name must be 1-100 characters")
	}
	loc, ok := s.locations.Lookup(location)
	if !ok {
		return nil, common.Validation("unknown location %q", location).
			With("location", location).
			With("allowed", s.locations.keys())
	}

	lab := DrugLab{
		OwnerID:            userID,
		Name:               name,
		Level:              1,
		SecurityLevel:      1,
		Capacity:           s.tuning.InitialCapacity,
		CostToUpgrade:      loc.SetupCost,
		Location:           loc.Key,
		RiskModifier:       loc.RiskModifier,
		ProductionModifier: loc.ProductionModifier,
		DiscoveryChance:    s.tuning.InitialDiscoveryChance,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.cash.LockUsers(tx, userID); err != nil {
			return err
		}
		if err := s.cash.Debit(tx, userID, loc.SetupCost, fmt.Sprintf("lab setup: %s (%s)", name, loc.Name)); err != nil {
			return err
		}
		if err := tx.Create(&lab).Error; err != nil {
			return fmt.Errorf("failed to create lab: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🏭 [LAB] user %s built %q at %s for %d", userID, lab.Name, lab.Location, loc.SetupCost)
	s.hook.RecordProgress(context.Background(), userID, achievement.LabsCreated, 1)
	return &lab, nil
}

// UpgradeLab raises the lab one level and debits the pre-upgrade cost.
func (s *Service) UpgradeLab(labID, userID uuid.UUID) (*UpgradeResult, error) {
	var result *UpgradeResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.cash.LockUsers(tx, userID); err != nil {
			return err
		}
		current, err := LoadForOwner(tx, labID, userID, true)
		if err != nil {
			return err
		}

		cost := current.CostToUpgrade
		if err := s.cash.Debit(tx, userID, cost, fmt.Sprintf("lab upgrade: %s to level %d", current.Name, current.Level+1)); err != nil {
			return err
		}

		next := Upgraded(*current)
		res := tx.Model(&DrugLab{}).
			Where("id = ? AND level = ?", current.ID, current.Level).
			Updates(map[string]interface{}{
				"level":            next.Level,
				"security_level":   next.SecurityLevel,
				"capacity":         next.Capacity,
				"cost_to_upgrade":  next.CostToUpgrade,
				"discovery_chance": next.DiscoveryChance,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to upgrade lab: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return common.InvalidState("lab %s changed during upgrade", labID).With("lab_id", labID)
		}

		history := LabUpgradeHistory{
			LabID:     current.ID,
			UserID:    userID,
			FromLevel: current.Level,
			ToLevel:   next.Level,
			CashSpent: cost,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to record lab upgrade: %w", err)
		}

		result = &UpgradeResult{Lab: &next, FromLevel: current.Level, ToLevel: next.Level, CashSpent: cost}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("⬆️ [LAB] %s upgraded %d -> %d for %d", labID, result.FromLevel, result.ToLevel, result.CashSpent)
	s.hook.RecordProgress(context.Background(), userID, achievement.LabsUpgraded, 1)
	return result, nil
}

func (s *Service) GetLab(labID, userID uuid.UUID) (*DrugLab, error) {
	return LoadForOwner(s.db, labID, userID, false)
}

func (s *Service) ListLabs(userID uuid.UUID) ([]DrugLab, error) {
	var labs []DrugLab
	if err := s.db.Where("owner_id = ?", userID).Order("created_at ASC").Find(&labs).Error; err != nil {
		return nil, fmt.Errorf("failed to list labs: %w", err)
	}
	return labs, nil
}

func (s *Service) RenameLab(labID, userID uuid.UUID, name string) (*DrugLab, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, common.Validation("lab name must be 1-100 characters")
	}

	var lab *DrugLab
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		lab, err = LoadForOwner(tx, labID, userID, true)
		if err != nil {
			return err
		}
		if err := tx.Model(&DrugLab{}).Where("id = ?", lab.ID).Update("name", name).Error; err != nil {
			return fmt.Errorf("failed to rename lab: %w", err)
		}
		lab.Name = name
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lab, nil
}

// DeleteLab tears a lab down. Labs with batches still cooking are kept.
func (s *Service) DeleteLab(labID, userID uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		lab, err := LoadForOwner(tx, labID, userID, true)
		if err != nil {
			return err
		}

		if tx.Migrator().HasTable("drug_production_batches") {
			var pending int64
			if err := tx.Table("drug_production_batches").
				Where("lab_id = ? AND is_completed = ?", lab.ID, false).
				Count(&pending).Error; err != nil {
				return fmt.Errorf("failed to count batches: %w", err)
			}
			if pending > 0 {
				return common.InvalidState("lab %s has %d unresolved batches", lab.ID, pending).
					With("lab_id", lab.ID).
					With("unresolved_batches", pending)
			}
		}

		if err := tx.Where("id = ?", lab.ID).Delete(&DrugLab{}).Error; err != nil {
			return fmt.Errorf("failed to delete lab: %w", err)
		}
		return nil
	})
}

func (s *Service) Locations() []Location {
	return s.locations.Sorted()
}

// =============================================
// 3. SHARED LOOKUPS
// =============================================

// LoadForOwner reads a lab and checks ownership. With lock set the row is
// locked for the rest of tx.
func LoadForOwner(tx *gorm.DB, labID, userID uuid.UUID, lock bool) (*DrugLab, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var lab DrugLab
	if err := q.Where("id = ?", labID).First(&lab).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("lab %s not found", labID).With("lab_id", labID)
		}
		return nil, fmt.Errorf("failed to get lab: %w", err)
	}
	if lab.OwnerID != userID {
		return nil, common.Forbidden("lab %s belongs to another user", labID).With("lab_id", labID)
	}
	return &lab, nil
}
