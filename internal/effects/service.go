package effects

import (
	"context"
	"fmt"
	"log"
	"time"

	"streetlab/internal/achievement"
	"streetlab/internal/addiction"
	"streetlab/internal/catalog"
	"streetlab/internal/common"
	"streetlab/internal/config"
	"streetlab/internal/inventory"
	"streetlab/internal/metrics"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const revertBatchSize = 500

// =============================================
// 1. SERVICE STRUCTURE
// =============================================

// StatLedger applies and reverts stat bonuses.
type StatLedger interface {
	LockUsers(tx *gorm.DB, userIDs ...uuid.UUID) error
	ApplyBonus(tx *gorm.DB, userID uuid.UUID, b common.Bonuses) error
}

// DoseRecorder is the addiction tracker as seen from consumption.
type DoseRecorder interface {
	RecordDose(tx *gorm.DB, userID uuid.UUID, drugID string, now time.Time) (*addiction.DrugAddiction, error)
}

type Service struct {
	db        *gorm.DB
	inventory *inventory.Ledger
	stats     StatLedger
	addiction DoseRecorder
	tuning    config.EffectsTuning
	dice      common.Dice
	hook      achievement.Hook
	now       func() time.Time
}

func NewService(db *gorm.DB, inv *inventory.Ledger, stats StatLedger, addictions DoseRecorder, tuning config.EffectsTuning, dice common.Dice, hook achievement.Hook) *Service {
	if dice == nil {
		dice = common.NewDice()
	}
	return &Service{
		db:        db,
		inventory: inv,
		stats:     stats,
		addiction: addictions,
		tuning:    tuning,
		dice:      dice,
		hook:      achievement.OrLog(hook),
		now:       time.Now,
	}
}

// =============================================
// 2. CONSUMPTION
// =============================================

// UseDrug consumes one unit, rolls for addiction, records the effect and applies
// its bonuses to the user's stats.
func (s *Service) UseDrug(userID uuid.UUID, drugID string) (*UseDrugResult, error) {
	var result *UseDrugResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.stats.LockUsers(tx, userID); err != nil {
			return err
		}
		drug, err := catalog.LoadDrug(tx, drugID)
		if err != nil {
			return err
		}

		held, err := s.inventory.DrugBalance(tx, userID, drug.ID)
		if err != nil {
			return err
		}
		if held < 1 {
			return common.InsufficientInventory("you do not hold any %s", drug.Name).
				With("drug_id", drug.ID).
				With("required", 1).
				With("available", held)
		}
		if err := s.inventory.Apply(tx, inventory.DebitDrug(userID, drug.ID, 1)); err != nil {
			return err
		}

		now := s.now()
		roll := s.dice.Roll()
		var addicted *addiction.DrugAddiction
		if drug.AddictionRate > 0 && roll <= float64(drug.AddictionRate) {
			addicted, err = s.addiction.RecordDose(tx, userID, drug.ID, now)
			if err != nil {
				return err
			}
		}

		effect := UserDrugEffect{
			UserID:    userID,
			DrugID:    drug.ID,
			Bonuses:   drug.Bonuses,
			StartedAt: now,
			ExpiresAt: now.Add(time.Duration(drug.DurationHours) * time.Hour),
		}
		if err := tx.Create(&effect).Error; err != nil {
			return fmt.Errorf("failed to record effect: %w", err)
		}
		if err := s.stats.ApplyBonus(tx, userID, drug.Bonuses); err != nil {
			return err
		}

		result = &UseDrugResult{
			Effect:        &effect,
			Remaining:     held - 1,
			AddictionRoll: roll,
			Addiction:     addicted,
			SideEffects:   drug.SideEffects,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("💊 [EFFECTS] %s used %s (expires %s)", userID, drugID, result.Effect.ExpiresAt.Format(time.RFC3339))
	metrics.DrugsUsed.WithLabelValues(drugID).Inc()
	s.hook.RecordProgress(context.Background(), userID, achievement.DrugsUsed, 1)
	return result, nil
}

// =============================================
// 3. QUERIES
// =============================================

func (s *Service) ActiveEffects(userID uuid.UUID) ([]UserDrugEffect, error) {
	var effects []UserDrugEffect
	if err := s.db.Where("user_id = ? AND expires_at > ?", userID, s.now()).
		Order("expires_at ASC").
		Find(&effects).Error; err != nil {
		return nil, fmt.Errorf("failed to list effects: %w", err)
	}
	return effects, nil
}

// ActiveBonuses sums the bonuses of every effect that has not expired.
func (s *Service) ActiveBonuses(userID uuid.UUID) (common.Bonuses, error) {
	effects, err := s.ActiveEffects(userID)
	if err != nil {
		return common.Bonuses{}, err
	}
	var total common.Bonuses
	for _, e := range effects {
		total = total.Add(e.Bonuses)
	}
	return total, nil
}

// =============================================
// 4. EXPIRY
// =============================================

// RevertExpired takes back the bonuses of expired effects. Each effect is
// reverted at most once. It is a no-op when expiry reverts are disabled.
func (s *Service) RevertExpired(ctx context.Context) (int, error) {
	if !s.tuning.RevertOnExpiry {
		return 0, nil
	}

	var expired []UserDrugEffect
	if err := s.db.WithContext(ctx).
		Where("reverted = ? AND expires_at <= ?", false, s.now()).
		Order("expires_at ASC").
		Limit(revertBatchSize).
		Find(&expired).Error; err != nil {
		return 0, fmt.Errorf("failed to list expired effects: %w", err)
	}

	reverted := 0
	for _, e := range expired {
		if ctx.Err() != nil {
			break
		}
		done, err := s.revert(&e)
		if err != nil {
			return reverted, err
		}
		if done {
			reverted++
		}
	}
	return reverted, nil
}

func (s *Service) revert(e *UserDrugEffect) (bool, error) {
	done := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.stats.LockUsers(tx, e.UserID); err != nil {
			return err
		}
		res := tx.Model(&UserDrugEffect{}).
			Where("id = ? AND reverted = ?", e.ID, false).
			Update("reverted", true)
		if res.Error != nil {
			return fmt.Errorf("failed to mark effect reverted: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := s.stats.ApplyBonus(tx, e.UserID, e.Bonuses.Negate()); err != nil {
			return err
		}
		done = true
		return nil
	})
	return done, err
}
