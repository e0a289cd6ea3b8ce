package addiction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"streetlab/internal/achievement"
	"streetlab/internal/common"
	"streetlab/internal/config"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CashLedger pays for rehab.
type CashLedger interface {
	LockUsers(tx *gorm.DB, userIDs ...uuid.UUID) error
	Debit(tx *gorm.DB, userID uuid.UUID, amount int64, reason string) error
}

type Service struct {
	db        *gorm.DB
	cash      CashLedger
	effects   []string
	rehabCost int64
	dice      common.Dice
	hook      achievement.Hook
	now       func() time.Time
}

// NewService takes the withdrawal effect catalog from tuning; new addictions
// draw one of those strings.
func NewService(db *gorm.DB, cash CashLedger, tuning config.AddictionTuning, dice common.Dice, hook achievement.Hook) *Service {
	if dice == nil {
		dice = common.NewDice()
	}
	return &Service{
		db:        db,
		cash:      cash,
		effects:   append([]string(nil), tuning.WithdrawalEffects...),
		rehabCost: tuning.RehabCostPerLevel,
		dice:      dice,
		hook:      achievement.OrLog(hook),
		now:       time.Now,
	}
}

// RecordDose registers an addictive dose inside the caller's transaction. The
// first dose creates the addiction at level 1; later doses raise it up to 10.
func (s *Service) RecordDose(tx *gorm.DB, userID uuid.UUID, drugID string, now time.Time) (*DrugAddiction, error) {
	var a DrugAddiction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND drug_id = ?", userID, drugID).
		First(&a).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get addiction: %w", err)
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		a = DrugAddiction{
			UserID:           userID,
			DrugID:           drugID,
			Level:            1,
			WithdrawalEffect: s.effects[common.Pick(s.dice, len(s.effects))],
			LastDosage:       now,
		}
		if err := tx.Create(&a).Error; err != nil {
			return nil, fmt.Errorf("failed to create addiction: %w", err)
		}
		log.Printf("💉 [ADDICTION] %s is now addicted to %s (%s)", userID, drugID, a.WithdrawalEffect)
		return &a, nil
	}

	level := a.Level + 1
	if level > MaxLevel {
		level = MaxLevel
	}
	if err := tx.Model(&DrugAddiction{}).Where("id = ?", a.ID).Updates(map[string]interface{}{
		"level":       level,
		"last_dosage": now,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update addiction: %w", err)
	}
	a.Level = level
	a.LastDosage = now
	return &a, nil
}

func (s *Service) List(userID uuid.UUID) ([]DrugAddiction, error) {
	var out []DrugAddiction
	if err := s.db.Where("user_id = ?", userID).Order("level DESC, drug_id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list addictions: %w", err)
	}
	return out, nil
}

func (s *Service) Get(userID, addictionID uuid.UUID) (*DrugAddiction, error) {
	return load(s.db, userID, addictionID, false)
}

// Withdrawals lists the addictions past the 24h grace period with their
// current severity, worst first.
func (s *Service) Withdrawals(userID uuid.UUID) ([]Withdrawal, error) {
	now := s.now()

	var rows []struct {
		DrugAddiction
		DrugName string
	}
	err := s.db.Table("drug_addictions AS a").
		Select("a.*, d.name AS drug_name").
		Joins("LEFT JOIN drugs d ON d.id = a.drug_id").
		Where("a.user_id = ? AND a.last_dosage < ?", userID, now.Add(-withdrawalGrace)).
		Order("a.last_dosage ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}

	out := make([]Withdrawal, 0, len(rows))
	for _, r := range rows {
		sev := Severity(r.Level, r.LastDosage, now)
		if sev == 0 {
			continue
		}
		out = append(out, Withdrawal{
			DrugAddiction:      r.DrugAddiction,
			DrugName:           r.DrugName,
			HoursSinceLastDose: now.Sub(r.LastDosage).Hours(),
			Severity:           sev,
		})
	}
	return out, nil
}

// Rehab clears an addiction for level × rehab cost.
func (s *Service) Rehab(userID, addictionID uuid.UUID) (*RehabResult, error) {
	var result *RehabResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.cash.LockUsers(tx, userID); err != nil {
			return err
		}
		a, err := load(tx, userID, addictionID, true)
		if err != nil {
			return err
		}

		cost := int64(a.Level) * s.rehabCost
		if err := s.cash.Debit(tx, userID, cost, fmt.Sprintf("rehab: %s level %d", a.DrugID, a.Level)); err != nil {
			return err
		}
		if err := tx.Delete(&DrugAddiction{}, "id = ?", a.ID).Error; err != nil {
			return fmt.Errorf("failed to delete addiction: %w", err)
		}
		result = &RehabResult{AddictionID: a.ID, DrugID: a.DrugID, Level: a.Level, Cost: cost}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🏥 [ADDICTION] %s completed rehab for %s (level %d, cost %d)", userID, result.DrugID, result.Level, result.Cost)
	s.hook.RecordProgress(context.Background(), userID, achievement.RehabsCompleted, 1)
	return result, nil
}

func load(tx *gorm.DB, userID, addictionID uuid.UUID, lock bool) (*DrugAddiction, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var a DrugAddiction
	if err := q.Where("id = ?", addictionID).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("addiction %s not found", addictionID).With("addiction_id", addictionID)
		}
		return nil, fmt.Errorf("failed to get addiction: %w", err)
	}
	if a.UserID != userID {
		return nil, common.Forbidden("addiction %s belongs to another user", addictionID).With("addiction_id", addictionID)
	}
	return &a, nil
}
