package production

import (
	"context"
	"fmt"
	"log"
	"time"

	"streetlab/internal/achievement"
	"streetlab/internal/catalog"
	"streetlab/internal/common"
	"streetlab/internal/config"
	"streetlab/internal/inventory"
	"streetlab/internal/lab"
	"streetlab/internal/metrics"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// =============================================
// 1. SERVICE STRUCTURE
// =============================================

// Locker serializes mutations per user.
type Locker interface {
	LockUsers(tx *gorm.DB, userIDs ...uuid.UUID) error
}

// Notifier receives events for the batch owner after a commit.
type Notifier interface {
	Notify(userID uuid.UUID, eventType string, payload interface{})
}

type Service struct {
	db        *gorm.DB
	inventory *inventory.Ledger
	locker    Locker
	tuning    config.ProductionTuning
	dice      common.Dice
	hook      achievement.Hook
	notifier  Notifier
	now       func() time.Time
}

func NewService(db *gorm.DB, inv *inventory.Ledger, locker Locker, tuning config.ProductionTuning, dice common.Dice, hook achievement.Hook, notifier Notifier) *Service {
	if dice == nil {
		dice = common.NewDice()
	}
	return &Service{
		db:        db,
		inventory: inv,
		locker:    locker,
		tuning:    tuning,
		dice:      dice,
		hook:      achievement.OrLog(hook),
		notifier:  notifier,
		now:       time.Now,
	}
}

// =============================================
// 2. START PRODUCTION
// =============================================

// StartProduction spends the recipe ingredients for quantity units and queues a batch.
func (s *Service) StartProduction(labID, userID uuid.UUID, drugID string, quantity int) (*StartProductionResponse, error) {
	if quantity < 1 {
		return nil, common.Validation("quantity must be at least 1").With("quantity", quantity)
	}

	var resp *StartProductionResponse
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.locker.LockUsers(tx, userID); err != nil {
			return err
		}
		l, err := lab.LoadForOwner(tx, labID, userID, true)
		if err != nil {
			return err
		}
		if quantity > l.Capacity {
			return common.Validation("quantity %d exceeds lab capacity %d", quantity, l.Capacity).
				With("quantity", quantity).
				With("capacity", l.Capacity)
		}

		drug, err := catalog.LoadDrug(tx, drugID)
		if err != nil {
			return err
		}
		recipe, err := catalog.RecipeFor(tx, drug.ID)
		if err != nil {
			return err
		}
		if len(recipe) == 0 {
			return common.NoRecipe(drug.ID)
		}

		consumed := make(map[string]int, len(recipe))
		deltas := make([]inventory.Delta, 0, len(recipe))
		for _, line := range recipe {
			required := line.Quantity * quantity
			consumed[line.IngredientID] = required
			deltas = append(deltas, inventory.DebitIngredient(userID, line.IngredientID, required))
		}
		if err := s.inventory.Apply(tx, deltas...); err != nil {
			return err
		}

		now := s.now()
		duration := Duration(s.tuning.BaseTime, l, drug, quantity)
		batch := DrugProductionBatch{
			LabID:       l.ID,
			UserID:      userID,
			DrugID:      drug.ID,
			Quantity:    quantity,
			StartedAt:   now,
			CompletesAt: now.Add(duration),
			SuccessRate: SuccessRate(l, drug),
		}
		if err := tx.Create(&batch).Error; err != nil {
			return fmt.Errorf("failed to create batch: %w", err)
		}

		resp = &StartProductionResponse{
			Batch:           &batch,
			DurationSeconds: int64(duration / time.Second),
			Consumed:        consumed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("⚗️ [PRODUCTION] %s started %dx %s in lab %s (ready in %ds, success %d%%)",
		userID, quantity, drugID, labID, resp.DurationSeconds, resp.Batch.SuccessRate)
	metrics.BatchesStarted.WithLabelValues(drugID).Inc()
	s.hook.RecordProgress(context.Background(), userID, achievement.BatchesStarted, 1)
	return resp, nil
}

// =============================================
// 3. COLLECT PRODUCTION
// =============================================

// CollectProductions resolves every due batch across the user's labs. Each
// batch is resolved once; later calls skip it.
func (s *Service) CollectProductions(userID uuid.UUID) (*CollectResult, error) {
	result := &CollectResult{Outcomes: []BatchOutcome{}}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.locker.LockUsers(tx, userID); err != nil {
			return err
		}

		var labIDs []uuid.UUID
		if err := tx.Model(&lab.DrugLab{}).Where("owner_id = ?", userID).Pluck("id", &labIDs).Error; err != nil {
			return fmt.Errorf("failed to list labs: %w", err)
		}
		if len(labIDs) == 0 {
			return common.NotFound("user %s has no labs", userID).With("user_id", userID)
		}

		now := s.now()
		var due []DrugProductionBatch
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("lab_id IN ? AND completes_at <= ? AND is_completed = ?", labIDs, now, false).
			Order("completes_at ASC").
			Find(&due).Error; err != nil {
			return fmt.Errorf("failed to get due batches: %w", err)
		}

		for _, b := range due {
			outcome, resolved, err := s.resolve(tx, &b, now)
			if err != nil {
				return err
			}
			if !resolved {
				continue
			}
			result.Outcomes = append(result.Outcomes, *outcome)
			if outcome.Succeeded {
				result.SuccessfulUnits += outcome.Quantity
			} else {
				result.FailedUnits += outcome.Quantity
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Outcomes) > 0 {
		log.Printf("📦 [PRODUCTION] %s collected %d batches: %d units ok, %d lost",
			userID, len(result.Outcomes), result.SuccessfulUnits, result.FailedUnits)
		metrics.BatchUnits.WithLabelValues("success").Add(float64(result.SuccessfulUnits))
		metrics.BatchUnits.WithLabelValues("failure").Add(float64(result.FailedUnits))
		s.hook.RecordProgress(context.Background(), userID, achievement.UnitsProduced, int64(result.SuccessfulUnits))
		if s.notifier != nil {
			s.notifier.Notify(userID, "production.collected", result)
		}
	}
	return result, nil
}

func (s *Service) resolve(tx *gorm.DB, b *DrugProductionBatch, now time.Time) (*BatchOutcome, bool, error) {
	roll := s.dice.Roll()
	succeeded := roll <= float64(b.SuccessRate)

	res := tx.Model(&DrugProductionBatch{}).
		Where("id = ? AND is_completed = ?", b.ID, false).
		Updates(map[string]interface{}{
			"is_completed": true,
			"succeeded":    succeeded,
			"roll":         roll,
			"resolved_at":  now,
		})
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to resolve batch: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}

	if succeeded {
		if err := s.inventory.Apply(tx, inventory.GrantDrug(b.UserID, b.DrugID, b.Quantity)); err != nil {
			return nil, false, err
		}
	}

	return &BatchOutcome{
		BatchID:     b.ID,
		LabID:       b.LabID,
		DrugID:      b.DrugID,
		Quantity:    b.Quantity,
		SuccessRate: b.SuccessRate,
		Roll:        roll,
		Succeeded:   succeeded,
	}, true, nil
}

// =============================================
// 4. QUERIES
// =============================================

// ListBatches returns the user's batches, newest first. labID narrows to one
// lab; resolved batches are included only on request.
func (s *Service) ListBatches(userID uuid.UUID, labID *uuid.UUID, includeResolved bool) ([]BatchView, error) {
	q := s.db.Where("user_id = ?", userID)
	if labID != nil {
		if _, err := lab.LoadForOwner(s.db, *labID, userID, false); err != nil {
			return nil, err
		}
		q = q.Where("lab_id = ?", *labID)
	}
	if !includeResolved {
		q = q.Where("is_completed = ?", false)
	}

	var batches []DrugProductionBatch
	if err := q.Order("started_at DESC").Limit(200).Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	now := s.now()
	views := make([]BatchView, 0, len(batches))
	for _, b := range batches {
		remaining := b.CompletesAt.Sub(now)
		if remaining < 0 || b.IsCompleted {
			remaining = 0
		}
		views = append(views, BatchView{
			DrugProductionBatch: b,
			RemainingSeconds:    int64(remaining / time.Second),
			Ready:               !b.IsCompleted && !now.Before(b.CompletesAt),
		})
	}
	return views, nil
}

// OwnersWithDueBatches lists users that have at least one batch ready to resolve.
func (s *Service) OwnersWithDueBatches(limit int) ([]uuid.UUID, error) {
	var owners []uuid.UUID
	err := s.db.Model(&DrugProductionBatch{}).
		Distinct("user_id").
		Where("is_completed = ? AND completes_at <= ?", false, s.now()).
		Limit(limit).
		Pluck("user_id", &owners).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due owners: %w", err)
	}
	return owners, nil
}
