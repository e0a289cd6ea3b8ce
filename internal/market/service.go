package market

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"streetlab/internal/achievement"
	"streetlab/internal/catalog"
	"streetlab/internal/common"
	"streetlab/internal/config"
	"streetlab/internal/inventory"
	"streetlab/internal/metrics"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxListLimit = 100

// =============================================
// 1. SERVICE STRUCTURE
// =============================================

// Ledger is the cash ledger plus the restriction service.
type Ledger interface {
	LockUsers(tx *gorm.DB, userIDs ...uuid.UUID) error
	Balance(tx *gorm.DB, userID uuid.UUID) (int64, error)
	Debit(tx *gorm.DB, userID uuid.UUID, amount int64, reason string) error
	Credit(tx *gorm.DB, userID uuid.UUID, amount int64, reason string) error
	Restrict(tx *gorm.DB, userID uuid.UUID, until time.Time, reason string) error
}

// Territories resolves the interdiction multiplier of a deal's territory.
type Territories interface {
	RiskModifier(tx *gorm.DB, territoryID *uuid.UUID) float64
}

type Notifier interface {
	Notify(userID uuid.UUID, eventType string, payload interface{})
}

type Service struct {
	db          *gorm.DB
	inventory   *inventory.Ledger
	ledger      Ledger
	territories Territories
	tuning      config.MarketTuning
	dice        common.Dice
	hook        achievement.Hook
	notifier    Notifier
	now         func() time.Time
}

func NewService(db *gorm.DB, inv *inventory.Ledger, ledger Ledger, territories Territories, tuning config.MarketTuning, dice common.Dice, hook achievement.Hook, notifier Notifier) *Service {
	if dice == nil {
		dice = common.NewDice()
	}
	return &Service{
		db:          db,
		inventory:   inv,
		ledger:      ledger,
		territories: territories,
		tuning:      tuning,
		dice:        dice,
		hook:        achievement.OrLog(hook),
		notifier:    notifier,
		now:         time.Now,
	}
}

// =============================================
// 2. LISTING
// =============================================

// CreateDeal lists quantity units for sale and reserves them from the seller's inventory.
func (s *Service) CreateDeal(sellerID uuid.UUID, req *CreateDealRequest) (*DrugDeal, error) {
	if req.Quantity < 1 {
		return nil, common.Validation("quantity must be at least 1").With("quantity", req.Quantity)
	}
	if req.PricePerUnit < 1 {
		return nil, common.Validation("price_per_unit must be at least 1").With("price_per_unit", req.PricePerUnit)
	}
	total, err := common.TotalPrice(req.PricePerUnit, req.Quantity)
	if err != nil {
		return nil, err
	}
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	var deal DrugDeal
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.LockUsers(tx, sellerID); err != nil {
			return err
		}
		drug, err := catalog.LoadDrug(tx, req.DrugID)
		if err != nil {
			return err
		}
		if req.TerritoryID != nil {
			if err := territoryExists(tx, *req.TerritoryID); err != nil {
				return err
			}
		}

		if err := s.inventory.Apply(tx, inventory.DebitDrug(sellerID, drug.ID, req.Quantity)); err != nil {
			return err
		}

		deal = DrugDeal{
			SellerID:     sellerID,
			DrugID:       drug.ID,
			Quantity:     req.Quantity,
			PricePerUnit: req.PricePerUnit,
			TotalPrice:   total,
			RiskLevel:    drug.RiskLevel,
			IsPublic:     isPublic,
			TerritoryID:  req.TerritoryID,
			Status:       StatusPending,
		}
		if err := tx.Create(&deal).Error; err != nil {
			return fmt.Errorf("failed to create deal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🤝 [MARKET] %s listed %dx %s for %d", sellerID, deal.Quantity, deal.DrugID, deal.TotalPrice)
	s.hook.RecordProgress(context.Background(), sellerID, achievement.DealsListed, 1)
	return &deal, nil
}

// =============================================
// 3. RESOLUTION
// =============================================

// BuyDeal settles a pending deal. An interdicted purchase is not an error: the
// deal fails, the buyer is restricted, no money moves and the goods are lost.
func (s *Service) BuyDeal(buyerID, dealID uuid.UUID) (*BuyResult, error) {
	peek, err := s.GetDeal(dealID)
	if err != nil {
		return nil, err
	}

	var result *BuyResult
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.LockUsers(tx, buyerID, peek.SellerID); err != nil {
			return err
		}
		deal, err := lockDeal(tx, dealID)
		if err != nil {
			return err
		}
		if deal.Status != StatusPending {
			return common.InvalidState("deal %s is %s", deal.ID, deal.Status).
				With("deal_id", deal.ID).
				With("status", deal.Status)
		}
		if deal.SellerID == buyerID {
			return common.Forbidden("you cannot buy your own deal").With("deal_id", deal.ID)
		}

		cash, err := s.ledger.Balance(tx, buyerID)
		if err != nil {
			return err
		}
		if cash < deal.TotalPrice {
			return common.InsufficientFunds(deal.TotalPrice, cash)
		}

		now := s.now()
		combined := float64(deal.RiskLevel) * s.territories.RiskModifier(tx, deal.TerritoryID)
		roll := s.dice.Roll()
		result = &BuyResult{CombinedRisk: combined, Roll: roll}

		if roll < combined {
			if err := s.transition(tx, deal, StatusFailed, buyerID, roll, now); err != nil {
				return err
			}
			until := now.Add(s.restrictionFor(deal.TotalPrice))
			reason := fmt.Sprintf("busted buying %dx %s", deal.Quantity, deal.DrugID)
			if err := s.ledger.Restrict(tx, buyerID, until, reason); err != nil {
				return err
			}
			result.Interdicted = true
			result.RestrictedUntil = &until
			result.Deal = deal
			return nil
		}

		if err := s.transition(tx, deal, StatusCompleted, buyerID, roll, now); err != nil {
			return err
		}
		if err := s.ledger.Debit(tx, buyerID, deal.TotalPrice, fmt.Sprintf("deal %s", deal.ID)); err != nil {
			return err
		}
		if err := s.ledger.Credit(tx, deal.SellerID, deal.TotalPrice, fmt.Sprintf("deal %s", deal.ID)); err != nil {
			return err
		}
		if err := s.inventory.Apply(tx, inventory.GrantDrug(buyerID, deal.DrugID, deal.Quantity)); err != nil {
			return err
		}
		result.Deal = deal
		return nil
	})
	if err != nil {
		return nil, err
	}

	deal := result.Deal
	metrics.DealsResolved.WithLabelValues(deal.Status).Inc()
	if result.Interdicted {
		log.Printf("🚨 [MARKET] deal %s busted (roll %.2f < %.2f), %s restricted until %s",
			deal.ID, result.Roll, result.CombinedRisk, buyerID, result.RestrictedUntil.Format(time.RFC3339))
		s.hook.RecordProgress(context.Background(), buyerID, achievement.DealsBusted, 1)
	} else {
		log.Printf("💰 [MARKET] deal %s completed: %s bought %dx %s for %d", deal.ID, buyerID, deal.Quantity, deal.DrugID, deal.TotalPrice)
		s.hook.RecordProgress(context.Background(), buyerID, achievement.DealsCompleted, 1)
		s.hook.RecordProgress(context.Background(), deal.SellerID, achievement.DealsCompleted, 1)
	}
	if s.notifier != nil {
		s.notifier.Notify(deal.SellerID, "deal."+deal.Status, deal)
	}
	return result, nil
}

// CancelDeal withdraws a pending deal and returns the reserved quantity.
func (s *Service) CancelDeal(sellerID, dealID uuid.UUID) (*DrugDeal, error) {
	var deal *DrugDeal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.LockUsers(tx, sellerID); err != nil {
			return err
		}
		var err error
		deal, err = lockDeal(tx, dealID)
		if err != nil {
			return err
		}
		if deal.SellerID != sellerID {
			return common.Forbidden("deal %s belongs to another seller", deal.ID).With("deal_id", deal.ID)
		}
		if deal.Status != StatusPending {
			return common.InvalidState("deal %s is %s", deal.ID, deal.Status).
				With("deal_id", deal.ID).
				With("status", deal.Status)
		}
		if err := s.transition(tx, deal, StatusCancelled, uuid.Nil, 0, s.now()); err != nil {
			return err
		}
		return s.inventory.Apply(tx, inventory.GrantDrug(sellerID, deal.DrugID, deal.Quantity))
	})
	if err != nil {
		return nil, err
	}

	log.Printf("↩️ [MARKET] deal %s cancelled, %dx %s returned to %s", deal.ID, deal.Quantity, deal.DrugID, sellerID)
	metrics.DealsResolved.WithLabelValues(StatusCancelled).Inc()
	return deal, nil
}

// transition moves a pending deal to status. The status guard in the UPDATE
// makes a second transition a no-op that surfaces as InvalidState.
func (s *Service) transition(tx *gorm.DB, deal *DrugDeal, status string, buyerID uuid.UUID, roll float64, now time.Time) error {
	updates := map[string]interface{}{
		"status":      status,
		"resolved_at": now,
	}
	if buyerID != uuid.Nil {
		updates["buyer_id"] = buyerID
		updates["roll"] = roll
	}

	res := tx.Model(&DrugDeal{}).
		Where("id = ? AND status = ?", deal.ID, StatusPending).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update deal: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.InvalidState("deal %s is no longer pending", deal.ID).With("deal_id", deal.ID)
	}

	deal.Status = status
	deal.ResolvedAt = &now
	if buyerID != uuid.Nil {
		deal.BuyerID = &buyerID
		deal.Roll = &roll
	}
	return nil
}

// restrictionFor is one hour per restriction step of the total price, clamped
// to the configured range.
func (s *Service) restrictionFor(totalPrice int64) time.Duration {
	hours := int(totalPrice / s.tuning.RestrictionPriceStep)
	if hours < s.tuning.MinRestrictionHours {
		hours = s.tuning.MinRestrictionHours
	}
	if hours > s.tuning.MaxRestrictionHours {
		hours = s.tuning.MaxRestrictionHours
	}
	return time.Duration(hours) * time.Hour
}

// =============================================
// 4. QUERIES
// =============================================

// ListDeals returns public pending deals, cheapest per unit first.
func (s *Service) ListDeals(filter DealFilter) ([]DrugDeal, error) {
	q := s.db.Where("status = ? AND is_public = ?", StatusPending, true)
	if filter.DrugID != "" {
		q = q.Where("drug_id = ?", filter.DrugID)
	}
	if filter.MaxPrice > 0 {
		q = q.Where("price_per_unit <= ?", filter.MaxPrice)
	}
	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var deals []DrugDeal
	if err := q.Order("price_per_unit ASC, created_at ASC").Limit(limit).Offset(offset).Find(&deals).Error; err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	return deals, nil
}

// MyDeals returns every deal the user sold or bought, newest first.
func (s *Service) MyDeals(userID uuid.UUID) ([]DrugDeal, error) {
	var deals []DrugDeal
	if err := s.db.Where("seller_id = ? OR buyer_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(200).
		Find(&deals).Error; err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	return deals, nil
}

// GetDeal loads a deal by id. Private deals are reachable this way too.
func (s *Service) GetDeal(dealID uuid.UUID) (*DrugDeal, error) {
	var deal DrugDeal
	if err := s.db.Where("id = ?", dealID).First(&deal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("deal %s not found", dealID).With("deal_id", dealID)
		}
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}
	return &deal, nil
}

func lockDeal(tx *gorm.DB, dealID uuid.UUID) (*DrugDeal, error) {
	var deal DrugDeal
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", dealID).First(&deal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("deal %s not found", dealID).With("deal_id", dealID)
		}
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}
	return &deal, nil
}

func territoryExists(tx *gorm.DB, territoryID uuid.UUID) error {
	if !tx.Migrator().HasTable("drug_territories") {
		return common.NotFound("territory %s not found", territoryID).With("territory_id", territoryID)
	}
	var n int64
	if err := tx.Table("drug_territories").Where("id = ?", territoryID).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check territory: %w", err)
	}
	if n == 0 {
		return common.NotFound("territory %s not found", territoryID).With("territory_id", territoryID)
	}
	return nil
}
