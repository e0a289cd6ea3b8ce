package player

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"streetlab/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger implements the cash ledger, stat ledger and restriction service on the
// players table. Every method takes the caller's transaction so the collaborator
// write commits or rolls back together with the core operation.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// LockUsers takes row locks on the given players in a stable order.
func (l *Ledger) LockUsers(tx *gorm.DB, userIDs ...uuid.UUID) error {
	ids := append([]uuid.UUID(nil), userIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var prev uuid.UUID
	for i, id := range ids {
		if i > 0 && id == prev {
			continue
		}
		prev = id
		var p Player
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", id).
			First(&p).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.NotFound("user %s not found", id).With("user_id", id)
			}
			return fmt.Errorf("failed to lock user: %w", err)
		}
	}
	return nil
}

func (l *Ledger) Balance(tx *gorm.DB, userID uuid.UUID) (int64, error) {
	p, err := l.load(tx, userID)
	if err != nil {
		return 0, err
	}
	return p.Cash, nil
}

// Debit removes amount from the user's cash or fails with InsufficientFunds.
func (l *Ledger) Debit(tx *gorm.DB, userID uuid.UUID, amount int64, reason string) error {
	if amount < 0 {
		return common.Validation("debit amount must not be negative")
	}
	if amount == 0 {
		return nil
	}

	p, err := l.load(tx, userID)
	if err != nil {
		return err
	}
	if p.Cash < amount {
		return common.InsufficientFunds(amount, p.Cash)
	}

	res := tx.Model(&Player{}).
		Where("id = ? AND cash >= ?", userID, amount).
		Update("cash", gorm.Expr("cash - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("failed to debit cash: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.InsufficientFunds(amount, p.Cash)
	}

	return l.record(tx, userID, -amount, p.Cash, reason)
}

func (l *Ledger) Credit(tx *gorm.DB, userID uuid.UUID, amount int64, reason string) error {
	if amount < 0 {
		return common.Validation("credit amount must not be negative")
	}
	if amount == 0 {
		return nil
	}

	p, err := l.load(tx, userID)
	if err != nil {
		return err
	}

	if err := tx.Model(&Player{}).
		Where("id = ?", userID).
		Update("cash", gorm.Expr("cash + ?", amount)).Error; err != nil {
		return fmt.Errorf("failed to credit cash: %w", err)
	}

	return l.record(tx, userID, amount, p.Cash, reason)
}

// ApplyBonus adds b onto the user's stats. Negative values revert an earlier bonus.
func (l *Ledger) ApplyBonus(tx *gorm.DB, userID uuid.UUID, b common.Bonuses) error {
	if b.IsZero() {
		return nil
	}
	res := tx.Model(&Player{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"stat_strength":     gorm.Expr("stat_strength + ?", b.Strength),
		"stat_stealth":      gorm.Expr("stat_stealth + ?", b.Stealth),
		"stat_charisma":     gorm.Expr("stat_charisma + ?", b.Charisma),
		"stat_intelligence": gorm.Expr("stat_intelligence + ?", b.Intelligence),
		"stat_cash_gain":    gorm.Expr("stat_cash_gain + ?", b.CashGain),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to apply stat bonus: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.NotFound("user %s not found", userID).With("user_id", userID)
	}
	return nil
}

// Restrict places the user in the restricted state until the given time. An
// existing longer restriction is kept.
func (l *Ledger) Restrict(tx *gorm.DB, userID uuid.UUID, until time.Time, reason string) error {
	p, err := l.load(tx, userID)
	if err != nil {
		return err
	}
	if p.RestrictedUntil != nil && p.RestrictedUntil.After(until) {
		return nil
	}
	if err := tx.Model(&Player{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"restricted_until":   until,
		"restriction_reason": reason,
	}).Error; err != nil {
		return fmt.Errorf("failed to restrict user: %w", err)
	}
	return nil
}

func (l *Ledger) load(tx *gorm.DB, userID uuid.UUID) (*Player, error) {
	var p Player
	if err := tx.Where("id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("user %s not found", userID).With("user_id", userID)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &p, nil
}

func (l *Ledger) record(tx *gorm.DB, userID uuid.UUID, delta, before int64, reason string) error {
	entry := CashTransaction{
		UserID:        userID,
		Amount:        delta,
		BalanceBefore: before,
		BalanceAfter:  before + delta,
		Reason:        reason,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record cash transaction: %w", err)
	}
	return nil
}
