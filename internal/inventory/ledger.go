package inventory

import (
	"fmt"
	"sort"

	"streetlab/internal/catalog"
	"streetlab/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger applies inventory changes inside the caller's transaction.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

type holdingKey struct {
	userID uuid.UUID
	kind   ItemKind
	itemID string
}

// Apply merges deltas per holding, checks every debit against the locked
// balances and only then writes. A shortfall leaves every holding untouched.
func (l *Ledger) Apply(tx *gorm.DB, deltas ...Delta) error {
	merged := make(map[holdingKey]int, len(deltas))
	for _, d := range deltas {
		if d.Kind != KindDrug && d.Kind != KindIngredient {
			return fmt.Errorf("unknown inventory kind %q", d.Kind)
		}
		merged[holdingKey{d.UserID, d.Kind, d.ItemID}] += d.Amount
	}

	keys := make([]holdingKey, 0, len(merged))
	for k, amount := range merged {
		if amount != 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.userID != b.userID {
			return a.userID.String() < b.userID.String()
		}
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		return a.itemID < b.itemID
	})

	current := make(map[holdingKey]int, len(keys))
	var ingredientShort, drugShort []common.Shortfall
	for _, k := range keys {
		held, err := l.lockedBalance(tx, k)
		if err != nil {
			return err
		}
		current[k] = held

		amount := merged[k]
		if held+amount >= 0 {
			continue
		}
		short := common.Shortfall{ItemID: k.itemID, Name: l.displayName(tx, k), Required: -amount, Available: held}
		if k.kind == KindIngredient {
			ingredientShort = append(ingredientShort, short)
		} else {
			drugShort = append(drugShort, short)
		}
	}

	if len(ingredientShort) > 0 {
		return common.InsufficientIngredients(ingredientShort)
	}
	if len(drugShort) > 0 {
		s := drugShort[0]
		return common.InsufficientInventory("not enough %s: required %d, available %d", s.Name, s.Required, s.Available).
			With("shortfalls", drugShort)
	}

	for _, k := range keys {
		if err := l.write(tx, k, current[k], current[k]+merged[k]); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) Grant(tx *gorm.DB, userID uuid.UUID, kind ItemKind, itemID string, n int) error {
	if n < 0 {
		return common.Validation("grant amount must not be negative")
	}
	return l.Apply(tx, Delta{UserID: userID, Kind: kind, ItemID: itemID, Amount: n})
}

func (l *Ledger) Debit(tx *gorm.DB, userID uuid.UUID, kind ItemKind, itemID string, n int) error {
	if n < 0 {
		return common.Validation("debit amount must not be negative")
	}
	return l.Apply(tx, Delta{UserID: userID, Kind: kind, ItemID: itemID, Amount: -n})
}

func (l *Ledger) DrugBalance(tx *gorm.DB, userID uuid.UUID, drugID string) (int, error) {
	return l.balance(tx, holdingKey{userID, KindDrug, drugID})
}

func (l *Ledger) IngredientBalance(tx *gorm.DB, userID uuid.UUID, ingredientID string) (int, error) {
	return l.balance(tx, holdingKey{userID, KindIngredient, ingredientID})
}

// =============================================
// HELPERS
// =============================================

func (l *Ledger) scope(tx *gorm.DB, k holdingKey) *gorm.DB {
	if k.kind == KindDrug {
		return tx.Model(&UserDrugInventory{}).Where("user_id = ? AND drug_id = ?", k.userID, k.itemID)
	}
	return tx.Model(&UserIngredientInventory{}).Where("user_id = ? AND ingredient_id = ?", k.userID, k.itemID)
}

func (l *Ledger) balance(tx *gorm.DB, k holdingKey) (int, error) {
	var rows []int
	if err := l.scope(tx, k).Pluck("quantity", &rows).Error; err != nil {
		return 0, fmt.Errorf("failed to read %s balance: %w", k.kind, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0], nil
}

func (l *Ledger) lockedBalance(tx *gorm.DB, k holdingKey) (int, error) {
	var rows []int
	err := l.scope(tx, k).Clauses(clause.Locking{Strength: "UPDATE"}).Pluck("quantity", &rows).Error
	if err != nil {
		return 0, fmt.Errorf("failed to lock %s holding: %w", k.kind, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0], nil
}

func (l *Ledger) write(tx *gorm.DB, k holdingKey, before, after int) error {
	var err error
	switch {
	case after == 0:
		if k.kind == KindDrug {
			err = tx.Where("user_id = ? AND drug_id = ?", k.userID, k.itemID).Delete(&UserDrugInventory{}).Error
		} else {
			err = tx.Where("user_id = ? AND ingredient_id = ?", k.userID, k.itemID).Delete(&UserIngredientInventory{}).Error
		}
	case before == 0:
		if k.kind == KindDrug {
			err = tx.Create(&UserDrugInventory{UserID: k.userID, DrugID: k.itemID, Quantity: after}).Error
		} else {
			err = tx.Create(&UserIngredientInventory{UserID: k.userID, IngredientID: k.itemID, Quantity: after}).Error
		}
	default:
		res := l.scope(tx, k).Where("quantity = ?", before).Update("quantity", after)
		err = res.Error
		if err == nil && res.RowsAffected == 0 {
			return fmt.Errorf("%s holding %s changed concurrently", k.kind, k.itemID)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to update %s holding: %w", k.kind, err)
	}
	return nil
}

func (l *Ledger) displayName(tx *gorm.DB, k holdingKey) string {
	if k.kind == KindDrug {
		if d, err := catalog.LoadDrug(tx, k.itemID); err == nil {
			return d.Name
		}
		return k.itemID
	}
	if i, err := catalog.LoadIngredient(tx, k.itemID); err == nil {
		return i.Name
	}
	return k.itemID
}
