package inventory

import (
	"fmt"

	"streetlab/internal/catalog"
	"streetlab/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CashLedger is the part of the player ledger the ingredient shop needs.
type CashLedger interface {
	LockUsers(tx *gorm.DB, userIDs ...uuid.UUID) error
	Debit(tx *gorm.DB, userID uuid.UUID, amount int64, reason string) error
	Balance(tx *gorm.DB, userID uuid.UUID) (int64, error)
}

type Service struct {
	db     *gorm.DB
	ledger *Ledger
	cash   CashLedger
}

func NewService(db *gorm.DB, ledger *Ledger, cash CashLedger) *Service {
	return &Service{db: db, ledger: ledger, cash: cash}
}

// List returns every positive holding of the user, enriched with catalog names.
func (s *Service) List(userID uuid.UUID) (*InventoryResponse, error) {
	resp := &InventoryResponse{Drugs: []Holding{}, Ingredients: []Holding{}}

	type drugRow struct {
		DrugID   string
		Name     string
		ImageKey string
		Quantity int
	}
	var drugs []drugRow
	err := s.db.Table("user_drug_inventories AS inv").
		Select("inv.drug_id AS drug_id, d.name AS name, d.image_key AS image_key, inv.quantity AS quantity").
		Joins("JOIN drugs d ON d.id = inv.drug_id").
		Where("inv.user_id = ? AND inv.quantity > 0", userID).
		Order("d.name ASC").
		Scan(&drugs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list drug inventory: %w", err)
	}
	for _, r := range drugs {
		h := Holding{ItemID: r.DrugID, ItemType: KindDrug, Name: r.Name, Quantity: r.Quantity}
		if r.ImageKey != "" {
			url := "/api/v1/media/" + r.ImageKey
			h.ImageURL = &url
		}
		resp.Drugs = append(resp.Drugs, h)
	}

	type ingredientRow struct {
		IngredientID string
		Name         string
		Quantity     int
	}
	var ingredients []ingredientRow
	err = s.db.Table("user_ingredient_inventories AS inv").
		Select("inv.ingredient_id AS ingredient_id, i.name AS name, inv.quantity AS quantity").
		Joins("JOIN ingredients i ON i.id = inv.ingredient_id").
		Where("inv.user_id = ? AND inv.quantity > 0", userID).
		Order("i.name ASC").
		Scan(&ingredients).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredient inventory: %w", err)
	}
	for _, r := range ingredients {
		resp.Ingredients = append(resp.Ingredients, Holding{
			ItemID: r.IngredientID, ItemType: KindIngredient, Name: r.Name, Quantity: r.Quantity,
		})
	}
	return resp, nil
}

func (s *Service) DrugBalance(userID uuid.UUID, drugID string) (int, error) {
	return s.ledger.DrugBalance(s.db, userID, drugID)
}

func (s *Service) IngredientBalance(userID uuid.UUID, ingredientID string) (int, error) {
	return s.ledger.IngredientBalance(s.db, userID, ingredientID)
}

// BuyIngredients charges price × quantity and adds the ingredients in one transaction.
func (s *Service) BuyIngredients(userID uuid.UUID, ingredientID string, quantity int) (*BuyIngredientsResponse, error) {
	if quantity < 1 {
		return nil, common.Validation("quantity must be at least 1").With("quantity", quantity)
	}

	var resp *BuyIngredientsResponse
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.cash.LockUsers(tx, userID); err != nil {
			return err
		}
		ingredient, err := catalog.LoadIngredient(tx, ingredientID)
		if err != nil {
			return err
		}

		cost, err := common.TotalPrice(ingredient.Price, quantity)
		if err != nil {
			return err
		}
		reason := fmt.Sprintf("bought %d x %s", quantity, ingredient.Name)
		if err := s.cash.Debit(tx, userID, cost, reason); err != nil {
			return err
		}
		if err := s.ledger.Grant(tx, userID, KindIngredient, ingredient.ID, quantity); err != nil {
			return err
		}

		held, err := s.ledger.IngredientBalance(tx, userID, ingredient.ID)
		if err != nil {
			return err
		}
		balance, err := s.cash.Balance(tx, userID)
		if err != nil {
			return err
		}
		resp = &BuyIngredientsResponse{
			IngredientID: ingredient.ID,
			Quantity:     quantity,
			Cost:         cost,
			Held:         held,
			CashLeft:     balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
