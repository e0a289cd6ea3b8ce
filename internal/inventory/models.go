package inventory

import (
	"time"

	"github.com/google/uuid"
)

// ItemKind tells drug holdings from ingredient holdings.
type ItemKind string

const (
	KindDrug       ItemKind = "drug"
	KindIngredient ItemKind = "ingredient"
)

// UserDrugInventory is one user's stock of one drug. Rows exist only while
// quantity is positive.
type UserDrugInventory struct {
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey"`
	DrugID    string    `json:"drug_id" gorm:"primaryKey;size:100;index"`
	Quantity  int       `json:"quantity" gorm:"not null;check:quantity >= 0"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

type UserIngredientInventory struct {
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey"`
	IngredientID string    `json:"ingredient_id" gorm:"primaryKey;size:100;index"`
	Quantity     int       `json:"quantity" gorm:"not null;check:quantity >= 0"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (UserDrugInventory) TableName() string       { return "user_drug_inventories" }
func (UserIngredientInventory) TableName() string { return "user_ingredient_inventories" }

// Delta is a signed change to one holding. Negative amounts are debits.
type Delta struct {
	UserID uuid.UUID
	Kind   ItemKind
	ItemID string
	Amount int
}

func GrantDrug(userID uuid.UUID, drugID string, n int) Delta {
	return Delta{UserID: userID, Kind: KindDrug, ItemID: drugID, Amount: n}
}

func DebitDrug(userID uuid.UUID, drugID string, n int) Delta {
	return Delta{UserID: userID, Kind: KindDrug, ItemID: drugID, Amount: -n}
}

func GrantIngredient(userID uuid.UUID, ingredientID string, n int) Delta {
	return Delta{UserID: userID, Kind: KindIngredient, ItemID: ingredientID, Amount: n}
}

func DebitIngredient(userID uuid.UUID, ingredientID string, n int) Delta {
	return Delta{UserID: userID, Kind: KindIngredient, ItemID: ingredientID, Amount: -n}
}

// =============================================
// RESPONSE MODELS
// =============================================

// Holding is an inventory row enriched with catalog display data.
type Holding struct {
	ItemID   string   `json:"item_id"`
	ItemType ItemKind `json:"item_type"`
	Name     string   `json:"display_name"`
	Quantity int      `json:"quantity"`
	ImageURL *string  `json:"image_url,omitempty"`
}

type InventoryResponse struct {
	Drugs       []Holding `json:"drugs"`
	Ingredients []Holding `json:"ingredients"`
}

type BuyIngredientsRequest struct {
	IngredientID string `json:"ingredient_id" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required,min=1"`
}

type BuyIngredientsResponse struct {
	IngredientID string `json:"ingredient_id"`
	Quantity     int    `json:"quantity"`
	Cost         int64  `json:"cost"`
	Held         int    `json:"held"`
	CashLeft     int64  `json:"cash_left"`
}
