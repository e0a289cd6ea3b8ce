package catalog

import (
	"strings"
	"time"
	"unicode"

	"streetlab/internal/common"
)

// =============================================
// 1. CATALOG MODELS
// =============================================

// Drug is a craftable, consumable catalog entry. ID is derived from Name.
type Drug struct {
	ID            string         `json:"id" gorm:"primaryKey;size:100"`
	Name          string         `json:"name" gorm:"size:100;not null;uniqueIndex"`
	Description   string         `json:"description" gorm:"type:text"`
	BasePrice     int64          `json:"base_price" gorm:"not null;default:0"`
	RiskLevel     int            `json:"risk_level" gorm:"not null;default:1;check:risk_level >= 1 AND risk_level <= 10"`
	AddictionRate int            `json:"addiction_rate" gorm:"not null;default:0;check:addiction_rate >= 0 AND addiction_rate <= 100"`
	Bonuses       common.Bonuses `json:"bonuses" gorm:"embedded;embeddedPrefix:bonus_"`
	DurationHours int            `json:"duration_hours" gorm:"not null;default:1"`
	SideEffects   string         `json:"side_effects" gorm:"type:text"`
	ImageKey      string         `json:"image_key,omitempty" gorm:"size:255"`
	CreatedAt     time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// Ingredient is a raw material consumed by recipes.
type Ingredient struct {
	ID          string    `json:"id" gorm:"primaryKey;size:100"`
	Name        string    `json:"name" gorm:"size:100;not null;uniqueIndex"`
	Description string    `json:"description" gorm:"type:text"`
	Price       int64     `json:"price" gorm:"not null;default:0"`
	Rarity      int       `json:"rarity" gorm:"not null;default:1;check:rarity >= 1 AND rarity <= 10"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Recipe is the quantity of one ingredient needed for one unit of a drug.
type Recipe struct {
	DrugID       string `json:"drug_id" gorm:"primaryKey;size:100"`
	IngredientID string `json:"ingredient_id" gorm:"primaryKey;size:100"`
	Quantity     int    `json:"quantity" gorm:"not null;check:quantity >= 1"`
}

func (Drug) TableName() string       { return "drugs" }
func (Ingredient) TableName() string { return "ingredients" }
func (Recipe) TableName() string     { return "drug_recipes" }

// RecipeLine is a recipe row joined with its ingredient name.
type RecipeLine struct {
	IngredientID   string `json:"ingredient_id"`
	IngredientName string `json:"ingredient_name"`
	Quantity       int    `json:"quantity"`
}

// =============================================
// 2. REQUEST/RESPONSE MODELS
// =============================================

type DrugDetail struct {
	Drug   *Drug        `json:"drug"`
	Recipe []RecipeLine `json:"recipe"`
}

type DrugRequest struct {
	Name          string         `json:"name" binding:"required,max=100"`
	Description   string         `json:"description"`
	BasePrice     int64          `json:"base_price"`
	RiskLevel     int            `json:"risk_level"`
	AddictionRate int            `json:"addiction_rate"`
	Bonuses       common.Bonuses `json:"bonuses"`
	DurationHours int            `json:"duration_hours"`
	SideEffects   string         `json:"side_effects"`
}

type IngredientRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Rarity      int    `json:"rarity"`
}

type RecipeRequest struct {
	Lines []struct {
		IngredientID string `json:"ingredient_id" binding:"required"`
		Quantity     int    `json:"quantity" binding:"required,min=1"`
	} `json:"lines" binding:"required,dive"`
}

// =============================================
// 3. HELPERS
// =============================================

// Slug derives a catalog id from a display name: "Blue Sky" -> "blue-sky".
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func (r *DrugRequest) validate() error {
	if Slug(r.Name) == "" {
		return common.Validation("name must contain letters or digits")
	}
	if r.RiskLevel < 1 || r.RiskLevel > 10 {
		return common.Validation("risk_level must be between 1 and 10").With("risk_level", r.RiskLevel)
	}
	if r.AddictionRate < 0 || r.AddictionRate > 100 {
		return common.Validation("addiction_rate must be between 0 and 100").With("addiction_rate", r.AddictionRate)
	}
	if r.BasePrice < 0 {
		return common.Validation("base_price must not be negative")
	}
	if r.DurationHours < 1 {
		return common.Validation("duration_hours must be at least 1")
	}
	return nil
}

func (r *IngredientRequest) validate() error {
	if Slug(r.Name) == "" {
		return common.Validation("name must contain letters or digits")
	}
	if r.Rarity < 1 || r.Rarity > 10 {
		return common.Validation("rarity must be between 1 and 10").With("rarity", r.Rarity)
	}
	if r.Price < 0 {
		return common.Validation("price must not be negative")
	}
	return nil
}
