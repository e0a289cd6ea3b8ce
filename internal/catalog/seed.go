package catalog

import (
	_ "embed"
	"fmt"
	"log"

	"streetlab/internal/common"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed defaults.yaml
var defaultCatalogYAML []byte

type seedFile struct {
	Ingredients []IngredientRequest `yaml:"ingredients"`
	Drugs       []seedDrug          `yaml:"drugs"`
}

type seedDrug struct {
	Name          string         `yaml:"name"`
	Description   string         `yaml:"description"`
	BasePrice     int64          `yaml:"base_price"`
	RiskLevel     int            `yaml:"risk_level"`
	AddictionRate int            `yaml:"addiction_rate"`
	Bonuses       seedBonuses    `yaml:"bonuses"`
	DurationHours int            `yaml:"duration_hours"`
	SideEffects   string         `yaml:"side_effects"`
	Recipe        map[string]int `yaml:"recipe"`
}

type seedBonuses struct {
	Strength     int `yaml:"strength"`
	Stealth      int `yaml:"stealth"`
	Charisma     int `yaml:"charisma"`
	Intelligence int `yaml:"intelligence"`
	CashGain     int `yaml:"cash_gain"`
}

// DefaultCatalog is the parsed default catalog.
type DefaultCatalog struct {
	Drugs       []Drug
	Ingredients []Ingredient
	Recipes     []Recipe
}

func parseDefaults(raw []byte) (*DefaultCatalog, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse default catalog: %w", err)
	}

	out := &DefaultCatalog{}
	known := make(map[string]bool, len(f.Ingredients))
	for _, in := range f.Ingredients {
		req := in
		if err := req.validate(); err != nil {
			return nil, fmt.Errorf("ingredient %q: %w", in.Name, err)
		}
		ing := Ingredient{
			ID:          Slug(in.Name),
			Name:        in.Name,
			Description: in.Description,
			Price:       in.Price,
			Rarity:      in.Rarity,
		}
		known[ing.ID] = true
		out.Ingredients = append(out.Ingredients, ing)
	}

	for _, d := range f.Drugs {
		req := DrugRequest{
			Name:          d.Name,
			Description:   d.Description,
			BasePrice:     d.BasePrice,
			RiskLevel:     d.RiskLevel,
			AddictionRate: d.AddictionRate,
			DurationHours: d.DurationHours,
			SideEffects:   d.SideEffects,
			Bonuses: common.Bonuses{
				Strength:     d.Bonuses.Strength,
				Stealth:      d.Bonuses.Stealth,
				Charisma:     d.Bonuses.Charisma,
				Intelligence: d.Bonuses.Intelligence,
				CashGain:     d.Bonuses.CashGain,
			},
		}
		if err := req.validate(); err != nil {
			return nil, fmt.Errorf("drug %q: %w", d.Name, err)
		}
		drug := req.toDrug()
		out.Drugs = append(out.Drugs, drug)

		for ingredientName, qty := range d.Recipe {
			ingredientID := Slug(ingredientName)
			if !known[ingredientID] {
				return nil, fmt.Errorf("drug %q: unknown ingredient %q", d.Name, ingredientName)
			}
			if qty < 1 {
				return nil, fmt.Errorf("drug %q: quantity for %q must be positive", d.Name, ingredientName)
			}
			out.Recipes = append(out.Recipes, Recipe{DrugID: drug.ID, IngredientID: ingredientID, Quantity: qty})
		}
	}
	return out, nil
}

// SeedDefaults inserts the default catalog if, and only if, the catalog is empty.
// It never overwrites existing rows and reports whether it inserted anything.
func (s *Service) SeedDefaults() (bool, error) {
	defaults, err := parseDefaults(defaultCatalogYAML)
	if err != nil {
		return false, err
	}

	seeded := false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var drugCount, ingredientCount int64
		if err := tx.Model(&Drug{}).Count(&drugCount).Error; err != nil {
			return fmt.Errorf("failed to count drugs: %w", err)
		}
		if err := tx.Model(&Ingredient{}).Count(&ingredientCount).Error; err != nil {
			return fmt.Errorf("failed to count ingredients: %w", err)
		}
		if drugCount > 0 || ingredientCount > 0 {
			return nil
		}

		if err := tx.Create(&defaults.Ingredients).Error; err != nil {
			return fmt.Errorf("failed to seed ingredients: %w", err)
		}
		if err := tx.Create(&defaults.Drugs).Error; err != nil {
			return fmt.Errorf("failed to seed drugs: %w", err)
		}
		if err := tx.Create(&defaults.Recipes).Error; err != nil {
			return fmt.Errorf("failed to seed recipes: %w", err)
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if seeded {
		log.Printf("🌱 [CATALOG] seeded %d drugs, %d ingredients, %d recipe rows",
			len(defaults.Drugs), len(defaults.Ingredients), len(defaults.Recipes))
	}
	return seeded, nil
}
