package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning is the game-balance table. Every field has a compiled-in default; a YAML
// file only needs to name what it overrides.
type Tuning struct {
	Production ProductionTuning `yaml:"production"`
	Lab        LabTuning        `yaml:"lab"`
	Addiction  AddictionTuning  `yaml:"addiction"`
	Effects    EffectsTuning    `yaml:"effects"`
	Market     MarketTuning     `yaml:"market"`
}

type ProductionTuning struct {
	BaseTime time.Duration `yaml:"base_time"`
}

type LabTuning struct {
	InitialCapacity        int                 `yaml:"initial_capacity"`
	InitialDiscoveryChance int                 `yaml:"initial_discovery_chance"`
	Locations              map[string]Location `yaml:"locations"`
}

// Location is one row of the location modifier table.
type Location struct {
	Name               string `yaml:"name"`
	RiskModifier       int    `yaml:"risk_modifier"`
	ProductionModifier int    `yaml:"production_modifier"`
	SetupCost          int64  `yaml:"setup_cost"`
}

type AddictionTuning struct {
	WithdrawalEffects []string `yaml:"withdrawal_effects"`
	RehabCostPerLevel int64    `yaml:"rehab_cost_per_level"`
}

type EffectsTuning struct {
	RevertOnExpiry bool `yaml:"revert_on_expiry"`
}

type MarketTuning struct {
	RestrictionPriceStep int64 `yaml:"restriction_price_step"`
	MinRestrictionHours  int   `yaml:"min_restriction_hours"`
	MaxRestrictionHours  int   `yaml:"max_restriction_hours"`
}

func DefaultTuning() Tuning {
	return Tuning{
		Production: ProductionTuning{BaseTime: 30 * time.Minute},
		Lab: LabTuning{
			InitialCapacity:        10,
			InitialDiscoveryChance: 10,
			Locations: map[string]Location{
				"suburban_basement":   {Name: "Suburban Basement", RiskModifier: 0, ProductionModifier: 0, SetupCost: 3000},
				"abandoned_warehouse": {Name: "Abandoned Warehouse", RiskModifier: 5, ProductionModifier: 10, SetupCost: 5000},
				"rural_farmhouse":     {Name: "Rural Farmhouse", RiskModifier: 2, ProductionModifier: 5, SetupCost: 4000},
				"industrial_district": {Name: "Industrial District", RiskModifier: 10, ProductionModifier: 25, SetupCost: 8000},
				"downtown_penthouse":  {Name: "Downtown Penthouse", RiskModifier: 15, ProductionModifier: 30, SetupCost: 15000},
				"underground_bunker":  {Name: "Underground Bunker", RiskModifier: 0, ProductionModifier: 20, SetupCost: 20000},
			},
		},
		Addiction: AddictionTuning{
			WithdrawalEffects: []string{
				"Cold sweats and tremors",
				"Severe anxiety and paranoia",
				"Insomnia and exhaustion",
				"Nausea and loss of appetite",
				"Irritability and mood swings",
			},
			RehabCostPerLevel: 2500,
		},
		Effects: EffectsTuning{RevertOnExpiry: true},
		Market: MarketTuning{
			RestrictionPriceStep: 1000,
			MinRestrictionHours:  1,
			MaxRestrictionHours:  24,
		},
	}
}

// LoadTuning overlays the YAML file at path onto DefaultTuning.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	return ParseTuning(raw)
}

func ParseTuning(raw []byte) (Tuning, error) {
	t := DefaultTuning()
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.Production.BaseTime <= 0 {
		return fmt.Errorf("production.base_time must be positive")
	}
	if t.Lab.InitialCapacity < 1 {
		return fmt.Errorf("lab.initial_capacity must be at least 1")
	}
	if t.Lab.InitialDiscoveryChance < 1 {
		return fmt.Errorf("lab.initial_discovery_chance must be at least 1")
	}
	if len(t.Lab.Locations) == 0 {
		return fmt.Errorf("lab.locations must not be empty")
	}
	for key, loc := range t.Lab.Locations {
		if loc.SetupCost < 0 {
			return fmt.Errorf("lab.locations.%s.setup_cost must not be negative", key)
		}
	}
	if len(t.Addiction.WithdrawalEffects) == 0 {
		return fmt.Errorf("addiction.withdrawal_effects must not be empty")
	}
	if t.Market.MinRestrictionHours < 1 || t.Market.MaxRestrictionHours < t.Market.MinRestrictionHours {
		return fmt.Errorf("market restriction hours out of range")
	}
	if t.Market.RestrictionPriceStep <= 0 {
		return fmt.Errorf("market.restriction_price_step must be positive")
	}
	return nil
}
