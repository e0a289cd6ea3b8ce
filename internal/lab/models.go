package lab

import (
	"sort"

	"streetlab/internal/common"
	"streetlab/internal/config"

	"github.com/google/uuid"
)

// =============================================
// 1. LAB MODELS
// =============================================

// DrugLab is a production facility owned by one user.
type DrugLab struct {
	common.BaseModel
	OwnerID            uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index"`
	Name               string    `json:"name" gorm:"size:100;not null"`
	Level              int       `json:"level" gorm:"not null;default:1;check:level >= 1"`
	SecurityLevel      int       `json:"security_level" gorm:"not null;default:1;check:security_level >= 1"`
	Capacity           int       `json:"capacity" gorm:"not null"`
	CostToUpgrade      int64     `json:"cost_to_upgrade" gorm:"not null"`
	Location           string    `json:"location" gorm:"size:50;not null"`
	RiskModifier       int       `json:"risk_modifier" gorm:"not null;default:0"`
	ProductionModifier int       `json:"production_modifier" gorm:"not null;default:0"`
	DiscoveryChance    int       `json:"discovery_chance" gorm:"not null;check:discovery_chance >= 1"`
}

// LabUpgradeHistory is the audit trail of upgrades.
type LabUpgradeHistory struct {
	common.BaseModel
	LabID     uuid.UUID `json:"lab_id" gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	FromLevel int       `json:"from_level" gorm:"not null"`
	ToLevel   int       `json:"to_level" gorm:"not null"`
	CashSpent int64     `json:"cash_spent" gorm:"not null;default:0"`
}

func (DrugLab) TableName() string           { return "drug_labs" }
func (LabUpgradeHistory) TableName() string { return "lab_upgrade_history" }

// Upgraded returns the lab after one upgrade step.
func Upgraded(l DrugLab) DrugLab {
	next := l
	next.Level++
	next.SecurityLevel++
	next.Capacity += 5
	next.CostToUpgrade = l.CostToUpgrade * 3 / 2
	next.DiscoveryChance = l.DiscoveryChance - 1
	if next.DiscoveryChance < 1 {
		next.DiscoveryChance = 1
	}
	return next
}

// =============================================
// 2. LOCATION TABLE
// =============================================

// Location is a site a lab can be built at.
type Location struct {
	Key                string `json:"key"`
	Name               string `json:"name"`
	RiskModifier       int    `json:"risk_modifier"`
	ProductionModifier int    `json:"production_modifier"`
	SetupCost          int64  `json:"setup_cost"`
}

// LocationTable maps location keys to their modifiers.
type LocationTable map[string]Location

func LocationsFromTuning(t config.LabTuning) LocationTable {
	table := make(LocationTable, len(t.Locations))
	for key, l := range t.Locations {
		table[key] = Location{
			Key:                key,
			Name:               l.Name,
			RiskModifier:       l.RiskModifier,
			ProductionModifier: l.ProductionModifier,
			SetupCost:          l.SetupCost,
		}
	}
	return table
}

func (t LocationTable) Lookup(key string) (Location, bool) {
	l, ok := t[key]
	return l, ok
}

// Sorted lists the locations by setup cost, then key.
func (t LocationTable) Sorted() []Location {
	out := make([]Location, 0, len(t))
	for _, l := range t {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SetupCost == out[j].SetupCost {
			return out[i].Key < out[j].Key
		}
		return out[i].SetupCost < out[j].SetupCost
	})
	return out
}

func (t LocationTable) keys() []string {
	keys := make([]string, 0, len(t))
	for _, l := range t.Sorted() {
		keys = append(keys, l.Key)
	}
	return keys
}

// =============================================
// 3. REQUEST/RESPONSE MODELS
// =============================================

type CreateLabRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Location string `json:"location" binding:"required"`
}

type RenameLabRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

type UpgradeResult struct {
	Lab       *DrugLab `json:"lab"`
	FromLevel int      `json:"from_level"`
	ToLevel   int      `json:"to_level"`
	CashSpent int64    `json:"cash_spent"`
}
