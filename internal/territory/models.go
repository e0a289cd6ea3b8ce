package territory

import (
	"streetlab/internal/common"

	"github.com/google/uuid"
)

// DrugTerritory is a map area that a gang may control. Ownership is written by
// the gang subsystem; this package only reads it.
type DrugTerritory struct {
	common.BaseModel
	Name               string     `json:"name" gorm:"size:100;not null;uniqueIndex"`
	ProfitModifier     float64    `json:"profit_modifier" gorm:"not null;default:1"`
	RiskModifier       float64    `json:"risk_modifier" gorm:"not null;default:1"`
	ReputationRequired int        `json:"reputation_required" gorm:"not null;default:0"`
	ControlledByGangID *uuid.UUID `json:"controlled_by_gang_id,omitempty" gorm:"type:uuid;index"`
}

func (DrugTerritory) TableName() string { return "drug_territories" }

type CreateTerritoryRequest struct {
	Name               string     `json:"name" binding:"required,max=100"`
	ProfitModifier     float64    `json:"profit_modifier"`
	RiskModifier       float64    `json:"risk_modifier"`
	ReputationRequired int        `json:"reputation_required"`
	ControlledByGangID *uuid.UUID `json:"controlled_by_gang_id"`
}
