package territory

import (
	"errors"
	"fmt"
	"log"

	"streetlab/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultRiskModifier applies when no controlling gang modifies the risk.
const DefaultRiskModifier = 1.0

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// RiskModifier returns the interdiction multiplier of a gang-controlled
// territory. A nil id, a missing row, an uncontrolled territory or a
// non-positive stored value all yield DefaultRiskModifier.
func (s *Service) RiskModifier(tx *gorm.DB, territoryID *uuid.UUID) float64 {
	if territoryID == nil {
		return DefaultRiskModifier
	}
	var t DrugTerritory
	if err := tx.Where("id = ?", *territoryID).First(&t).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("⚠️ [TERRITORY] risk lookup for %s failed: %v", territoryID, err)
		}
		return DefaultRiskModifier
	}
	if t.ControlledByGangID == nil || t.RiskModifier <= 0 {
		return DefaultRiskModifier
	}
	return t.RiskModifier
}

func (s *Service) List() ([]DrugTerritory, error) {
	var territories []DrugTerritory
	if err := s.db.Order("name ASC").Find(&territories).Error; err != nil {
		return nil, fmt.Errorf("failed to list territories: %w", err)
	}
	return territories, nil
}

func (s *Service) Get(id uuid.UUID) (*DrugTerritory, error) {
	var t DrugTerritory
	if err := s.db.Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("territory %s not found", id).With("territory_id", id)
		}
		return nil, fmt.Errorf("failed to get territory: %w", err)
	}
	return &t, nil
}

func (s *Service) Create(req *CreateTerritoryRequest) (*DrugTerritory, error) {
	if req.RiskModifier < 0 || req.ProfitModifier < 0 {
		return nil, common.Validation("modifiers must not be negative")
	}
	t := DrugTerritory{
		Name:               req.Name,
		ProfitModifier:     req.ProfitModifier,
		RiskModifier:       req.RiskModifier,
		ReputationRequired: req.ReputationRequired,
		ControlledByGangID: req.ControlledByGangID,
	}
	if t.ProfitModifier == 0 {
		t.ProfitModifier = 1
	}
	if t.RiskModifier == 0 {
		t.RiskModifier = DefaultRiskModifier
	}
	if err := s.db.Create(&t).Error; err != nil {
		return nil, fmt.Errorf("failed to create territory: %w", err)
	}
	return &t, nil
}
