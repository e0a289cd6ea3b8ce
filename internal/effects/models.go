package effects

import (
	"time"

	"streetlab/internal/addiction"
	"streetlab/internal/common"

	"github.com/google/uuid"
)

// UserDrugEffect is one dose's temporary stat bonus. Rows are appended per use
// and never overwritten. Reverted flips once when the bonus is taken back.
type UserDrugEffect struct {
	common.BaseModel
	UserID    uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	DrugID    string         `json:"drug_id" gorm:"size:100;not null"`
	Bonuses   common.Bonuses `json:"bonuses" gorm:"embedded;embeddedPrefix:bonus_"`
	StartedAt time.Time      `json:"started_at" gorm:"not null"`
	ExpiresAt time.Time      `json:"expires_at" gorm:"not null;index"`
	Reverted  bool           `json:"reverted" gorm:"not null;default:false;index"`
}

func (UserDrugEffect) TableName() string { return "user_drug_effects" }

type UseDrugResult struct {
	Effect        *UserDrugEffect          `json:"effect"`
	Remaining     int                      `json:"remaining"`
	AddictionRoll float64                  `json:"addiction_roll"`
	Addiction     *addiction.DrugAddiction `json:"addiction,omitempty"`
	SideEffects   string                   `json:"side_effects,omitempty"`
}

type ActiveEffectsResponse struct {
	Effects []UserDrugEffect `json:"effects"`
	Total   common.Bonuses   `json:"total"`
}
