package addiction

import (
	"time"

	"streetlab/internal/common"

	"github.com/google/uuid"
)

const (
	MaxLevel = 10

	// withdrawalGrace is how long after the last dose withdrawal starts.
	withdrawalGrace = 24 * time.Hour
	// severityStep is how often severity grows once withdrawal started.
	severityStep = 12 * time.Hour
)

// DrugAddiction is one user's dependency on one drug.
type DrugAddiction struct {
	common.BaseModel
	UserID           uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_addiction_user_drug"`
	DrugID           string    `json:"drug_id" gorm:"size:100;not null;uniqueIndex:idx_addiction_user_drug"`
	Level            int       `json:"level" gorm:"not null;default:1;check:level >= 1 AND level <= 10"`
	WithdrawalEffect string    `json:"withdrawal_effect" gorm:"type:text;not null"`
	LastDosage       time.Time `json:"last_dosage" gorm:"not null;index"`
}

func (DrugAddiction) TableName() string { return "drug_addictions" }

// Withdrawal is an addiction whose last dose is older than the grace period.
type Withdrawal struct {
	DrugAddiction
	DrugName           string  `json:"drug_name"`
	HoursSinceLastDose float64 `json:"hours_since_last_dose"`
	Severity           int     `json:"severity"`
}

type RehabResult struct {
	AddictionID uuid.UUID `json:"addiction_id"`
	DrugID      string    `json:"drug_id"`
	Level       int       `json:"level"`
	Cost        int64     `json:"cost"`
}

// Severity is min(10, level + floor((hours-24)/12)), or 0 while the last dose is
// within 24 hours.
func Severity(level int, lastDosage, now time.Time) int {
	since := now.Sub(lastDosage)
	if since <= withdrawalGrace {
		return 0
	}
	s := level + int((since-withdrawalGrace)/severityStep)
	if s > MaxLevel {
		return MaxLevel
	}
	return s
}
