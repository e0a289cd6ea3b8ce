package production

import (
	"time"

	"streetlab/internal/common"

	"github.com/google/uuid"
)

// DrugProductionBatch is one production run. Ingredients are spent when the
// batch starts; IsCompleted flips exactly once when it is resolved.
type DrugProductionBatch struct {
	common.BaseModel
	LabID       uuid.UUID  `json:"lab_id" gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	DrugID      string     `json:"drug_id" gorm:"size:100;not null;index"`
	Quantity    int        `json:"quantity" gorm:"not null;check:quantity >= 1"`
	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	CompletesAt time.Time  `json:"completes_at" gorm:"not null;index"`
	SuccessRate int        `json:"success_rate" gorm:"not null;check:success_rate >= 50 AND success_rate <= 99"`
	IsCompleted bool       `json:"is_completed" gorm:"not null;default:false;index"`
	Succeeded   *bool      `json:"succeeded,omitempty"`
	Roll        *float64   `json:"roll,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

func (DrugProductionBatch) TableName() string { return "drug_production_batches" }

// =============================================
// REQUEST/RESPONSE MODELS
// =============================================

type StartProductionRequest struct {
	LabID    uuid.UUID `json:"lab_id" binding:"required"`
	DrugID   string    `json:"drug_id" binding:"required"`
	Quantity int       `json:"quantity" binding:"required"`
}

type StartProductionResponse struct {
	Batch           *DrugProductionBatch `json:"batch"`
	DurationSeconds int64                `json:"duration_seconds"`
	Consumed        map[string]int       `json:"consumed"`
}

// BatchOutcome is the result of resolving one batch.
type BatchOutcome struct {
	BatchID     uuid.UUID `json:"batch_id"`
	LabID       uuid.UUID `json:"lab_id"`
	DrugID      string    `json:"drug_id"`
	Quantity    int       `json:"quantity"`
	SuccessRate int       `json:"success_rate"`
	Roll        float64   `json:"roll"`
	Succeeded   bool      `json:"succeeded"`
}

type CollectResult struct {
	Outcomes        []BatchOutcome `json:"outcomes"`
	SuccessfulUnits int            `json:"successful_units"`
	FailedUnits     int            `json:"failed_units"`
}

// BatchView is a batch with its time left.
type BatchView struct {
	DrugProductionBatch
	RemainingSeconds int64 `json:"remaining_seconds"`
	Ready            bool  `json:"ready"`
}
