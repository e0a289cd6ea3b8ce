package market

import (
	"time"

	"streetlab/internal/common"

	"github.com/google/uuid"
)

// Deal statuses. Every status other than pending is terminal.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// DrugDeal is a listing. The quantity leaves the seller's inventory when the
// deal is created and is held by the deal until it resolves.
type DrugDeal struct {
	common.BaseModel
	SellerID     uuid.UUID  `json:"seller_id" gorm:"type:uuid;not null;index"`
	BuyerID      *uuid.UUID `json:"buyer_id,omitempty" gorm:"type:uuid;index"`
	DrugID       string     `json:"drug_id" gorm:"size:100;not null;index"`
	Quantity     int        `json:"quantity" gorm:"not null;check:quantity >= 1"`
	PricePerUnit int64      `json:"price_per_unit" gorm:"not null;check:price_per_unit >= 1"`
	TotalPrice   int64      `json:"total_price" gorm:"not null"`
	RiskLevel    int        `json:"risk_level" gorm:"not null"`
	IsPublic     bool       `json:"is_public" gorm:"not null;index"`
	TerritoryID  *uuid.UUID `json:"territory_id,omitempty" gorm:"type:uuid"`
	Status       string     `json:"status" gorm:"size:20;not null;default:'pending';index"`
	Roll         *float64   `json:"roll,omitempty"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

func (DrugDeal) TableName() string { return "drug_deals" }

// =============================================
// REQUEST/RESPONSE MODELS
// =============================================

type CreateDealRequest struct {
	DrugID       string     `json:"drug_id" binding:"required"`
	Quantity     int        `json:"quantity" binding:"required"`
	PricePerUnit int64      `json:"price_per_unit" binding:"required"`
	IsPublic     *bool      `json:"is_public"`
	TerritoryID  *uuid.UUID `json:"territory_id"`
}

// DealFilter narrows the public listing.
type DealFilter struct {
	DrugID   string `form:"drug_id"`
	MaxPrice int64  `form:"max_price"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

type BuyResult struct {
	Deal            *DrugDeal  `json:"deal"`
	Interdicted     bool       `json:"interdicted"`
	CombinedRisk    float64    `json:"combined_risk"`
	Roll            float64    `json:"roll"`
	RestrictedUntil *time.Time `json:"restricted_until,omitempty"`
}
