package player

import (
	"time"

	"streetlab/internal/common"

	"github.com/google/uuid"
)

// Player is the local projection of the user ledger: cash, stats and the
// restriction (jail) state this engine reads and writes.
type Player struct {
	common.BaseModel
	Username          string         `json:"username" gorm:"size:50;not null;default:''"`
	Cash              int64          `json:"cash" gorm:"not null;default:0;check:cash >= 0"`
	Stats             common.Bonuses `json:"stats" gorm:"embedded;embeddedPrefix:stat_"`
	RestrictedUntil   *time.Time     `json:"restricted_until,omitempty"`
	RestrictionReason string         `json:"restriction_reason,omitempty" gorm:"type:text"`
}

func (p *Player) IsRestricted(now time.Time) bool {
	return p.RestrictedUntil != nil && p.RestrictedUntil.After(now)
}

// CashTransaction is the audit row written for every cash movement.
type CashTransaction struct {
	common.BaseModel
	UserID        uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Amount        int64     `json:"amount" gorm:"not null"`
	BalanceBefore int64     `json:"balance_before" gorm:"not null"`
	BalanceAfter  int64     `json:"balance_after" gorm:"not null"`
	Reason        string    `json:"reason" gorm:"type:text"`
}

func (Player) TableName() string          { return "players" }
func (CashTransaction) TableName() string { return "cash_transactions" }

// ProfileResponse is returned by GET /api/v1/me
type ProfileResponse struct {
	Player     *Player `json:"player"`
	Restricted bool    `json:"restricted"`
}
