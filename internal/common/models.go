package common

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel is embedded by every uuid-keyed table.
// IDs are assigned in BeforeCreate so inserts do not depend on gen_random_uuid().
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Bonuses is the stat-bonus block shared by drugs, effects and the stat ledger.
type Bonuses struct {
	Strength     int `json:"strength" gorm:"not null;default:0"`
	Stealth      int `json:"stealth" gorm:"not null;default:0"`
	Charisma     int `json:"charisma" gorm:"not null;default:0"`
	Intelligence int `json:"intelligence" gorm:"not null;default:0"`
	CashGain     int `json:"cash_gain" gorm:"not null;default:0"`
}

func (b Bonuses) Add(o Bonuses) Bonuses {
	return Bonuses{
		Strength:     b.Strength + o.Strength,
		Stealth:      b.Stealth + o.Stealth,
		Charisma:     b.Charisma + o.Charisma,
		Intelligence: b.Intelligence + o.Intelligence,
		CashGain:     b.CashGain + o.CashGain,
	}
}

func (b Bonuses) Negate() Bonuses {
	return Bonuses{
		Strength:     -b.Strength,
		Stealth:      -b.Stealth,
		Charisma:     -b.Charisma,
		Intelligence: -b.Intelligence,
		CashGain:     -b.CashGain,
	}
}

func (b Bonuses) IsZero() bool {
	return b == Bonuses{}
}
