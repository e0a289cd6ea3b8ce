package player

import (
	"errors"
	"fmt"
	"time"

	"streetlab/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StartingCash is granted to a player row the first time the engine sees a user.
const StartingCash int64 = 5000

type Service struct {
	db     *gorm.DB
	ledger *Ledger
}

func NewService(db *gorm.DB, ledger *Ledger) *Service {
	return &Service{db: db, ledger: ledger}
}

// EnsurePlayer returns the player row for userID, creating it with starting cash.
func (s *Service) EnsurePlayer(userID uuid.UUID, username string) (*Player, error) {
	var p Player
	err := s.db.Where("id = ?", userID).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	fresh := Player{Username: username, Cash: StartingCash}
	fresh.ID = userID
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	// A concurrent first request may have inserted the row; return whichever won.
	if err := s.db.Where("id = ?", userID).First(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return &p, nil
}

func (s *Service) GetProfile(userID uuid.UUID) (*ProfileResponse, error) {
	p, err := s.ledger.load(s.db, userID)
	if err != nil {
		return nil, err
	}
	return &ProfileResponse{Player: p, Restricted: p.IsRestricted(time.Now())}, nil
}

// RestrictedUntil reports the end of an active restriction, or nil.
func (s *Service) RestrictedUntil(userID uuid.UUID) (*time.Time, error) {
	p, err := s.ledger.load(s.db, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !p.IsRestricted(time.Now()) {
		return nil, nil
	}
	return p.RestrictedUntil, nil
}

func (s *Service) CashHistory(userID uuid.UUID, limit int) ([]CashTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []CashTransaction
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get cash history: %w", err)
	}
	return entries, nil
}
