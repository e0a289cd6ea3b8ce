package database

import (
	"fmt"
	"log"
	"time"

	"streetlab/internal/addiction"
	"streetlab/internal/catalog"
	"streetlab/internal/effects"
	"streetlab/internal/inventory"
	"streetlab/internal/lab"
	"streetlab/internal/market"
	"streetlab/internal/player"
	"streetlab/internal/production"
	"streetlab/internal/territory"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the postgres pool.
func Connect(dsn string, debug bool) (*gorm.DB, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Models lists every table of the engine in dependency order.
func Models() []interface{} {
	return []interface{}{
		// Catalog
		&catalog.Drug{},
		&catalog.Ingredient{},
		&catalog.Recipe{},
		// Players and territories
		&player.Player{},
		&player.CashTransaction{},
		&territory.DrugTerritory{},
		// Holdings
		&inventory.UserDrugInventory{},
		&inventory.UserIngredientInventory{},
		// Labs and production
		&lab.DrugLab{},
		&lab.LabUpgradeHistory{},
		&production.DrugProductionBatch{},
		// Consumption
		&effects.UserDrugEffect{},
		&addiction.DrugAddiction{},
		// Market
		&market.DrugDeal{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := createProductionIndexes(db); err != nil {
		return err
	}
	if err := createMarketIndexes(db); err != nil {
		return err
	}
	log.Printf("✅ [DATABASE] migrations complete")
	return nil
}

// Partial indexes for the hot paths: due batches and open listings.
func createProductionIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_batches_due
		ON drug_production_batches (completes_at, user_id)
		WHERE is_completed = false
	`).Error; err != nil {
		return err
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_effects_unreverted
		ON user_drug_effects (expires_at)
		WHERE reverted = false
	`).Error; err != nil {
		return err
	}

	return nil
}

func createMarketIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_deals_open
		ON drug_deals (drug_id, price_per_unit)
		WHERE status = 'pending' AND is_public = true
	`).Error; err != nil {
		return err
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_cash_transactions_user
		ON cash_transactions (user_id, created_at DESC)
	`).Error; err != nil {
		return err
	}

	return nil
}
