package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/amorhq/amor-core/internal/config"
)

// NewDB initializes the database connection using DSN from config.
//
// TranslateError is on so a duplicate-key insert surfaces as
// gorm.ErrDuplicatedKey on every dialect; the match repository relies on
// this to treat the pair-uniqueness race as an expected outcome.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	database, err := gorm.Open(mysql.Open(cfg.DB.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := Migrate(database); err != nil {
		return nil, err
	}

	return database, nil
}

// Migrate ensures the schema is in sync with the models.
func Migrate(database *gorm.DB) error {
	err := database.AutoMigrate(
		&Profile{},
		&Swipe{},
		&Match{},
		&Message{},
		&Collection{},
		&Character{},
		&UserCharacter{},
		&Room{},
		&RoomMember{},
		&RoomMessage{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
