package bootstrap

import (
	"anoa.com/challengebot/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.GuildSettings{},
		&entity.BadgeRole{},
		&entity.Challenge{},
		&entity.Submission{},
		&entity.Vote{},
		&entity.PointLog{},
		&entity.Balance{},
	)
}

// SeedGuildSettings stores the default settings row for the home guild so the
// dashboard shows concrete values before anyone edits them. Existing rows win.
func SeedGuildSettings(db *gorm.DB, guildID string) error {
	if guildID == "" {
		return nil
	}
	settings := entity.DefaultSettings(guildID)
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&settings).Error
}
