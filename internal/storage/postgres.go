package storage

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/forumhub/chatcore/internal/models"
)

// InitPostgres opens the database, configures the pool and migrates the
// chat-owned tables. Tables owned by external services (users, groups,
// group_members) are migrated too so a fresh development database works
// standalone; in production they already exist.
func InitPostgres(dsn string, maxIdleConns, maxOpenConns int) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)

	err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMember{},
		&models.GroupRoom{},
		&models.DirectRoom{},
		&models.Message{},
		&models.ReadCursor{},
		&models.Reaction{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrating models: %w", err)
	}
	return db, nil
}

// BuildDSN builds a PostgreSQL DSN from config fields.
func BuildDSN(host, port, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
}
