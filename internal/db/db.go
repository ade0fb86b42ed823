package db

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pdfqa/internal/model"
)

// Open returns a connected GORM DB instance for the given driver ("mysql" or "sqlite").
// Driver errors are translated so that unique-index violations surface as gorm.ErrDuplicatedKey.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	return db, nil
}

// Migrate creates or updates the schema for all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.PDF{},
		&model.QueryHistory{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	if stmt := caseSensitiveEmailSQL(db.Dialector.Name()); stmt != "" {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("email collation: %w", err)
		}
	}
	return nil
}

// caseSensitiveEmailSQL returns the statement that makes users.email compare
// byte for byte on the given dialect, or "" when the default already does.
// MySQL's default utf8mb4 collations ignore case.
func caseSensitiveEmailSQL(dialect string) string {
	if dialect == "mysql" {
		return "ALTER TABLE users MODIFY email VARCHAR(255) NOT NULL COLLATE utf8mb4_bin"
	}
	return ""
}

// Pinger adapts a GORM handle to a context-aware health check.
type Pinger struct {
	DB *gorm.DB
}

// Ping checks that the underlying connection pool can reach the database.
func (p Pinger) Ping(ctx context.Context) error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
