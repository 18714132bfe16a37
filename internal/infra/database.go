package infra

import (
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	"libraryhub.com/internal/config"
	"libraryhub.com/internal/model"
)

type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the configured store. Postgres is the production driver;
// sqlite runs single-node deployments and the test suites.
func NewDatabase(cfg config.DatabaseConfig) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(cfg.Path))
	default:
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
			cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode, cfg.TimeZone)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: cfg.TablePrefix,
		},
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// one writer at a time; concurrent transactions queue on the pool
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Printf("Database: connected (%s)", cfg.Driver)
	return &Database{DB: db}, nil
}

func sqliteDSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Migrate creates or updates every table, including the join tables that
// carry their own timestamps.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&model.Book{}, "Authors", &model.BookAuthor{}); err != nil {
		return fmt.Errorf("failed to set up book_authors: %w", err)
	}
	if err := db.SetupJoinTable(&model.Book{}, "Categories", &model.BookCategory{}); err != nil {
		return fmt.Errorf("failed to set up book_categories: %w", err)
	}

	if err := db.AutoMigrate(
		&model.User{},
		&model.Author{},
		&model.Category{},
		&model.Book{},
		&model.BookAuthor{},
		&model.BookCategory{},
		&model.BorrowRecord{},
		&model.Transaction{},
	); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}

	log.Println("Database: migrations applied")
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
