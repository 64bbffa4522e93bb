package database

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"invoicegarden-backend/models"
)

var DB *gorm.DB

// Connect opens the Postgres connection from env. A .env file is loaded when
// present but is optional in containerized deployments.
func Connect() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file, relying on process environment")
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "db"
	}
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}
	sslmode := os.Getenv("DB_SSLMODE")
	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"), port, sslmode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		// Writes that need atomicity open transactions explicitly; the
		// implicit per-statement wrapping just adds round trips.
		SkipDefaultTransaction: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to database")
	}
	DB = db
}

// AutoMigrate applies idempotent schema migrations for all models.
func AutoMigrate() {
	if err := DB.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.UserSettings{},
		&models.Invoice{},
		&models.SharedLink{},
		&models.LinkView{},
	); err != nil {
		log.Fatal().Err(err).Msg("automigrate failed")
	}
}
