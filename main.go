package main

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"invoicegarden-backend/database"
	"invoicegarden-backend/middlewares"
	"invoicegarden-backend/objstore"
	"invoicegarden-backend/ocr"
	"invoicegarden-backend/routes"
	"invoicegarden-backend/store"
	"invoicegarden-backend/utils"
)

func setupLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(utils.EnvStr("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if utils.EnvStr("LOG_FORMAT", "json") == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func main() {
	setupLogger()

	// ---- Database
	database.Connect()
	database.AutoMigrate()

	// ---- Artifact storage (optional; download endpoints answer 501 without it)
	var artifacts *objstore.Client
	if os.Getenv("S3_ENDPOINT") != "" {
		client, err := objstore.NewClientFromEnv()
		if err != nil {
			log.Fatal().Err(err).Msg("artifact storage misconfigured")
		}
		artifacts = client
	} else {
		log.Warn().Msg("S3_ENDPOINT unset, invoice downloads disabled")
	}

	// ---- OCR (optional)
	var ocrService ocr.Service
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		ocrService = ocr.NewOpenAIService(key)
	} else {
		log.Warn().Msg("OPENAI_API_KEY unset, ocr import disabled")
	}

	// ---- Stores
	quota := utils.EnvInt("INVOICE_LIMIT", store.DefaultQuota)
	var artifactStore store.ArtifactStore
	if artifacts != nil {
		artifactStore = artifacts
	}
	invoices := store.NewInvoiceStore(database.DB, artifactStore, quota, log.Logger)
	links := store.NewShareLinkManager(database.DB, log.Logger)

	// ---- Limits (configurable via env)
	bodyLimitBytes := utils.EnvInt("BODY_LIMIT_BYTES", 0)
	if bodyLimitBytes <= 0 {
		bodyLimitBytes = utils.EnvInt("BODY_LIMIT_MB", 12) * 1024 * 1024
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    bodyLimitBytes,
	})

	// ---- CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins:     utils.EnvStr("ALLOWED_ORIGINS", "*"),
		AllowCredentials: false, // bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
	}))

	// ---- Global rate limiter
	app.Use(limiter.New(limiter.Config{
		Max:        utils.EnvInt("RATE_LIMIT_MAX", 120),
		Expiration: time.Duration(utils.EnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
	}))

	// ---- Routes
	routes.Register(app, routes.Deps{
		Invoices:  invoices,
		Links:     links,
		Artifacts: artifacts,
		OCR:       ocrService,
	})

	// ---- Start
	port := utils.EnvStr("PORT", "8080")
	log.Info().Str("port", port).Int("invoice_limit", quota).Msg("starting api server")
	if err := app.Listen(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
