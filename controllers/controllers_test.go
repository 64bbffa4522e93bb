package controllers

import (
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"invoicegarden-backend/middlewares"
	"invoicegarden-backend/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

// newOwnedApp builds a Fiber app with the production error handler and a
// fixed authenticated owner injected ahead of every handler.
func newOwnedApp(owner string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middlewares.ErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", owner)
		return c.Next()
	})
	return app
}

func rawStoredDoc(t *testing.T, doc *models.InvoiceDocument) []byte {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

func storedInvoiceRows(id, owner string, raw []byte) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_id", "data", "artifact_key"}).
		AddRow(id, owner, raw, "")
}

func testLogger() zerolog.Logger { return zerolog.Nop() }
