package routes

import (
	"github.com/gofiber/fiber/v2"

	"invoicegarden-backend/controllers"
	"invoicegarden-backend/middlewares"
	"invoicegarden-backend/objstore"
	"invoicegarden-backend/ocr"
	"invoicegarden-backend/store"
)

// Deps carries the wired services the HTTP layer needs. Artifacts and OCR
// are optional; their endpoints answer 501 when unset.
type Deps struct {
	Invoices  *store.InvoiceStore
	Links     *store.ShareLinkManager
	Artifacts *objstore.Client
	OCR       ocr.Service
}

// Register wires all HTTP routes.
func Register(app *fiber.App, deps Deps) {
	invoices := &controllers.InvoiceController{Invoices: deps.Invoices, Artifacts: deps.Artifacts}
	shares := &controllers.ShareController{Invoices: deps.Invoices, Links: deps.Links}
	admin := &controllers.AdminController{Invoices: deps.Invoices}
	ocrCtl := &controllers.OCRController{Service: deps.OCR}

	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/register", controllers.Register)
	api.Post("/login", controllers.Login)

	// Public share resolution (token is the only credential)
	api.Get("/shared/:token", shares.ViewShared)

	// Protected endpoints (JWT + live session)
	protected := api.Group("")
	protected.Use(middlewares.RequireSession())

	protected.Post("/logout", controllers.Logout)
	protected.Get("/me", controllers.Me)

	// Invoices
	protected.Get("/invoices", invoices.List)
	protected.Post("/invoices", invoices.Save)
	protected.Delete("/invoices", invoices.ClearAll)
	protected.Get("/invoices/:id", invoices.Get)
	protected.Delete("/invoices/:id", invoices.Delete)
	protected.Put("/invoices/:id/archive", invoices.Archive)
	protected.Get("/invoices/:id/download", invoices.Download)

	// Share links
	protected.Post("/invoices/:id/share", shares.Create)
	protected.Get("/invoices/:id/share", shares.List)
	protected.Delete("/invoices/:id/share", shares.Revoke)

	// Settings
	protected.Get("/user/settings", controllers.GetSettings)
	protected.Put("/user/settings", controllers.UpdateSettings)

	// OCR import
	protected.Post("/ocr/parse", ocrCtl.Parse)

	// Admin
	adminGroup := protected.Group("/admin")
	adminGroup.Use(middlewares.RequireAdmin())
	adminGroup.Get("/users", admin.ListUsers)
	adminGroup.Get("/users/deleted", admin.ListDeleted)
	adminGroup.Post("/users/:id/ban", admin.Ban)
	adminGroup.Post("/users/:id/role", admin.SetRole)
	adminGroup.Post("/users/:id/restore", admin.Restore)
	adminGroup.Delete("/users/:id/destroy", admin.Destroy)
	adminGroup.Delete("/users/:id", admin.SoftDelete)
}
