package controllers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"invoicegarden-backend/store"
)

// ShareController manages public share links for invoices.
type ShareController struct {
	Invoices *store.InvoiceStore
	Links    *store.ShareLinkManager
}

// Create issues a fresh share link for an owned invoice. The expiry follows
// the STORED document's due date, never client input: a link for an invoice
// due in 10 days expires in 10 days.
func (sc *ShareController) Create(c *fiber.Ctx) error {
	doc, err := sc.Invoices.Get(c.Context(), c.Params("id"), ownerID(c))
	if err != nil {
		return err
	}

	link, err := sc.Links.Create(c.Context(), c.Params("id"), ownerID(c), doc.DueDate)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(link)
}

func (sc *ShareController) List(c *fiber.Ctx) error {
	links, err := sc.Links.List(c.Context(), c.Params("id"), ownerID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"links": links})
}

func (sc *ShareController) Revoke(c *fiber.Ctx) error {
	linkId := strings.TrimSpace(c.Query("linkId"))
	if linkId == "" {
		return fiber.NewError(fiber.StatusBadRequest, "linkId query parameter is required")
	}
	if err := sc.Links.Revoke(c.Context(), linkId, ownerID(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "revoked"})
}

// ViewShared resolves a token to its invoice document. No auth; unknown,
// revoked and expired tokens all come back 404.
func (sc *ShareController) ViewShared(c *fiber.Ctx) error {
	doc, linkId, err := sc.Links.ResolveByToken(c.Context(), c.Params("token"))
	if err != nil {
		return err
	}

	// Audit the view off the request path so a slow write never delays the
	// viewer. The request context dies with the response, hence Background.
	ip := c.IP()
	ua := c.Get(fiber.HeaderUserAgent)
	go func() {
		_ = sc.Links.RecordView(context.Background(), linkId, ip, ua)
	}()

	return c.JSON(fiber.Map{"document": doc})
}
