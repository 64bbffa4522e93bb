package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"invoicegarden-backend/middlewares"
	"invoicegarden-backend/models"
	"invoicegarden-backend/objstore"
	"invoicegarden-backend/store"
)

const downloadURLTTL = 15 * time.Minute

// InvoiceController serves the per-user invoice CRUD surface on top of the
// quota-bounded store.
type InvoiceController struct {
	Invoices  *store.InvoiceStore
	Artifacts *objstore.Client
}

type saveInvoiceRequest struct {
	Id       string                  `json:"id" validate:"required"`
	Document *models.InvoiceDocument `json:"document" validate:"required"`
}

func ownerID(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}

// Save creates or updates an invoice. Creating at quota silently evicts the
// user's oldest invoice first.
func (ic *InvoiceController) Save(c *fiber.Ctx) error {
	var req saveInvoiceRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}

	if err := ic.Invoices.Save(c.Context(), req.Id, req.Document, ownerID(c)); err != nil {
		return err
	}

	doc, err := ic.Invoices.Get(c.Context(), req.Id, ownerID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": req.Id, "document": doc})
}

func (ic *InvoiceController) List(c *fiber.Ctx) error {
	saved, err := ic.Invoices.ListAll(c.Context(), ownerID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"invoices": saved,
		"count":    len(saved),
		"limit":    ic.Invoices.Quota(),
	})
}

func (ic *InvoiceController) Get(c *fiber.Ctx) error {
	doc, err := ic.Invoices.Get(c.Context(), c.Params("id"), ownerID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": c.Params("id"), "document": doc})
}

func (ic *InvoiceController) Delete(c *fiber.Ctx) error {
	if err := ic.Invoices.Delete(c.Context(), c.Params("id"), ownerID(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "deleted"})
}

func (ic *InvoiceController) ClearAll(c *fiber.Ctx) error {
	if err := ic.Invoices.ClearAll(c.Context(), ownerID(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "cleared"})
}

// Archive toggles the archived flag by rereading and rewriting the stored
// document, so totals are refreshed and ownership is re-checked on the way.
func (ic *InvoiceController) Archive(c *fiber.Ctx) error {
	id := c.Params("id")
	doc, err := ic.Invoices.Get(c.Context(), id, ownerID(c))
	if err != nil {
		return err
	}

	doc.Archived = !doc.Archived
	if err := ic.Invoices.Save(c.Context(), id, doc, ownerID(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": id, "archived": doc.Archived})
}

// Download returns a short-lived presigned URL for the rendered PDF.
func (ic *InvoiceController) Download(c *fiber.Ctx) error {
	if ic.Artifacts == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "artifact storage not configured")
	}

	rec, err := ic.Invoices.Record(c.Context(), c.Params("id"), ownerID(c))
	if err != nil {
		return err
	}
	if rec.ArtifactKey == "" {
		return fiber.NewError(fiber.StatusNotFound, "no rendered document for this invoice")
	}

	url, err := ic.Artifacts.PresignGet(c.Context(), rec.ArtifactKey, downloadURLTTL)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"url":        url,
		"expires_in": int(downloadURLTTL.Seconds()),
	})
}
