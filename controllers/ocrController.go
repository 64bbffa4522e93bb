package controllers

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"invoicegarden-backend/ocr"
)

const maxOCRImageBytes = 10 << 20

// OCRController turns uploaded invoice images into draft documents.
type OCRController struct {
	Service ocr.Service
}

// Parse accepts a multipart upload under the "image" field and returns the
// extracted draft. The draft has no id; the client assigns one on save.
func (oc *OCRController) Parse(c *fiber.Ctx) error {
	if oc.Service == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "ocr is not configured")
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "image file is required")
	}
	if fileHeader.Size > maxOCRImageBytes {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "image too large")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not read image")
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxOCRImageBytes+1))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not read image")
	}
	if len(image) > maxOCRImageBytes {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "image too large")
	}

	doc, err := oc.Service.ParseInvoice(c.Context(), image, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "invoice extraction failed")
	}
	return c.JSON(fiber.Map{"document": doc})
}
