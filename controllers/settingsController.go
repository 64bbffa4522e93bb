package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"invoicegarden-backend/database"
	"invoicegarden-backend/middlewares"
	"invoicegarden-backend/models"
)

type updateSettingsRequest struct {
	InvoicePrefix     string `json:"invoice_prefix" validate:"required,max=16"`
	PreferredCurrency string `json:"preferred_currency" validate:"required,len=3,alpha"`
}

// GetSettings returns the caller's editor defaults, creating the row lazily
// for accounts that predate the settings table.
func GetSettings(c *fiber.Ctx) error {
	var settings models.UserSettings
	err := database.DB.Where("user_id = ?", ownerID(c)).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.UserSettings{UserId: ownerID(c)}
		err = database.DB.Create(&settings).Error
	}
	if err != nil {
		return err
	}
	return c.JSON(settings)
}

func UpdateSettings(c *fiber.Ctx) error {
	var req updateSettingsRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}

	updates := map[string]any{
		"invoice_prefix":     strings.TrimSpace(req.InvoicePrefix),
		"preferred_currency": strings.ToUpper(req.PreferredCurrency),
	}

	res := database.DB.Model(&models.UserSettings{}).
		Where("user_id = ?", ownerID(c)).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		settings := models.UserSettings{
			UserId:            ownerID(c),
			InvoicePrefix:     updates["invoice_prefix"].(string),
			PreferredCurrency: updates["preferred_currency"].(string),
		}
		if err := database.DB.Create(&settings).Error; err != nil {
			return err
		}
	}

	var settings models.UserSettings
	if err := database.DB.Where("user_id = ?", ownerID(c)).First(&settings).Error; err != nil {
		return err
	}
	return c.JSON(settings)
}
