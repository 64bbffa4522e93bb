package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"invoicegarden-backend/database"
	"invoicegarden-backend/middlewares"
	"invoicegarden-backend/models"
	"invoicegarden-backend/store"
)

// AdminController covers user administration. Every handler here runs behind
// RequireSession + RequireAdmin.
type AdminController struct {
	Invoices *store.InvoiceStore
}

type banRequest struct {
	Banned bool `json:"banned"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type adminUserView struct {
	models.User
	InvoiceCount int64 `json:"invoice_count"`
	SessionCount int64 `json:"session_count"`
}

func actingUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}

// loadTarget fetches the target user and enforces the protection rules:
// nobody administers a super admin, and nobody administers themselves.
func loadTarget(c *fiber.Ctx) (*models.User, error) {
	var target models.User
	if err := database.DB.First(&target, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return nil, err
	}
	if middlewares.IsSuperAdmin(target.Email) {
		return nil, fiber.NewError(fiber.StatusForbidden, "super admin accounts cannot be modified")
	}
	if actor := actingUser(c); actor != nil && actor.Id == target.Id {
		return nil, fiber.NewError(fiber.StatusForbidden, "cannot administer your own account")
	}
	return &target, nil
}

// ListUsers returns all active users with per-user invoice and session
// counts plus aggregate stats.
func (ac *AdminController) ListUsers(c *fiber.Ctx) error {
	var users []models.User
	if err := database.DB.Where("deleted_at IS NULL").Order("created_at desc").Find(&users).Error; err != nil {
		return err
	}

	views := make([]adminUserView, 0, len(users))
	for _, u := range users {
		view := adminUserView{User: u}
		database.DB.Model(&models.Invoice{}).Where("owner_id = ?", u.Id).Count(&view.InvoiceCount)
		database.DB.Model(&models.Session{}).Where("user_id = ?", u.Id).Count(&view.SessionCount)
		views = append(views, view)
	}

	var totalInvoices, totalBanned int64
	database.DB.Model(&models.Invoice{}).Count(&totalInvoices)
	database.DB.Model(&models.User{}).Where("is_banned = ? AND deleted_at IS NULL", true).Count(&totalBanned)

	return c.JSON(fiber.Map{
		"users": views,
		"stats": fiber.Map{
			"total_users":    len(views),
			"total_invoices": totalInvoices,
			"banned_users":   totalBanned,
		},
	})
}

func (ac *AdminController) ListDeleted(c *fiber.Ctx) error {
	var users []models.User
	if err := database.DB.Where("deleted_at IS NOT NULL").Order("deleted_at desc").Find(&users).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"users": users})
}

// Ban sets or clears the ban flag. Banning also drops every session so the
// user is logged out everywhere immediately.
func (ac *AdminController) Ban(c *fiber.Ctx) error {
	target, err := loadTarget(c)
	if err != nil {
		return err
	}

	var req banRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := database.DB.Model(target).Update("is_banned", req.Banned).Error; err != nil {
		return err
	}
	if req.Banned {
		database.DB.Delete(&models.Session{}, "user_id = ?", target.Id)
	}
	return c.JSON(fiber.Map{"message": "updated", "banned": req.Banned})
}

// SetRole promotes or demotes a user. Only super admins may change roles.
func (ac *AdminController) SetRole(c *fiber.Ctx) error {
	actor := actingUser(c)
	if actor == nil || !middlewares.IsSuperAdmin(actor.Email) {
		return fiber.NewError(fiber.StatusForbidden, "only super admins can change roles")
	}

	target, err := loadTarget(c)
	if err != nil {
		return err
	}

	var req roleRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}

	if err := database.DB.Model(target).Update("role", req.Role).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "updated", "role": req.Role})
}

// SoftDelete marks the account deleted and drops its sessions. Invoices stay
// in place so a restore brings everything back.
func (ac *AdminController) SoftDelete(c *fiber.Ctx) error {
	target, err := loadTarget(c)
	if err != nil {
		return err
	}

	if err := database.DB.Model(target).Update("deleted_at", gorm.Expr("NOW()")).Error; err != nil {
		return err
	}
	database.DB.Delete(&models.Session{}, "user_id = ?", target.Id)
	return c.JSON(fiber.Map{"message": "deleted"})
}

func (ac *AdminController) Restore(c *fiber.Ctx) error {
	target, err := loadTarget(c)
	if err != nil {
		return err
	}
	if target.DeletedAt == nil {
		return fiber.NewError(fiber.StatusConflict, "user is not deleted")
	}

	if err := database.DB.Model(target).Update("deleted_at", nil).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "restored"})
}

// Destroy permanently removes a user: invoices (with share links and
// artifacts), sessions, settings, then the user row itself.
func (ac *AdminController) Destroy(c *fiber.Ctx) error {
	target, err := loadTarget(c)
	if err != nil {
		return err
	}

	if err := ac.Invoices.ClearAll(c.Context(), target.Id); err != nil {
		return err
	}
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Session{}, "user_id = ?", target.Id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.UserSettings{}, "user_id = ?", target.Id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", target.Id).Error
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "destroyed"})
}
