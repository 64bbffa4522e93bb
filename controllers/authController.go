package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"invoicegarden-backend/database"
	"invoicegarden-backend/middlewares"
	"invoicegarden-backend/models"
)

const sessionTTL = 7 * 24 * time.Hour

type registerRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=128"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing models.User
	err := database.DB.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return fiber.NewError(fiber.StatusConflict, "email already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	user := models.User{
		Name:  strings.TrimSpace(req.Name),
		Email: email,
		Role:  models.RoleUser,
	}
	user.SetPassword(req.Password)
	if err := database.DB.Create(&user).Error; err != nil {
		return err
	}

	// Default settings row so first settings fetch never 404s.
	settings := models.UserSettings{UserId: user.Id}
	if err := database.DB.Create(&settings).Error; err != nil {
		return err
	}

	return issueSession(c, &user)
}

func Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := database.DB.Where("email = ?", email).First(&user).Error; err != nil {
		// Same message on unknown email and bad password.
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}
	if err := user.ComparePassword(req.Password); err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}
	if user.IsBanned {
		return fiber.NewError(fiber.StatusForbidden, "account is banned")
	}
	if user.DeletedAt != nil {
		return fiber.NewError(fiber.StatusForbidden, "account is deactivated")
	}

	return issueSession(c, &user)
}

func issueSession(c *fiber.Ctx, user *models.User) error {
	session := models.Session{
		UserId:    user.Id,
		ExpiresAt: time.Now().Add(sessionTTL),
		IpAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
	if err := database.DB.Create(&session).Error; err != nil {
		return err
	}

	token, err := middlewares.GenerateAccessToken(user.Id, session.Id)
	if err != nil {
		return err
	}

	role := user.Role
	if middlewares.IsSuperAdmin(user.Email) {
		role = models.RoleAdmin
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":    user.Id,
			"name":  user.Name,
			"email": user.Email,
			"role":  role,
		},
	})
}

// Logout deletes the session backing the presented token. Other logins of
// the same user stay valid.
func Logout(c *fiber.Ctx) error {
	session, _ := c.Locals("session").(*models.Session)
	if session != nil {
		database.DB.Delete(&models.Session{}, "id = ?", session.Id)
	}
	return c.JSON(fiber.Map{"message": "success"})
}

// Me returns the authenticated user's profile.
func Me(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(*models.User)
	if user == nil {
		return fiber.ErrUnauthorized
	}
	role := user.Role
	if middlewares.IsSuperAdmin(user.Email) {
		role = models.RoleAdmin
	}
	return c.JSON(fiber.Map{
		"id":    user.Id,
		"name":  user.Name,
		"email": user.Email,
		"role":  role,
	})
}
