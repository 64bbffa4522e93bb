package middlewares

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"invoicegarden-backend/database"
	"invoicegarden-backend/models"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "

	accessTokenTTL = 24 * time.Hour
)

// Claims is our JWT payload: subject=userID plus the backing session row.
// Tokens are only as alive as the session they point at, so revoking the
// session kills every copy of the token.
type Claims struct {
	SessionId string `json:"sid"`
	jwt.RegisteredClaims
}

var (
	secretOnce sync.Once
	jwtSecret  []byte
	secretErr  error
)

func loadJWTSecret() error {
	secretOnce.Do(func() {
		// Prefer JWT_SECRET_KEY, fallback to JWT_SECRET
		sec := os.Getenv("JWT_SECRET_KEY")
		if strings.TrimSpace(sec) == "" {
			sec = os.Getenv("JWT_SECRET")
		}
		if strings.TrimSpace(sec) == "" {
			secretErr = errors.New("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)")
			return
		}
		jwtSecret = []byte(sec)
	})
	return secretErr
}

// GenerateAccessToken signs a new HS256 token bound to a session row.
func GenerateAccessToken(userID, sessionID string) (string, error) {
	if err := loadJWTSecret(); err != nil {
		return "", err
	}
	now := time.Now()
	claims := &Claims{
		SessionId: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseAccessToken validates a raw bearer token and returns its claims.
func ParseAccessToken(raw string) (*Claims, error) {
	if err := loadJWTSecret(); err != nil {
		return nil, err
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	var claims Claims
	token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.SessionId) == "" {
		return nil, errors.New("token missing subject/session")
	}
	return &claims, nil
}

// RequireSession validates the bearer token, checks the backing session row
// still exists and hasn't expired, and rejects banned or soft-deleted
// accounts. On success it stashes "userID", "user" and "session" in Locals.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get(authHeader)
		if h == "" || !strings.HasPrefix(strings.ToLower(h), strings.ToLower(bearerPrefix)) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "missing/invalid Authorization header"})
		}
		raw := strings.TrimSpace(h[len(bearerPrefix):])
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "invalid bearer token"})
		}

		claims, err := ParseAccessToken(raw)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "invalid or expired token"})
		}

		var session models.Session
		if err := database.DB.Where("id = ? AND user_id = ?", claims.SessionId, claims.Subject).
			First(&session).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "session not found"})
		}
		if time.Now().After(session.ExpiresAt) {
			database.DB.Delete(&models.Session{}, "id = ?", session.Id)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "session expired"})
		}

		var user models.User
		if err := database.DB.First(&user, "id = ?", claims.Subject).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "account not found"})
		}

		// Banned or deleted accounts lose every session, not just this one.
		if user.IsBanned || user.DeletedAt != nil {
			database.DB.Delete(&models.Session{}, "user_id = ?", user.Id)
			reason := "banned"
			if user.DeletedAt != nil {
				reason = "deleted"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "account is not active",
				"reason":  reason,
			})
		}

		c.Locals("userID", user.Id)
		c.Locals("user", &user)
		c.Locals("session", &session)
		return c.Next()
	}
}

// RequireAdmin runs after RequireSession and gates admin-only endpoints.
// Super admins (listed in SUPER_ADMINS) pass regardless of stored role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, _ := c.Locals("user").(*models.User)
		if user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "auth context missing"})
		}
		if user.Role != models.RoleAdmin && !IsSuperAdmin(user.Email) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "admin access required"})
		}
		return c.Next()
	}
}

// IsSuperAdmin reports whether the email is in the SUPER_ADMINS env list
// (comma-separated, case-insensitive).
func IsSuperAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, entry := range strings.Split(os.Getenv("SUPER_ADMINS"), ",") {
		if strings.ToLower(strings.TrimSpace(entry)) == email {
			return true
		}
	}
	return false
}
