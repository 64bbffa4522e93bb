package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	Id        string     `json:"id" gorm:"primaryKey"`
	Name      string     `json:"name" gorm:"not null"`
	Email     string     `json:"email" gorm:"unique;not null"`
	Password  []byte     `json:"-" gorm:"not null"`
	Role      string     `json:"role" gorm:"type:VARCHAR(20);not null;default:user"`
	IsBanned  bool       `json:"is_banned" gorm:"not null;default:false"`
	DeletedAt *time.Time `json:"deleted_at"` // soft-delete sentinel; nil = active
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if user.Id == "" {
		user.Id = uuid.NewString()
	}
	return
}

func (user *User) SetPassword(password string) {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), 12)
	user.Password = hashedPassword
}

func (user *User) ComparePassword(password string) error {
	return bcrypt.CompareHashAndPassword(user.Password, []byte(password))
}

// Session is a server-side login record. Access tokens reference a session by
// id so banning or deleting a user can invalidate every outstanding login.
type Session struct {
	Id        string    `json:"id" gorm:"primaryKey"`
	UserId    string    `json:"-" gorm:"index;not null"`
	User      User      `json:"-" gorm:"foreignKey:UserId;references:Id"`
	ExpiresAt time.Time `json:"expires_at"`
	IpAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) (err error) {
	if s.Id == "" {
		s.Id = uuid.NewString()
	}
	return
}
