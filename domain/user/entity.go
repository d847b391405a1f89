package user

import (
	"time"
)

// User represents a registered account.
type User struct {
	ID           string    `gorm:"primaryKey;type:text" json:"id"`
	Name         string    `gorm:"not null;type:text" json:"name"`
	Email        string    `gorm:"uniqueIndex;not null;type:text" json:"email"`
	PasswordHash string    `gorm:"not null;type:text" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// Claims identifies the caller of an authenticated request.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Session is the result of a successful signup or login.
type Session struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}
