package models

import (
	"time"
)

type User struct {
	ID            uint           `gorm:"primaryKey;autoIncrement"      json:"id"`
	Username      string         `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email         string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash  string         `gorm:"not null"                      json:"-"`
	FirstName     string         `gorm:"size:100"                      json:"firstName"`
	LastName      string         `gorm:"size:100"                      json:"lastName"`
	IsActive      bool           `gorm:"not null;default:true"         json:"isActive"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	RefreshTokens []RefreshToken `gorm:"constraint:OnDelete:CASCADE"   json:"-"`
}

// RefreshToken stores the SHA-256 of an issued refresh token, never the token itself.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"                   json:"id"`
	TokenHash string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	UserID    uint      `gorm:"index;not null"               json:"userId"`
	ExpiresAt time.Time `gorm:"not null"                     json:"expiresAt"`
	Revoked   bool      `gorm:"not null;default:false"       json:"revoked"`
	CreatedAt time.Time `json:"createdAt"`
}

func (t RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"      json:"id"`
	Name        string    `gorm:"size:100;not null;index"       json:"name"`
	Description string    `gorm:"size:500"                      json:"description"`
	Price       float64   `gorm:"type:numeric(18,2);not null"   json:"price"`
	Stock       int       `gorm:"not null;default:0"            json:"stock"`
	Category    string    `gorm:"size:50"                       json:"category"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
