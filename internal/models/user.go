package models

import (
	"time"
)

// DefaultCreditGrant is the number of credits a user receives at registration.
const DefaultCreditGrant = 5

// User represents a user in the system
type User struct {
	ID              string    `json:"id" db:"id"`
	Email           string    `json:"email" db:"email"`
	PasswordHash    string    `json:"-" db:"password_hash"`
	Credits         int       `json:"credits" db:"credits"`
	GSCConnected    bool      `json:"gsc_connected" db:"gsc_connected"`
	GSCRefreshToken string    `json:"-" db:"gsc_refresh_token"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
