package domain

import "time"

// User is an account that can own and belong to teams. Email is stored
// lower-cased and is unique; PasswordHash never leaves the API.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
