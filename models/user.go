package models

import "time"

// User represents a journal owner
// Password is stored hashed (bcrypt); never return it in JSON responses
type User struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Password  string    `json:"-" db:"password"` // Hashed; omitted from JSON
	Profile   string    `json:"profile" db:"profile"` // Uploaded image filename or ""
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RegisterRequest carries the /register form fields
type RegisterRequest struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// LoginRequest carries the /login form fields
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest is the /changeP body. Field names follow the web client.
type ChangePasswordRequest struct {
	OldPassword string `json:"Opass"`
	NewPassword string `json:"Npass"`
}

// UserResponse is returned by /getUser
type UserResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Profile string `json:"profile"`
}

// ToResponse strips the user down to what the browser may see
func (u User) ToResponse() UserResponse {
	return UserResponse{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Profile: u.Profile,
	}
}
