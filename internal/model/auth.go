package model

import "time"

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	Expires string `json:"expires"`
}

// AuthResult is the outcome of a credential check. Error is set only when
// Success is false.
type AuthResult struct {
	Success  bool
	Token    string
	IssuedAt time.Time
	Expires  time.Time
	Error    string
}

type AuthUser struct {
	ID       int64
	Username string
	TokenID  string
	Token    string
}

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        *string
	CreatedAt    time.Time
}

type Session struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
