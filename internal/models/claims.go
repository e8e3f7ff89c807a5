package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles for lab accounts.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleResearcher UserRole = "RESEARCHER"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
