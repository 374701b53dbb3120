package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the access-token payload issued by the external auth service.
// This API only verifies tokens; session issuance lives elsewhere.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
