package auth

import "github.com/golang-jwt/jwt/v5"

// RoleAdmin is the only role the storefront issues tokens for.
const RoleAdmin = "admin"

// AdminTokenPayload captures the data available when minting a back-office JWT.
type AdminTokenPayload struct {
	Email string
	JTI   string
}

// AdminClaims represents the typed JWT issued to the admin console.
type AdminClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}
