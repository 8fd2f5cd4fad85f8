package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

// Refresh tokens are minted by the platform's login flow and are never
// accepted by this API.
const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Tenancy invariant: OrganizationID must be present on every token.
// Elevated capabilities are decided server-side by internal/rbac, never by extra claims.
type Claims struct {
	jwt.RegisteredClaims

	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	Role           string    `json:"role"`
	TokenType      TokenType `json:"token_type"`
}
