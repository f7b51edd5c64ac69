package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/pestguard-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Roles  []enums.Role
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID uuid.UUID    `json:"user_id"`
	Roles  []enums.Role `json:"roles"`
	jwt.RegisteredClaims
}

// Actor converts verified claims into the value passed to core operations.
func (c *AccessTokenClaims) Actor() Actor {
	return NewActor(c.UserID, c.Roles...)
}
