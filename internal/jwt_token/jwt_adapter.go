package jwttoken

import (
	"geoseal/internal/platform/middleware"
)

// ToMiddlewareClaims narrows full token claims to what the auth middleware
// carries into request context.
func ToMiddlewareClaims(claims *AccessTokenClaims) *middleware.JWTClaims {
	return &middleware.JWTClaims{
		OwnerID: claims.OwnerID,
	}
}

// JWTServiceAdapter lets the JWT service satisfy the middleware's
// JWTValidator without the middleware importing this package's claim types.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
