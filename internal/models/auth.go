package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the payload issued by the external authentication boundary.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Actor is the verified caller of an engine operation. Role is the raw claim;
// the authorization gate normalises it.
type Actor struct {
	ID   string
	Role string
}

// ActorFromClaims converts verified token claims.
func ActorFromClaims(claims *JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	return Actor{ID: id, Role: claims.Role}
}
