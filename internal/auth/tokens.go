// Package auth provides JWT session tokens and the auth-state stream.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hbarro/lares/internal/common"
)

// SignToken creates a signed HMAC-SHA256 JWT for the given session.
func SignToken(session *common.Session, config *common.AuthConfig) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   session.Owner,
		"email": session.Email,
		"iss":   "lares-server",
		"iat":   now.Unix(),
		"exp":   now.Add(config.GetTokenExpiry()).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.JWTSecret))
}

// ValidateToken parses and validates a JWT token string and returns the
// session it identifies.
func ValidateToken(tokenString string, secret []byte) (*common.Session, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	owner, _ := claims["sub"].(string)
	if owner == "" {
		return nil, fmt.Errorf("token missing subject claim")
	}
	email, _ := claims["email"].(string)

	return &common.Session{Owner: owner, Email: email}, nil
}
