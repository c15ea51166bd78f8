package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type discriminators embedded in every signed token.
const (
	// TokenTypeAccess marks a short-lived bearer token for API calls.
	TokenTypeAccess = "access"
	// TokenTypeRefresh marks a long-lived token used only to mint access tokens.
	TokenTypeRefresh = "refresh"
)

// JWT validation errors.
var (
	// ErrInvalidToken indicates a token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a token has expired.
	ErrExpiredToken = errors.New("token expired")
	// ErrWrongTokenType indicates a token's declared type does not match the caller's expectation.
	ErrWrongTokenType = errors.New("wrong token type")
)

// TokenClaims defines the signed claims carried by access and refresh tokens.
type TokenClaims struct {
	UserID    uint64 `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs an access token with the configured expiry.
func GenerateAccessToken(secret string, userID uint64, expiry time.Duration) (string, error) {
	return generateToken(secret, userID, TokenTypeAccess, expiry)
}

// GenerateRefreshToken signs a refresh token with the configured expiry.
func GenerateRefreshToken(secret string, userID uint64, expiry time.Duration) (string, error) {
	return generateToken(secret, userID, TokenTypeRefresh, expiry)
}

// generateToken signs a typed token.
func generateToken(secret string, userID uint64, tokenType string, expiry time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := TokenClaims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates a token of any type and returns its claims. Callers
// that require a specific type must check TokenType explicitly or use
// ParseRefreshToken.
func ParseToken(secret string, tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseAccessToken validates a token and rejects any whose type is not "access".
func ParseAccessToken(secret string, tokenString string) (*TokenClaims, error) {
	claims, err := ParseToken(secret, tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// ParseRefreshToken validates a token and rejects any whose type is not "refresh".
func ParseRefreshToken(secret string, tokenString string) (*TokenClaims, error) {
	claims, err := ParseToken(secret, tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
