// File: internal/auth/jwt.go
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/carebridge/carechat/internal/domain"
)

// GenerateJWT issues a session credential for the given account. The role
// travels inside the token so a connection can be classified without a
// second lookup; the account's continued existence is still re-checked at
// handshake time.
func GenerateJWT(userID uint, role domain.UserRole, secretKey []byte) (string, error) {
	if userID == 0 {
		return "", errors.New("user ID cannot be zero")
	}
	if !role.IsValid() {
		return "", errors.New("invalid role")
	}

	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour * 24).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ValidateToken checks the signature and expiry and extracts the principal
// id and role. Every failure collapses to a single error value so callers
// cannot distinguish absent, malformed and expired credentials.
func ValidateToken(tokenString string, secretKey []byte) (uint, domain.UserRole, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey, nil
	})

	if err != nil {
		return 0, "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, "", errors.New("invalid token")
	}

	userIDFloat, ok := claims["sub"].(float64)
	if !ok || userIDFloat <= 0 {
		return 0, "", errors.New("invalid token")
	}

	roleStr, _ := claims["role"].(string)
	role := domain.UserRole(roleStr)
	if !role.IsValid() {
		return 0, "", errors.New("invalid token")
	}

	return uint(userIDFloat), role, nil
}
