package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiryBuyer is how long a buyer token issued by the demo host stays valid.
const TokenExpiryBuyer = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID uint
	Email  string
}

func GenerateToken(secret []byte, email string, userID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"email":   email,
		"sub":     email,
		"user_id": userID,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ValidateToken(secret []byte, tokenString string) (*Claims, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt secret is not set")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, ok := mapClaims["user_id"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: user_id claim missing", ErrInvalidToken)
	}
	email, ok := mapClaims["email"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: email claim missing", ErrInvalidToken)
	}

	return &Claims{UserID: uint(userID), Email: email}, nil
}
