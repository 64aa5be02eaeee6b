package utils

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TierClaims carries the user's subscription tier alongside the standard
// claims so the batch API can pick a queue without a database round trip.
type TierClaims struct {
	jwt.RegisteredClaims
	Tier string `json:"tier"`
}

func GenerateJWT(userID uuid.UUID, tier, tokenSecret string) (string, error) {
	jwt := jwt.NewWithClaims(jwt.SigningMethodHS256, TierClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "microjpeg",
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(24 * time.Hour)),
			Subject:   userID.String(),
		},
		Tier: tier,
	})
	token, err := jwt.SignedString([]byte(tokenSecret))
	if err != nil {
		return "", err
	}
	return token, nil
}

func ValidateJWT(tokenString, tokenSecret string) (uuid.UUID, string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TierClaims{}, func(token *jwt.Token) (any, error) {
		return []byte(tokenSecret), nil
	})
	if err != nil {
		return uuid.Nil, "", err
	}
	if claims, ok := token.Claims.(*TierClaims); ok {
		userID, err := claims.GetSubject()
		if err != nil {
			return uuid.Nil, "", err
		}
		id, err := uuid.Parse(userID)
		if err != nil {
			return uuid.Nil, "", err
		}
		return id, claims.Tier, nil
	}
	return uuid.Nil, "", errors.New("unknown claims type, cannot proceed")
}

func GetAuthorizationToken(headers http.Header) (string, error) {
	authorization := headers.Get("Authorization")
	if authorization == "" {
		return "", errors.New("missing authorization headers")
	}
	prefix := "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(strings.TrimPrefix(authorization, prefix))
	if token == "" {
		return "", errors.New("invalid token")
	}
	return token, nil
}
