package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// PlaybackClaims is the token form of a signed stream URL. Subject is the video uuid.
type PlaybackClaims struct {
	Quality string `json:"quality,omitempty"`
	jwt.RegisteredClaims
}

func GeneratePlaybackToken(videoID uuid.UUID, quality string, secretKey string, ttl time.Duration, now time.Time) (string, error) {
	claims := &PlaybackClaims{
		Quality: quality,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   videoID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign playback token: %w", err)
	}
	return signed, nil
}

// ValidatePlaybackToken checks signature, expiry and that the token was issued for videoID.
func ValidatePlaybackToken(tokenString string, videoID uuid.UUID, secretKey string) (*PlaybackClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PlaybackClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*PlaybackClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Subject != videoID.String() {
		return nil, fmt.Errorf("token issued for another video")
	}
	return claims, nil
}
