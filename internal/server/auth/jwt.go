// Package auth mints and verifies the two bearer tokens the API accepts.
// A gallery session binds a client to one (gallery, client) pair after an
// access code is redeemed. A studio token authorizes the back-office routes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleGallery = "gallery"
	RoleStudio  = "studio"
)

// Claims carries the standard claims plus the token role and, for gallery
// sessions, the gallery and client the token was issued for.
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	ClientID  string `json:"cid,omitempty"`
	GalleryID string `json:"gid,omitempty"`
}

func GenerateGalleryToken(clientID, galleryID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	return sign(Claims{
		RegisteredClaims: registered(clientID, validityDuration),
		Role:             RoleGallery,
		ClientID:         clientID,
		GalleryID:        galleryID,
	}, secretKey)
}

// GenerateStudioToken issues a back-office token for the named operator.
func GenerateStudioToken(operator string, secretKey []byte, validityDuration time.Duration) (string, error) {
	return sign(Claims{
		RegisteredClaims: registered(operator, validityDuration),
		Role:             RoleStudio,
	}, secretKey)
}

// ParseGalleryToken verifies the signature and expiry and returns the claims.
func ParseGalleryToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims, err := parse(tokenString, secretKey)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleGallery || claims.ClientID == "" || claims.GalleryID == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

func ParseStudioToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims, err := parse(tokenString, secretKey)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleStudio || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

func registered(subject string, validity time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
	}
}

func sign(claims Claims, secretKey []byte) (string, error) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func parse(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
