// Package auth issues and verifies the bearer tokens that identify the
// uploading user and factory.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/server/models"
)

// Claims carries the standard claims plus the uploader identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID    int64 `json:"uid"`
	FactoryID int64 `json:"fid"`
}

func GenerateToken(u models.Uploader, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID:    u.UserID,
		FactoryID: u.FactoryID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns the uploader it names.
func ParseToken(tokenString string, secretKey []byte) (models.Uploader, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Uploader{}, common.ErrTokenExpired
		}
		return models.Uploader{}, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID <= 0 {
		return models.Uploader{}, common.ErrInvalidToken
	}

	return models.Uploader{UserID: claims.UserID, FactoryID: claims.FactoryID}, nil
}
