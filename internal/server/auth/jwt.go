// Package auth issues and verifies the signed session tokens carried in
// Authorization headers.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dzaytsev/credkeeper/internal/common"
	"github.com/dzaytsev/credkeeper/internal/server/models"
)

// Claims are the identity assertions embedded in a session token. They are a
// detached snapshot: a role change after issuance does not touch tokens
// already in the wild, which stay valid until they expire.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
}

// GenerateToken signs an HS256 token for the account, valid for ttl from now.
func GenerateToken(account *models.Account, secretKey []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		AccountID: account.ID,
		Username:  account.Username,
		Role:      account.Role,
	})

	return token.SignedString(secretKey)
}

// ParseToken verifies the signature and expiry of tokenString and returns the
// decoded claims. Signature and expiry checks are independent: a correctly
// signed but expired token yields common.ErrTokenExpired, everything else
// that fails yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
