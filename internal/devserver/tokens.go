package devserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	errTokenExpired = errors.New("token expired")
	errTokenInvalid = errors.New("token invalid")
)

type accessClaims struct {
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

// tokenIssuer signs and verifies HS256 access tokens.
type tokenIssuer struct {
	key      []byte
	lifetime time.Duration
	now      func() time.Time
}

func (ti *tokenIssuer) issue(accountID string) (string, time.Time, error) {
	now := ti.now()
	expires := now.Add(ti.lifetime)
	claims := accessClaims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expires, nil
}

// verify returns the account id the token was issued to.
func (ti *tokenIssuer) verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &accessClaims{},
		func(t *jwt.Token) (interface{}, error) {
			return ti.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errTokenExpired
		}
		return "", errTokenInvalid
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid || claims.AccountID == "" {
		return "", errTokenInvalid
	}
	return claims.AccountID, nil
}

// authError maps a verification failure onto its response.
func authError(err error) *apiError {
	if errors.Is(err, errTokenExpired) {
		return newAPIError(http.StatusUnauthorized, CodeAccessTokenExpired, "Access token has expired. Please login again.")
	}
	return newAPIError(http.StatusUnauthorized, CodeAccessTokenInvalid, "Invalid access token. Please login again.")
}
