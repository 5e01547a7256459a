// Package auth resolves request credentials into principals and answers
// organisation-level authorization questions.
//
// Two principal kinds exist. A UserPrincipal comes from a signed bearer token
// issued at login. A DevicePrincipal comes from a measurement point's own
// device token and is valid for that measurement point only.
package auth

import (
	"errors"
	"fmt"
	"time"

	"sensorhub/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrTokenInvalid is returned for malformed, expired or badly signed tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenShape is returned for correctly signed tokens whose payload is
	// not a usable user identity.
	ErrTokenShape = errors.New("token payload is not a user identity")
)

// Claims is the payload of a user access token. Policies maps organisation
// id (hex) to the user's policy at issue time and is informational; admin
// checks always consult the store.
type Claims struct {
	jwt.RegisteredClaims
	Role     model.Role              `json:"role"`
	Policies map[string]model.Policy `json:"policies,omitempty"`
}

// NewAccessToken signs an HS256 token for user.
func NewAccessToken(user *model.User, policies map[string]model.Policy, secret, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role:     user.Role,
		Policies: policies,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies signature, expiry and issuer (when set) and returns the
// claims.
func ParseToken(tokenString, secret, issuer string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" || claims.Role == "" {
		return nil, fmt.Errorf("%w: missing subject or role", ErrTokenShape)
	}
	return claims, nil
}

// principalFromClaims converts verified claims to a UserPrincipal.
func principalFromClaims(claims *Claims) (*UserPrincipal, error) {
	if claims.Role == model.RolePublic {
		return nil, fmt.Errorf("%w: public role", ErrTokenShape)
	}
	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrTokenShape)
	}
	return &UserPrincipal{ID: id, Role: claims.Role, Policies: claims.Policies}, nil
}
