// Package auth issues and validates operator tokens.
//
// Operators are not stored anywhere; a token signed with the server secret is
// the whole identity. Tokens are minted out of band with `residualsctl token`
// and carry the operator ID that audit entries record as the actor.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// Issuer and Audience are stamped on every operator token and required
	// on validation, so tokens signed with a shared secret for another
	// service are refused.
	Issuer   = "residuals"
	Audience = "residuals-operators"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
	ErrNoOperator   = errors.New("operator ID is required")
)

// Claims identifies the operator behind a request.
type Claims struct {
	OperatorID string `json:"operator_id"`
	Email      string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager signs operator tokens with HS256 and verifies them.
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
	now           func() time.Time
}

// NewJWTManager creates a manager whose tokens expire after tokenDuration.
func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		now:           time.Now,
	}
}

// Generate mints a token for operatorID. Each token gets a fresh ID so log
// lines can tell two sessions of one operator apart.
func (m *JWTManager) Generate(operatorID, email string) (string, error) {
	if operatorID == "" {
		return "", ErrNoOperator
	}
	issued := m.now()
	claims := &Claims{
		OperatorID: operatorID,
		Email:      email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			Subject:   operatorID,
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(m.tokenDuration)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign operator token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature, issuer, audience and lifetime and returns the
// operator claims. Any failure wraps ErrInvalidToken.
func (m *JWTManager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, m.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.OperatorID == "" || claims.OperatorID != claims.Subject {
		return nil, fmt.Errorf("%w: operator claim does not match subject", ErrInvalidToken)
	}
	return claims, nil
}

func (m *JWTManager) key(*jwt.Token) (any, error) {
	return m.secretKey, nil
}
