package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wrale/adsign/internal/adsignd/config"
)

// Service validates admin identity for the HTTP layer
type Service interface {
	// IssueToken signs a token for adminID
	IssueToken(ctx context.Context, adminID string) (string, time.Time, error)

	// ValidateToken verifies a token and returns the admin id it names
	ValidateToken(ctx context.Context, token string) (string, error)
}

// JWTService signs HS256 admin tokens
type JWTService struct {
	signingKey []byte
	issuer     string
	expiry     time.Duration
	now        func() time.Time
}

var _ Service = (*JWTService)(nil)

// NewJWTService creates a token service from configuration
func NewJWTService(cfg config.AuthConfig) *JWTService {
	return &JWTService{
		signingKey: []byte(cfg.TokenSigningKey),
		issuer:     cfg.Issuer,
		expiry:     cfg.TokenExpiry,
		now:        time.Now,
	}
}

// IssueToken signs a token for adminID
func (s *JWTService) IssueToken(ctx context.Context, adminID string) (string, time.Time, error) {
	if adminID == "" {
		return "", time.Time{}, fmt.Errorf("admin id is required")
	}

	now := s.now()
	expiresAt := now.Add(s.expiry)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   adminID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        tokenID(),
		},
		Role: RoleAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing admin token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken verifies signature, issuer and expiry
func (s *JWTService) ValidateToken(ctx context.Context, token string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims.Subject, nil
}

func tokenID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}
