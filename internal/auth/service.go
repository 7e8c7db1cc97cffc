package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL   = 15 * time.Minute
	recoveryTokenTTL = 5 * time.Minute
)

var (
	ErrRecoveryDisabled = errors.New("recovery sign-in disabled")
	ErrInvalidRecovery  = errors.New("invalid recovery credentials")
	ErrTokenInvalid     = errors.New("token invalid")
)

// Service verifies viewer tokens issued by the identity provider and, on
// debug builds, re-issues them from recovery credentials.
type Service struct {
	secret       []byte
	recoveryHash []byte
}

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

var (
	parseWithClaimsFn = jwt.ParseWithClaims
	compareHashFn     = bcrypt.CompareHashAndPassword
)

// NewService builds the verifier. An empty recoveryHash disables recovery.
func NewService(secret, recoveryHash string) *Service {
	svc := &Service{secret: []byte(secret)}
	if recoveryHash != "" {
		svc.recoveryHash = []byte(recoveryHash)
	}
	return svc
}

func (s *Service) RecoveryEnabled() bool {
	return len(s.recoveryHash) > 0
}

func (s *Service) IssueToken(userID string) (string, error) {
	return s.signToken(userID, accessTokenTTL)
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// Recover checks the recovery secret and mints a short-lived token for
// userID.
func (s *Service) Recover(userID, secret string) (string, error) {
	if !s.RecoveryEnabled() {
		return "", ErrRecoveryDisabled
	}
	if userID == "" || secret == "" {
		return "", ErrInvalidRecovery
	}
	if err := compareHashFn(s.recoveryHash, []byte(secret)); err != nil {
		return "", ErrInvalidRecovery
	}
	return s.signToken(userID, recoveryTokenTTL)
}

func (s *Service) signToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
