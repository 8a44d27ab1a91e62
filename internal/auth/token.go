// Package auth resolves the calling user from an HS256 session token.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// TokenVerifier turns a session token into the id of the user it was issued to.
type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}

// JWT signs and verifies HS256 session tokens carrying the user id in the "sub" claim.
type JWT struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWT creates a JWT verifier. When issuer is set, tokens must carry a matching "iss" claim.
func NewJWT(secret []byte, issuer string) (*JWT, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("auth secret cannot be empty")
	}

	return &JWT{secret: secret, issuer: issuer, now: time.Now}, nil
}

func (j *JWT) Verify(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}, opts...)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", ErrExpiredToken
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return "", ErrInvalidToken
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, nil
}

// IssuedToken describes a freshly signed session token.
type IssuedToken struct {
	Token     string     `json:"token"               yaml:"token"`
	Subject   string     `json:"subject"             yaml:"subject"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" yaml:"expires_at,omitempty"`
}

// Issue signs a token for userID. A zero ttl issues a token without expiry.
func (j *JWT) Issue(userID string, ttl time.Duration) (string, error) {
	issued, err := j.IssueToken(userID, ttl)
	if err != nil {
		return "", err
	}
	return issued.Token, nil
}

// IssueToken is Issue, also reporting the subject and expiry of the token.
func (j *JWT) IssueToken(userID string, ttl time.Duration) (IssuedToken, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return IssuedToken{}, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	now := j.now()
	claims := jwt.RegisteredClaims{
		Subject:  userID,
		Issuer:   j.issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	issued := IssuedToken{Subject: userID}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
		expires := claims.ExpiresAt.Time
		issued.ExpiresAt = &expires
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}
	issued.Token = token

	return issued, nil
}

// GenerateSecret returns a random hex-encoded signing secret of n bytes.
func GenerateSecret(n int) (string, error) {
	if n < 16 {
		return "", fmt.Errorf("secret must be at least 16 bytes, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
