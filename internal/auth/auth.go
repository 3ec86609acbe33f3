package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"route-tracker/internal/ports"
)

var (
	ErrInvalidCredentials = errors.New("invalid user or access key")
	ErrInvalidToken       = errors.New("invalid token")
)

type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Authenticator checks driver credentials and issues session tokens.
type Authenticator struct {
	repo   ports.CredentialRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthenticator(repo ports.CredentialRepository, secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{repo: repo, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of issued tokens.
func (a *Authenticator) TTL() time.Duration { return a.ttl }

// Verify reports nil when accessKey matches the stored key for userID.
// Unknown users and wrong keys both return ErrInvalidCredentials.
func (a *Authenticator) Verify(ctx context.Context, userID, accessKey string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" || accessKey == "" {
		return ErrInvalidCredentials
	}

	cred, err := a.repo.FindDriver(ctx, userID)
	if errors.Is(err, ports.ErrDriverNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("verify credentials: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(cred.AccessKeyHash, []byte(accessKey)); err != nil {
		return ErrInvalidCredentials
	}

	return nil
}

func (a *Authenticator) MakeToken(userID, sessionID string) (string, error) {
	now := a.now()
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) ParseToken(tok string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (a *Authenticator) ParseTokenFromRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return nil, fmt.Errorf("missing bearer token: %w", ErrInvalidToken)
	}

	return a.ParseToken(strings.TrimSpace(tok))
}

type claimsKey struct{}

// WithClaims returns a context carrying the authenticated session claims.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the claims stored by WithClaims, or nil.
func ClaimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}
