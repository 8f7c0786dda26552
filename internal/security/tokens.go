package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSigning is returned when a token cannot be signed because the codec is misconfigured.
	ErrSigning = errors.New("token signing: missing secret")
)

// TokenKind selects which secret and claim set a token is checked against.
type TokenKind int

const (
	KindAccess TokenKind = iota
	KindRefresh
)

func (k TokenKind) String() string {
	if k == KindRefresh {
		return "refresh"
	}
	return "access"
}

// Claims holds the JWT claims carried by both token kinds. SessionID is only set on refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid,omitempty"`
}

// UserID returns the subject of the token.
func (c *Claims) UserID() string { return c.Subject }

// RefreshMeta describes an issued refresh token without carrying the token itself.
type RefreshMeta struct {
	Fingerprint string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// TokenCodec signs and verifies access and refresh JWTs (HS256) with independent secrets and TTLs.
// It holds no mutable state and is safe for concurrent use.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// CodecOption configures a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the time source used for iat/exp and for expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) { c.now = now }
}

// NewTokenCodec returns a TokenCodec. Both secrets are required.
func NewTokenCodec(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration, opts ...CodecOption) (*TokenCodec, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 {
		return nil, ErrSigning
	}
	c := &TokenCodec{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// IssueAccess issues a short-lived access JWT for userID.
func (c *TokenCodec) IssueAccess(userID string) (string, error) {
	now := c.now().UTC()
	claims, err := c.baseClaims(userID, now, c.accessTTL)
	if err != nil {
		return "", err
	}
	return c.sign(claims, c.accessSecret)
}

// IssueRefresh issues a refresh JWT bound to sessionID and returns it with its fingerprint and validity window.
// The random jti keeps two tokens issued within the same second distinct.
func (c *TokenCodec) IssueRefresh(userID, sessionID string) (string, RefreshMeta, error) {
	now := c.now().UTC()
	claims, err := c.baseClaims(userID, now, c.refreshTTL)
	if err != nil {
		return "", RefreshMeta{}, err
	}
	claims.SessionID = sessionID
	token, err := c.sign(claims, c.refreshSecret)
	if err != nil {
		return "", RefreshMeta{}, err
	}
	return token, RefreshMeta{
		Fingerprint: Fingerprint(token),
		IssuedAt:    claims.IssuedAt.Time,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Verify checks the signature and expiry of token against the secret of kind.
// It never returns an error: any failure yields ok=false.
func (c *TokenCodec) Verify(token string, kind TokenKind) (*Claims, bool) {
	secret := c.accessSecret
	if kind == KindRefresh {
		secret = c.refreshSecret
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return nil, false
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, false
	}
	if kind == KindRefresh && claims.SessionID == "" {
		return nil, false
	}
	if kind == KindAccess && claims.SessionID != "" {
		return nil, false
	}
	return claims, true
}

// Decode parses token without verifying it. The result must never be used to establish identity.
func (c *TokenCodec) Decode(token string) *Claims {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

func (c *TokenCodec) baseClaims(userID string, now time.Time, ttl time.Duration) (*Claims, error) {
	jti, err := generateJTI()
	if err != nil {
		return nil, err
	}
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}, nil
}

func (c *TokenCodec) sign(claims *Claims, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrSigning
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
