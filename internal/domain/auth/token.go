package auth

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidBearer is returned when the Authorization header does not use
	// the Bearer scheme.
	ErrInvalidBearer = errors.New("invalid bearer key")
	// ErrMissingToken is returned when no Authorization header was sent.
	ErrMissingToken = errors.New("authorization header is required")
	// ErrInvalidToken covers bad signatures, malformed tokens and claims.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for tokens past their exp claim.
	ErrTokenExpired = errors.New("token expired")
)

// TokenKind selects the signing secret and lifetime.
type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

func (k TokenKind) String() string {
	if k == RefreshToken {
		return "refresh"
	}
	return "access"
}

// Claims is the JWT payload.
type Claims struct {
	UserID   int64 `json:"userId"`
	UserType Role  `json:"userType"`
	jwt.RegisteredClaims
}

// Principal returns the caller identity carried by the claims.
func (c *Claims) Principal() Principal {
	return Principal{ID: c.UserID, Role: c.UserType}
}

// RevokedBy reports whether a credentials change at t invalidates the token.
// The iat claim has whole-second resolution, so a token issued within the
// same second as the change counts as revoked.
func (c *Claims) RevokedBy(t time.Time) bool {
	if c.IssuedAt == nil {
		return true
	}
	return c.IssuedAt.Time.Before(t.Truncate(time.Second).Add(time.Second))
}

// TokenPair is returned on register and login.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenConfig configures token signing.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Tokens issues and verifies HS256 tokens.
type Tokens struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokens validates cfg and returns a token issuer.
func NewTokens(cfg TokenConfig) (*Tokens, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Tokens{cfg: cfg, now: time.Now}, nil
}

func (t *Tokens) secret(kind TokenKind) []byte {
	if kind == RefreshToken {
		return t.cfg.RefreshSecret
	}
	return t.cfg.AccessSecret
}

func (t *Tokens) ttl(kind TokenKind) time.Duration {
	if kind == RefreshToken {
		return t.cfg.RefreshTTL
	}
	return t.cfg.AccessTTL
}

// Issue signs a token of the given kind for the principal.
func (t *Tokens) Issue(kind TokenKind, p Principal) (string, error) {
	now := t.now()
	claims := Claims{
		UserID:   p.ID,
		UserType: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl(kind))),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret(kind))
	if err != nil {
		return "", errors.Wrapf(err, "sign %s token", kind)
	}
	return signed, nil
}

// IssuePair signs an access and a refresh token.
func (t *Tokens) IssuePair(p Principal) (TokenPair, error) {
	access, err := t.Issue(AccessToken, p)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.Issue(RefreshToken, p)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Parse verifies raw against the secret for kind and returns its claims.
func (t *Tokens) Parse(kind TokenKind, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return t.secret(kind), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if claims.UserID <= 0 || !claims.UserType.Valid() {
		return nil, errors.Wrap(ErrInvalidToken, "malformed claims")
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidBearer
	}
	return strings.TrimSpace(token), nil
}
