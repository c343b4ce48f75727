package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokens(t *testing.T, now time.Time) *Tokens {
	t.Helper()
	tokens, err := NewTokens(TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		Issuer:        "buzzer-test",
	})
	require.NoError(t, err)
	tokens.now = func() time.Time { return now }
	return tokens
}

func TestNewTokens_Validation(t *testing.T) {
	_, err := NewTokens(TokenConfig{AccessSecret: []byte("a")})
	require.Error(t, err)

	_, err = NewTokens(TokenConfig{AccessSecret: []byte("same"), RefreshSecret: []byte("same")})
	require.Error(t, err)

	tokens, err := NewTokens(TokenConfig{AccessSecret: []byte("a"), RefreshSecret: []byte("b")})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, tokens.cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, tokens.cfg.RefreshTTL)
}

func TestTokens_IssueAndParse(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	tokens := newTestTokens(t, now)
	p := Principal{ID: 42, Role: RoleCustomer}

	pair, err := tokens.IssuePair(p)
	require.NoError(t, err)

	claims, err := tokens.Parse(AccessToken, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, p, claims.Principal())
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, now.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())

	refresh, err := tokens.Parse(RefreshToken, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, now.Add(7*24*time.Hour).Unix(), refresh.ExpiresAt.Unix())
	assert.NotEqual(t, claims.ID, refresh.ID)
}

func TestTokens_Parse_Errors(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	tokens := newTestTokens(t, now)
	p := Principal{ID: 7, Role: RoleCafe}

	access, err := tokens.Issue(AccessToken, p)
	require.NoError(t, err)

	t.Run("wrong kind uses the other secret", func(t *testing.T) {
		_, err := tokens.Parse(RefreshToken, access)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Parse(AccessToken, "not-a-jwt")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		tokens.now = func() time.Time { return now.Add(2 * time.Hour) }
		defer func() { tokens.now = func() time.Time { return now } }()

		_, err := tokens.Parse(AccessToken, access)
		require.ErrorIs(t, err, ErrTokenExpired)
	})
}

func TestClaims_RevokedBy(t *testing.T) {
	issued := time.Date(2025, 6, 15, 12, 0, 0, 300_000_000, time.UTC)
	tokens := newTestTokens(t, issued)

	raw, err := tokens.Issue(AccessToken, Principal{ID: 1, Role: RoleAdmin})
	require.NoError(t, err)
	claims, err := tokens.Parse(AccessToken, raw)
	require.NoError(t, err)

	tests := []struct {
		name    string
		changed time.Time
		want    bool
	}{
		{name: "later second", changed: issued.Add(time.Second), want: true},
		{name: "same second after issue", changed: issued.Add(500 * time.Millisecond), want: true},
		{name: "same second before issue", changed: issued.Add(-200 * time.Millisecond), want: true},
		{name: "previous second", changed: issued.Add(-time.Second), want: false},
		{name: "long before", changed: issued.Add(-time.Minute), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, claims.RevokedBy(tt.changed))
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "valid", header: "Bearer abc.def", want: "abc.def"},
		{name: "case insensitive scheme", header: "bearer abc", want: "abc"},
		{name: "empty", header: "", wantErr: ErrMissingToken},
		{name: "no scheme", header: "abc.def", wantErr: ErrInvalidBearer},
		{name: "basic scheme", header: "Basic dXNlcg==", wantErr: ErrInvalidBearer},
		{name: "scheme only", header: "Bearer ", wantErr: ErrInvalidBearer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BearerToken(tt.header)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", 4)
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "s3cret-pass"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestRole(t *testing.T) {
	r, err := ParseRole("restaurant")
	require.NoError(t, err)
	assert.True(t, r.IsVendor())
	assert.Equal(t, "restaurants", r.Collection())

	_, err = ParseRole("driver")
	require.ErrorIs(t, err, ErrUnknownRole)

	p := Principal{ID: 3, Role: RoleCustomer}
	assert.Equal(t, "customers/3/", p.Prefix())
	assert.True(t, p.Is(RoleAdmin, RoleCustomer))
	assert.False(t, p.Is(RoleCafe))
}
