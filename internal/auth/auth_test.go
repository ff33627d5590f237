package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/pkg/errorbank"
)

func testConfig() config.Config {
	return config.Config{Auth: config.Auth{
		SecretKey:   strings.Repeat("s", 40),
		Algorithm:   "HS256",
		TokenTTL:    time.Hour,
		FreshWindow: 10 * time.Minute,
		Issuer:      "servio",
		Audience:    "servio-staff",
	}}
}

func TestIssueAndParse(t *testing.T) {
	m, err := NewTokenManager(testConfig())
	require.NoError(t, err)

	user := &entity.User{ID: 7, Username: "anna", Role: entity.RoleWaiter}
	tok, err := m.Issue(user, true)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)

	claims, err := m.Parse(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, entity.Actor{UserID: 7, Role: entity.RoleWaiter}, claims.Actor())
	assert.Equal(t, "anna", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, m.IsFresh(claims))
}

func TestFreshnessExpires(t *testing.T) {
	m, err := NewTokenManager(testConfig())
	require.NoError(t, err)
	issued := time.Now()
	m.now = func() time.Time { return issued }

	tok, err := m.Issue(&entity.User{ID: 1, Username: "a", Role: entity.RoleAdmin}, true)
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(11 * time.Minute) }
	claims, err := m.Parse(tok.AccessToken)
	require.NoError(t, err)
	assert.False(t, m.IsFresh(claims))
}

func TestParseRejectsForeignTokens(t *testing.T) {
	m, err := NewTokenManager(testConfig())
	require.NoError(t, err)

	other := testConfig()
	other.Auth.SecretKey = strings.Repeat("x", 40)
	foreign, err := NewTokenManager(other)
	require.NoError(t, err)

	tok, err := foreign.Issue(&entity.User{ID: 1, Username: "a", Role: entity.RoleAdmin}, false)
	require.NoError(t, err)

	_, err = m.Parse(tok.AccessToken)
	require.Error(t, err)
	assert.True(t, errorbank.Is(err, errorbank.KindUnauthenticated))

	_, err = m.Parse("not-a-token")
	assert.True(t, errorbank.Is(err, errorbank.KindUnauthenticated))
}

func TestParseRejectsExpired(t *testing.T) {
	m, err := NewTokenManager(testConfig())
	require.NoError(t, err)
	issued := time.Now()
	m.now = func() time.Time { return issued }
	tok, err := m.Issue(&entity.User{ID: 1, Username: "a", Role: entity.RoleKitchen}, false)
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = m.Parse(tok.AccessToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")
}

func TestPasswordPolicy(t *testing.T) {
	assert.NoError(t, ValidatePassword("kitchen42", 8))
	assert.ErrorIs(t, ValidatePassword("onlyletters", 8), ErrWeakPassword)
	assert.ErrorIs(t, ValidatePassword("12345678", 8), ErrWeakPassword)
	assert.Error(t, ValidatePassword("ab1", 8))
}

func TestPasswordDigest(t *testing.T) {
	digest, err := HashPassword("kitchen42")
	require.NoError(t, err)
	assert.True(t, CheckPassword(digest, "kitchen42"))
	assert.False(t, CheckPassword(digest, "kitchen43"))
}

func TestPin(t *testing.T) {
	assert.NoError(t, ValidatePin("1234"))
	assert.NoError(t, ValidatePin("123456"))
	assert.ErrorIs(t, ValidatePin("123"), ErrInvalidPin)
	assert.ErrorIs(t, ValidatePin("12a4"), ErrInvalidPin)

	h := NewPinHasher("secret")
	assert.Equal(t, h.Digest("1234"), h.Digest("1234"))
	assert.NotEqual(t, h.Digest("1234"), h.Digest("4321"))
	assert.NotEqual(t, h.Digest("1234"), NewPinHasher("other").Digest("1234"))
}
