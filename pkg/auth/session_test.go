package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/config"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
)

func newManager(t *testing.T, secret string) *SessionManager {
	t.Helper()
	m, err := NewSessionManager(config.SessionConfig{Secret: secret, TTL: time.Hour, Issuer: "oralscreen"})
	require.NoError(t, err)
	return m
}

func TestSession_RoundTrip(t *testing.T) {
	m := newManager(t, "test-secret")
	p := domain.Principal{Username: "alice", Role: domain.RoleDoctor, DisplayName: "Dr. Alice"}

	token, expiresAt, err := m.Issue(p)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, p, claims.Principal())
}

func TestSession_RejectsTampering(t *testing.T) {
	token, _, err := newManager(t, "secret-a").Issue(domain.Principal{Username: "bob", Role: domain.RolePatient})
	require.NoError(t, err)

	_, err = newManager(t, "secret-b").Validate(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = newManager(t, "secret-a").Validate(token + "x")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSession_Expired(t *testing.T) {
	m := newManager(t, "s")
	issuedAt := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issuedAt }

	token, _, err := m.Issue(domain.Principal{Username: "bob", Role: domain.RolePatient})
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestSession_RequiresSecretAndIdentity(t *testing.T) {
	_, err := NewSessionManager(config.SessionConfig{})
	assert.Error(t, err)

	m := newManager(t, "s")
	_, _, err = m.Issue(domain.Principal{})
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, _, err = m.Issue(domain.Principal{Username: "x", Role: "admin"})
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
