package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueVerify(t *testing.T) {
	m, err := NewManager("s3cret", time.Hour)
	require.NoError(t, err)
	id := uuid.New()

	token, err := m.Issue(id)
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.SessionID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestVerifyExpired(t *testing.T) {
	m, err := NewManager("s3cret", time.Minute)
	require.NoError(t, err)
	issued := time.Now()
	m.now = func() time.Time { return issued }

	token, err := m.Issue(uuid.New())
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyWrongSecret(t *testing.T) {
	a, _ := NewManager("one", time.Hour)
	b, _ := NewManager("two", time.Hour)

	token, err := a.Issue(uuid.New())
	require.NoError(t, err)
	_, err = b.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsNoneAlg(t *testing.T) {
	m, _ := NewManager("s3cret", time.Hour)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsBadSubject(t *testing.T) {
	m, _ := NewManager("s3cret", time.Hour)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "not-a-uuid",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager("", time.Hour)
	assert.Error(t, err)
	_, err = NewManager("x", 0)
	assert.Error(t, err)
}
