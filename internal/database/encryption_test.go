package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tgforward/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptor_DisabledPassesThrough(t *testing.T) {
	t.Setenv("TGFORWARD_ENCRYPTION_SECRET", "")

	e, err := NewEncryptor()
	require.NoError(t, err)

	out, err := e.EncryptIfEnabled("plain-session")
	require.NoError(t, err)
	assert.Equal(t, "plain-session", out)

	back, err := e.DecryptIfEnabled(out)
	require.NoError(t, err)
	assert.Equal(t, "plain-session", back)
}

func TestEncryptor_RoundTrip(t *testing.T) {
	t.Setenv("TGFORWARD_ENCRYPTION_SECRET", strings.Repeat("s", 32))

	e, err := NewEncryptor()
	require.NoError(t, err)

	encrypted, err := e.EncryptIfEnabled("1BJWap1sBu4cL3Tz9")
	require.NoError(t, err)
	assert.NotEqual(t, "1BJWap1sBu4cL3Tz9", encrypted)
	assert.NotContains(t, encrypted, "1BJWap1sBu4cL3Tz9")

	decrypted, err := e.DecryptIfEnabled(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "1BJWap1sBu4cL3Tz9", decrypted)
}

func TestEncryptor_RandomNonce(t *testing.T) {
	t.Setenv("TGFORWARD_ENCRYPTION_SECRET", strings.Repeat("s", 32))

	e, err := NewEncryptor()
	require.NoError(t, err)

	first, err := e.EncryptIfEnabled("same-plaintext")
	require.NoError(t, err)
	second, err := e.EncryptIfEnabled("same-plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestEncryptor_ShortSecretRejected(t *testing.T) {
	t.Setenv("TGFORWARD_ENCRYPTION_SECRET", "too-short")

	_, err := NewEncryptor()
	assert.Error(t, err)
}

func TestEncryptor_TamperedCiphertext(t *testing.T) {
	t.Setenv("TGFORWARD_ENCRYPTION_SECRET", strings.Repeat("s", 32))

	e, err := NewEncryptor()
	require.NoError(t, err)

	_, err = e.DecryptIfEnabled("not-base64!!!")
	assert.Error(t, err)

	_, err = e.DecryptIfEnabled("c2hvcnQ=")
	assert.Error(t, err)
}

func TestDatabase_EncryptsSessionAtRest(t *testing.T) {
	t.Setenv("TGFORWARD_ENCRYPTION_SECRET", strings.Repeat("s", 32))

	db, err := New(filepath.Join(t.TempDir(), "enc.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.SaveSession(ctx, &models.Session{
		SessionString: "super-secret-session",
		PhoneNumber:   "+12025551234",
		CreatedAt:     time.Now(),
	}))

	var storedSession, storedPhone string
	row := db.db.QueryRowContext(ctx, `SELECT session_string, phone_number FROM telegram_session WHERE slot = 1`)
	require.NoError(t, row.Scan(&storedSession, &storedPhone))
	assert.NotContains(t, storedSession, "super-secret-session")
	assert.NotContains(t, storedPhone, "2025551234")

	session, err := db.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "super-secret-session", session.SessionString)
	assert.Equal(t, "+12025551234", session.PhoneNumber)
}
