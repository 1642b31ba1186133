package service

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "tgforward/internal/errors"
	"tgforward/internal/models"
	"tgforward/pkg/telegram"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectWithSession_Authorized(t *testing.T) {
	client := &fakeClient{authorized: true}
	cm := NewConnectionManager(func(string) telegram.Client { return client }, &fakeSessionStore{}, testLogger())

	ok, err := cm.ConnectWithSession(context.Background(), &models.Session{
		SessionString: "session",
		PhoneNumber:   "+12025551234",
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	active, err := cm.ActiveClient()
	require.NoError(t, err)
	assert.Equal(t, client, active)
}

func TestConnectWithSession_Unauthorized(t *testing.T) {
	client := &fakeClient{authorized: false}
	cm := NewConnectionManager(func(string) telegram.Client { return client }, &fakeSessionStore{}, testLogger())

	ok, err := cm.ConnectWithSession(context.Background(), &models.Session{SessionString: "stale"})
	require.NoError(t, err)
	assert.False(t, ok)

	// The rejected client is closed and nothing is installed.
	assert.Equal(t, 1, client.closeCount())
	_, err = cm.ActiveClient()
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotAuthenticated))
}

func TestConnectWithSession_TransportError(t *testing.T) {
	client := &fakeClient{connectErr: errors.New("connection refused")}
	cm := NewConnectionManager(func(string) telegram.Client { return client }, &fakeSessionStore{}, testLogger())

	ok, err := cm.ConnectWithSession(context.Background(), &models.Session{SessionString: "s"})
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestEnsureAuthorized_RestoresFromStore(t *testing.T) {
	client := &fakeClient{authorized: true}
	store := &fakeSessionStore{session: &models.Session{SessionString: "stored", PhoneNumber: "+12025551234"}}
	cm := NewConnectionManager(func(string) telegram.Client { return client }, store, testLogger())

	require.NoError(t, cm.EnsureAuthorized(context.Background()))

	active, err := cm.ActiveClient()
	require.NoError(t, err)
	assert.Equal(t, client, active)
}

func TestEnsureAuthorized_NoSession(t *testing.T) {
	cm := NewConnectionManager(func(string) telegram.Client { return &fakeClient{} }, &fakeSessionStore{}, testLogger())

	err := cm.EnsureAuthorized(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotAuthenticated))
}

func TestEnsureAuthorized_ReusesLiveClient(t *testing.T) {
	client := &fakeClient{authorized: true}
	cm := NewConnectionManager(func(string) telegram.Client { return client }, &fakeSessionStore{}, testLogger())
	cm.Install(client)

	require.NoError(t, cm.EnsureAuthorized(context.Background()))
	assert.Equal(t, 0, client.connectCnt)
}

func TestInstall_SupersedesPreviousHandle(t *testing.T) {
	old := &fakeClient{authorized: true}
	replacement := &fakeClient{authorized: true}
	cm := NewConnectionManager(func(string) telegram.Client { return old }, &fakeSessionStore{}, testLogger())

	cm.Install(old)
	cm.Install(replacement)

	active, err := cm.ActiveClient()
	require.NoError(t, err)
	assert.Equal(t, replacement, active)
	assert.Equal(t, 1, old.closeCount())
	assert.Equal(t, 0, replacement.closeCount())
}

func TestClear_DropsHandle(t *testing.T) {
	client := &fakeClient{authorized: true}
	cm := NewConnectionManager(func(string) telegram.Client { return client }, &fakeSessionStore{}, testLogger())

	cm.Install(client)
	cm.Clear()

	_, err := cm.ActiveClient()
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotAuthenticated))
	assert.Equal(t, 1, client.closeCount())
}

func TestIsAuthenticated(t *testing.T) {
	client := &fakeClient{authorized: true}
	store := &fakeSessionStore{}
	cm := NewConnectionManager(func(string) telegram.Client { return client }, store, testLogger())

	assert.False(t, cm.IsAuthenticated(context.Background()))

	store.session = &models.Session{SessionString: "stored"}
	assert.True(t, cm.IsAuthenticated(context.Background()))
}
