package service

import (
	"context"
	"sync"

	"tgforward/internal/errors"
	"tgforward/internal/models"
	"tgforward/internal/privacy"
	"tgforward/pkg/telegram"

	"github.com/sirupsen/logrus"
)

// ClientFactory builds a provider client for a serialized session string.
// An empty session string yields a fresh, unauthenticated client.
type ClientFactory func(sessionString string) telegram.Client

// ConnectionManager owns the single live authenticated client handle.
// Replacing the handle is a single assignment under the lock: in-flight
// operations on the old handle finish, new callers get the latest one.
type ConnectionManager struct {
	factory ClientFactory
	store   SessionStore
	logger  *logrus.Logger
	mu      sync.RWMutex
	client  telegram.Client
}

func NewConnectionManager(factory ClientFactory, store SessionStore, logger *logrus.Logger) *ConnectionManager {
	return &ConnectionManager{
		factory: factory,
		store:   store,
		logger:  logger,
	}
}

// ConnectWithSession opens a client for the given session and checks
// provider-side authorization. An invalid or expired session returns false,
// not an error; only transport failures are errors.
func (cm *ConnectionManager) ConnectWithSession(ctx context.Context, session *models.Session) (bool, error) {
	client := cm.factory(session.SessionString)

	if err := client.Connect(ctx); err != nil {
		return false, err
	}

	authorized, err := client.IsAuthorized(ctx)
	if err != nil {
		_ = client.Close()
		return false, err
	}

	if !authorized {
		cm.logger.WithFields(logrus.Fields{
			"phone": privacy.MaskPhoneNumber(session.PhoneNumber),
		}).Info("Stored session no longer authorized")
		_ = client.Close()
		return false, nil
	}

	cm.Install(client)
	return true, nil
}

// EnsureAuthorized guarantees a live authorized client, restoring the stored
// session if needed. Fails with NOT_AUTHENTICATED when nothing works.
func (cm *ConnectionManager) EnsureAuthorized(ctx context.Context) error {
	cm.mu.RLock()
	client := cm.client
	cm.mu.RUnlock()

	if client != nil {
		return nil
	}

	session, err := cm.store.Load(ctx)
	if err != nil || session == nil {
		return errors.NewNotAuthenticatedError()
	}

	authorized, err := cm.ConnectWithSession(ctx, session)
	if err != nil {
		cm.logger.WithError(err).Warn("Failed to restore stored session")
		return errors.NewNotAuthenticatedError()
	}
	if !authorized {
		return errors.NewNotAuthenticatedError()
	}

	cm.logger.Info("Restored session from store")
	return nil
}

// ActiveClient returns the current live handle.
func (cm *ConnectionManager) ActiveClient() (telegram.Client, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.client == nil {
		return nil, errors.NewNotAuthenticatedError()
	}
	return cm.client, nil
}

// Install atomically replaces the live handle with a freshly authorized one.
func (cm *ConnectionManager) Install(client telegram.Client) {
	cm.mu.Lock()
	old := cm.client
	cm.client = client
	cm.mu.Unlock()

	if old != nil && old != client {
		// Old handle keeps serving in-flight calls; closing is best-effort.
		_ = old.Close()
	}
}

// Clear drops the live handle, typically after the provider revoked it.
func (cm *ConnectionManager) Clear() {
	cm.mu.Lock()
	old := cm.client
	cm.client = nil
	cm.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// IsAuthenticated reports whether a live authorized client exists or the
// stored session can produce one.
func (cm *ConnectionManager) IsAuthenticated(ctx context.Context) bool {
	return cm.EnsureAuthorized(ctx) == nil
}
