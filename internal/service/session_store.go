package service

import (
	"context"
	"time"

	"tgforward/internal/database"
	"tgforward/internal/models"
	"tgforward/internal/privacy"

	"github.com/sirupsen/logrus"
)

// SessionStore persists the single durable provider session.
type SessionStore interface {
	Save(ctx context.Context, sessionString, phoneNumber string) error
	Load(ctx context.Context) (*models.Session, error)
	Clear(ctx context.Context) error
}

// DurableSessionStore keeps the session in the sqlite slot and enforces the
// persistence TTL on load. Storage failures degrade to "no session available"
// so a broken disk never blocks startup.
type DurableSessionStore struct {
	db     *database.Database
	ttl    time.Duration
	logger *logrus.Logger
}

func NewDurableSessionStore(db *database.Database, ttl time.Duration, logger *logrus.Logger) *DurableSessionStore {
	return &DurableSessionStore{
		db:     db,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *DurableSessionStore) Save(ctx context.Context, sessionString, phoneNumber string) error {
	session := &models.Session{
		SessionString: sessionString,
		PhoneNumber:   phoneNumber,
		CreatedAt:     time.Now(),
	}

	if err := s.db.SaveSession(ctx, session); err != nil {
		s.logger.WithError(err).Error("Failed to persist session")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"phone": privacy.MaskPhoneNumber(phoneNumber),
	}).Info("Session persisted")

	return nil
}

// Load returns the stored session, or nil when there is none, the record has
// expired, or storage is unavailable. An expired record is discarded.
func (s *DurableSessionStore) Load(ctx context.Context) (*models.Session, error) {
	session, err := s.db.GetSession(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load session, treating as no session available")
		return nil, nil
	}
	if session == nil {
		return nil, nil
	}

	if session.Age() >= s.ttl {
		s.logger.WithFields(logrus.Fields{
			"age_hours": session.Age().Hours(),
			"ttl_hours": s.ttl.Hours(),
		}).Info("Stored session expired, discarding")
		if err := s.db.DeleteSession(ctx); err != nil {
			s.logger.WithError(err).Warn("Failed to discard expired session")
		}
		return nil, nil
	}

	return session, nil
}

func (s *DurableSessionStore) Clear(ctx context.Context) error {
	if err := s.db.DeleteSession(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to clear session")
		return err
	}
	return nil
}
