package service

import (
	"context"
	"io"
	"sync"

	"tgforward/internal/models"
	"tgforward/pkg/telegram/types"

	"github.com/sirupsen/logrus"
)

// fakeClient is a scriptable provider client. Behaviour is injected through
// function fields; call counts are tracked under a mutex so concurrent tests
// stay race-free.
type fakeClient struct {
	mu sync.Mutex

	connectErr    error
	authorized    bool
	authorizedErr error

	messages    []types.Message
	messagesErr error

	forwardErr  error
	forwardFunc func(targetChannel, sourceChannel string, messageID int64) error

	loginFunc  func(ctx context.Context, phone string, code types.CodeProvider, password types.PasswordProvider) error
	exportStr  string
	exportErr  error
	connectCnt int
	forwardCnt int
	fetchCnt   int
	closeCnt   int
	forwarded  []int64
}

func (f *fakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connectCnt++
	f.mu.Unlock()
	return f.connectErr
}

func (f *fakeClient) IsAuthorized(ctx context.Context) (bool, error) {
	return f.authorized, f.authorizedErr
}

func (f *fakeClient) GetMessages(ctx context.Context, channel string, opts types.FetchOptions) ([]types.Message, error) {
	f.mu.Lock()
	f.fetchCnt++
	f.mu.Unlock()
	if f.messagesErr != nil {
		return nil, f.messagesErr
	}
	return f.messages, nil
}

func (f *fakeClient) ForwardMessage(ctx context.Context, targetChannel, sourceChannel string, messageID int64) error {
	f.mu.Lock()
	f.forwardCnt++
	f.mu.Unlock()

	if f.forwardFunc != nil {
		if err := f.forwardFunc(targetChannel, sourceChannel, messageID); err != nil {
			return err
		}
	} else if f.forwardErr != nil {
		return f.forwardErr
	}

	f.mu.Lock()
	f.forwarded = append(f.forwarded, messageID)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) StartInteractiveLogin(ctx context.Context, phoneNumber string, code types.CodeProvider, password types.PasswordProvider) error {
	if f.loginFunc != nil {
		return f.loginFunc(ctx, phoneNumber, code, password)
	}
	_, err := code(ctx)
	return err
}

func (f *fakeClient) ExportSession(ctx context.Context) (string, error) {
	return f.exportStr, f.exportErr
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	f.closeCnt++
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) forwardedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(f.forwarded))
	copy(out, f.forwarded)
	return out
}

func (f *fakeClient) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCnt
}

// fakeSessionStore is an in-memory SessionStore.
type fakeSessionStore struct {
	mu      sync.Mutex
	session *models.Session
	saveErr error
	loadErr error
	saved   int
}

func (s *fakeSessionStore) Save(ctx context.Context, sessionString, phoneNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.session = &models.Session{SessionString: sessionString, PhoneNumber: phoneNumber}
	s.saved++
	return nil
}

func (s *fakeSessionStore) Load(ctx context.Context) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.session, nil
}

func (s *fakeSessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}

func (s *fakeSessionStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
