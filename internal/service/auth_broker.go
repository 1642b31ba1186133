package service

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"tgforward/internal/errors"
	"tgforward/internal/privacy"
	"tgforward/internal/validation"
	"tgforward/pkg/telegram"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BrokerConfig bounds the lifetime of in-flight login handshakes.
type BrokerConfig struct {
	LoginTTL       time.Duration
	OtpWaitTimeout time.Duration
	SweepInterval  time.Duration
}

// pendingLogin tracks one in-flight interactive login. The channels have
// capacity one and are written with non-blocking sends so each step resolves
// exactly once no matter how many HTTP submissions race.
type pendingLogin struct {
	id          string
	phoneNumber string
	client      telegram.Client
	createdAt   time.Time

	codeCh     chan string
	passwordCh chan string

	passwordOnce   sync.Once
	passwordNeeded chan struct{}

	done     chan struct{}
	loginErr error

	cancel context.CancelFunc
}

// AuthBroker bridges the synchronous HTTP login endpoints and the provider's
// interactive handshake. Each StartLogin runs the handshake in a background
// goroutine whose code and password callbacks block until the matching
// submission arrives over HTTP.
type AuthBroker struct {
	factory ClientFactory
	store   SessionStore
	conn    *ConnectionManager
	logger  *logrus.Logger
	cfg     BrokerConfig

	mu      sync.Mutex
	pending map[string]*pendingLogin
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewAuthBroker(factory ClientFactory, store SessionStore, conn *ConnectionManager, cfg BrokerConfig, logger *logrus.Logger) *AuthBroker {
	return &AuthBroker{
		factory: factory,
		store:   store,
		conn:    conn,
		logger:  logger,
		cfg:     cfg,
		pending: make(map[string]*pendingLogin),
	}
}

// Start launches the periodic sweep that expires abandoned handshakes.
func (b *AuthBroker) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return
	}
	b.running = true
	b.stopCh = make(chan struct{})

	b.wg.Add(1)
	go b.sweepLoop(b.stopCh)
}

// Stop halts the sweep and cancels every in-flight handshake.
func (b *AuthBroker) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	close(b.stopCh)

	for _, p := range b.pending {
		p.cancel()
	}
	b.mu.Unlock()

	b.wg.Wait()
}

// StartLogin validates the phone number, asks the provider to send an OTP and
// returns the login identifier the caller quotes when submitting the code.
func (b *AuthBroker) StartLogin(ctx context.Context, phoneNumber string) (string, error) {
	if err := validation.ValidatePhoneNumber(phoneNumber); err != nil {
		return "", err
	}

	p := &pendingLogin{
		id:             uuid.New().String(),
		phoneNumber:    phoneNumber,
		client:         b.factory(""),
		createdAt:      time.Now(),
		codeCh:         make(chan string, 1),
		passwordCh:     make(chan string, 1),
		passwordNeeded: make(chan struct{}),
		done:           make(chan struct{}),
	}

	// The handshake outlives the HTTP request that started it; its lifetime
	// is bounded by the login TTL, not by the request context.
	loginCtx, cancel := context.WithTimeout(context.Background(), b.cfg.LoginTTL)
	p.cancel = cancel

	if err := p.client.Connect(ctx); err != nil {
		cancel()
		_ = p.client.Close()
		return "", errors.Wrap(err, errors.ErrCodeTelegramAPI, "failed to connect for login").
			WithUserMessage("Could not reach Telegram. Please try again.")
	}

	b.mu.Lock()
	b.pending[p.id] = p
	b.mu.Unlock()

	b.wg.Add(1)
	go b.runLogin(loginCtx, p)

	b.logger.WithFields(logrus.Fields{
		LogFieldLoginID: privacy.MaskLoginID(p.id),
		LogFieldPhone:   privacy.MaskPhoneNumber(phoneNumber),
	}).Info("Login started, OTP requested")

	return p.id, nil
}

// SubmitOtp resolves the pending code callback and waits for the handshake to
// either finish or report that a two-factor password is still needed.
func (b *AuthBroker) SubmitOtp(ctx context.Context, loginID, code string) (bool, error) {
	if err := validation.ValidateLoginID(loginID); err != nil {
		return false, err
	}
	if err := validation.ValidateOtpCode(code); err != nil {
		return false, err
	}

	p, err := b.lookup(loginID)
	if err != nil {
		return false, err
	}

	select {
	case p.codeCh <- code:
	default:
		return false, errors.New(errors.ErrCodeValidationFailed, "code already submitted for this login").
			WithUserMessage("A code was already submitted. Please wait.")
	}

	timer := time.NewTimer(b.cfg.OtpWaitTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		if p.loginErr != nil {
			return false, p.loginErr
		}
		return false, nil
	case <-p.passwordNeeded:
		return true, nil
	case <-timer.C:
		return false, errors.NewTimeoutError("otp verification", b.cfg.OtpWaitTimeout.String())
	case <-ctx.Done():
		return false, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "otp verification interrupted")
	}
}

// SubmitPassword resolves the pending two-factor password callback and waits
// for the handshake to finish.
func (b *AuthBroker) SubmitPassword(ctx context.Context, loginID, password string) error {
	if err := validation.ValidateLoginID(loginID); err != nil {
		return err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return err
	}

	p, err := b.lookup(loginID)
	if err != nil {
		return err
	}

	select {
	case <-p.passwordNeeded:
	default:
		return errors.New(errors.ErrCodeValidationFailed, "login is not waiting for a password").
			WithUserMessage("This login does not require a password right now.")
	}

	select {
	case p.passwordCh <- password:
	default:
		return errors.New(errors.ErrCodeValidationFailed, "password already submitted for this login").
			WithUserMessage("A password was already submitted. Please wait.")
	}

	timer := time.NewTimer(b.cfg.OtpWaitTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return p.loginErr
	case <-timer.C:
		return errors.NewTimeoutError("password verification", b.cfg.OtpWaitTimeout.String())
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "password verification interrupted")
	}
}

// PendingCount returns the number of in-flight handshakes.
func (b *AuthBroker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *AuthBroker) lookup(loginID string) (*pendingLogin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pending[loginID]
	if !ok {
		return nil, errors.NewLoginNotFoundError(privacy.MaskLoginID(loginID))
	}
	return p, nil
}

func (b *AuthBroker) remove(loginID string) {
	b.mu.Lock()
	delete(b.pending, loginID)
	b.mu.Unlock()
}

// runLogin drives one interactive handshake to completion. It is the only
// writer of loginErr and the only closer of done.
func (b *AuthBroker) runLogin(ctx context.Context, p *pendingLogin) {
	defer b.wg.Done()
	defer p.cancel()

	codeProvider := func(ctx context.Context) (string, error) {
		select {
		case code := <-p.codeCh:
			return code, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	passwordProvider := func(ctx context.Context) (string, error) {
		p.passwordOnce.Do(func() { close(p.passwordNeeded) })
		select {
		case password := <-p.passwordCh:
			return password, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	err := p.client.StartInteractiveLogin(ctx, p.phoneNumber, codeProvider, passwordProvider)
	if err == nil {
		err = b.finalize(ctx, p)
	}

	if err != nil {
		_ = p.client.Close()
		p.loginErr = classifyLoginError(err)
		b.logger.WithError(p.loginErr).WithFields(logrus.Fields{
			LogFieldLoginID: privacy.MaskLoginID(p.id),
		}).Warn("Login handshake failed")
	} else {
		b.logger.WithFields(logrus.Fields{
			LogFieldLoginID: privacy.MaskLoginID(p.id),
			LogFieldPhone:   privacy.MaskPhoneNumber(p.phoneNumber),
		}).Info("Login completed, session installed")
	}

	b.remove(p.id)
	close(p.done)
}

// finalize exports and persists the freshly authorized session, then promotes
// the client to the live handle. Persistence failure does not fail the login;
// the session just will not survive a restart.
func (b *AuthBroker) finalize(ctx context.Context, p *pendingLogin) error {
	sessionString, err := p.client.ExportSession(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeTelegramAPI, "failed to export session after login")
	}

	if err := b.store.Save(ctx, sessionString, p.phoneNumber); err != nil {
		b.logger.WithError(err).Warn("Session authorized but not persisted")
	}

	b.conn.Install(p.client)
	return nil
}

func (b *AuthBroker) sweepLoop(stopCh chan struct{}) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.sweepExpired()
		case <-stopCh:
			return
		}
	}
}

// sweepExpired cancels handshakes past the login TTL. Cancellation unblocks
// the provider callbacks; runLogin then records the error and cleans up.
func (b *AuthBroker) sweepExpired() {
	b.mu.Lock()
	var expired []*pendingLogin
	for _, p := range b.pending {
		if time.Since(p.createdAt) >= b.cfg.LoginTTL {
			expired = append(expired, p)
		}
	}
	b.mu.Unlock()

	for _, p := range expired {
		b.logger.WithFields(logrus.Fields{
			LogFieldLoginID: privacy.MaskLoginID(p.id),
		}).Info("Expiring abandoned login")
		p.cancel()
	}
}

// classifyLoginError maps provider error strings onto the login error
// taxonomy so HTTP handlers can answer with the right status.
func classifyLoginError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.New(errors.ErrCodeLoginExpired, "login session expired").
			WithUserMessage("Login session expired. Please request a new code.")
	}

	msg := strings.ToUpper(err.Error())
	switch {
	case strings.Contains(msg, "PHONE_CODE_INVALID"):
		return errors.Wrap(err, errors.ErrCodeInvalidOtp, "provider rejected the code").
			WithUserMessage("Invalid code. Please try again.")
	case strings.Contains(msg, "PHONE_CODE_EXPIRED"):
		return errors.Wrap(err, errors.ErrCodeOtpExpired, "code expired").
			WithUserMessage("The code expired. Please request a new one.")
	case strings.Contains(msg, "PASSWORD_HASH_INVALID"):
		return errors.Wrap(err, errors.ErrCodeInvalidPassword, "provider rejected the password").
			WithUserMessage("Invalid password. Please try again.")
	default:
		return errors.Wrap(err, errors.ErrCodeTelegramAPI, "login failed").
			WithUserMessage("Login failed. Please try again.")
	}
}
