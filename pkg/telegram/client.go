package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"tgforward/internal/errors"
	"tgforward/pkg/telegram/types"

	"github.com/sirupsen/logrus"
)

// Client is the provider capability consumed by the forwarding and auth
// services. Implementations talk to an MTProto gateway sidecar.
type Client interface {
	Connect(ctx context.Context) error
	IsAuthorized(ctx context.Context) (bool, error)
	GetMessages(ctx context.Context, channel string, opts types.FetchOptions) ([]types.Message, error)
	ForwardMessage(ctx context.Context, targetChannel, sourceChannel string, messageID int64) error
	StartInteractiveLogin(ctx context.Context, phoneNumber string, code types.CodeProvider, password types.PasswordProvider) error
	ExportSession(ctx context.Context) (string, error)
	Close() error
}

// GatewayClient implements Client against the MTProto gateway REST API.
type GatewayClient struct {
	baseURL       string
	apiID         int
	apiHash       string
	deviceName    string
	sessionString string
	client        *http.Client
	logger        *logrus.Logger
	mu            sync.Mutex // serializes message operations on one connection
}

func NewClient(cfg types.ClientConfig, httpClient *http.Client) Client {
	return NewClientWithLogger(cfg, httpClient, nil)
}

func NewClientWithLogger(cfg types.ClientConfig, httpClient *http.Client, logger *logrus.Logger) Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	return &GatewayClient{
		baseURL:       strings.TrimSuffix(cfg.GatewayURL, "/"),
		apiID:         cfg.APIID,
		apiHash:       cfg.APIHash,
		deviceName:    cfg.DeviceName,
		sessionString: cfg.SessionString,
		client:        httpClient,
		logger:        logger,
	}
}

// Connect opens the gateway connection for this device, restoring the
// session string if one was supplied.
func (c *GatewayClient) Connect(ctx context.Context) error {
	payload := types.ConnectRequest{
		APIID:         c.apiID,
		APIHash:       c.apiHash,
		DeviceName:    c.deviceName,
		SessionString: c.sessionString,
	}

	return c.postJSON(ctx, "/v1/connect", payload, nil)
}

// IsAuthorized queries provider-side authorization for the current session.
func (c *GatewayClient) IsAuthorized(ctx context.Context) (bool, error) {
	endpoint := fmt.Sprintf("%s/v1/auth/status?device=%s", c.baseURL, url.QueryEscape(c.deviceName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to query auth status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, c.gatewayError("/v1/auth/status", resp)
	}

	var status types.AuthStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, fmt.Errorf("failed to decode auth status: %w", err)
	}

	return status.Authorized, nil
}

// GetMessages fetches the most recent window of messages from a channel.
func (c *GatewayClient) GetMessages(ctx context.Context, channel string, opts types.FetchOptions) ([]types.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := "/v1/messages/" + url.PathEscape(channel)
	endpoint := fmt.Sprintf("%s%s?device=%s", c.baseURL, path, url.QueryEscape(c.deviceName))
	if opts.Limit > 0 {
		endpoint += "&limit=" + strconv.Itoa(opts.Limit)
	}
	if !opts.Since.IsZero() {
		endpoint += "&since=" + strconv.FormatInt(opts.Since.Unix(), 10)
	}

	c.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"limit":    opts.Limit,
	}).Debug("Fetching channel messages")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.gatewayError(path, resp)
	}

	var result types.MessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	messages := result.Messages
	for i := range messages {
		messages[i].Timestamp = time.Unix(messages[i].Date, 0)
	}

	return messages, nil
}

// ForwardMessage relays one message verbatim from source to target.
func (c *GatewayClient) ForwardMessage(ctx context.Context, targetChannel, sourceChannel string, messageID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload := types.ForwardRequest{
		Device:      c.deviceName,
		FromChannel: sourceChannel,
		ToChannel:   targetChannel,
		MessageID:   messageID,
	}

	return c.postJSON(ctx, "/v1/forward", payload, nil)
}

// StartInteractiveLogin drives the gateway's login handshake. The code and
// password providers block until the caller resolves them; the password
// provider is invoked only when the account has a second factor. The call
// returns once the gateway reports an authorized session or a terminal error.
func (c *GatewayClient) StartInteractiveLogin(ctx context.Context, phoneNumber string, code types.CodeProvider, password types.PasswordProvider) error {
	start := types.LoginStartRequest{
		Device:      c.deviceName,
		PhoneNumber: phoneNumber,
	}
	if err := c.postJSON(ctx, "/v1/login/start", start, nil); err != nil {
		return fmt.Errorf("failed to start login: %w", err)
	}

	otpCode, err := code(ctx)
	if err != nil {
		return fmt.Errorf("code provider: %w", err)
	}

	var codeResp types.LoginResponse
	codeReq := types.LoginCodeRequest{Device: c.deviceName, Code: otpCode}
	if err := c.postJSON(ctx, "/v1/login/code", codeReq, &codeResp); err != nil {
		return err
	}

	if codeResp.Status == types.LoginStatusAuthorized {
		return nil
	}

	if codeResp.Status != types.LoginStatusPasswordRequired {
		return fmt.Errorf("unexpected login status %q", codeResp.Status)
	}

	secret, err := password(ctx)
	if err != nil {
		return fmt.Errorf("password provider: %w", err)
	}

	var passResp types.LoginResponse
	passReq := types.LoginPasswordRequest{Device: c.deviceName, Password: secret}
	if err := c.postJSON(ctx, "/v1/login/password", passReq, &passResp); err != nil {
		return err
	}

	if passResp.Status != types.LoginStatusAuthorized {
		return fmt.Errorf("unexpected login status %q", passResp.Status)
	}

	return nil
}

// ExportSession serializes the authorized session into an opaque string.
func (c *GatewayClient) ExportSession(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/session/export?device=%s", c.baseURL, url.QueryEscape(c.deviceName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to export session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.gatewayError("/v1/session/export", resp)
	}

	var result types.SessionExportResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode session export: %w", err)
	}

	c.sessionString = result.SessionString
	return result.SessionString, nil
}

// Close disconnects this device from the gateway. Best-effort: a gateway that
// already dropped the connection is not an error.
func (c *GatewayClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := map[string]string{"device": c.deviceName}
	if err := c.postJSON(ctx, "/v1/disconnect", payload, nil); err != nil {
		c.logger.WithError(err).Debug("Gateway disconnect failed")
	}
	return nil
}

func (c *GatewayClient) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return c.gatewayError(path, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// gatewayError turns a non-2xx gateway response into a classified error
// carrying the status code and any provider error identifier from the body.
// A 401/403 is recognized as a revoked session even when the body has no
// MTProto identifier in it.
func (c *GatewayClient) gatewayError(path string, resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)

	cause := fmt.Errorf("status %d, body: %s", resp.StatusCode, string(bodyBytes))
	var errResp types.ErrorResponse
	if err := json.Unmarshal(bodyBytes, &errResp); err == nil && errResp.Error != "" {
		cause = fmt.Errorf("status %d: %s", resp.StatusCode, errResp.Error)
	}

	return errors.NewGatewayError(path, resp.StatusCode, cause)
}
