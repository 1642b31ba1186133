package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "tgforward/internal/errors"
	"tgforward/pkg/telegram/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) Client {
	return NewClient(types.ClientConfig{
		GatewayURL: serverURL,
		APIID:      38615833,
		APIHash:    "testhash",
		DeviceName: "tgforward-test",
	}, &http.Client{Timeout: 5 * time.Second})
}

func TestConnect(t *testing.T) {
	var got types.ConnectRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/connect", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	require.NoError(t, client.Connect(context.Background()))

	assert.Equal(t, 38615833, got.APIID)
	assert.Equal(t, "testhash", got.APIHash)
	assert.Equal(t, "tgforward-test", got.DeviceName)
}

func TestIsAuthorized(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		authorized bool
		wantErr    bool
	}{
		{"authorized", http.StatusOK, `{"authorized":true}`, true, false},
		{"not authorized", http.StatusOK, `{"authorized":false}`, false, false},
		{"unauthorized status maps to false", http.StatusUnauthorized, `{"error":"AUTH_KEY_UNREGISTERED"}`, false, false},
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/auth/status", r.URL.Path)
				assert.Equal(t, "tgforward-test", r.URL.Query().Get("device"))
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			authorized, err := client.IsAuthorized(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.authorized, authorized)
		})
	}
}

func TestGetMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages/sourcechan", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.NotEmpty(t, r.URL.Query().Get("since"))

		json.NewEncoder(w).Encode(types.MessagesResponse{Messages: []types.Message{
			{ID: 2, Text: "second", Sender: "poster", Date: 1756700000},
			{ID: 1, Text: "first", Sender: "poster", Date: 1756699000},
		}})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	messages, err := client.GetMessages(context.Background(), "sourcechan", types.FetchOptions{
		Limit: 20,
		Since: time.Now().Add(-2 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, int64(2), messages[0].ID)
	assert.Equal(t, time.Unix(1756700000, 0), messages[0].Timestamp)
	assert.Equal(t, time.Unix(1756699000, 0), messages[1].Timestamp)
}

func TestForwardMessage(t *testing.T) {
	var got types.ForwardRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/forward", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	require.NoError(t, client.ForwardMessage(context.Background(), "target", "source", 42))

	assert.Equal(t, "source", got.FromChannel)
	assert.Equal(t, "target", got.ToChannel)
	assert.Equal(t, int64(42), got.MessageID)
}

func TestForwardMessage_GatewayErrorSurfacesIdentifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(types.ErrorResponse{Error: "AUTH_KEY_UNREGISTERED"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.ForwardMessage(context.Background(), "target", "source", 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_KEY_UNREGISTERED")
	assert.Contains(t, err.Error(), "401")
}

func TestGetMessages_BareUnauthorizedClassifiedAsRevoked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("unauthorized"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetMessages(context.Background(), "source", types.FetchOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthorizationRevoked(err))
	assert.False(t, apperrors.IsRetryable(err))
}

func TestForwardMessage_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.ForwardMessage(context.Background(), "target", "source", 42)
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.False(t, apperrors.IsAuthorizationRevoked(err))
}

func TestStartInteractiveLogin_NoPassword(t *testing.T) {
	var steps []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		steps = append(steps, r.URL.Path)
		switch r.URL.Path {
		case "/v1/login/start":
			w.WriteHeader(http.StatusOK)
		case "/v1/login/code":
			var req types.LoginCodeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "12345", req.Code)
			json.NewEncoder(w).Encode(types.LoginResponse{Status: types.LoginStatusAuthorized})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.StartInteractiveLogin(context.Background(), "+12025551234",
		func(ctx context.Context) (string, error) { return "12345", nil },
		func(ctx context.Context) (string, error) {
			t.Fatal("password provider must not be called")
			return "", nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"/v1/login/start", "/v1/login/code"}, steps)
}

func TestStartInteractiveLogin_WithPassword(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/login/start":
			w.WriteHeader(http.StatusOK)
		case "/v1/login/code":
			json.NewEncoder(w).Encode(types.LoginResponse{Status: types.LoginStatusPasswordRequired})
		case "/v1/login/password":
			var req types.LoginPasswordRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "hunter2", req.Password)
			json.NewEncoder(w).Encode(types.LoginResponse{Status: types.LoginStatusAuthorized})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.StartInteractiveLogin(context.Background(), "+12025551234",
		func(ctx context.Context) (string, error) { return "12345", nil },
		func(ctx context.Context) (string, error) { return "hunter2", nil })
	require.NoError(t, err)
}

func TestStartInteractiveLogin_InvalidCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/login/start":
			w.WriteHeader(http.StatusOK)
		case "/v1/login/code":
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(types.ErrorResponse{Error: "PHONE_CODE_INVALID"})
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.StartInteractiveLogin(context.Background(), "+12025551234",
		func(ctx context.Context) (string, error) { return "00000", nil },
		func(ctx context.Context) (string, error) { return "", nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PHONE_CODE_INVALID")
}

func TestExportSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/session/export", r.URL.Path)
		json.NewEncoder(w).Encode(types.SessionExportResponse{SessionString: "exported"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	session, err := client.ExportSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "exported", session)
}
