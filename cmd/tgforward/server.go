package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tgforward/internal/constants"
	"tgforward/internal/errors"
	"tgforward/internal/middleware"
	"tgforward/internal/models"
	"tgforward/internal/service"
	"tgforward/internal/validation"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router    *mux.Router
	logger    *logrus.Logger
	cfg       *models.Config
	forwarder *service.ForwardingService
	broker    *service.AuthBroker
	store     service.SessionStore
	server    *http.Server
	startedAt time.Time
}

func NewServer(cfg *models.Config, forwarder *service.ForwardingService, broker *service.AuthBroker, store service.SessionStore, logger *logrus.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		logger:    logger,
		cfg:       cfg,
		forwarder: forwarder,
		broker:    broker,
		store:     store,
		startedAt: time.Now(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/config", s.handleConfig()).Methods(http.MethodGet)
	api.HandleFunc("/auth/status", s.handleAuthStatus()).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus()).Methods(http.MethodGet)

	// Mutating endpoints require the admin token.
	api.HandleFunc("/start", s.requireAdminToken(s.handleStart())).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.requireAdminToken(s.handleStop())).Methods(http.MethodPost)
	api.HandleFunc("/send-otp", s.requireAdminToken(s.handleSendOtp())).Methods(http.MethodPost)
	api.HandleFunc("/verify-otp", s.requireAdminToken(s.handleVerifyOtp())).Methods(http.MethodPost)
	api.HandleFunc("/verify-password", s.requireAdminToken(s.handleVerifyPassword())).Methods(http.MethodPost)
	api.HandleFunc("/test", s.requireAdminToken(s.handleTest())).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusNotFound, map[string]interface{}{"error": "Not found"})
	})
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Infof("Starting server on port %s", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"service":   "Telegram Auto Forwarder",
			"version":   Version,
			"isRunning": s.forwarder.Status().Running,
			"uptime":    s.forwarder.Uptime().Seconds(),
		})
	}
}

// handleConfig exposes the non-secret runtime configuration for the UI.
func (s *Server) handleConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := s.forwarder.Status()

		serviceStatus := "stopped"
		if status.Running {
			serviceStatus = "running"
		}

		hasSession := false
		if session, err := s.store.Load(r.Context()); err == nil && session != nil {
			hasSession = true
		}

		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"apiId":          s.cfg.Telegram.APIID,
			"sourceChannel":  s.cfg.Telegram.SourceChannel,
			"targetChannel":  s.cfg.Telegram.TargetChannel,
			"posterUsername": s.cfg.Telegram.PosterUsername,
			"serviceStatus":  serviceStatus,
			"forwardedCount": status.ForwardedCount,
			"hasSession":     hasSession,
		})
	}
}

func (s *Server) handleAuthStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"authenticated": s.forwarder.IsAuthenticated(r.Context()),
			"isRunning":     s.forwarder.Status().Running,
		})
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := s.forwarder.Status()

		payload := map[string]interface{}{
			"isRunning":      status.Running,
			"forwardedCount": status.ForwardedCount,
			"lastForwarded":  status.LastForwardedAt,
			"uptime":         s.forwarder.Uptime().Seconds(),
		}

		s.respondJSON(w, http.StatusOK, payload)
	}
}

func (s *Server) handleStart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.forwarder.Start(r.Context()); err != nil {
			s.respondError(w, err)
			return
		}

		status := s.forwarder.Status()
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":        true,
			"message":        "Forwarding service started",
			"isRunning":      true,
			"forwardedCount": status.ForwardedCount,
		})
	}
}

func (s *Server) handleStop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.forwarder.Stop()

		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":   true,
			"message":   "Forwarding service stopped",
			"isRunning": false,
		})
	}
}

func (s *Server) handleSendOtp() http.HandlerFunc {
	type request struct {
		PhoneNumber string `json:"phoneNumber"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := s.decodeJSON(w, r, &req); err != nil {
			s.respondError(w, err)
			return
		}

		if req.PhoneNumber == "" {
			s.respondErrorMessage(w, http.StatusBadRequest, "Phone number is required")
			return
		}

		loginID, err := s.broker.StartLogin(r.Context(), req.PhoneNumber)
		if err != nil {
			s.respondError(w, err)
			return
		}

		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":   true,
			"message":   "OTP sent to your Telegram app",
			"sessionId": loginID,
		})
	}
}

func (s *Server) handleVerifyOtp() http.HandlerFunc {
	type request struct {
		OtpCode   string `json:"otpCode"`
		SessionID string `json:"sessionId"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := s.decodeJSON(w, r, &req); err != nil {
			s.respondError(w, err)
			return
		}

		if req.OtpCode == "" || req.SessionID == "" {
			s.respondErrorMessage(w, http.StatusBadRequest, "OTP code and session ID are required")
			return
		}

		requiresPassword, err := s.broker.SubmitOtp(r.Context(), req.SessionID, req.OtpCode)
		if err != nil {
			s.respondError(w, err)
			return
		}

		if requiresPassword {
			s.respondJSON(w, http.StatusOK, map[string]interface{}{
				"success":          true,
				"message":          "Two-factor password required",
				"requiresPassword": true,
				"sessionId":        req.SessionID,
			})
			return
		}

		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":          true,
			"message":          "Login successful!",
			"requiresPassword": false,
		})
	}
}

func (s *Server) handleVerifyPassword() http.HandlerFunc {
	type request struct {
		Password  string `json:"password"`
		SessionID string `json:"sessionId"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := s.decodeJSON(w, r, &req); err != nil {
			s.respondError(w, err)
			return
		}

		if req.Password == "" || req.SessionID == "" {
			s.respondErrorMessage(w, http.StatusBadRequest, "Password and session ID are required")
			return
		}

		if err := s.broker.SubmitPassword(r.Context(), req.SessionID, req.Password); err != nil {
			s.respondError(w, err)
			return
		}

		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Login successful with 2FA!",
		})
	}
}

func (s *Server) handleTest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		testSignal := s.forwarder.Test()
		status := s.forwarder.Status()

		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":        true,
			"message":        "Test completed successfully",
			"forwardedCount": status.ForwardedCount,
			"testSignal":     testSignal,
		})
	}
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, out interface{}) error {
	if err := validation.ValidateHTTPRequestSize(r, constants.MaxRequestBodyBytes); err != nil {
		return err
	}
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body").
			WithUserMessage("Invalid request body")
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// respondError maps an application error to an HTTP status and a safe,
// user-facing message. Internals never leak to the client.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatusCode(err)

	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request failed")
	} else {
		s.logger.WithError(err).Debug("Request rejected")
	}

	s.respondErrorMessage(w, status, errors.GetUserMessage(err))
}

func (s *Server) respondErrorMessage(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
