package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"guidehub/internal/app"
	"guidehub/internal/ratelimit"
	"guidehub/internal/util"
	"guidehub/pkg/auth"
	"guidehub/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App           *app.App
	RedisAddr     string
	RedisPassword string

	AuthRateLimitPerMinute    int
	PaymentRateLimitPerMinute int
	MaxUploadBytes            int64
	AllowedOrigins            []string
	TrustedProxyCIDRs         []string
}

// Server exposes the HTTP API.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64
	allowedOrigins []string
	authLimiter    *ratelimit.FixedWindowLimiter
	paymentLimiter *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	authLimit := cfg.AuthRateLimitPerMinute
	if authLimit <= 0 {
		authLimit = 10
	}
	paymentLimit := cfg.PaymentRateLimitPerMinute
	if paymentLimit <= 0 {
		paymentLimit = 20
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "guidehub:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	authLimiter, err := newLimiter("auth", authLimit)
	if err != nil {
		return nil, err
	}
	paymentLimiter, err := newLimiter("payment", paymentLimit)
	if err != nil {
		return nil, err
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 50 << 20
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUpload,
		allowedOrigins: cfg.AllowedOrigins,
		authLimiter:    authLimiter,
		paymentLimiter: paymentLimiter,
		trustedProxies: trusted,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler chain.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithCORS(s.allowedOrigins, h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog("guidehub", h)
	h = util.WithRequestID(h)
	return h
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/refresh", s.handleRefresh)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// guide catalog
	s.mux.HandleFunc("/api/guides", s.handleGuides)
	s.mux.HandleFunc("/api/guides/", s.handleGuideByID)

	// payments & purchases
	s.mux.Handle("/api/payment/create-order/", s.authenticated(s.handleCreateOrder))
	s.mux.Handle("/api/payment/verify", s.authenticated(s.handleVerifyPayment))
	s.mux.Handle("/api/purchase/buy", s.authenticated(s.handleBuy))
	s.mux.Handle("/api/purchase/mine", s.authenticated(s.handleMyPurchases))

	// gated content
	s.mux.Handle("/api/pdf/view/", s.requiresPurchase("/api/pdf/view/", s.handleViewPDF))

	// courses
	s.mux.HandleFunc("/api/courses", s.handleCourses)
	s.mux.HandleFunc("/api/courses/", s.handleCourseByID)
	s.mux.Handle("/api/lessons", s.adminOnly(s.handleCreateLesson))
	s.mux.HandleFunc("/api/lessons/", s.handleLessonByID)

	// admin
	s.mux.Handle("/api/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("/api/admin/users/promote", s.adminOnly(s.handlePromoteAdmin))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "auth.authorize", "fail")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if user.Role != domain.RoleAdmin {
			s.audit(r, "auth.admin", "fail", "user_id", user.ID)
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

// guideHandler receives the guide id parsed from the request path.
type guideHandler func(http.ResponseWriter, *http.Request, domain.User, string)

// requiresPurchase admits only users holding a completed purchase for the
// guide named in the path. Admins pass through.
func (s *Server) requiresPurchase(prefix string, next guideHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		guideID := strings.TrimPrefix(r.URL.Path, prefix)
		if guideID == "" || strings.Contains(guideID, "/") {
			http.NotFound(w, r)
			return
		}
		if user.Role != domain.RoleAdmin {
			purchased, err := s.app.HasPurchased(user.ID, guideID)
			if err != nil {
				writeAppError(w, err)
				return
			}
			if !purchased {
				// Missing guides are 404, not 403.
				if _, err := s.app.GetGuide(guideID); err != nil {
					writeAppError(w, err)
					return
				}
				s.audit(r, "content.access", "fail", "user_id", user.ID, "guide_id", guideID)
				writeError(w, http.StatusForbidden, "guide not purchased")
				return
			}
		}
		next(w, r, user, guideID)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	return s.app.UserFromToken(token)
}

// bearerToken accepts the Authorization header or the token cookie.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token != "" {
			return token, true
		}
	}
	if cookie, err := r.Cookie("token"); err == nil {
		token := strings.TrimSpace(cookie.Value)
		if token != "" {
			return token, true
		}
	}
	return "", false
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", s.clientIP(r),
		"request_id", util.RequestIDFromRequest(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + s.clientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trustedProxies)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps app sentinels onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrGuideNotFound),
		errors.Is(err, app.ErrCourseNotFound),
		errors.Is(err, app.ErrLessonNotFound),
		errors.Is(err, app.ErrUserNotFound),
		errors.Is(err, app.ErrOrderNotFound),
		errors.Is(err, app.ErrPdfSourceMissing):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrPurchaseRequired),
		errors.Is(err, app.ErrPremiumRequired):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrInvalidRefreshToken),
		errors.Is(err, app.ErrUserDisabled):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, app.ErrValidation),
		errors.Is(err, app.ErrEmailAndPasswordRequired),
		errors.Is(err, app.ErrEmailRequired),
		errors.Is(err, app.ErrEmailAlreadyExists),
		errors.Is(err, app.ErrRefreshTokenRequired),
		errors.Is(err, app.ErrVerificationFailed),
		errors.Is(err, app.ErrInvalidPdfUpload),
		errors.Is(err, app.ErrLessonContentMissing),
		errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrOrderCreationFailed),
		errors.Is(err, app.ErrPdfFetchFailed),
		errors.Is(err, app.ErrPresignFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
