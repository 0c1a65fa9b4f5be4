package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"wisebox-backend/internal/httpx"
	"wisebox-backend/internal/middleware"
	"wisebox-backend/internal/models"
	"wisebox-backend/internal/transport"
	"wisebox-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

const (
	RefreshCookie     = "wisebox_refresh"
	refreshCookiePath = "/api/v1/auth"

	invalidCredentialsMessage = "Invalid credentials or account suspended"
)

type Handler struct {
	service      *Service
	val          *validation.Validator
	log          *slog.Logger
	accessTTL    time.Duration
	refreshTTL   time.Duration
	cookieSecure bool
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger, accessTTL, refreshTTL time.Duration, cookieSecure bool) *Handler {
	return &Handler{
		service:      service,
		val:          val,
		log:          log,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
		cookieSecure: cookieSecure,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req LoginRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("auth login: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := h.val.Struct(req); err != nil {
		log.Warn("auth login: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, tokens, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			log.Warn("auth login: invalid credentials", slog.String("email", req.Email))
			transport.WriteError(w, http.StatusUnauthorized, invalidCredentialsMessage, nil)
			return
		}
		log.Error("auth login: error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "login error", nil)
		return
	}

	h.setAuthCookies(w, tokens)
	log.Info("auth login: ok", slog.String("user_id", user.ID), slog.String("role", user.Role))
	transport.WriteJSON(w, http.StatusOK, LoginResponse{
		User:         user,
		AccessToken:  tokens.Access,
		RefreshToken: tokens.Refresh,
	})
}

// Refresh reads the refresh token from its cookie, falling back to the
// JSON body for clients that do not keep cookies.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	token := ""
	if cookie, err := r.Cookie(RefreshCookie); err == nil {
		token = cookie.Value
	}
	if token == "" {
		var req RefreshRequest
		if err := httpx.DecodeJSON(r.Body, &req); err == nil {
			token = strings.TrimSpace(req.RefreshToken)
		}
	}
	if token == "" {
		log.Warn("auth refresh: missing refresh token")
		transport.WriteError(w, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, tokens, err := h.service.Refresh(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken):
			log.Warn("auth refresh: invalid refresh token")
			transport.WriteError(w, http.StatusUnauthorized, "invalid refresh token", nil)
		case errors.Is(err, ErrInvalidCredentials):
			log.Warn("auth refresh: account not active")
			h.clearAuthCookies(w)
			transport.WriteError(w, http.StatusUnauthorized, invalidCredentialsMessage, nil)
		default:
			log.Error("auth refresh: error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		}
		return
	}

	h.setAuthCookies(w, tokens)
	log.Info("auth refresh: ok", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusOK, LoginResponse{
		User:         user,
		AccessToken:  tokens.Access,
		RefreshToken: tokens.Refresh,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	h.clearAuthCookies(w)
	log.Info("auth logout: ok")
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.service.GetByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("auth me: not found", slog.String("user_id", principal.UserID))
			transport.WriteError(w, http.StatusNotFound, "user not found", nil)
			return
		}
		log.Error("auth me: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	transport.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req SignupRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("auth signup: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := h.val.Struct(req); err != nil {
		log.Warn("auth signup: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.service.Signup(ctx, req)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			log.Warn("auth signup: duplicate", slog.String("email", req.Email))
			transport.WriteError(w, http.StatusConflict, "email already exists", nil)
			return
		}
		log.Error("auth signup: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	go h.sendCode(log, user)

	log.Info("auth signup: pending", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"user":             user,
		"message":          "verification code sent",
		"expiresInSeconds": int(h.service.CodeTTL().Seconds()),
	})
}

// Verify checks the emailed code, activates the account and logs it in.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req VerifyRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("auth verify: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := h.val.Struct(req); err != nil {
		log.Warn("auth verify: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, tokens, err := h.service.Verify(ctx, req.Email, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrCodeInvalid):
			log.Warn("auth verify: wrong code", slog.String("email", req.Email))
			transport.WriteCodedError(w, http.StatusBadRequest, "invalid_code", err.Error(), nil)
		case errors.Is(err, ErrCodeExpired):
			log.Warn("auth verify: code expired", slog.String("email", req.Email))
			transport.WriteCodedError(w, http.StatusGone, "code_expired", err.Error(), nil)
		case errors.Is(err, ErrAlreadyVerified):
			transport.WriteCodedError(w, http.StatusConflict, "already_verified", err.Error(), nil)
		default:
			log.Error("auth verify: error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "verification error", nil)
		}
		return
	}

	h.setAuthCookies(w, tokens)
	log.Info("auth verify: ok", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusOK, LoginResponse{
		User:         user,
		AccessToken:  tokens.Access,
		RefreshToken: tokens.Refresh,
	})
}

// ResendCode answers 202 whether or not the email belongs to a pending
// account.
func (h *Handler) ResendCode(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req EmailRequest
	if !h.decodeEmail(w, r, log, "auth resend code", &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.service.PendingByEmail(ctx, req.Email)
	switch {
	case err == nil:
		go h.sendCode(log, user)
		log.Info("auth resend code: queued", slog.String("user_id", user.ID))
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyVerified):
		log.Info("auth resend code: skipped", slog.String("reason", err.Error()))
	default:
		log.Error("auth resend code: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	transport.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// RequestPasswordReset always answers 202; the lookup and the mail happen
// after the response so timing does not reveal whether the account exists.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req EmailRequest
	if !h.decodeEmail(w, r, log, "auth password reset", &req) {
		return
	}
	go h.sendReset(log, req.Email)
	transport.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req PasswordResetRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("auth password reset confirm: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("auth password reset confirm: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.ResetPassword(ctx, req.Token, req.Password); err != nil {
		if errors.Is(err, ErrResetInvalid) {
			log.Warn("auth password reset confirm: invalid token")
			transport.WriteCodedError(w, http.StatusBadRequest, "invalid_token", err.Error(), nil)
			return
		}
		log.Error("auth password reset confirm: error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "reset error", nil)
		return
	}

	h.clearAuthCookies(w)
	log.Info("auth password reset confirm: ok")
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decodeEmail(w http.ResponseWriter, r *http.Request, log *slog.Logger, area string, req *EmailRequest) bool {
	if err := httpx.DecodeJSON(r.Body, req); err != nil {
		log.Warn(area + ": invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return false
	}
	req.Email = normalizeEmail(req.Email)
	if err := h.val.Struct(req); err != nil {
		log.Warn(area + ": validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return false
	}
	return true
}

func (h *Handler) sendCode(log *slog.Logger, user models.User) {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	if err := h.service.SendVerificationCode(ctx, user); err != nil {
		log.Warn("auth verify email: send failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	log.Info("auth verify email: sent", slog.String("user_id", user.ID))
}

func (h *Handler) sendReset(log *slog.Logger, email string) {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	err := h.service.RequestPasswordReset(ctx, email)
	switch {
	case err == nil:
		log.Info("auth password reset email: sent")
	case errors.Is(err, ErrNotFound):
		log.Info("auth password reset email: no active account")
	default:
		log.Warn("auth password reset email: send failed", slog.String("error", err.Error()))
	}
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 20, 100)
	if err != nil {
		log.Warn("admin users list: invalid query", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	filter := ListFilter{
		Search: r.URL.Query().Get("search"),
		Role:   r.URL.Query().Get("role"),
		Status: r.URL.Query().Get("status"),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.List(ctx, filter, limit, offset)
	if err != nil {
		if errors.Is(err, ErrInvalidRole) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"role": "oneof"})
			return
		}
		if errors.Is(err, ErrInvalidStatus) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"status": "oneof"})
			return
		}
		log.Error("admin users list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin users list: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"limit":  limit,
		"offset": offset,
		"total":  total,
	})
}

func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	var req CreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin users create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin users create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.service.Create(ctx, req)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			log.Warn("admin users create: duplicate", slog.String("email", req.Email))
			transport.WriteError(w, http.StatusConflict, "email already exists", nil)
			return
		}
		log.Error("admin users create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin users create: ok", slog.String("user_id", user.ID), slog.String("role", user.Role))
	transport.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) AdminUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req RoleUpdateRequest
	h.adminUpdate(w, r, "admin users role", &req, func(ctx context.Context, actorID, id string) (interface{}, error) {
		return h.service.UpdateRole(ctx, actorID, id, req.Role)
	})
}

func (h *Handler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusUpdateRequest
	h.adminUpdate(w, r, "admin users status", &req, func(ctx context.Context, actorID, id string) (interface{}, error) {
		return h.service.UpdateStatus(ctx, actorID, id, req.Status)
	})
}

func (h *Handler) adminUpdate(w http.ResponseWriter, r *http.Request, area string, req interface{}, apply func(ctx context.Context, actorID, id string) (interface{}, error)) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	if err := httpx.DecodeJSON(r.Body, req); err != nil {
		log.Warn(area + ": invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn(area + ": validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	updated, err := apply(ctx, principal.UserID, id)
	if err != nil {
		h.writeError(w, log, area, id, err)
		return
	}

	log.Info(area+": ok", slog.String("user_id", id))
	transport.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	principal, _ := middleware.PrincipalFromContext(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, principal.UserID, id); err != nil {
		h.writeError(w, log, "admin users delete", id, err)
		return
	}

	log.Info("admin users delete: ok", slog.String("user_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, log *slog.Logger, area, id string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		log.Warn(area+": not found", slog.String("user_id", id))
		transport.WriteError(w, http.StatusNotFound, "user not found", nil)
	case errors.Is(err, ErrSelfChange):
		log.Warn(area+": self change", slog.String("user_id", id))
		transport.WriteCodedError(w, http.StatusConflict, "self_change", err.Error(), nil)
	case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrInvalidStatus):
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		log.Error(area+": database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
}

func (h *Handler) setAuthCookies(w http.ResponseWriter, tokens Tokens) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessCookie,
		Value:    tokens.Access,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.accessTTL.Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    tokens.Refresh,
		Path:     refreshCookiePath,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.refreshTTL.Seconds()),
	})
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	expire := time.Now().Add(-1 * time.Hour)
	for _, c := range []struct{ name, path string }{
		{middleware.AccessCookie, "/"},
		{RefreshCookie, refreshCookiePath},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			HttpOnly: true,
			Secure:   h.cookieSecure,
			SameSite: http.SameSiteLaxMode,
			Expires:  expire,
			MaxAge:   -1,
		})
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return h.log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}
