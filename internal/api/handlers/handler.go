// Пакет handlers — HTTP-обработчики Realm Builder.
// handler.go — контроллер клиента realm: регистрация, вход, профиль,
// подтверждение email. Один экземпляр на каждый клиент из blueprint.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/realmbuilder/internal/api/errors"
	"github.com/bigkaa/realmbuilder/internal/api/middleware"
	"github.com/bigkaa/realmbuilder/internal/domain/model"
	"github.com/bigkaa/realmbuilder/internal/idp"
	"github.com/bigkaa/realmbuilder/internal/reconcile"
	"github.com/bigkaa/realmbuilder/internal/service"
)

// UserService — операции сервиса пользователей, нужные контроллеру.
type UserService interface {
	Register(ctx context.Context, t reconcile.Target, req service.RegisterRequest, caller *middleware.AuthClaims) (*model.User, error)
	Login(ctx context.Context, t reconcile.Target, identifier, password string) (*idp.TokenSet, error)
	Me(ctx context.Context, t reconcile.Target, claims *middleware.AuthClaims) (*model.User, error)
	VerifyEmail(ctx context.Context, t reconcile.Target, caller *middleware.AuthClaims, userID, email string) (*model.User, error)
}

// ClientHandler — контроллер одного клиента realm.
type ClientHandler struct {
	target reconcile.Target
	users  UserService
	logger *slog.Logger
}

// NewClientHandler создаёт контроллер клиента target.
func NewClientHandler(target reconcile.Target, users UserService, logger *slog.Logger) *ClientHandler {
	return &ClientHandler{
		target: target,
		users:  users,
		logger: logger.With(
			slog.String("component", "client_handler"),
			slog.String("client_id", target.ClientID()),
		),
	}
}

// Routes возвращает маршруты клиента относительно /api/v1/{app}/{client}.
//
//	POST /register      — токен необязателен (нужен для private-регистрации)
//	POST /login         — без токена
//	GET  /me            — токен, выданный этому клиенту
//	POST /verify-email  — токен с ролями VerifierRoles клиента
func (h *ClientHandler) Routes(auth *middleware.JWTAuth) chi.Router {
	r := chi.NewRouter()
	r.With(auth.Optional()).Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.With(auth.Middleware(), middleware.RequireClient(h.target.ClientID())).Get("/me", h.Me)
	r.With(auth.Middleware()).Post("/verify-email", h.VerifyEmail)
	return r
}

// --- DTO ---

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"` //nolint:gosec // G117: пароль передаётся в IdP
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"` //nolint:gosec // G117: пароль передаётся в IdP
}

type verifyEmailRequest struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type emailResponse struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
}

type userResponse struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection"`
	ClientID   string          `json:"clientId"`
	Username   *string         `json:"username,omitempty"`
	Phone      *string         `json:"phone,omitempty"`
	FirstName  string          `json:"firstName,omitempty"`
	LastName   string          `json:"lastName,omitempty"`
	Emails     []emailResponse `json:"emails"`
	CreatedAt  string          `json:"createdAt"`
}

type tokenResponse struct {
	AccessToken      string `json:"accessToken"` //nolint:gosec // G117: ответ с токеном
	RefreshToken     string `json:"refreshToken,omitempty"`
	Scope            string `json:"scope,omitempty"`
	TokenType        string `json:"tokenType"`
	ExpiresIn        int    `json:"expiresIn"`
	RefreshExpiresIn int    `json:"refreshExpiresIn,omitempty"`
}

// --- Handlers ---

// Register — POST /api/v1/{app}/{client}/register.
func (h *ClientHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), h.target, service.RegisterRequest{
		Username:  req.Username,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}, middleware.ClaimsFromContext(r.Context()))
	if err != nil {
		apierrors.FromError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, mapUser(user))
}

// Login — POST /api/v1/{app}/{client}/login.
func (h *ClientHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tokens, err := h.users.Login(r.Context(), h.target, req.Identifier, req.Password)
	if err != nil {
		apierrors.FromError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:      tokens.AccessToken,
		RefreshToken:     tokens.RefreshToken,
		Scope:            tokens.Scope,
		TokenType:        tokens.TokenType,
		ExpiresIn:        tokens.ExpiresIn,
		RefreshExpiresIn: tokens.RefreshExpiresIn,
	})
}

// Me — GET /api/v1/{app}/{client}/me.
func (h *ClientHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	user, err := h.users.Me(r.Context(), h.target, claims)
	if err != nil {
		apierrors.FromError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, mapUser(user))
}

// VerifyEmail — POST /api/v1/{app}/{client}/verify-email.
func (h *ClientHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.VerifyEmail(r.Context(), h.target, middleware.ClaimsFromContext(r.Context()), req.UserID, req.Email)
	if err != nil {
		apierrors.FromError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, mapUser(user))
}

// --- Вспомогательные функции ---

func mapUser(u *model.User) userResponse {
	emails := make([]emailResponse, len(u.Emails))
	for i, e := range u.Emails {
		emails[i] = emailResponse{Address: e.Address, Verified: e.Verified}
	}
	return userResponse{
		ID:         u.ID,
		Collection: u.Collection,
		ClientID:   u.ClientID,
		Username:   u.Username,
		Phone:      u.Phone,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Emails:     emails,
		CreatedAt:  u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// decodeJSON читает тело запроса; при ошибке пишет 400 и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return false
	}
	return true
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
