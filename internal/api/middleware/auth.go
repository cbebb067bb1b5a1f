// auth.go — JWT middleware для аутентификации пользователей клиентов realm.
// Проверяет подпись токена через JWKS рабочего realm Keycloak, извлекает
// claims и роли OAuth-клиентов (resource_access.<clientId>.roles).
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/realmbuilder/internal/api/errors"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims — извлечённые claims в контексте запроса.
	ContextKeyClaims contextKey = "jwt_claims"
)

// AuthClaims — извлечённые claims из Keycloak JWT.
// Помещаются в контекст запроса для downstream handlers.
type AuthClaims struct {
	// Subject — sub из JWT (идентификатор пользователя в Keycloak).
	Subject string
	// PreferredUsername — preferred_username из JWT.
	PreferredUsername string
	// Email — email из JWT.
	Email string
	// EmailVerified — email_verified из JWT.
	EmailVerified bool
	// AuthorizedParty — azp: clientId, которому выдан токен.
	AuthorizedParty string
	// ClientRoles — роли по clientId из resource_access.
	ClientRoles map[string][]string
}

// HasClientRoles проверяет, что у субъекта есть все роли клиента clientID.
func (c *AuthClaims) HasClientRoles(clientID string, roles ...string) bool {
	granted := c.ClientRoles[clientID]
	for _, r := range roles {
		if !slices.Contains(granted, r) {
			return false
		}
	}
	return true
}

// keycloakClaims — raw claims из Keycloak JWT для парсинга.
type keycloakClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string                    `json:"preferred_username"`
	Email             string                    `json:"email"`
	EmailVerified     bool                      `json:"email_verified"`
	Azp               string                    `json:"azp,omitempty"`
	ResourceAccess    map[string]resourceAccess `json:"resource_access,omitempty"`
}

// resourceAccess — роли одного клиента в resource_access.
type resourceAccess struct {
	Roles []string `json:"roles"`
}

// JWTAuth — middleware для JWT-аутентификации через JWKS Keycloak.
type JWTAuth struct {
	jwks      keyfunc.Keyfunc
	logger    *slog.Logger
	issuer    string
	jwtLeeway time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS из Keycloak.
// jwksURL — URL к JWKS endpoint рабочего realm.
// caCertPath — опциональный путь к CA-сертификату для TLS.
// issuer — ожидаемый issuer JWT (https://keycloak/realms/<realm>).
// jwksClientTimeout — таймаут HTTP-клиента JWKS.
// jwksRefreshInterval — интервал обновления JWKS-ключей (RB_JWKS_REFRESH_INTERVAL).
// jwtLeeway — допустимое отклонение времени при проверке JWT (RB_JWT_LEEWAY).
func NewJWTAuth(
	jwksURL string,
	caCertPath string,
	issuer string,
	jwksClientTimeout time.Duration,
	jwksRefreshInterval time.Duration,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) (*JWTAuth, error) {
	httpClient := http.DefaultClient
	if caCertPath != "" {
		var err error
		httpClient, err = HTTPClientWithCA(caCertPath, jwksClientTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", caCertPath, err)
		}
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	// NoErrorReturnFirstHTTPReq — стартуем, даже если realm ещё не создан.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &JWTAuth{
		jwks:      k,
		logger:    logger.With(slog.String("component", "jwt_auth")),
		issuer:    issuer,
		jwtLeeway: jwtLeeway,
	}, nil
}

// HTTPClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func HTTPClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    caCertPool,
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, issuer string, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:   kf,
		logger: logger.With(slog.String("component", "jwt_auth")),
		issuer: issuer,
	}
}

// Middleware возвращает HTTP middleware для обязательной JWT-аутентификации.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			claims, msg := j.authenticate(r)
			if claims == nil {
				apierrors.Unauthorized(w, msg)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Optional возвращает middleware, который проверяет токен, если он передан.
// Запрос без заголовка Authorization проходит без claims; невалидный токен — 401.
func (j *JWTAuth) Optional() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, msg := j.authenticate(r)
			if claims == nil {
				apierrors.Unauthorized(w, msg)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate извлекает Bearer token, валидирует подпись (RS256) и claims.
// При ошибке возвращает nil и сообщение для клиента.
func (j *JWTAuth) authenticate(r *http.Request) (*AuthClaims, string) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, "Неверный формат Authorization: ожидается Bearer <token>"
	}

	tokenString := parts[1]
	if tokenString == "" {
		return nil, "Пустой Bearer token"
	}

	rawClaims := &keycloakClaims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.jwtLeeway),
	}
	if j.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, rawClaims, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
	if err != nil {
		j.logger.Debug("JWT валидация не пройдена",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr),
		)
		return nil, "Невалидный или просроченный токен"
	}
	if !token.Valid {
		return nil, "Невалидный токен"
	}

	subject, err := rawClaims.GetSubject()
	if err != nil || subject == "" {
		return nil, "Отсутствует sub в токене"
	}

	return buildAuthClaims(rawClaims), ""
}

// buildAuthClaims формирует AuthClaims из raw Keycloak claims.
func buildAuthClaims(raw *keycloakClaims) *AuthClaims {
	claims := &AuthClaims{
		Subject:           raw.Subject,
		PreferredUsername: raw.PreferredUsername,
		Email:             raw.Email,
		EmailVerified:     raw.EmailVerified,
		AuthorizedParty:   raw.Azp,
		ClientRoles:       make(map[string][]string, len(raw.ResourceAccess)),
	}
	for clientID, access := range raw.ResourceAccess {
		claims.ClientRoles[clientID] = access.Roles
	}
	return claims
}

// RequireClient возвращает middleware, пропускающий только токены,
// выданные клиенту clientID (azp).
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireClient(clientID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
				return
			}
			if claims.AuthorizedParty != clientID {
				apierrors.Forbidden(w, fmt.Sprintf("Токен выдан другому клиенту: %s", claims.AuthorizedParty))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Context helpers ---

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// SubjectFromContext извлекает sub из контекста запроса.
// Возвращает пустую строку, если claims не найдены.
func SubjectFromContext(ctx context.Context) string {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return ""
	}
	return claims.Subject
}
