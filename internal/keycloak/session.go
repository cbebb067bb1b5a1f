// session.go — админская сессия Keycloak.
//
// Session получает admin access token через password grant в админском realm
// (обычно master / admin-cli) и периодически переаутентифицируется в фоновой
// горутине (RB_KEYCLOAK_REAUTH_INTERVAL). Текущий токен хранится в
// atomic.Pointer: читатели всегда получают последний записанный токен, а
// обновление подменяет его атомарно. Запрос, получивший 401, вызывает
// Renew с устаревшим токеном — переаутентификация выполняется один раз,
// даже если таких запросов несколько.
//
// Prometheus-метрики:
//   - realm_builder_keycloak_session_refresh_total — результаты переаутентификации
package keycloak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sessionRefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "realm_builder_keycloak_session_refresh_total",
		Help: "Количество переаутентификаций админской сессии Keycloak",
	},
	[]string{"result"},
)

// TokenResponse — ответ token endpoint Keycloak.
type TokenResponse struct {
	AccessToken string `json:"access_token"` //nolint:gosec // G117: структура токена OAuth2
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// SessionConfig — параметры админской сессии.
type SessionConfig struct {
	BaseURL  string
	Realm    string // админский realm, например master
	ClientID string // например admin-cli
	Username string
	Password string //nolint:gosec // G117: учётные данные администратора
	// Interval — период фоновой переаутентификации.
	Interval time.Duration
}

// Session — владелец админского access token.
type Session struct {
	cfg        SessionConfig
	httpClient *http.Client
	logger     *slog.Logger

	token atomic.Pointer[string]
	// renewMu сериализует переаутентификацию.
	renewMu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession создаёт сессию. Токен не запрашивается до Start или первого Token.
func NewSession(cfg SessionConfig, httpClient *http.Client, logger *slog.Logger) *Session {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 58 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Session{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "keycloak_session")),
	}
}

// Start выполняет первичную аутентификацию и запускает фоновую переаутентификацию.
func (s *Session) Start(ctx context.Context) error {
	if err := s.authenticate(ctx); err != nil {
		return err
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.logger.Info("Фоновая переаутентификация Keycloak запущена",
			slog.String("interval", s.cfg.Interval.String()),
		)

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Фоновая переаутентификация Keycloak остановлена")
				return
			case <-ticker.C:
				s.renewMu.Lock()
				err := s.authenticate(ctx)
				s.renewMu.Unlock()
				if err != nil {
					s.logger.Error("Ошибка переаутентификации Keycloak",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}()

	return nil
}

// Stop останавливает фоновую горутину и ждёт её завершения.
func (s *Session) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// Token возвращает текущий токен; при его отсутствии аутентифицируется.
func (s *Session) Token(ctx context.Context) (string, error) {
	if t := s.token.Load(); t != nil {
		return *t, nil
	}
	return s.Renew(ctx, "")
}

// Renew переаутентифицирует сессию, если текущий токен всё ещё равен stale.
// Если токен уже обновлён другим вызовом, возвращается новый токен без запроса.
func (s *Session) Renew(ctx context.Context, stale string) (string, error) {
	s.renewMu.Lock()
	defer s.renewMu.Unlock()

	if t := s.token.Load(); t != nil && *t != stale {
		return *t, nil
	}
	if err := s.authenticate(ctx); err != nil {
		return "", err
	}
	return *s.token.Load(), nil
}

// authenticate выполняет password grant и сохраняет токен.
func (s *Session) authenticate(ctx context.Context) error {
	token, err := s.requestToken(ctx)
	if err != nil {
		sessionRefreshTotal.WithLabelValues("error").Inc()
		return err
	}

	s.token.Store(&token.AccessToken)
	sessionRefreshTotal.WithLabelValues("ok").Inc()

	s.logger.Debug("Админский токен Keycloak обновлён",
		slog.Int("expires_in", token.ExpiresIn),
	)
	return nil
}

func (s *Session) requestToken(ctx context.Context) (*TokenResponse, error) {
	data := url.Values{
		"grant_type": {"password"},
		"client_id":  {s.cfg.ClientID},
		"username":   {s.cfg.Username},
		"password":   {s.cfg.Password},
	}

	endpoint := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", s.cfg.BaseURL, s.cfg.Realm)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("создание запроса токена: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос админского токена Keycloak: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("декодирование токена Keycloak: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("Keycloak вернул пустой access_token")
	}

	return &token, nil
}
