// Пакет keycloak — реализация фасада idp поверх Keycloak Admin REST API.
//
// client.go — HTTP-транспорт: авторизация админским токеном сессии,
// однократный повтор запроса после 401 с переаутентификацией,
// разбор ответов и извлечение id созданных ресурсов из Location.
//
// Методы Client — «голые» операции: они возвращают сырые ошибки Keycloak
// (*APIError и производные). Классифицированный фасад строится в facade.go.
package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "realm_builder_keycloak_requests_total",
		Help: "Количество запросов к Keycloak",
	},
	[]string{"method", "status"},
)

// TokenSource выдаёт админский токен. Реализуется Session.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	// Renew переаутентифицирует сессию, если текущий токен равен stale.
	Renew(ctx context.Context, stale string) (string, error)
}

// Client — HTTP-клиент к Keycloak Admin REST API рабочего realm.
type Client struct {
	baseURL string // Базовый URL Keycloak (без trailing slash)
	realm   string // Рабочий realm

	tokens     TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент к Admin REST API realm.
// tokens — источник админского токена (обычно *Session).
// httpClient — HTTP-клиент (может содержать TLS конфигурацию).
func New(baseURL, realm string, tokens TokenSource, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		realm:      realm,
		tokens:     tokens,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "keycloak_client"), slog.String("realm", realm)),
	}
}

// Realm возвращает имя рабочего realm.
func (c *Client) Realm() string { return c.realm }

// Issuer возвращает issuer токенов рабочего realm.
func (c *Client) Issuer() string {
	return fmt.Sprintf("%s/realms/%s", c.baseURL, c.realm)
}

// JWKSURL возвращает URL набора ключей рабочего realm.
func (c *Client) JWKSURL() string {
	return c.Issuer() + "/protocol/openid-connect/certs"
}

// tokenEndpoint возвращает URL выдачи токенов рабочего realm.
func (c *Client) tokenEndpoint() string {
	return c.Issuer() + "/protocol/openid-connect/token"
}

// adminBaseURL возвращает базовый URL Admin REST API для realm.
func (c *Client) adminBaseURL() string {
	return fmt.Sprintf("%s/admin/realms/%s", c.baseURL, c.realm)
}

// --- HTTP helpers ---

// doAuthorized выполняет запрос к Admin REST API рабочего realm.
func (c *Client) doAuthorized(ctx context.Context, method, path string, body any) (*http.Response, error) {
	return c.do(ctx, method, c.adminBaseURL()+path, body)
}

// do выполняет запрос с админским токеном. На 401 сессия
// переаутентифицируется и запрос повторяется ровно один раз.
func (c *Client) do(ctx context.Context, method, reqURL string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("сериализация тела запроса: %w", err)
		}
		payload = data
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение токена: %w", err)
	}

	resp, err := c.send(ctx, method, reqURL, payload, token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	resp.Body.Close()

	c.logger.Debug("Keycloak вернул 401, повторная аутентификация",
		slog.String("method", method),
		slog.String("url", reqURL),
	)

	token, err = c.tokens.Renew(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("переаутентификация после 401: %w", err)
	}
	return c.send(ctx, method, reqURL, payload, token)
}

func (c *Client) send(ctx context.Context, method, reqURL string, payload []byte, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(method, "error").Inc()
		return nil, err
	}
	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}

// decodeResponse декодирует JSON ответ в target.
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("декодирование ответа Keycloak: %w", err)
		}
	}

	return nil
}

// checkResponse проверяет статус ответа (для запросов без тела ответа).
func checkResponse(resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// createdID проверяет ответ 201 и извлекает id созданного ресурса
// из Location: .../{resource}/{id}.
func createdID(resp *http.Response) (string, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", newAPIError(resp)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("отсутствует Location header в ответе %s", resp.Request.URL.Path)
	}

	id := location[strings.LastIndex(location, "/")+1:]
	if id == "" {
		return "", fmt.Errorf("не удалось извлечь ID из Location: %s", location)
	}
	return id, nil
}

// --- Readiness checker ---

// CheckReady проверяет доступность Keycloak и рабочего realm.
// Реализует handlers.ReadinessChecker.
func (c *Client) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := c.RealmExists(ctx)
	if err != nil {
		return "fail", fmt.Sprintf("Keycloak недоступен: %v", err)
	}
	if !exists {
		return "degraded", fmt.Sprintf("Realm %s не найден", c.realm)
	}

	return "ok", fmt.Sprintf("Realm %s доступен", c.realm)
}
