// validate.go — валидация запросов по OpenAPI-контракту (kin-openapi).
package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	apierrors "github.com/bigkaa/realmbuilder/internal/api/errors"
)

// RequestValidator проверяет параметры и тело запроса по контракту.
// Аутентификацию выполняет JWTAuth, здесь security-схемы не проверяются.
type RequestValidator struct {
	router routers.Router
	logger *slog.Logger
}

// NewRequestValidator создаёт валидатор по загруженному контракту.
func NewRequestValidator(doc *openapi3.T, logger *slog.Logger) (*RequestValidator, error) {
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("создание OpenAPI router: %w", err)
	}
	return &RequestValidator{
		router: router,
		logger: logger.With(slog.String("component", "request_validator")),
	}, nil
}

// Middleware возвращает HTTP middleware валидации.
// Запросы к путям вне контракта пропускаются: 404/405 отвечает chi.
func (v *RequestValidator) Middleware() func(http.Handler) http.Handler {
	options := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := v.router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    options,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				v.logger.Debug("Запрос не прошёл валидацию",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.ValidationError(w, validationMessage(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// validationMessage формирует сообщение для клиента: путь поля и причина.
func validationMessage(err error) string {
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		if pointer := schemaErr.JSONPointer(); len(pointer) > 0 {
			return fmt.Sprintf("%s: %s", strings.Join(pointer, "."), schemaErr.Reason)
		}
		return schemaErr.Reason
	}

	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) && reqErr.Reason != "" {
		if reqErr.Parameter != nil {
			return fmt.Sprintf("параметр %s: %s", reqErr.Parameter.Name, reqErr.Reason)
		}
		return reqErr.Reason
	}
	return "Некорректный запрос"
}
