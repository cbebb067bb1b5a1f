// Пакет errors — конструкторы стандартных ошибок HTTP API.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bigkaa/realmbuilder/internal/apperror"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeIDPUnavailable  = "IDP_UNAVAILABLE"
	CodeInternalError   = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// FromError записывает ответ для ошибки таксономии apperror.
// Статус определяется видом ошибки; для неоперационных ошибок и ошибок
// вне таксономии текст скрывается, а сама ошибка пишется в лог.
func FromError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		logger.Error("Необработанная ошибка", slog.String("error", err.Error()))
		InternalError(w, "Внутренняя ошибка сервера")
		return
	}

	if !appErr.Operational() {
		logger.Error("Внутренняя ошибка",
			slog.String("code", appErr.Code),
			slog.String("error", appErr.Error()),
		)
		InternalError(w, "Внутренняя ошибка сервера")
		return
	}

	status := appErr.Status()
	if status >= http.StatusInternalServerError {
		logger.Warn("Ошибка обработки запроса",
			slog.String("kind", string(appErr.Kind)),
			slog.String("code", appErr.Code),
			slog.String("error", appErr.Error()),
		)
	}
	WriteError(w, status, appErr.Code, appErr.Message)
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict — 409 конфликт (дублирующийся ресурс).
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// IDPUnavailable — 502 Identity Provider (Keycloak) недоступен.
func IDPUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeIDPUnavailable, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
