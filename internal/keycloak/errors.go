package keycloak

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError — ответ Keycloak с неуспешным статусом.
// Error() возвращает текст ошибки Keycloak как есть: по нему работают
// правила классификатора.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Keycloak API вернул статус %d: %s %s", e.StatusCode, e.Method, e.Path)
}

// Ошибки по статусу ответа. Все они оборачивают *APIError.
type (
	ConflictError     struct{ *APIError }
	NotFoundError     struct{ *APIError }
	UnauthorizedError struct{ *APIError }
	ForbiddenError    struct{ *APIError }
	BadRequestError   struct{ *APIError }
)

func (e *ConflictError) Unwrap() error     { return e.APIError }
func (e *NotFoundError) Unwrap() error     { return e.APIError }
func (e *UnauthorizedError) Unwrap() error { return e.APIError }
func (e *ForbiddenError) Unwrap() error    { return e.APIError }
func (e *BadRequestError) Unwrap() error   { return e.APIError }

// errorBody — форматы тела ошибки Keycloak (Admin API и OIDC endpoint).
type errorBody struct {
	ErrorMessage     string `json:"errorMessage"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// newAPIError читает тело ответа и строит типизированную ошибку.
func newAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Method:     resp.Request.Method,
		Path:       resp.Request.URL.Path,
		Body:       string(body),
	}

	var parsed errorBody
	if json.Unmarshal(body, &parsed) == nil {
		switch {
		case parsed.ErrorMessage != "":
			apiErr.Message = parsed.ErrorMessage
		case parsed.ErrorDescription != "":
			apiErr.Message = parsed.ErrorDescription
		case parsed.Error != "":
			apiErr.Message = parsed.Error
		}
	}

	switch resp.StatusCode {
	case http.StatusConflict:
		return &ConflictError{apiErr}
	case http.StatusNotFound:
		return &NotFoundError{apiErr}
	case http.StatusUnauthorized:
		return &UnauthorizedError{apiErr}
	case http.StatusForbidden:
		return &ForbiddenError{apiErr}
	case http.StatusBadRequest:
		return &BadRequestError{apiErr}
	default:
		return apiErr
	}
}
