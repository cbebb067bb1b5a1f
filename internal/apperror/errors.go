// Пакет apperror — типизированная таксономия ошибок realm-builder
// и классификатор, приводящий «сырые» ошибки внешних систем к ней.
//
// Каждый вид ошибки (Kind) жёстко связан с HTTP-статусом и признаком
// «операционности»: операционная ошибка — ожидаемая ситуация
// (конфликт, недоступность IdP), неоперационная (Internal) — баг.
package apperror

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

// Kind — вид ошибки в таксономии.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindAuthentication  Kind = "authentication"
	KindAuthorization   Kind = "authorization"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindExternalService Kind = "external_service"
	KindDatabase        Kind = "database"
	KindNetwork         Kind = "network"
	KindInternal        Kind = "internal"
	KindBadConfig       Kind = "bad_config"
)

// kindSpec — фиксированные свойства вида ошибки.
type kindSpec struct {
	status      int
	operational bool
}

var kindSpecs = map[Kind]kindSpec{
	KindValidation:      {http.StatusBadRequest, true},
	KindAuthentication:  {http.StatusUnauthorized, true},
	KindAuthorization:   {http.StatusForbidden, true},
	KindNotFound:        {http.StatusNotFound, true},
	KindConflict:        {http.StatusConflict, true},
	KindExternalService: {http.StatusBadGateway, true},
	KindDatabase:        {http.StatusInternalServerError, true},
	KindNetwork:         {http.StatusInternalServerError, true},
	KindInternal:        {http.StatusInternalServerError, false},
	KindBadConfig:       {http.StatusInternalServerError, true},
}

// Status возвращает HTTP-статус вида ошибки.
// Неизвестный вид трактуется как Internal.
func (k Kind) Status() int {
	if spec, ok := kindSpecs[k]; ok {
		return spec.status
	}
	return http.StatusInternalServerError
}

// Operational сообщает, является ли ошибка ожидаемой (не багом).
func (k Kind) Operational() bool {
	if spec, ok := kindSpecs[k]; ok {
		return spec.operational
	}
	return false
}

// Context — дополнительные сведения об ошибке (идентификаторы, имена, исходная ошибка).
type Context map[string]any

// ContextOriginalError — ключ контекста с исходной («сырой») ошибкой.
const ContextOriginalError = "originalError"

// Error — типизированная ошибка приложения.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Context Context

	// origin — классификатор, выпустивший ошибку (nil для созданных напрямую).
	origin *Classifier
}

// New создаёт ошибку указанного вида.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *Error      { return New(KindValidation, code, message) }
func Authentication(code, message string) *Error  { return New(KindAuthentication, code, message) }
func Authorization(code, message string) *Error   { return New(KindAuthorization, code, message) }
func NotFound(code, message string) *Error        { return New(KindNotFound, code, message) }
func Conflict(code, message string) *Error        { return New(KindConflict, code, message) }
func ExternalService(code, message string) *Error { return New(KindExternalService, code, message) }
func Database(code, message string) *Error        { return New(KindDatabase, code, message) }
func Network(code, message string) *Error         { return New(KindNetwork, code, message) }
func Internal(code, message string) *Error        { return New(KindInternal, code, message) }
func BadConfig(code, message string) *Error       { return New(KindBadConfig, code, message) }

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap возвращает исходную ошибку из контекста (если есть).
func (e *Error) Unwrap() error {
	if orig, ok := e.Context[ContextOriginalError].(error); ok {
		return orig
	}
	return nil
}

// Is сравнивает ошибки по виду и коду. Пустой код в target совпадает с любым.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// Status возвращает HTTP-статус ошибки.
func (e *Error) Status() int { return e.Kind.Status() }

// Operational сообщает, ожидаемая ли это ошибка.
func (e *Error) Operational() bool { return e.Kind.Operational() }

// With возвращает копию ошибки с объединённым контекстом.
// Значения из ctx перекрывают уже имеющиеся.
func (e *Error) With(ctx Context) *Error {
	clone := *e
	clone.Context = make(Context, len(e.Context)+len(ctx))
	maps.Copy(clone.Context, e.Context)
	maps.Copy(clone.Context, ctx)
	return &clone
}

// KindOf возвращает вид ошибки; для нетипизированных ошибок — Internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// CodeError — «голый» строковый код ошибки (устаревший путь RaiseCode).
type CodeError string

func (c CodeError) Error() string { return string(c) }
