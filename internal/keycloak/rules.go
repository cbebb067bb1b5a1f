// rules.go — правила классификатора для ошибок Keycloak.
//
// Порядок важен: сначала пропускаются уже типизированные ошибки, затем
// распознаются конкретные тексты Keycloak, и только потом — общие статусы.
package keycloak

import (
	"log/slog"
	"net/url"
	"regexp"

	"github.com/bigkaa/realmbuilder/internal/apperror"
)

// DefaultRules возвращает правила классификации ошибок Keycloak.
func DefaultRules() []apperror.Rule {
	when, raise := apperror.When, apperror.Raise
	return []apperror.Rule{
		when(apperror.IsType[*apperror.Error](), apperror.Pass()),

		when(apperror.MessageIncludesAll("top level group", "already exists"),
			raise(apperror.Conflict("TOP_LEVEL_GROUP_ALREADY_EXISTS", "группа верхнего уровня уже существует"))),
		when(apperror.MessageIncludesAll("sibling group", "already exists"),
			raise(apperror.Conflict("SUB_GROUP_ALREADY_EXISTS", "подгруппа уже существует"))),
		when(apperror.MessageMatches(regexp.MustCompile(`(?i)client .* already exists`)),
			raise(apperror.Conflict("CLIENT_ALREADY_EXISTS", "OAuth-клиент уже существует"))),
		when(apperror.MessageIncludesAll("role", "already exists"),
			raise(apperror.Conflict("ROLE_ALREADY_EXISTS", "роль уже существует"))),
		when(apperror.MessageEquals("User exists with same username"),
			raise(apperror.Conflict("USER_ALREADY_EXISTS", "пользователь с таким именем уже существует"))),
		when(apperror.MessageEquals("User exists with same email"),
			raise(apperror.Conflict("EMAIL_ALREADY_EXISTS", "пользователь с таким email уже существует"))),
		when(apperror.MessageIncludesAll("invalid user credentials"),
			raise(apperror.Authentication("INVALID_CREDENTIALS", "неверные учётные данные"))),
		when(apperror.MessageIncludesAll("account is not fully set up"),
			raise(apperror.Authorization("ACCOUNT_NOT_SET_UP", "учётная запись не завершена"))),

		when(apperror.IsType[*ConflictError](),
			raise(apperror.Conflict("IDP_CONFLICT", "конфликт в IdP"))),
		when(apperror.IsType[*NotFoundError](),
			raise(apperror.NotFound("IDP_NOT_FOUND", "объект IdP не найден"))),
		when(apperror.IsType[*UnauthorizedError](),
			raise(apperror.Authentication("IDP_UNAUTHORIZED", "IdP отклонил учётные данные"))),
		when(apperror.IsType[*ForbiddenError](),
			raise(apperror.Authorization("IDP_FORBIDDEN", "недостаточно прав в IdP"))),
		when(apperror.IsType[*BadRequestError](),
			raise(apperror.Validation("IDP_BAD_REQUEST", "IdP отклонил запрос"))),
		when(apperror.IsType[*url.Error](),
			raise(apperror.Network("IDP_UNREACHABLE", "IdP недоступен"))),
	}
}

// NewClassifier создаёт классификатор ошибок Keycloak.
func NewClassifier(policy apperror.LogPolicy, logger *slog.Logger) *apperror.Classifier {
	return apperror.NewClassifier(
		apperror.ExternalService("IDP_REQUEST_FAILED", "ошибка запроса к IdP"),
		apperror.WithRules(DefaultRules()...),
		apperror.WithLogPolicy(policy),
		apperror.WithLogger(logger),
	)
}
