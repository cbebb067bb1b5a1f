// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"

	"github.com/bigkaa/realmbuilder/internal/apperror"
	"github.com/bigkaa/realmbuilder/internal/repository"
)

// Ошибки регистрации, входа и подтверждения email.
var (
	ErrRegistrationDisabled  = apperror.Authorization("REGISTRATION_DISABLED", "регистрация для клиента выключена")
	ErrRegistrationForbidden = apperror.Authorization("REGISTRATION_FORBIDDEN", "недостаточно прав для регистрации пользователей")
	ErrAuthenticationNeeded  = apperror.Authentication("AUTHENTICATION_REQUIRED", "требуется аутентификация")
	ErrPrimaryFieldRequired  = apperror.Validation("PRIMARY_FIELD_REQUIRED", "не задано ни одно основное поле идентификации")
	ErrPasswordRequired      = apperror.Validation("PASSWORD_REQUIRED", "пароль не задан")
	ErrIdentifierTaken       = apperror.Conflict("IDENTIFIER_TAKEN", "идентификатор уже используется")
	ErrInvalidCredentials    = apperror.Authentication("INVALID_CREDENTIALS", "неверные учётные данные")
	ErrEmailNotVerified      = apperror.Authorization("EMAIL_NOT_VERIFIED", "email не подтверждён")
	ErrVerificationDisabled  = apperror.Authorization("VERIFICATION_DISABLED", "подтверждение email для клиента не настроено")
	ErrVerificationForbidden = apperror.Authorization("VERIFICATION_FORBIDDEN", "недостаточно прав для подтверждения email")
	ErrUserNotFound          = apperror.NotFound("USER_NOT_FOUND", "пользователь не найден")
	ErrEmailNotFound         = apperror.NotFound("EMAIL_NOT_FOUND", "адрес не принадлежит пользователю")
)

// storeError приводит ошибку репозитория к таксономии apperror.
func storeError(err error, ctx apperror.Context) error {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return ErrIdentifierTaken.With(ctx)
	case errors.Is(err, repository.ErrNotFound):
		return ErrUserNotFound.With(ctx)
	default:
		return apperror.Database("USER_STORE_FAILED", "ошибка хранилища пользователей").
			With(ctx).
			With(apperror.Context{apperror.ContextOriginalError: err})
	}
}
