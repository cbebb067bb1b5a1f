// Пакет service — бизнес-логика пользователей клиентов realm.
// users.go — регистрация, вход, подтверждение email и встроенные пользователи.
//
// Учётные данные и членство в группах хранит Keycloak; локальная запись
// связывает пользователя с коллекцией и хранит идентификаторы, по которым
// выполняется вход.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/realmbuilder/internal/api/middleware"
	"github.com/bigkaa/realmbuilder/internal/apperror"
	"github.com/bigkaa/realmbuilder/internal/domain/model"
	"github.com/bigkaa/realmbuilder/internal/domain/realm"
	"github.com/bigkaa/realmbuilder/internal/idp"
	"github.com/bigkaa/realmbuilder/internal/reconcile"
	"github.com/bigkaa/realmbuilder/internal/repository"
)

// RegisterRequest — данные регистрации пользователя.
type RegisterRequest struct {
	Username  string
	Email     string
	Phone     string
	Password  string //nolint:gosec // G117: пароль передаётся в IdP
	FirstName string
	LastName  string
}

// value возвращает значение поля идентификации.
func (r RegisterRequest) value(f realm.Field) string {
	switch f {
	case realm.FieldEmail:
		return r.Email
	case realm.FieldPhone:
		return r.Phone
	case realm.FieldUsername:
		return r.Username
	}
	return ""
}

// normalize убирает пробелы; email и username приводятся к нижнему регистру,
// как их хранит Keycloak.
func (r RegisterRequest) normalize() RegisterRequest {
	r.Username = strings.ToLower(strings.TrimSpace(r.Username))
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	return r
}

// UserService — сервис пользователей клиентов realm.
// Реализует reconcile.UserSeeder.
type UserService struct {
	api    idp.Facade
	repo   repository.UserRepository
	cache  *LoginCache
	logger *slog.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(api idp.Facade, repo repository.UserRepository, cache *LoginCache, logger *slog.Logger) *UserService {
	return &UserService{
		api:    api,
		repo:   repo,
		cache:  cache,
		logger: logger.With(slog.String("component", "user_service")),
	}
}

var _ reconcile.UserSeeder = (*UserService)(nil)

// Register регистрирует пользователя через клиента t.
// caller — claims вызывающего (nil для анонимного запроса).
func (s *UserService) Register(ctx context.Context, t reconcile.Target, req RegisterRequest, caller *middleware.AuthClaims) (*model.User, error) {
	policy := t.Client.Auth().Register()
	meta := apperror.Context{"clientId": t.ClientID(), "mode": string(policy.Mode)}

	switch policy.Mode {
	case realm.RegisterDisabled:
		return nil, ErrRegistrationDisabled.With(meta)
	case realm.RegisterPrivate:
		if caller == nil {
			return nil, ErrAuthenticationNeeded.With(meta)
		}
		if !caller.HasClientRoles(t.ClientID(), policy.RequiredRoles...) {
			return nil, ErrRegistrationForbidden.With(meta).
				With(apperror.Context{"requiredRoles": policy.RequiredRoles, "subject": caller.Subject})
		}
	}

	return s.register(ctx, t, req, !policy.VerifyRequired, false)
}

// SeedExists сообщает, зарегистрирован ли встроенный пользователь клиента.
func (s *UserService) SeedExists(ctx context.Context, t reconcile.Target) (bool, error) {
	seed := t.Client.Auth().Seed()
	if seed == nil {
		return false, nil
	}
	req := seedRequest(seed).normalize()

	for _, f := range t.Client.Auth().PrimaryFields() {
		value := req.value(f)
		if value == "" {
			continue
		}
		_, err := s.repo.FindByIdentifier(ctx, t.Collection(), f, value)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return false, storeError(err, apperror.Context{"clientId": t.ClientID(), "field": string(f)})
		}
	}
	return false, nil
}

// RegisterSeed регистрирует встроенного пользователя клиента в обход
// политики регистрации; его email считается подтверждённым.
// Пользователь Keycloak, оставшийся от прерванной реконсиляции,
// переиспользуется.
func (s *UserService) RegisterSeed(ctx context.Context, t reconcile.Target) error {
	seed := t.Client.Auth().Seed()
	if seed == nil {
		return nil
	}
	_, err := s.register(ctx, t, seedRequest(seed), true, true)
	return err
}

func seedRequest(seed *realm.SeedUser) RegisterRequest {
	return RegisterRequest{
		Username:  seed.Username,
		Email:     seed.Email,
		Phone:     seed.Phone,
		Password:  seed.Password,
		FirstName: seed.FirstName,
		LastName:  seed.LastName,
	}
}

// register создаёт пользователя в Keycloak, включает его в группу по умолчанию
// и сохраняет локальную запись. При adopt существующий пользователь Keycloak
// с тем же именем переиспользуется вместо создания.
func (s *UserService) register(ctx context.Context, t reconcile.Target, req RegisterRequest, verified, adopt bool) (*model.User, error) {
	req = req.normalize()
	auth := t.Client.Auth()
	collection := t.Collection()
	meta := apperror.Context{"clientId": t.ClientID(), "collection": collection}

	present := false
	for _, f := range auth.PrimaryFields() {
		if req.value(f) != "" {
			present = true
			break
		}
	}
	if !present {
		return nil, ErrPrimaryFieldRequired.With(meta).
			With(apperror.Context{"primaryFields": auth.PrimaryFields()})
	}
	if req.Password == "" {
		return nil, ErrPasswordRequired.With(meta)
	}

	// Идентификаторы уникальны в пределах коллекции.
	for _, f := range []realm.Field{realm.FieldUsername, realm.FieldEmail, realm.FieldPhone} {
		value := req.value(f)
		if value == "" {
			continue
		}
		_, err := s.repo.FindByIdentifier(ctx, collection, f, value)
		if err == nil {
			return nil, ErrIdentifierTaken.With(meta).With(apperror.Context{"field": string(f)})
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, storeError(err, meta)
		}
	}

	user := &model.User{
		ID:         uuid.New().String(),
		Collection: collection,
		Realm:      t.Realm.Name(),
		ClientID:   t.ClientID(),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
	}
	if req.Username != "" {
		user.Username = &req.Username
	}
	if req.Phone != "" {
		user.Phone = &req.Phone
	}
	if req.Email != "" {
		user.Emails = []model.Email{{Address: req.Email, Verified: verified}}
	}

	username := keycloakUsername(t, user)
	attrs := map[string][]string{"collection": {collection}}
	if req.Phone != "" {
		attrs["phone"] = []string{req.Phone}
	}

	var kcUserID string
	if adopt {
		existing, err := s.api.Users.FindByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			kcUserID = existing.ID
			s.logger.Info("Пользователь Keycloak уже существует, переиспользуется",
				slog.String("keycloak_user_id", kcUserID),
				slog.String("client_id", t.ClientID()),
			)
		}
	}
	if kcUserID == "" {
		var err error
		kcUserID, err = s.api.Users.Create(ctx, idp.CreateUserInput{
			Username:      username,
			Email:         req.Email,
			FirstName:     req.FirstName,
			LastName:      req.LastName,
			Password:      req.Password,
			EmailVerified: verified && req.Email != "",
			Attributes:    attrs,
		})
		if err != nil {
			return nil, err
		}
	}
	user.KeycloakUserID = kcUserID

	if err := s.api.Users.JoinGroup(ctx, kcUserID, t.DefaultGroupID); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, storeError(err, meta)
	}

	s.logger.Info("Пользователь зарегистрирован",
		slog.String("user_id", user.ID),
		slog.String("keycloak_user_id", kcUserID),
		slog.String("client_id", t.ClientID()),
		slog.String("collection", collection),
		slog.Bool("email_verified", verified),
	)
	return user, nil
}

// keycloakUsername вычисляет имя пользователя в Keycloak: username, иначе
// первый email, иначе телефон. При раздельных коллекциях имя получает
// префикс clientId, так как имена в realm общие.
func keycloakUsername(t reconcile.Target, u *model.User) string {
	var name string
	switch {
	case u.Username != nil:
		name = *u.Username
	case u.PrimaryEmail() != "":
		name = u.PrimaryEmail()
	case u.Phone != nil:
		name = *u.Phone
	}
	if t.Realm.SeparatedUserCollections() {
		return t.ClientID() + ":" + name
	}
	return name
}

// Login выполняет вход по идентификатору и паролю через публичный
// OAuth-клиент t и возвращает выданные Keycloak токены.
// Запись кэша, по которой пользователь не нашёлся или Keycloak отклонил
// вход, удаляется, и пользователь ищется заново один раз.
func (s *UserService) Login(ctx context.Context, t reconcile.Target, identifier, password string) (*idp.TokenSet, error) {
	identifier = strings.TrimSpace(identifier)
	collection := t.Collection()
	meta := apperror.Context{"clientId": t.ClientID(), "collection": collection}

	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials.With(meta)
	}

	key := strings.ToLower(identifier)
	if entry, ok := s.cache.Get(collection, key); ok {
		tokens, err := s.authenticate(ctx, t, identifier, password, entry, nil, meta)
		if !staleLogin(err) {
			return tokens, err
		}
		s.cache.Remove(collection, key)

		fresh, user, lookupErr := s.resolveLogin(ctx, t, identifier, meta)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if fresh == entry {
			return nil, err
		}
		s.logger.Debug("Запись кэша входа устарела",
			slog.String("collection", collection),
			slog.String("stale_user_id", entry.UserID),
			slog.String("user_id", fresh.UserID),
		)
		return s.authenticate(ctx, t, identifier, password, fresh, user, meta)
	}

	entry, user, err := s.resolveLogin(ctx, t, identifier, meta)
	if err != nil {
		return nil, err
	}
	return s.authenticate(ctx, t, identifier, password, entry, user, meta)
}

// resolveLogin ищет пользователя по полям входа и кэширует результат.
func (s *UserService) resolveLogin(ctx context.Context, t reconcile.Target, identifier string, meta apperror.Context) (loginEntry, *model.User, error) {
	found, field, err := s.findByLogin(ctx, t.Collection(), t.Client.Auth().Login().Fields, identifier)
	if err != nil {
		return loginEntry{}, nil, err
	}
	if found == nil {
		return loginEntry{}, nil, ErrInvalidCredentials.With(meta)
	}
	entry := loginEntry{UserID: found.ID, Username: keycloakUsername(t, found), Field: field}
	s.cache.Set(t.Collection(), strings.ToLower(identifier), entry)
	return entry, found, nil
}

// authenticate проверяет подтверждение email (если требуется) и
// выполняет password grant для найденного пользователя. user может быть
// nil, тогда он читается по entry.UserID.
func (s *UserService) authenticate(ctx context.Context, t reconcile.Target, identifier, password string,
	entry loginEntry, user *model.User, meta apperror.Context,
) (*idp.TokenSet, error) {
	if t.Client.Auth().Login().RequireVerified {
		if user == nil {
			var err error
			user, err = s.repo.GetByID(ctx, entry.UserID)
			if err != nil {
				return nil, storeError(err, meta)
			}
		}
		if !loginEmailVerified(user, entry.Field, identifier) {
			return nil, ErrEmailNotVerified.With(meta).With(apperror.Context{"userId": user.ID})
		}
	}

	tokens, err := s.api.Tokens.PasswordGrant(ctx, t.ClientID(), entry.Username, password)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Вход выполнен",
		slog.String("user_id", entry.UserID),
		slog.String("client_id", t.ClientID()),
		slog.String("field", string(entry.Field)),
	)
	return tokens, nil
}

// staleLogin сообщает, могла ли ошибка входа быть вызвана устаревшей
// записью кэша.
func staleLogin(err error) bool {
	switch apperror.KindOf(err) {
	case apperror.KindNotFound, apperror.KindAuthentication:
		return true
	default:
		return false
	}
}

// findByLogin ищет пользователя по полям входа в порядке их объявления.
func (s *UserService) findByLogin(ctx context.Context, collection string, fields []realm.Field, identifier string) (*model.User, realm.Field, error) {
	for _, f := range fields {
		value := identifier
		if f != realm.FieldPhone {
			value = strings.ToLower(identifier)
		}
		u, err := s.repo.FindByIdentifier(ctx, collection, f, value)
		if err == nil {
			return u, f, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, "", storeError(err, apperror.Context{"collection": collection, "field": string(f)})
		}
	}
	return nil, "", nil
}

// loginEmailVerified: при входе по email должен быть подтверждён именно он,
// иначе — первый адрес пользователя. Пользователь без адресов проходит.
func loginEmailVerified(u *model.User, field realm.Field, identifier string) bool {
	if field == realm.FieldEmail {
		return u.EmailVerified(identifier)
	}
	if len(u.Emails) == 0 {
		return true
	}
	return u.Emails[0].Verified
}

// Me возвращает локальную запись пользователя по claims токена.
func (s *UserService) Me(ctx context.Context, t reconcile.Target, claims *middleware.AuthClaims) (*model.User, error) {
	u, err := s.repo.GetByKeycloakID(ctx, t.Collection(), claims.Subject)
	if err != nil {
		return nil, storeError(err, apperror.Context{"clientId": t.ClientID(), "subject": claims.Subject})
	}
	return u, nil
}

// VerifyEmail отмечает подтверждённым адрес email пользователя userID.
// Вызывающий должен иметь все роли клиента из VerifierRoles.
// Если адрес совпадает с email пользователя в Keycloak, флаг
// подтверждения выставляется и там.
func (s *UserService) VerifyEmail(ctx context.Context, t reconcile.Target, caller *middleware.AuthClaims, userID, email string) (*model.User, error) {
	policy := t.Client.Auth().Register()
	meta := apperror.Context{"clientId": t.ClientID(), "userId": userID}

	if len(policy.VerifierRoles) == 0 {
		return nil, ErrVerificationDisabled.With(meta)
	}
	if caller == nil {
		return nil, ErrAuthenticationNeeded.With(meta)
	}
	if !caller.HasClientRoles(t.ClientID(), policy.VerifierRoles...) {
		return nil, ErrVerificationForbidden.With(meta).
			With(apperror.Context{"verifierRoles": policy.VerifierRoles, "subject": caller.Subject})
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, meta)
	}
	if user.Collection != t.Collection() {
		return nil, ErrUserNotFound.With(meta)
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if !user.HasEmail(email) {
		return nil, ErrEmailNotFound.With(meta).With(apperror.Context{"email": email})
	}

	if err := s.repo.MarkEmailVerified(ctx, user.ID, email); err != nil {
		return nil, storeError(err, meta)
	}
	if strings.EqualFold(user.PrimaryEmail(), email) {
		if err := s.api.Users.SetEmailVerified(ctx, user.KeycloakUserID, true); err != nil {
			return nil, err
		}
	}

	for i := range user.Emails {
		if strings.EqualFold(user.Emails[i].Address, email) {
			user.Emails[i].Verified = true
		}
	}

	s.logger.Info("Email подтверждён",
		slog.String("user_id", user.ID),
		slog.String("client_id", t.ClientID()),
		slog.String("verified_by", caller.Subject),
	)
	return user, nil
}
