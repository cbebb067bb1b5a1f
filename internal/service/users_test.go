// users_test.go — unit-тесты сервиса пользователей поверх фасада и репозитория в памяти.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/realmbuilder/internal/api/middleware"
	"github.com/bigkaa/realmbuilder/internal/apperror"
	"github.com/bigkaa/realmbuilder/internal/domain/model"
	"github.com/bigkaa/realmbuilder/internal/domain/realm"
	"github.com/bigkaa/realmbuilder/internal/idp/idptest"
	"github.com/bigkaa/realmbuilder/internal/reconcile"
	"github.com/bigkaa/realmbuilder/internal/repository"
)

// memUserRepo — репозиторий пользователей в памяти.
type memUserRepo struct {
	mu        sync.Mutex
	users     map[string]*model.User
	calls     int
	createErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*model.User{}}
}

func cloneUser(u *model.User) *model.User {
	cp := *u
	cp.Emails = slices.Clone(u.Emails)
	return &cp
}

func (r *memUserRepo) setCreateErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createErr = err
}

func (r *memUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.users {
		if existing.Collection != u.Collection {
			continue
		}
		if u.Username != nil && existing.Username != nil && *u.Username == *existing.Username {
			return repository.ErrConflict
		}
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.users[u.ID] = cloneUser(u)
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) GetByKeycloakID(_ context.Context, collection, keycloakUserID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Collection == collection && u.KeycloakUserID == keycloakUserID {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) FindByIdentifier(_ context.Context, collection string, field realm.Field, value string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, u := range r.users {
		if u.Collection != collection {
			continue
		}
		switch field {
		case realm.FieldUsername:
			if u.Username != nil && *u.Username == value {
				return cloneUser(u), nil
			}
		case realm.FieldPhone:
			if u.Phone != nil && *u.Phone == value {
				return cloneUser(u), nil
			}
		case realm.FieldEmail:
			if u.HasEmail(value) {
				return cloneUser(u), nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) MarkEmailVerified(_ context.Context, userID, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	for i := range u.Emails {
		if strings.EqualFold(u.Emails[i].Address, email) {
			u.Emails[i].Verified = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *memUserRepo) Count(_ context.Context, collection string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.users {
		if u.Collection == collection {
			n++
		}
	}
	return n, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture — реконсилированный realm, фасад и сервис.
type fixture struct {
	fake    *idptest.Fake
	repo    *memUserRepo
	svc     *UserService
	targets map[string]reconcile.Target
}

// newFixture строит realm "acme" с клиентами приложения "portal" и реконсилирует его.
func newFixture(t *testing.T, separated bool, clients ...*realm.Client) *fixture {
	t.Helper()
	app := realm.NewApp("portal")
	for _, c := range clients {
		app.AddClient(c)
	}
	r := realm.New("acme").SetSeparatedUserCollections(separated).AddApp(app)

	fake := idptest.New()
	repo := newMemUserRepo()
	svc := NewUserService(fake.Facade(), repo, NewLoginCache(16, time.Minute), testLogger())

	res, err := reconcile.New(fake.Facade(), testLogger(), reconcile.WithSeeder(svc)).Build(context.Background(), r)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	targets := map[string]reconcile.Target{}
	for _, target := range res.Targets {
		targets[target.Client.Name()] = target
	}
	return &fixture{fake: fake, repo: repo, svc: svc, targets: targets}
}

// newClient создаёт клиента с группой по умолчанию "users" и ролью "verifier".
func newClient(t *testing.T, name string, auth *realm.ClientAuthConfig) *realm.Client {
	t.Helper()
	verifier := realm.NewRole("verifier", "подтверждение email")
	c := realm.NewClient(name, auth).AddRole(verifier).AddRole(realm.NewRole("registrar", ""))
	if _, err := c.AddGroup(realm.NewGroup("users").SetDefault(true)); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	return c
}

func mustAuth(t *testing.T, fields ...realm.Field) *realm.ClientAuthConfig {
	t.Helper()
	auth, err := realm.NewClientAuthConfig(fields...)
	if err != nil {
		t.Fatalf("NewClientAuthConfig: %v", err)
	}
	return auth
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("ожидалась *apperror.Error %s, получено %v", code, err)
	}
	if appErr.Code != code {
		t.Fatalf("код ошибки = %s, ожидался %s", appErr.Code, code)
	}
}

func TestRegister_PublicByEmail(t *testing.T) {
	f := newFixture(t, false, newClient(t, "web", mustAuth(t, realm.FieldEmail)))
	target := f.targets["web"]

	user, err := f.svc.Register(context.Background(), target, RegisterRequest{
		Email:    "  Ivan@Acme.test ",
		Password: "secret",
	}, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if user.Collection != "acme" || user.ClientID != "portal-web" {
		t.Errorf("user = %+v", user)
	}
	if user.PrimaryEmail() != "ivan@acme.test" || !user.Emails[0].Verified {
		t.Errorf("Emails = %+v, ожидался подтверждённый ivan@acme.test", user.Emails)
	}

	kc := f.fake.User("ivan@acme.test")
	if kc == nil {
		t.Fatal("пользователь не создан в IdP")
	}
	if !kc.EmailVerified {
		t.Error("EmailVerified в IdP должен быть true без VerifyRequired")
	}
	if got := f.fake.Memberships(kc.ID); !slices.Equal(got, []string{target.DefaultGroupID}) {
		t.Errorf("группы = %v, ожидалась группа по умолчанию %s", got, target.DefaultGroupID)
	}
	if user.KeycloakUserID != kc.ID {
		t.Errorf("KeycloakUserID = %q, ожидался %q", user.KeycloakUserID, kc.ID)
	}
}

func TestRegister_Policies(t *testing.T) {
	disabled := mustAuth(t, realm.FieldEmail).WithRegister(realm.RegisterPolicy{Mode: realm.RegisterDisabled})
	private := mustAuth(t, realm.FieldEmail).WithRegister(realm.RegisterPolicy{
		Mode:          realm.RegisterPrivate,
		RequiredRoles: []string{"registrar"},
	})
	f := newFixture(t, false,
		newClient(t, "closed", disabled),
		newClient(t, "internal", private),
	)
	ctx := context.Background()
	req := RegisterRequest{Email: "ivan@acme.test", Password: "secret"}

	_, err := f.svc.Register(ctx, f.targets["closed"], req, nil)
	assertCode(t, err, "REGISTRATION_DISABLED")

	_, err = f.svc.Register(ctx, f.targets["internal"], req, nil)
	assertCode(t, err, "AUTHENTICATION_REQUIRED")

	outsider := &middleware.AuthClaims{Subject: "u-1", ClientRoles: map[string][]string{"portal-internal": {"viewer"}}}
	_, err = f.svc.Register(ctx, f.targets["internal"], req, outsider)
	assertCode(t, err, "REGISTRATION_FORBIDDEN")

	registrar := &middleware.AuthClaims{Subject: "u-2", ClientRoles: map[string][]string{"portal-internal": {"registrar"}}}
	if _, err := f.svc.Register(ctx, f.targets["internal"], req, registrar); err != nil {
		t.Fatalf("Register с ролью registrar: %v", err)
	}
	if n := f.fake.Calls("users.create"); n != 1 {
		t.Errorf("users.create вызван %d раз, ожидался 1", n)
	}
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t, false, newClient(t, "web", mustAuth(t, realm.FieldEmail, realm.FieldPhone)))
	ctx := context.Background()

	_, err := f.svc.Register(ctx, f.targets["web"], RegisterRequest{Username: "ivan", Password: "secret"}, nil)
	assertCode(t, err, "PRIMARY_FIELD_REQUIRED")

	_, err = f.svc.Register(ctx, f.targets["web"], RegisterRequest{Phone: "+70000000001"}, nil)
	assertCode(t, err, "PASSWORD_REQUIRED")

	if n := f.fake.Calls("users.create"); n != 0 {
		t.Errorf("users.create вызван %d раз при невалидном запросе", n)
	}
}

func TestRegister_DuplicateIdentifier(t *testing.T) {
	f := newFixture(t, false, newClient(t, "web", mustAuth(t, realm.FieldPhone)))
	ctx := context.Background()
	req := RegisterRequest{Phone: "+70000000001", Password: "secret"}

	if _, err := f.svc.Register(ctx, f.targets["web"], req, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := f.svc.Register(ctx, f.targets["web"], req, nil)
	assertCode(t, err, "IDENTIFIER_TAKEN")
	var appErr *apperror.Error
	if errors.As(err, &appErr) && appErr.Kind != apperror.KindConflict {
		t.Errorf("вид ошибки = %s, ожидался conflict", appErr.Kind)
	}
}

func TestRegister_VerifyRequired(t *testing.T) {
	auth := mustAuth(t, realm.FieldEmail).
		WithRegister(realm.RegisterPolicy{VerifyRequired: true}).
		WithLogin(realm.LoginPolicy{RequireVerified: true})
	f := newFixture(t, false, newClient(t, "web", auth))
	ctx := context.Background()

	user, err := f.svc.Register(ctx, f.targets["web"], RegisterRequest{Email: "ivan@acme.test", Password: "secret"}, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Emails[0].Verified {
		t.Error("email не должен быть подтверждён при VerifyRequired")
	}
	if f.fake.User("ivan@acme.test").EmailVerified {
		t.Error("EmailVerified в IdP должен быть false")
	}

	_, err = f.svc.Login(ctx, f.targets["web"], "ivan@acme.test", "secret")
	assertCode(t, err, "EMAIL_NOT_VERIFIED")
}

func TestLogin(t *testing.T) {
	auth := mustAuth(t, realm.FieldEmail, realm.FieldUsername)
	f := newFixture(t, false, newClient(t, "web", auth))
	ctx := context.Background()
	target := f.targets["web"]

	_, err := f.svc.Register(ctx, target, RegisterRequest{
		Username: "Ivan",
		Email:    "ivan@acme.test",
		Password: "secret",
	}, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	for _, identifier := range []string{"ivan@acme.test", "IVAN"} {
		tokens, err := f.svc.Login(ctx, target, identifier, "secret")
		if err != nil {
			t.Fatalf("Login(%s): %v", identifier, err)
		}
		if tokens.AccessToken != "token-portal-web-ivan" {
			t.Errorf("AccessToken = %q", tokens.AccessToken)
		}
	}

	_, err = f.svc.Login(ctx, target, "ivan", "wrong")
	assertCode(t, err, "INVALID_CREDENTIALS")

	_, err = f.svc.Login(ctx, target, "nobody@acme.test", "secret")
	assertCode(t, err, "INVALID_CREDENTIALS")
}

func TestLogin_UsesCache(t *testing.T) {
	f := newFixture(t, false, newClient(t, "web", mustAuth(t, realm.FieldEmail)))
	ctx := context.Background()
	target := f.targets["web"]

	if _, err := f.svc.Register(ctx, target, RegisterRequest{Email: "ivan@acme.test", Password: "secret"}, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := f.svc.Login(ctx, target, "ivan@acme.test", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	lookups := f.repo.calls

	if _, err := f.svc.Login(ctx, target, "Ivan@Acme.test", "secret"); err != nil {
		t.Fatalf("повторный Login: %v", err)
	}
	if f.repo.calls != lookups {
		t.Errorf("повторный вход выполнил %d поиск(ов) в хранилище", f.repo.calls-lookups)
	}
	if f.svc.cache.Len() != 1 {
		t.Errorf("записей в кэше = %d, ожидалась 1", f.svc.cache.Len())
	}
}

func TestLogin_StaleCacheEntry(t *testing.T) {
	tests := []struct {
		name            string
		requireVerified bool
	}{
		// Keycloak отклоняет вход под именем из кэша.
		{"устаревшее имя в IdP", false},
		// Локальной записи с id из кэша больше нет.
		{"удалённая локальная запись", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := mustAuth(t, realm.FieldEmail).WithLogin(realm.LoginPolicy{RequireVerified: tt.requireVerified})
			f := newFixture(t, false, newClient(t, "web", auth))
			ctx := context.Background()
			target := f.targets["web"]

			u, err := f.svc.Register(ctx, target, RegisterRequest{Email: "ivan@acme.test", Password: "secret"}, nil)
			if err != nil {
				t.Fatalf("Register: %v", err)
			}
			f.svc.cache.Set(target.Collection(), "ivan@acme.test", loginEntry{
				UserID:   "gone",
				Username: "gone@acme.test",
				Field:    realm.FieldEmail,
			})

			tokens, err := f.svc.Login(ctx, target, "ivan@acme.test", "secret")
			if err != nil {
				t.Fatalf("Login: %v", err)
			}
			if tokens.AccessToken != "token-portal-web-ivan@acme.test" {
				t.Errorf("AccessToken = %q", tokens.AccessToken)
			}
			entry, ok := f.svc.cache.Get(target.Collection(), "ivan@acme.test")
			if !ok || entry.UserID != u.ID {
				t.Errorf("запись кэша = %+v, ожидался пользователь %s", entry, u.ID)
			}
		})
	}
}

func TestLogin_WrongPasswordKeepsSingleGrant(t *testing.T) {
	f := newFixture(t, false, newClient(t, "web", mustAuth(t, realm.FieldEmail)))
	ctx := context.Background()
	target := f.targets["web"]

	if _, err := f.svc.Register(ctx, target, RegisterRequest{Email: "ivan@acme.test", Password: "secret"}, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := f.svc.Login(ctx, target, "ivan@acme.test", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	f.fake.ResetCalls()

	_, err := f.svc.Login(ctx, target, "ivan@acme.test", "wrong")
	assertCode(t, err, "INVALID_CREDENTIALS")
	if n := f.fake.Calls("tokens.passwordGrant"); n != 1 {
		t.Errorf("tokens.passwordGrant вызван %d раз, ожидался 1", n)
	}
	if f.svc.cache.Len() != 1 {
		t.Errorf("записей в кэше = %d, ожидалась 1", f.svc.cache.Len())
	}
}

func TestSeparatedCollections(t *testing.T) {
	f := newFixture(t, true,
		newClient(t, "web", mustAuth(t, realm.FieldUsername)),
		newClient(t, "mobile", mustAuth(t, realm.FieldUsername)),
	)
	ctx := context.Background()
	req := RegisterRequest{Username: "ivan", Password: "secret"}

	web, err := f.svc.Register(ctx, f.targets["web"], req, nil)
	if err != nil {
		t.Fatalf("Register web: %v", err)
	}
	mobile, err := f.svc.Register(ctx, f.targets["mobile"], req, nil)
	if err != nil {
		t.Fatalf("Register mobile: %v", err)
	}

	if web.Collection != "portal-web" || mobile.Collection != "portal-mobile" {
		t.Errorf("коллекции = %s, %s", web.Collection, mobile.Collection)
	}
	if f.fake.User("portal-web:ivan") == nil || f.fake.User("portal-mobile:ivan") == nil {
		t.Error("имена в IdP должны иметь префикс clientId")
	}

	tokens, err := f.svc.Login(ctx, f.targets["mobile"], "ivan", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tokens.AccessToken != "token-portal-mobile-portal-mobile:ivan" {
		t.Errorf("AccessToken = %q", tokens.AccessToken)
	}
}

func TestVerifyEmail(t *testing.T) {
	auth := mustAuth(t, realm.FieldEmail).WithRegister(realm.RegisterPolicy{
		VerifyRequired: true,
		VerifierRoles:  []string{"verifier"},
	})
	f := newFixture(t, false, newClient(t, "web", auth))
	ctx := context.Background()
	target := f.targets["web"]

	user, err := f.svc.Register(ctx, target, RegisterRequest{Email: "ivan@acme.test", Password: "secret"}, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	plain := &middleware.AuthClaims{Subject: "u-1"}
	_, err = f.svc.VerifyEmail(ctx, target, plain, user.ID, "ivan@acme.test")
	assertCode(t, err, "VERIFICATION_FORBIDDEN")

	verifier := &middleware.AuthClaims{Subject: "u-2", ClientRoles: map[string][]string{"portal-web": {"verifier"}}}

	_, err = f.svc.VerifyEmail(ctx, target, verifier, user.ID, "other@acme.test")
	assertCode(t, err, "EMAIL_NOT_FOUND")

	_, err = f.svc.VerifyEmail(ctx, target, verifier, "missing", "ivan@acme.test")
	assertCode(t, err, "USER_NOT_FOUND")

	got, err := f.svc.VerifyEmail(ctx, target, verifier, user.ID, "IVAN@acme.test")
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if !got.EmailVerified("ivan@acme.test") {
		t.Error("адрес не подтверждён в ответе")
	}
	if !f.fake.User("ivan@acme.test").EmailVerified {
		t.Error("адрес не подтверждён в IdP")
	}
	stored, _ := f.repo.GetByID(ctx, user.ID)
	if !stored.EmailVerified("ivan@acme.test") {
		t.Error("адрес не подтверждён в хранилище")
	}
}

func TestVerifyEmail_NoVerifierRoles(t *testing.T) {
	f := newFixture(t, false, newClient(t, "web", mustAuth(t, realm.FieldEmail)))
	claims := &middleware.AuthClaims{Subject: "u-1"}

	_, err := f.svc.VerifyEmail(context.Background(), f.targets["web"], claims, "any", "ivan@acme.test")
	assertCode(t, err, "VERIFICATION_DISABLED")
}

func TestSeedUser(t *testing.T) {
	auth := mustAuth(t, realm.FieldEmail).
		WithRegister(realm.RegisterPolicy{Mode: realm.RegisterDisabled, VerifyRequired: true}).
		WithSeed(&realm.SeedUser{Email: "root@acme.test", Password: "root-secret", FirstName: "Root"})
	client := newClient(t, "admin", auth)
	f := newFixture(t, false, client)

	kc := f.fake.User("root@acme.test")
	if kc == nil {
		t.Fatal("встроенный пользователь не создан в IdP")
	}
	if !kc.EmailVerified {
		t.Error("email встроенного пользователя должен быть подтверждён")
	}
	if n, _ := f.repo.Count(context.Background(), "acme"); n != 1 {
		t.Errorf("локальных записей = %d, ожидалась 1", n)
	}

	// Повторная реконсиляция не создаёт пользователя снова.
	exists, err := f.svc.SeedExists(context.Background(), f.targets["admin"])
	if err != nil || !exists {
		t.Fatalf("SeedExists = %v, %v", exists, err)
	}
	f.fake.ResetCalls()
	r := f.targets["admin"].Realm
	if _, err := reconcile.New(f.fake.Facade(), testLogger(), reconcile.WithSeeder(f.svc)).Build(context.Background(), r); err != nil {
		t.Fatalf("повторный Build: %v", err)
	}
	if n := f.fake.Calls("users.create"); n != 0 {
		t.Errorf("users.create вызван %d раз при повторной реконсиляции", n)
	}
}

func TestSeedUser_ConvergesAfterPartialFailure(t *testing.T) {
	tests := []struct {
		name   string
		inject func(f *idptest.Fake, repo *memUserRepo)
		clear  func(f *idptest.Fake, repo *memUserRepo)
	}{
		{
			name:   "сбой включения в группу",
			inject: func(f *idptest.Fake, _ *memUserRepo) { f.FailOn("users.joinGroup", apperror.Network("NETWORK_ERROR", "соединение сброшено")) },
			clear:  func(f *idptest.Fake, _ *memUserRepo) { f.FailOn("users.joinGroup", nil) },
		},
		{
			name:   "сбой локального хранилища",
			inject: func(_ *idptest.Fake, repo *memUserRepo) { repo.setCreateErr(errors.New("connection refused")) },
			clear:  func(_ *idptest.Fake, repo *memUserRepo) { repo.setCreateErr(nil) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := mustAuth(t, realm.FieldEmail).
				WithSeed(&realm.SeedUser{Email: "root@acme.test", Password: "root-secret"})
			app := realm.NewApp("portal").AddClient(newClient(t, "admin", auth))
			r := realm.New("acme").AddApp(app)

			fake := idptest.New()
			repo := newMemUserRepo()
			svc := NewUserService(fake.Facade(), repo, NewLoginCache(16, time.Minute), testLogger())
			builder := reconcile.New(fake.Facade(), testLogger(), reconcile.WithSeeder(svc))
			ctx := context.Background()

			tt.inject(fake, repo)
			if _, err := builder.Build(ctx, r); err == nil {
				t.Fatal("ожидалась ошибка первого Build")
			}
			if fake.User("root@acme.test") == nil {
				t.Fatal("пользователь Keycloak должен остаться после сбоя")
			}

			tt.clear(fake, repo)
			fake.ResetCalls()
			res, err := builder.Build(ctx, r)
			if err != nil {
				t.Fatalf("повторный Build: %v", err)
			}
			if n := fake.Calls("users.create"); n != 0 {
				t.Errorf("users.create вызван %d раз, ожидался переиспользованный пользователь", n)
			}

			kc := fake.User("root@acme.test")
			if got := fake.Memberships(kc.ID); !slices.Contains(got, res.Targets[0].DefaultGroupID) {
				t.Errorf("членство = %v, ожидалась группа по умолчанию", got)
			}
			local, err := repo.FindByIdentifier(ctx, "acme", realm.FieldEmail, "root@acme.test")
			if err != nil {
				t.Fatalf("локальная запись не создана: %v", err)
			}
			if local.KeycloakUserID != kc.ID {
				t.Errorf("KeycloakUserID = %q, ожидался %q", local.KeycloakUserID, kc.ID)
			}
		})
	}
}

func TestMe(t *testing.T) {
	f := newFixture(t, false, newClient(t, "web", mustAuth(t, realm.FieldEmail)))
	ctx := context.Background()
	target := f.targets["web"]

	user, err := f.svc.Register(ctx, target, RegisterRequest{Email: "ivan@acme.test", Password: "secret"}, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := f.svc.Me(ctx, target, &middleware.AuthClaims{Subject: user.KeycloakUserID})
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ID = %q, ожидался %q", got.ID, user.ID)
	}

	_, err = f.svc.Me(ctx, target, &middleware.AuthClaims{Subject: "unknown"})
	assertCode(t, err, "USER_NOT_FOUND")
}
