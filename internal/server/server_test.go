package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/realmbuilder/internal/api/handlers"
	"github.com/bigkaa/realmbuilder/internal/api/middleware"
	"github.com/bigkaa/realmbuilder/internal/api/middleware/authtest"
	"github.com/bigkaa/realmbuilder/internal/api/openapi"
	"github.com/bigkaa/realmbuilder/internal/config"
	"github.com/bigkaa/realmbuilder/internal/domain/model"
	"github.com/bigkaa/realmbuilder/internal/domain/realm"
	"github.com/bigkaa/realmbuilder/internal/idp"
	"github.com/bigkaa/realmbuilder/internal/idp/idptest"
	"github.com/bigkaa/realmbuilder/internal/reconcile"
	"github.com/bigkaa/realmbuilder/internal/service"
)

type okUsers struct{ registered int }

func (u *okUsers) Register(context.Context, reconcile.Target, service.RegisterRequest, *middleware.AuthClaims) (*model.User, error) {
	u.registered++
	return &model.User{ID: "0b5e7a4e-4a43-4d3a-9d5c-111111111111", CreatedAt: time.Now()}, nil
}

func (u *okUsers) Login(context.Context, reconcile.Target, string, string) (*idp.TokenSet, error) {
	return &idp.TokenSet{AccessToken: "t", TokenType: "Bearer", ExpiresIn: 60}, nil
}

func (u *okUsers) Me(context.Context, reconcile.Target, *middleware.AuthClaims) (*model.User, error) {
	return nil, service.ErrUserNotFound
}

func (u *okUsers) VerifyEmail(context.Context, reconcile.Target, *middleware.AuthClaims, string, string) (*model.User, error) {
	return nil, service.ErrVerificationDisabled
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, users handlers.UserService) *Server {
	t.Helper()
	issuer := authtest.New(t, "https://keycloak.test/realms/acme")
	auth := middleware.NewJWTAuthWithKeyfunc(issuer.Keyfunc(), issuer.URL, testLogger())

	doc, err := openapi.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	validator, err := middleware.NewRequestValidator(doc, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{Port: 8000, ShutdownTimeout: time.Second}
	return New(cfg, testLogger(), handlers.NewHealthHandler(nil, nil), auth, validator, users)
}

func targetFor(t *testing.T, appName, clientName string) reconcile.Target {
	t.Helper()
	auth, err := realm.NewClientAuthConfig(realm.FieldEmail)
	if err != nil {
		t.Fatal(err)
	}
	client := realm.NewClient(clientName, auth)
	if _, err := client.AddGroup(realm.NewGroup("users").SetDefault(true)); err != nil {
		t.Fatal(err)
	}
	app := realm.NewApp(appName).AddClient(client)
	r := realm.New("acme").AddApp(app)
	if err := r.Resolve(); err != nil {
		t.Fatal(err)
	}
	return reconcile.Target{Realm: r, App: app, Client: client}
}

func request(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMount(t *testing.T) {
	users := &okUsers{}
	srv := newTestServer(t, users)

	if err := srv.Mount(targetFor(t, "portal", "web")); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if err := srv.Mount(targetFor(t, "portal", "mobile")); err != nil {
		t.Fatalf("Mount mobile: %v", err)
	}
	if err := srv.Mount(targetFor(t, "portal", "web")); err != nil {
		t.Errorf("повторный Mount: %v", err)
	}

	h := srv.Handler()
	for _, path := range []string{"/api/v1/portal/web/register", "/api/v1/portal/mobile/register"} {
		rec := request(h, http.MethodPost, path, `{"email":"ivan@acme.test","password":"secret"}`)
		if rec.Code != http.StatusCreated {
			t.Errorf("%s: статус %d, тело: %s", path, rec.Code, rec.Body.String())
		}
	}
	if users.registered != 2 {
		t.Errorf("Register вызван %d раз, ожидалось 2", users.registered)
	}

	rec := request(h, http.MethodPost, "/api/v1/portal/desktop/register", `{"email":"ivan@acme.test","password":"secret"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("неподключённый клиент: статус %d, ожидался 404", rec.Code)
	}
}

func TestBuildTwiceWithServer(t *testing.T) {
	users := &okUsers{}
	srv := newTestServer(t, users)
	tgt := targetFor(t, "portal", "web")

	fake := idptest.New()
	builder := reconcile.New(fake.Facade(), testLogger(), reconcile.WithMounter(srv))
	for run := 1; run <= 2; run++ {
		if _, err := builder.Build(context.Background(), tgt.Realm); err != nil {
			t.Fatalf("Build #%d: %v", run, err)
		}
	}

	rec := request(srv.Handler(), http.MethodPost, "/api/v1/portal/web/register", `{"email":"ivan@acme.test","password":"secret"}`)
	if rec.Code != http.StatusCreated {
		t.Errorf("статус %d, тело: %s", rec.Code, rec.Body.String())
	}
}

func TestValidationBeforeHandler(t *testing.T) {
	users := &okUsers{}
	srv := newTestServer(t, users)
	if err := srv.Mount(targetFor(t, "portal", "web")); err != nil {
		t.Fatal(err)
	}

	rec := request(srv.Handler(), http.MethodPost, "/api/v1/portal/web/register", `{"email":"not-an-email","password":"secret"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус %d, ожидался 400", rec.Code)
	}
	if users.registered != 0 {
		t.Error("обработчик не должен вызываться для невалидного запроса")
	}
}

func TestHealthRoutes(t *testing.T) {
	h := newTestServer(t, &okUsers{}).Handler()

	if rec := request(h, http.MethodGet, "/health/live", ""); rec.Code != http.StatusOK {
		t.Errorf("/health/live: статус %d", rec.Code)
	}
	if rec := request(h, http.MethodGet, "/health/ready", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/health/ready без проверок: статус %d, ожидался 503", rec.Code)
	}
	if rec := request(h, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("/metrics: статус %d", rec.Code)
	}
}
