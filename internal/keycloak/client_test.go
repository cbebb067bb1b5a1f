package keycloak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigkaa/realmbuilder/internal/apperror"
	"github.com/bigkaa/realmbuilder/internal/idp"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupMockKeycloak создаёт mock HTTP-сервер Keycloak.
// tokenHandler обрабатывает запросы на получение админского токена (realm master).
// adminHandler обрабатывает запросы к Admin REST API realm acme.
func setupMockKeycloak(t *testing.T, tokenHandler, adminHandler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/realms/master/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		if tokenHandler != nil {
			tokenHandler(w, r)
			return
		}
		writeJSON(w, http.StatusOK, TokenResponse{
			AccessToken: "test-access-token",
			TokenType:   "Bearer",
			ExpiresIn:   60,
		})
	})

	mux.HandleFunc("/admin/realms/acme", func(w http.ResponseWriter, r *http.Request) {
		adminOrNotFound(adminHandler, w, r)
	})
	mux.HandleFunc("/admin/realms/acme/", func(w http.ResponseWriter, r *http.Request) {
		adminOrNotFound(adminHandler, w, r)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	session := NewSession(SessionConfig{
		BaseURL:  server.URL,
		Realm:    "master",
		ClientID: "admin-cli",
		Username: "admin",
		Password: "admin",
		Interval: time.Minute,
	}, server.Client(), testLogger())

	return server, New(server.URL, "acme", session, server.Client(), testLogger())
}

func adminOrNotFound(h http.HandlerFunc, w http.ResponseWriter, r *http.Request) {
	if h != nil {
		h(w, r)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func testClassifier() *apperror.Classifier {
	return NewClassifier(apperror.LogNever, testLogger())
}

// TestSession_PasswordGrant проверяет аутентификацию админской сессии.
func TestSession_PasswordGrant(t *testing.T) {
	var form map[string]string
	_, client := setupMockKeycloak(t,
		func(w http.ResponseWriter, r *http.Request) {
			r.ParseForm()
			form = map[string]string{
				"grant_type": r.FormValue("grant_type"),
				"client_id":  r.FormValue("client_id"),
				"username":   r.FormValue("username"),
			}
			writeJSON(w, http.StatusOK, TokenResponse{AccessToken: "t1", ExpiresIn: 60})
		},
		nil,
	)

	token, err := client.tokens.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "t1" {
		t.Errorf("token = %q, ожидалось t1", token)
	}
	if form["grant_type"] != "password" || form["client_id"] != "admin-cli" || form["username"] != "admin" {
		t.Errorf("неожиданные параметры запроса токена: %v", form)
	}
}

// TestSession_RenewOnce проверяет, что устаревший токен обновляется один раз.
func TestSession_RenewOnce(t *testing.T) {
	var tokenRequests atomic.Int32
	_, client := setupMockKeycloak(t,
		func(w http.ResponseWriter, r *http.Request) {
			n := tokenRequests.Add(1)
			writeJSON(w, http.StatusOK, TokenResponse{AccessToken: "t" + strconv.Itoa(int(n)), ExpiresIn: 60})
		},
		nil,
	)
	ctx := context.Background()

	first, _ := client.tokens.Token(ctx)
	second, err := client.tokens.Renew(ctx, first)
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if second == first {
		t.Fatal("Renew должен был выдать новый токен")
	}

	// Повторный Renew с тем же устаревшим токеном не делает запрос.
	third, _ := client.tokens.Renew(ctx, first)
	if third != second {
		t.Errorf("Renew(stale) = %q, ожидалось %q", third, second)
	}
	if got := tokenRequests.Load(); got != 2 {
		t.Errorf("запросов токена = %d, ожидалось 2", got)
	}
}

// TestSession_StartStop проверяет фоновую переаутентификацию.
func TestSession_StartStop(t *testing.T) {
	var tokenRequests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := tokenRequests.Add(1)
		writeJSON(w, http.StatusOK, TokenResponse{AccessToken: fmt.Sprintf("t%d", n), ExpiresIn: 60})
	}))
	defer server.Close()

	session := NewSession(SessionConfig{
		BaseURL:  server.URL,
		Realm:    "master",
		ClientID: "admin-cli",
		Interval: 20 * time.Millisecond,
	}, server.Client(), testLogger())

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	session.Stop()

	if got := tokenRequests.Load(); got < 2 {
		t.Errorf("запросов токена = %d, ожидалось не меньше 2", got)
	}
	stopped := tokenRequests.Load()
	time.Sleep(60 * time.Millisecond)
	if tokenRequests.Load() != stopped {
		t.Error("переаутентификация продолжилась после Stop")
	}
}

// TestClient_RetryOn401 проверяет однократный повтор после 401.
func TestClient_RetryOn401(t *testing.T) {
	var tokenRequests, adminRequests atomic.Int32
	_, client := setupMockKeycloak(t,
		func(w http.ResponseWriter, r *http.Request) {
			n := tokenRequests.Add(1)
			writeJSON(w, http.StatusOK, TokenResponse{AccessToken: fmt.Sprintf("t%d", n), ExpiresIn: 60})
		},
		func(w http.ResponseWriter, r *http.Request) {
			adminRequests.Add(1)
			if r.Header.Get("Authorization") != "Bearer t2" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			writeJSON(w, http.StatusOK, RealmRepresentation{Realm: "acme", Enabled: true})
		},
	)

	exists, err := client.RealmExists(context.Background())
	if err != nil {
		t.Fatalf("RealmExists: %v", err)
	}
	if !exists {
		t.Error("ожидалось exists = true")
	}
	if tokenRequests.Load() != 2 || adminRequests.Load() != 2 {
		t.Errorf("token=%d admin=%d, ожидалось 2/2", tokenRequests.Load(), adminRequests.Load())
	}
}

// TestClient_RetryOn401_Once проверяет, что повтор выполняется только один раз.
func TestClient_RetryOn401_Once(t *testing.T) {
	var adminRequests atomic.Int32
	_, client := setupMockKeycloak(t, nil, func(w http.ResponseWriter, r *http.Request) {
		adminRequests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.RealmExists(context.Background())
	var unauthorized *UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("ожидалась UnauthorizedError, получено %v", err)
	}
	if adminRequests.Load() != 2 {
		t.Errorf("запросов = %d, ожидалось 2", adminRequests.Load())
	}
}

func TestClient_RealmLifecycle(t *testing.T) {
	_, client := setupMockKeycloak(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	ctx := context.Background()

	exists, err := client.RealmExists(ctx)
	if err != nil || exists {
		t.Errorf("RealmExists = (%v, %v), ожидалось (false, nil)", exists, err)
	}
	if err := client.DeleteRealm(ctx); err != nil {
		t.Errorf("DeleteRealm отсутствующего realm: %v", err)
	}
}

func TestClient_CreateGroup(t *testing.T) {
	var gotPath string
	var gotBody GroupRepresentation
	_, client := setupMockKeycloak(t, nil, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Location", "http://kc/admin/realms/acme/groups/new-group-id")
		w.WriteHeader(http.StatusCreated)
	})

	id, err := client.CreateGroup(context.Background(), idp.CreateGroupInput{
		Name:       "users",
		ParentID:   "parent-id",
		Attributes: map[string][]string{"isDefault": {"yes"}},
	})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if id != "new-group-id" {
		t.Errorf("id = %q, ожидалось new-group-id", id)
	}
	if gotPath != "/admin/realms/acme/groups/parent-id/children" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody.Attributes["isDefault"][0] != "yes" {
		t.Errorf("атрибуты не переданы: %v", gotBody.Attributes)
	}
}

// TestClient_ListGroupChildren_Paging проверяет обход всех страниц подгрупп.
func TestClient_ListGroupChildren_Paging(t *testing.T) {
	const total = childrenPageSize + 5
	_, client := setupMockKeycloak(t, nil, func(w http.ResponseWriter, r *http.Request) {
		first, _ := strconv.Atoi(r.URL.Query().Get("first"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("max"))
		var page []GroupRepresentation
		for i := first; i < total && i < first+limit; i++ {
			page = append(page, GroupRepresentation{ID: fmt.Sprintf("g%d", i), Name: fmt.Sprintf("group-%d", i)})
		}
		writeJSON(w, http.StatusOK, page)
	})

	children, err := client.ListGroupChildren(context.Background(), "root")
	if err != nil {
		t.Fatalf("ListGroupChildren: %v", err)
	}
	if len(children) != total {
		t.Fatalf("len = %d, ожидалось %d", len(children), total)
	}
	if children[0].ParentID != "root" {
		t.Errorf("ParentID = %q, ожидалось root", children[0].ParentID)
	}
}

func TestClient_FindGroupByName_TopLevel(t *testing.T) {
	_, client := setupMockKeycloak(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("exact") != "true" {
			t.Errorf("ожидался точный поиск: %s", r.URL.RawQuery)
		}
		// Keycloak возвращает и группы, у которых совпала подгруппа.
		writeJSON(w, http.StatusOK, []GroupRepresentation{
			{ID: "other", Name: "acme-old"},
			{ID: "acme-id", Name: "acme", Path: "/acme"},
		})
	})

	group, err := client.FindGroupByName(context.Background(), "", "acme")
	if err != nil {
		t.Fatalf("FindGroupByName: %v", err)
	}
	if group == nil || group.ID != "acme-id" {
		t.Errorf("group = %+v, ожидалась acme-id", group)
	}

	missing, err := client.FindGroupByName(context.Background(), "", "nope")
	if err != nil || missing != nil {
		t.Errorf("FindGroupByName(nope) = (%v, %v), ожидалось (nil, nil)", missing, err)
	}
}

func TestClient_GetGroupByPath(t *testing.T) {
	var gotPath string
	_, client := setupMockKeycloak(t, nil, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeJSON(w, http.StatusOK, GroupRepresentation{ID: "web-id", Name: "web", Path: "/acme/portal/web"})
	})

	group, err := client.GetGroupByPath(context.Background(), "/acme/portal/web")
	if err != nil {
		t.Fatalf("GetGroupByPath: %v", err)
	}
	if gotPath != "/admin/realms/acme/group-by-path/acme/portal/web" {
		t.Errorf("path = %q", gotPath)
	}
	if group.ID != "web-id" {
		t.Errorf("ID = %q", group.ID)
	}
}

// TestClient_CreateClientRole_Composite проверяет регистрацию составной роли.
func TestClient_CreateClientRole_Composite(t *testing.T) {
	var compositeCalls atomic.Int32
	_, client := setupMockKeycloak(t, nil, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/admin/realms/acme/clients/c-uuid/roles":
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet && r.URL.Path == "/admin/realms/acme/clients/c-uuid/roles/reader":
			writeJSON(w, http.StatusOK, RoleRepresentation{ID: "reader-id", Name: "reader"})
		case r.Method == http.MethodPost && r.URL.Path == "/admin/realms/acme/roles-by-id/writer-id/composites":
			var roles []RoleRepresentation
			json.NewDecoder(r.Body).Decode(&roles)
			if len(roles) != 1 || roles[0].ID != "reader-id" {
				t.Errorf("неожиданное тело composites: %+v", roles)
			}
			compositeCalls.Add(1)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("неожиданный запрос %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	role, err := client.CreateClientRole(context.Background(), idp.CreateRoleInput{
		ClientUUID:   "c-uuid",
		Name:         "reader",
		ParentRoleID: "writer-id",
	})
	if err != nil {
		t.Fatalf("CreateClientRole: %v", err)
	}
	if role.ID != "reader-id" {
		t.Errorf("role.ID = %q", role.ID)
	}
	if compositeCalls.Load() != 1 {
		t.Errorf("composites вызван %d раз, ожидалось 1", compositeCalls.Load())
	}
}

func TestClient_ListRoleComposites(t *testing.T) {
	_, client := setupMockKeycloak(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/admin/realms/acme/roles-by-id/writer-id/composites" {
			t.Errorf("неожиданный запрос %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, []RoleRepresentation{{ID: "reader-id", Name: "reader"}})
	})

	roles, err := client.ListRoleComposites(context.Background(), "writer-id")
	if err != nil {
		t.Fatalf("ListRoleComposites: %v", err)
	}
	if len(roles) != 1 || roles[0].ID != "reader-id" || roles[0].Name != "reader" {
		t.Errorf("roles = %+v", roles)
	}
}

func TestClient_FindClientByClientID(t *testing.T) {
	_, client := setupMockKeycloak(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("clientId") != "portal-web" {
			t.Errorf("clientId = %q", r.URL.Query().Get("clientId"))
		}
		writeJSON(w, http.StatusOK, []ClientRepresentation{
			{ID: "uuid-1", ClientID: "portal-web", PublicClient: true, DirectAccessGrantsEnabled: true},
		})
	})

	found, err := client.FindClientByClientID(context.Background(), "portal-web")
	if err != nil {
		t.Fatalf("FindClientByClientID: %v", err)
	}
	if found == nil || found.ID != "uuid-1" || !found.PublicClient {
		t.Errorf("client = %+v", found)
	}
}

func TestClient_CreatePublicClient(t *testing.T) {
	var body ClientRepresentation
	_, client := setupMockKeycloak(t, nil, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Location", "http://kc/admin/realms/acme/clients/uuid-2")
		w.WriteHeader(http.StatusCreated)
	})

	id, err := client.CreatePublicClient(context.Background(), idp.CreateClientInput{ClientID: "portal-web", Name: "web"})
	if err != nil {
		t.Fatalf("CreatePublicClient: %v", err)
	}
	if id != "uuid-2" {
		t.Errorf("id = %q", id)
	}
	if !body.PublicClient || !body.DirectAccessGrantsEnabled || body.ServiceAccountsEnabled {
		t.Errorf("неверная политика клиента: %+v", body)
	}
}

// TestFacade_ClassifiesConflict проверяет классификацию ответа 409.
func TestFacade_ClassifiesConflict(t *testing.T) {
	_, client := setupMockKeycloak(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"errorMessage": "Top level group named 'acme' already exists.",
		})
	})
	facade := client.Facade(testClassifier())

	_, err := facade.Groups.Create(context.Background(), idp.CreateGroupInput{Name: "acme"})

	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("ожидался *apperror.Error, получено %T: %v", err, err)
	}
	if appErr.Code != "TOP_LEVEL_GROUP_ALREADY_EXISTS" || appErr.Status() != http.StatusConflict {
		t.Errorf("получено %s (%d)", appErr.Code, appErr.Status())
	}
	if appErr.Context["groupName"] != "acme" || appErr.Context["op"] != "groups.create" {
		t.Errorf("контекст места вызова потерян: %v", appErr.Context)
	}
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Error("исходная ConflictError недоступна через errors.As")
	}
}

func TestFacade_ClassifiesStatuses(t *testing.T) {
	tests := []struct {
		status int
		body   map[string]string
		kind   apperror.Kind
		code   string
	}{
		{http.StatusNotFound, map[string]string{"error": "Could not find client"}, apperror.KindNotFound, "IDP_NOT_FOUND"},
		{http.StatusForbidden, map[string]string{"error": "unknown_error"}, apperror.KindAuthorization, "IDP_FORBIDDEN"},
		{http.StatusBadRequest, map[string]string{"errorMessage": "invalid name"}, apperror.KindValidation, "IDP_BAD_REQUEST"},
		{http.StatusConflict, map[string]string{"errorMessage": "Client portal-web already exists"}, apperror.KindConflict, "CLIENT_ALREADY_EXISTS"},
		{http.StatusConflict, map[string]string{"errorMessage": "User exists with same username"}, apperror.KindConflict, "USER_ALREADY_EXISTS"},
		{http.StatusInternalServerError, map[string]string{}, apperror.KindExternalService, "IDP_REQUEST_FAILED"},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status)+"_"+tt.code, func(t *testing.T) {
			_, client := setupMockKeycloak(t, nil, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			facade := client.Facade(testClassifier())

			_, err := facade.Clients.Create(context.Background(), idp.CreateClientInput{ClientID: "portal-web"})
			if !errors.Is(err, apperror.New(tt.kind, tt.code, "")) {
				t.Errorf("получено %v, ожидалось %s/%s", err, tt.kind, tt.code)
			}
		})
	}
}

func TestFacade_Network(t *testing.T) {
	server, client := setupMockKeycloak(t, nil, nil)
	facade := client.Facade(testClassifier())
	server.Close()

	_, err := facade.Realm.Exists(context.Background())
	if apperror.KindOf(err) != apperror.KindNetwork {
		t.Errorf("ожидалась Network, получено %v", err)
	}
}

func TestFacade_PasswordGrant(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/acme/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.FormValue("password") != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid user credentials",
			})
			return
		}
		if r.FormValue("client_id") != "portal-web" {
			t.Errorf("client_id = %q", r.FormValue("client_id"))
		}
		writeJSON(w, http.StatusOK, idp.TokenSet{AccessToken: "user-token", TokenType: "Bearer", ExpiresIn: 300})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := New(server.URL, "acme", nil, server.Client(), testLogger())
	facade := client.Facade(testClassifier())

	tokens, err := facade.Tokens.PasswordGrant(context.Background(), "portal-web", "alice", "secret")
	if err != nil {
		t.Fatalf("PasswordGrant: %v", err)
	}
	if tokens.AccessToken != "user-token" {
		t.Errorf("AccessToken = %q", tokens.AccessToken)
	}

	_, err = facade.Tokens.PasswordGrant(context.Background(), "portal-web", "alice", "wrong")
	if !errors.Is(err, apperror.Authentication("INVALID_CREDENTIALS", "")) {
		t.Errorf("ожидалась INVALID_CREDENTIALS, получено %v", err)
	}
}

func TestClient_UserProfileRoundTrip(t *testing.T) {
	const profile = `{"attributes":[{"name":"username","displayName":"${username}",
		"validations":{"length":{"min":3,"max":255},"username-prohibited-characters":{},"up-username-not-idn-homograph":{}},
		"permissions":{"view":["admin","user"],"edit":["admin","user"]},"multivalued":false}],
		"groups":[{"name":"user-metadata"}],"unmanagedAttributePolicy":"ENABLED"}`

	var saved idp.UserProfileConfig
	_, client := setupMockKeycloak(t, nil, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(profile))
		case http.MethodPut:
			json.NewDecoder(r.Body).Decode(&saved)
			w.WriteHeader(http.StatusOK)
		}
	})
	ctx := context.Background()

	cfg, err := client.GetUserProfile(ctx)
	if err != nil {
		t.Fatalf("GetUserProfile: %v", err)
	}
	if !cfg.RelaxUsernameValidation() {
		t.Fatal("RelaxUsernameValidation должен был изменить конфигурацию")
	}
	if err := client.UpdateUserProfile(ctx, cfg); err != nil {
		t.Fatalf("UpdateUserProfile: %v", err)
	}

	if saved.HasValidator("username", idp.ValidatorProhibitedCharacters) {
		t.Error("валидатор username-prohibited-characters не снят")
	}
	if !saved.HasValidator("username", "length") {
		t.Error("валидатор length потерян")
	}
	if saved.UnmanagedAttributePolicy != "ENABLED" || !strings.Contains(string(saved.Groups), "user-metadata") {
		t.Errorf("неизвестные поля профиля потеряны: %+v", saved)
	}
}

func TestClient_Users(t *testing.T) {
	var created UserRepresentation
	var joined, verified bool
	_, client := setupMockKeycloak(t, nil, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/admin/realms/acme/users":
			json.NewDecoder(r.Body).Decode(&created)
			w.Header().Set("Location", "http://kc/admin/realms/acme/users/u-1")
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/admin/realms/acme/users/u-1/groups/g-1":
			joined = true
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPut && r.URL.Path == "/admin/realms/acme/users/u-1":
			var body map[string]bool
			json.NewDecoder(r.Body).Decode(&body)
			verified = body["emailVerified"]
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && r.URL.Path == "/admin/realms/acme/users":
			writeJSON(w, http.StatusOK, []UserRepresentation{})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	id, err := client.CreateUser(ctx, idp.CreateUserInput{Username: "alice", Email: "a@acme.io", Password: "pw"})
	if err != nil || id != "u-1" {
		t.Fatalf("CreateUser = (%q, %v)", id, err)
	}
	if !created.Enabled || len(created.Credentials) != 1 || created.Credentials[0].Temporary {
		t.Errorf("неверное представление пользователя: %+v", created)
	}
	if err := client.JoinGroup(ctx, "u-1", "g-1"); err != nil || !joined {
		t.Errorf("JoinGroup: %v", err)
	}
	if err := client.SetEmailVerified(ctx, "u-1", true); err != nil || !verified {
		t.Errorf("SetEmailVerified: %v", err)
	}
	if user, err := client.FindUserByUsername(ctx, "bob"); err != nil || user != nil {
		t.Errorf("FindUserByUsername(bob) = (%v, %v)", user, err)
	}
}

func TestClient_CheckReady(t *testing.T) {
	_, client := setupMockKeycloak(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, RealmRepresentation{Realm: "acme", Enabled: true})
	})

	status, msg := client.CheckReady()
	if status != "ok" {
		t.Errorf("status = %q (%s), ожидалось ok", status, msg)
	}
}

func TestClient_CheckReady_Fail(t *testing.T) {
	_, client := setupMockKeycloak(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
		nil,
	)

	status, _ := client.CheckReady()
	if status != "fail" {
		t.Errorf("status = %q, ожидалось fail", status)
	}
}

func TestClient_URLs(t *testing.T) {
	client := New("https://kc.example.com/", "acme", nil, nil, testLogger())
	if client.Issuer() != "https://kc.example.com/realms/acme" {
		t.Errorf("Issuer = %q", client.Issuer())
	}
	if client.JWKSURL() != "https://kc.example.com/realms/acme/protocol/openid-connect/certs" {
		t.Errorf("JWKSURL = %q", client.JWKSURL())
	}
}
