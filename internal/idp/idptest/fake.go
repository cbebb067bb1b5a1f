// Пакет idptest — фасад idp в памяти для тестов реконсилятора и сервисов.
package idptest

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/bigkaa/realmbuilder/internal/apperror"
	"github.com/bigkaa/realmbuilder/internal/idp"
)

// Fake хранит состояние одного realm и считает вызовы по операциям
// ("groups.create", "roles.findByName" и т.п.).
type Fake struct {
	mu sync.Mutex

	realmExists bool
	groups      map[string]*idp.Group
	clients     map[string]*idp.Client
	roles       map[string]map[string]*idp.Role // clientUUID → name → роль
	composites  map[string][]string             // id родителя → id дочерних ролей
	mappings    map[string][]string             // groupID → "clientUUID/roleName"
	users       map[string]*idp.User
	passwords   map[string]string // username → пароль
	memberships map[string][]string
	profile     *idp.UserProfileConfig

	calls map[string]int
	fail  map[string]error
	seq   int
}

// New создаёт пустой фасад. Профиль пользователя содержит валидаторы
// username по умолчанию, как в свежем realm Keycloak.
func New() *Fake {
	return &Fake{
		groups:      map[string]*idp.Group{},
		clients:     map[string]*idp.Client{},
		roles:       map[string]map[string]*idp.Role{},
		composites:  map[string][]string{},
		mappings:    map[string][]string{},
		users:       map[string]*idp.User{},
		passwords:   map[string]string{},
		memberships: map[string][]string{},
		profile: &idp.UserProfileConfig{Attributes: []idp.ProfileAttribute{{
			Name: "username",
			Validations: map[string]json.RawMessage{
				"length":                          json.RawMessage(`{"min":3,"max":255}`),
				idp.ValidatorProhibitedCharacters: json.RawMessage(`{}`),
				idp.ValidatorIDNHomograph:         json.RawMessage(`{}`),
			},
		}}},
		calls: map[string]int{},
		fail:  map[string]error{},
	}
}

// Facade возвращает фасад поверх состояния f.
func (f *Fake) Facade() idp.Facade {
	return idp.Facade{
		Realm:       fakeRealm{f},
		Groups:      fakeGroups{f},
		Clients:     fakeClients{f},
		Roles:       fakeRoles{f},
		UserProfile: fakeProfile{f},
		Users:       fakeUsers{f},
		Tokens:      fakeTokens{f},
	}
}

// FailOn заставляет операцию op возвращать err.
func (f *Fake) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

// Calls возвращает число вызовов операции op.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls возвращает общее число вызовов фасада.
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// Creates возвращает число вызовов всех операций создания.
func (f *Fake) Creates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for op, n := range f.calls {
		if strings.HasSuffix(op, ".create") {
			total += n
		}
	}
	return total
}

// ResetCalls обнуляет счётчики вызовов.
func (f *Fake) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = map[string]int{}
}

// GroupByPath возвращает группу по полному пути.
func (f *Fake) GroupByPath(path string) *idp.Group {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groupByPath(path)
}

// ClientByClientID возвращает OAuth-клиент по clientId.
func (f *Fake) ClientByClientID(clientID string) *idp.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.clients {
		if c.ClientID == clientID {
			cp := *c
			return &cp
		}
	}
	return nil
}

// Role возвращает роль клиента clientUUID по имени.
func (f *Fake) Role(clientUUID, name string) *idp.Role {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r := f.roles[clientUUID][name]; r != nil {
		cp := *r
		return &cp
	}
	return nil
}

// Composites возвращает имена ролей, входящих в состав роли parentID.
func (f *Fake) Composites(clientUUID, parentID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, id := range f.composites[parentID] {
		for _, r := range f.roles[clientUUID] {
			if r.ID == id {
				names = append(names, r.Name)
			}
		}
	}
	return names
}

// Mappings возвращает назначенные группе роли в виде "clientUUID/roleName".
func (f *Fake) Mappings(groupID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.mappings[groupID])
}

// User возвращает пользователя по username.
func (f *Fake) User(username string) *idp.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp
		}
	}
	return nil
}

// Memberships возвращает группы пользователя.
func (f *Fake) Memberships(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.memberships[userID])
}

// Profile возвращает текущую конфигурацию профиля.
func (f *Fake) Profile() *idp.UserProfileConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile
}

// enter учитывает вызов и возвращает внедрённую ошибку. Вызывается под f.mu.
func (f *Fake) enter(op string) error {
	f.calls[op]++
	return f.fail[op]
}

func (f *Fake) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *Fake) groupByPath(path string) *idp.Group {
	for _, g := range f.groups {
		if g.Path == path {
			cp := *g
			return &cp
		}
	}
	return nil
}

func (f *Fake) children(parentID string) []idp.Group {
	var out []idp.Group
	for _, g := range f.groups {
		if g.ParentID == parentID {
			out = append(out, *g)
		}
	}
	slices.SortFunc(out, func(a, b idp.Group) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// --- Realm ---

type fakeRealm struct{ f *Fake }

func (r fakeRealm) Exists(context.Context) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if err := r.f.enter("realm.exists"); err != nil {
		return false, err
	}
	return r.f.realmExists, nil
}

func (r fakeRealm) Create(context.Context) (string, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if err := r.f.enter("realm.create"); err != nil {
		return "", err
	}
	if r.f.realmExists {
		return "", apperror.Conflict("REALM_ALREADY_EXISTS", "realm уже существует")
	}
	r.f.realmExists = true
	return "realm", nil
}

func (r fakeRealm) Delete(context.Context) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if err := r.f.enter("realm.delete"); err != nil {
		return err
	}
	r.f.realmExists = false
	return nil
}

// --- Groups ---

type fakeGroups struct{ f *Fake }

func (g fakeGroups) Create(_ context.Context, in idp.CreateGroupInput) (string, error) {
	f := g.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("groups.create"); err != nil {
		return "", err
	}

	path := "/" + in.Name
	if in.ParentID != "" {
		parent, ok := f.groups[in.ParentID]
		if !ok {
			return "", apperror.NotFound("IDP_NOT_FOUND", "родительская группа не найдена")
		}
		path = parent.Path + "/" + in.Name
	}
	if f.groupByPath(path) != nil {
		if in.ParentID == "" {
			return "", apperror.Conflict("TOP_LEVEL_GROUP_ALREADY_EXISTS", "группа верхнего уровня уже существует")
		}
		return "", apperror.Conflict("SUB_GROUP_ALREADY_EXISTS", "подгруппа уже существует")
	}

	id := f.nextID("group")
	attrs := map[string][]string{}
	for k, v := range in.Attributes {
		attrs[k] = slices.Clone(v)
	}
	f.groups[id] = &idp.Group{ID: id, Name: in.Name, Path: path, ParentID: in.ParentID, Attributes: attrs}
	return id, nil
}

func (g fakeGroups) FindByName(_ context.Context, parentID, name string) (*idp.Group, error) {
	f := g.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("groups.findByName"); err != nil {
		return nil, err
	}
	for _, c := range f.children(parentID) {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, nil
}

func (g fakeGroups) ListChildren(_ context.Context, parentID string) ([]idp.Group, error) {
	f := g.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("groups.listChildren"); err != nil {
		return nil, err
	}
	return f.children(parentID), nil
}

func (g fakeGroups) GetByID(_ context.Context, id string) (*idp.Group, error) {
	f := g.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("groups.getById"); err != nil {
		return nil, err
	}
	if found, ok := f.groups[id]; ok {
		cp := *found
		cp.Attributes = maps.Clone(found.Attributes)
		return &cp, nil
	}
	return nil, nil
}

func (g fakeGroups) GetByPath(_ context.Context, path string) (*idp.Group, error) {
	f := g.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("groups.getByPath"); err != nil {
		return nil, err
	}
	return f.groupByPath(path), nil
}

func (g fakeGroups) MapRole(_ context.Context, groupID, clientUUID string, role *idp.Role) error {
	f := g.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("groups.mapRole"); err != nil {
		return err
	}
	registered, ok := f.roles[clientUUID][role.Name]
	if !ok || registered.ID != role.ID {
		return apperror.NotFound("IDP_NOT_FOUND", "роль не зарегистрирована у клиента")
	}
	key := clientUUID + "/" + role.Name
	if !slices.Contains(f.mappings[groupID], key) {
		f.mappings[groupID] = append(f.mappings[groupID], key)
	}
	return nil
}

// --- Clients ---

type fakeClients struct{ f *Fake }

func (c fakeClients) FindByClientID(_ context.Context, clientID string) (*idp.Client, error) {
	f := c.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("clients.findByClientId"); err != nil {
		return nil, err
	}
	for _, client := range f.clients {
		if client.ClientID == clientID {
			cp := *client
			return &cp, nil
		}
	}
	return nil, nil
}

func (c fakeClients) Create(_ context.Context, in idp.CreateClientInput) (string, error) {
	f := c.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("clients.create"); err != nil {
		return "", err
	}
	for _, client := range f.clients {
		if client.ClientID == in.ClientID {
			return "", apperror.Conflict("CLIENT_ALREADY_EXISTS", "OAuth-клиент уже существует")
		}
	}
	id := f.nextID("client")
	f.clients[id] = &idp.Client{
		ID:                        id,
		ClientID:                  in.ClientID,
		Name:                      in.Name,
		Description:               in.Description,
		PublicClient:              true,
		DirectAccessGrantsEnabled: true,
	}
	return id, nil
}

// --- Roles ---

type fakeRoles struct{ f *Fake }

func (r fakeRoles) FindByName(_ context.Context, clientUUID, name string) (*idp.Role, error) {
	f := r.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("roles.findByName"); err != nil {
		return nil, err
	}
	if role := f.roles[clientUUID][name]; role != nil {
		cp := *role
		return &cp, nil
	}
	return nil, nil
}

func (r fakeRoles) Create(_ context.Context, in idp.CreateRoleInput) (*idp.Role, error) {
	f := r.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("roles.create"); err != nil {
		return nil, err
	}
	if _, ok := f.clients[in.ClientUUID]; !ok {
		return nil, apperror.NotFound("IDP_NOT_FOUND", "клиент не найден")
	}
	if f.roles[in.ClientUUID] == nil {
		f.roles[in.ClientUUID] = map[string]*idp.Role{}
	}
	if _, ok := f.roles[in.ClientUUID][in.Name]; ok {
		return nil, apperror.Conflict("ROLE_ALREADY_EXISTS", "роль уже существует")
	}

	role := &idp.Role{ID: f.nextID("role"), Name: in.Name, Description: in.Description}
	f.roles[in.ClientUUID][in.Name] = role
	if in.ParentRoleID != "" {
		// Как в Keycloak: роль уже создана, а связь с родителем — отдельный запрос.
		if err := f.fail["roles.addComposite"]; err != nil {
			return nil, err
		}
		f.link(in.ParentRoleID, role.ID)
	}
	cp := *role
	return &cp, nil
}

func (r fakeRoles) Composites(_ context.Context, roleID string) ([]idp.Role, error) {
	f := r.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("roles.composites"); err != nil {
		return nil, err
	}
	var out []idp.Role
	for _, id := range f.composites[roleID] {
		if role := f.roleByID(id); role != nil {
			out = append(out, *role)
		}
	}
	return out, nil
}

func (r fakeRoles) AddComposite(_ context.Context, parentID string, role *idp.Role) error {
	f := r.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("roles.addComposite"); err != nil {
		return err
	}
	if f.roleByID(parentID) == nil || f.roleByID(role.ID) == nil {
		return apperror.NotFound("IDP_NOT_FOUND", "роль не найдена")
	}
	f.link(parentID, role.ID)
	return nil
}

// link добавляет роль childID в состав parentID. Вызывается под f.mu.
func (f *Fake) link(parentID, childID string) {
	if !slices.Contains(f.composites[parentID], childID) {
		f.composites[parentID] = append(f.composites[parentID], childID)
	}
	if parent := f.roleByID(parentID); parent != nil {
		parent.Composite = true
	}
}

// roleByID ищет роль среди всех клиентов. Вызывается под f.mu.
func (f *Fake) roleByID(id string) *idp.Role {
	for _, byName := range f.roles {
		for _, role := range byName {
			if role.ID == id {
				return role
			}
		}
	}
	return nil
}

// --- User profile ---

type fakeProfile struct{ f *Fake }

func (p fakeProfile) Get(context.Context) (*idp.UserProfileConfig, error) {
	f := p.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("userProfile.get"); err != nil {
		return nil, err
	}
	cp := *f.profile
	cp.Attributes = make([]idp.ProfileAttribute, len(f.profile.Attributes))
	for i, a := range f.profile.Attributes {
		a.Validations = maps.Clone(a.Validations)
		cp.Attributes[i] = a
	}
	return &cp, nil
}

func (p fakeProfile) Update(_ context.Context, cfg *idp.UserProfileConfig) error {
	f := p.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("userProfile.update"); err != nil {
		return err
	}
	f.profile = cfg
	return nil
}

// --- Users ---

type fakeUsers struct{ f *Fake }

func (u fakeUsers) FindByUsername(_ context.Context, username string) (*idp.User, error) {
	f := u.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("users.findByUsername"); err != nil {
		return nil, err
	}
	for _, user := range f.users {
		if user.Username == username {
			cp := *user
			return &cp, nil
		}
	}
	return nil, nil
}

func (u fakeUsers) Create(_ context.Context, in idp.CreateUserInput) (string, error) {
	f := u.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("users.create"); err != nil {
		return "", err
	}
	for _, user := range f.users {
		if user.Username == in.Username {
			return "", apperror.Conflict("USER_ALREADY_EXISTS", "пользователь с таким именем уже существует")
		}
		if in.Email != "" && user.Email == in.Email {
			return "", apperror.Conflict("EMAIL_ALREADY_EXISTS", "пользователь с таким email уже существует")
		}
	}
	id := f.nextID("user")
	f.users[id] = &idp.User{
		ID:            id,
		Username:      in.Username,
		Email:         in.Email,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Enabled:       true,
		EmailVerified: in.EmailVerified,
		Attributes:    in.Attributes,
	}
	f.passwords[in.Username] = in.Password
	return id, nil
}

func (u fakeUsers) JoinGroup(_ context.Context, userID, groupID string) error {
	f := u.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("users.joinGroup"); err != nil {
		return err
	}
	if _, ok := f.users[userID]; !ok {
		return apperror.NotFound("IDP_NOT_FOUND", "пользователь не найден")
	}
	if !slices.Contains(f.memberships[userID], groupID) {
		f.memberships[userID] = append(f.memberships[userID], groupID)
	}
	return nil
}

func (u fakeUsers) SetEmailVerified(_ context.Context, userID string, verified bool) error {
	f := u.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("users.setEmailVerified"); err != nil {
		return err
	}
	user, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("IDP_NOT_FOUND", "пользователь не найден")
	}
	user.EmailVerified = verified
	return nil
}

// --- Tokens ---

type fakeTokens struct{ f *Fake }

func (t fakeTokens) PasswordGrant(_ context.Context, clientID, username, password string) (*idp.TokenSet, error) {
	f := t.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("tokens.passwordGrant"); err != nil {
		return nil, err
	}
	stored, ok := f.passwords[username]
	if !ok || stored != password {
		return nil, apperror.Authentication("INVALID_CREDENTIALS", "неверные учётные данные")
	}
	return &idp.TokenSet{
		AccessToken: "token-" + clientID + "-" + username,
		TokenType:   "Bearer",
		ExpiresIn:   300,
	}, nil
}
