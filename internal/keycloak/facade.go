// facade.go — классифицированный фасад idp поверх Client.
//
// Каждый метод фасада — «голая» операция Client, обёрнутая в
// apperror.Call с фиксированным контекстом места вызова. Любая ошибка
// (и паника) проходит через классификатор ровно один раз.
package keycloak

import (
	"context"

	"github.com/bigkaa/realmbuilder/internal/apperror"
	"github.com/bigkaa/realmbuilder/internal/idp"
)

// Facade строит фасад idp для рабочего realm клиента.
func (c *Client) Facade(cls *apperror.Classifier) idp.Facade {
	return idp.Facade{
		Realm:       &realmAPI{c: c, cls: cls},
		Groups:      &groupAPI{c: c, cls: cls},
		Clients:     &clientAPI{c: c, cls: cls},
		Roles:       &roleAPI{c: c, cls: cls},
		UserProfile: &profileAPI{c: c, cls: cls},
		Users:       &userAPI{c: c, cls: cls},
		Tokens:      &tokenAPI{c: c, cls: cls},
	}
}

// call — контекст места вызова: операция и рабочий realm.
func (c *Client) call(op string, kv ...any) apperror.Context {
	ctx := apperror.Context{"op": op, "realm": c.realm}
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			ctx[key] = kv[i+1]
		}
	}
	return ctx
}

// --- Realm ---

type realmAPI struct {
	c   *Client
	cls *apperror.Classifier
}

func (a *realmAPI) Exists(ctx context.Context) (bool, error) {
	return apperror.Call(ctx, a.cls, a.c.call("realm.exists"), a.c.RealmExists)
}

func (a *realmAPI) Create(ctx context.Context) (string, error) {
	return apperror.Call(ctx, a.cls, a.c.call("realm.create"), a.c.CreateRealm)
}

func (a *realmAPI) Delete(ctx context.Context) error {
	return apperror.Exec(ctx, a.cls, a.c.call("realm.delete"), a.c.DeleteRealm)
}

// --- Groups ---

type groupAPI struct {
	c   *Client
	cls *apperror.Classifier
}

func (a *groupAPI) Create(ctx context.Context, in idp.CreateGroupInput) (string, error) {
	meta := a.c.call("groups.create", "groupName", in.Name, "parentId", in.ParentID)
	return apperror.Call(ctx, a.cls, meta, func(ctx context.Context) (string, error) {
		return a.c.CreateGroup(ctx, in)
	})
}

func (a *groupAPI) FindByName(ctx context.Context, parentID, name string) (*idp.Group, error) {
	meta := a.c.call("groups.findByName", "groupName", name, "parentId", parentID)
	return apperror.Call(ctx, a.cls, meta, func(ctx context.Context) (*idp.Group, error) {
		return a.c.FindGroupByName(ctx, parentID, name)
	})
}

func (a *groupAPI) ListChildren(ctx context.Context, parentID string) ([]idp.Group, error) {
	meta := a.c.call("groups.listChildren", "parentId", parentID)
	return apperror.Call(ctx, a.cls, meta, func(ctx context.Context) ([]idp.Group, error) {
		return a.c.ListGroupChildren(ctx, parentID)
	})
}

func (a *groupAPI) GetByID(ctx context.Context, id string) (*idp.Group, error) {
	meta := a.c.call("groups.getById", "groupId", id)
	return apperror.Call(ctx, a.cls, meta, func(ctx context.Context) (*idp.Group, error) {
		return a.c.GetGroup(ctx, id)
	})
}

func (a *groupAPI) GetByPath(ctx context.Context, path string) (*idp.Group, error) {
	meta := a.c.call("groups.getByPath", "path", path)
	return apperror.Call(ctx, a.cls, meta, func(ctx context.Context) (*idp.Group, error) {
		return a.c.GetGroupByPath(ctx, path)
	})
}

func (a *groupAPI) MapRole(ctx context.Context, groupID, clientUUID string, role *idp.Role) error {
	meta := a.c.call("groups.mapRole", "groupId", groupID, "clientUuid", clientUUID, "roleName", role.Name)
	return apperror.Exec(ctx, a.cls, meta, func(ctx context.Context) error {
		return a.c.MapGroupClientRole(ctx, groupID, clientUUID, role)
	})
}

// --- Clients ---

type clientAPI struct {
	c   *Client
	cls *apperror.Classifier
}

func (a *clientAPI) FindByClientID(ctx context.Context, clientID string) (*idp.Client, error) {
	meta := a.c.call("clients.findByClientId", "clientId", clientID)
	return apperror.Call(ctx, a.cls, meta, func(ctx context.Context) (*idp.Client, error) {
		return a.c.FindClientByClientID(ctx, clientID)
	})
}

func (a *clientAPI) Create(ctx context.Context, in idp.CreateClientInput) (string, error) {
	meta := a.c.call("clients.create", "clientId", in.ClientID)
	return apperror.Call(ctx, a.cls, meta, func(ctx context.Context) (string, error) {
		return a.c.CreatePublicClient(ctx, in)
	})
}

// --- Roles ---

type roleAPI struct {
	c   *Client
	cls *apperror.Classifier
}

func (a *roleAPI) FindByName(ctx context.Context, clientUUID, name string) (*idp.Role, error) {
	meta := a.c.call("roles.findByName", "clientUuid", clientUUID, "roleName", name)
	return apperror.Call(ctx, a.cls, meta, func(ctx context.Context) (*idp.Role, error) {
		return a.c.FindClientRole(ctx, clientUUID, name)
	})
}

func (a *roleAPI) Create(ctx context.Context, in idp.CreateRoleInput) (*idp.Role, error) {
	meta := a.c.call("roles.create", "clientUuid", in.ClientUUID, "roleName", in.Name, "parentRoleId", in.ParentRoleID)
	return apperror.Call(ctx, a.cls, meta, func(ctx context.Context) (*idp.Role, error) {
		return a.c.CreateClientRole(ctx, in)
	})
}

func (a *roleAPI) Composites(ctx context.Context, roleID string) ([]idp.Role, error) {
	meta := a.c.call("roles.composites", "roleId", roleID)
	return apperror.Call(ctx, a.cls, meta, func(ctx context.Context) ([]idp.Role, error) {
		return a.c.ListRoleComposites(ctx, roleID)
	})
}

func (a *roleAPI) AddComposite(ctx context.Context, parentID string, role *idp.Role) error {
	meta := a.c.call("roles.addComposite", "parentRoleId", parentID, "roleName", role.Name)
	return apperror.Exec(ctx, a.cls, meta, func(ctx context.Context) error {
		return a.c.AddRoleComposites(ctx, parentID, role)
	})
}

// --- User profile ---

type profileAPI struct {
	c   *Client
	cls *apperror.Classifier
}

func (a *profileAPI) Get(ctx context.Context) (*idp.UserProfileConfig, error) {
	return apperror.Call(ctx, a.cls, a.c.call("userProfile.get"), a.c.GetUserProfile)
}

func (a *profileAPI) Update(ctx context.Context, cfg *idp.UserProfileConfig) error {
	return apperror.Exec(ctx, a.cls, a.c.call("userProfile.update"), func(ctx context.Context) error {
		return a.c.UpdateUserProfile(ctx, cfg)
	})
}

// --- Users ---

type userAPI struct {
	c   *Client
	cls *apperror.Classifier
}

func (a *userAPI) FindByUsername(ctx context.Context, username string) (*idp.User, error) {
	meta := a.c.call("users.findByUsername", "username", username)
	return apperror.Call(ctx, a.cls, meta, func(ctx context.Context) (*idp.User, error) {
		return a.c.FindUserByUsername(ctx, username)
	})
}

func (a *userAPI) Create(ctx context.Context, in idp.CreateUserInput) (string, error) {
	meta := a.c.call("users.create", "username", in.Username)
	return apperror.Call(ctx, a.cls, meta, func(ctx context.Context) (string, error) {
		return a.c.CreateUser(ctx, in)
	})
}

func (a *userAPI) JoinGroup(ctx context.Context, userID, groupID string) error {
	meta := a.c.call("users.joinGroup", "userId", userID, "groupId", groupID)
	return apperror.Exec(ctx, a.cls, meta, func(ctx context.Context) error {
		return a.c.JoinGroup(ctx, userID, groupID)
	})
}

func (a *userAPI) SetEmailVerified(ctx context.Context, userID string, verified bool) error {
	meta := a.c.call("users.setEmailVerified", "userId", userID)
	return apperror.Exec(ctx, a.cls, meta, func(ctx context.Context) error {
		return a.c.SetEmailVerified(ctx, userID, verified)
	})
}

// --- Tokens ---

type tokenAPI struct {
	c   *Client
	cls *apperror.Classifier
}

func (a *tokenAPI) PasswordGrant(ctx context.Context, clientID, username, password string) (*idp.TokenSet, error) {
	meta := a.c.call("tokens.passwordGrant", "clientId", clientID, "username", username)
	return apperror.Call(ctx, a.cls, meta, func(ctx context.Context) (*idp.TokenSet, error) {
		return a.c.PasswordGrant(ctx, clientID, username, password)
	})
}
