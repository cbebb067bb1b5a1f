// models.go — представления ресурсов Keycloak Admin REST API.
package keycloak

import "github.com/bigkaa/realmbuilder/internal/idp"

// RealmRepresentation — краткая информация о realm.
type RealmRepresentation struct {
	ID      string `json:"id,omitempty"`
	Realm   string `json:"realm"`
	Enabled bool   `json:"enabled"`
}

// GroupRepresentation — группа в Keycloak.
type GroupRepresentation struct {
	ID            string              `json:"id,omitempty"`
	Name          string              `json:"name"`
	Path          string              `json:"path,omitempty"`
	ParentID      string              `json:"parentId,omitempty"`
	SubGroupCount int                 `json:"subGroupCount,omitempty"`
	Attributes    map[string][]string `json:"attributes,omitempty"`
}

func (g *GroupRepresentation) toIDP() *idp.Group {
	return &idp.Group{
		ID:         g.ID,
		Name:       g.Name,
		Path:       g.Path,
		ParentID:   g.ParentID,
		Attributes: g.Attributes,
	}
}

// ClientRepresentation — OAuth-клиент в Keycloak.
type ClientRepresentation struct {
	ID                        string            `json:"id,omitempty"`
	ClientID                  string            `json:"clientId"`
	Name                      string            `json:"name,omitempty"`
	Description               string            `json:"description,omitempty"`
	Enabled                   bool              `json:"enabled"`
	PublicClient              bool              `json:"publicClient"`
	DirectAccessGrantsEnabled bool              `json:"directAccessGrantsEnabled"`
	StandardFlowEnabled       bool              `json:"standardFlowEnabled"`
	ServiceAccountsEnabled    bool              `json:"serviceAccountsEnabled"`
	Attributes                map[string]string `json:"attributes,omitempty"`
}

func (c *ClientRepresentation) toIDP() *idp.Client {
	return &idp.Client{
		ID:                        c.ID,
		ClientID:                  c.ClientID,
		Name:                      c.Name,
		Description:               c.Description,
		PublicClient:              c.PublicClient,
		DirectAccessGrantsEnabled: c.DirectAccessGrantsEnabled,
	}
}

// RoleRepresentation — роль клиента в Keycloak.
type RoleRepresentation struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Composite   bool   `json:"composite,omitempty"`
	ClientRole  bool   `json:"clientRole,omitempty"`
	ContainerID string `json:"containerId,omitempty"`
}

func (r *RoleRepresentation) toIDP() *idp.Role {
	return &idp.Role{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Composite:   r.Composite,
	}
}

// UserRepresentation — пользователь в Keycloak.
type UserRepresentation struct {
	ID            string                     `json:"id,omitempty"`
	Username      string                     `json:"username,omitempty"`
	Email         string                     `json:"email,omitempty"`
	FirstName     string                     `json:"firstName,omitempty"`
	LastName      string                     `json:"lastName,omitempty"`
	Enabled       bool                       `json:"enabled"`
	EmailVerified bool                       `json:"emailVerified"`
	Attributes    map[string][]string        `json:"attributes,omitempty"`
	Credentials   []CredentialRepresentation `json:"credentials,omitempty"`
}

func (u *UserRepresentation) toIDP() *idp.User {
	return &idp.User{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Enabled:       u.Enabled,
		EmailVerified: u.EmailVerified,
		Attributes:    u.Attributes,
	}
}

// CredentialRepresentation — учётные данные пользователя.
type CredentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"` //nolint:gosec // G117: пароль передаётся в Keycloak
	Temporary bool   `json:"temporary"`
}
