package keycloak

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bigkaa/realmbuilder/internal/idp"
)

// FindClientRole возвращает роль клиента clientUUID по имени или nil.
func (c *Client) FindClientRole(ctx context.Context, clientUUID, name string) (*idp.Role, error) {
	path := fmt.Sprintf("/clients/%s/roles/%s", url.PathEscape(clientUUID), url.PathEscape(name))
	resp, err := c.doAuthorized(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, nil
	}

	var role RoleRepresentation
	if err := decodeResponse(resp, &role); err != nil {
		return nil, fmt.Errorf("FindClientRole: %w", err)
	}
	return role.toIDP(), nil
}

// CreateClientRole создаёт роль клиента. Keycloak не возвращает id роли
// в Location, поэтому роль перечитывается по имени. При заданном
// ParentRoleID роль добавляется в состав родительской.
func (c *Client) CreateClientRole(ctx context.Context, in idp.CreateRoleInput) (*idp.Role, error) {
	path := "/clients/" + url.PathEscape(in.ClientUUID) + "/roles"
	resp, err := c.doAuthorized(ctx, http.MethodPost, path, RoleRepresentation{
		Name:        in.Name,
		Description: in.Description,
	})
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	role, err := c.FindClientRole(ctx, in.ClientUUID, in.Name)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("роль %s не найдена после создания", in.Name)
	}

	if in.ParentRoleID != "" {
		if err := c.AddRoleComposites(ctx, in.ParentRoleID, role); err != nil {
			return nil, err
		}
	}
	return role, nil
}

// ListRoleComposites возвращает роли, входящие в состав роли roleID.
func (c *Client) ListRoleComposites(ctx context.Context, roleID string) ([]idp.Role, error) {
	path := "/roles-by-id/" + url.PathEscape(roleID) + "/composites"
	resp, err := c.doAuthorized(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var reps []RoleRepresentation
	if err := decodeResponse(resp, &reps); err != nil {
		return nil, fmt.Errorf("ListRoleComposites: %w", err)
	}
	roles := make([]idp.Role, len(reps))
	for i := range reps {
		roles[i] = *reps[i].toIDP()
	}
	return roles, nil
}

// AddRoleComposites добавляет role в состав составной роли parentID.
func (c *Client) AddRoleComposites(ctx context.Context, parentID string, role *idp.Role) error {
	path := "/roles-by-id/" + url.PathEscape(parentID) + "/composites"
	resp, err := c.doAuthorized(ctx, http.MethodPost, path, []RoleRepresentation{{
		ID:   role.ID,
		Name: role.Name,
	}})
	if err != nil {
		return err
	}
	return checkResponse(resp)
}
