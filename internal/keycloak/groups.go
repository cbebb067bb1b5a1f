package keycloak

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bigkaa/realmbuilder/internal/idp"
)

// childrenPageSize — размер страницы при обходе подгрупп.
// С Keycloak 23 /children отдаёт по умолчанию только 10 записей.
const childrenPageSize = 100

// CreateGroup создаёт группу верхнего уровня или подгруппу ParentID.
func (c *Client) CreateGroup(ctx context.Context, in idp.CreateGroupInput) (string, error) {
	path := "/groups"
	if in.ParentID != "" {
		path = "/groups/" + url.PathEscape(in.ParentID) + "/children"
	}

	resp, err := c.doAuthorized(ctx, http.MethodPost, path, GroupRepresentation{
		Name:       in.Name,
		Attributes: in.Attributes,
	})
	if err != nil {
		return "", err
	}
	return createdID(resp)
}

// FindGroupByName ищет группу по точному имени среди детей parentID
// или среди групп верхнего уровня, если parentID пуст.
func (c *Client) FindGroupByName(ctx context.Context, parentID, name string) (*idp.Group, error) {
	var candidates []idp.Group
	if parentID == "" {
		top, err := c.searchTopLevelGroups(ctx, name)
		if err != nil {
			return nil, err
		}
		candidates = top
	} else {
		children, err := c.ListGroupChildren(ctx, parentID)
		if err != nil {
			return nil, err
		}
		candidates = children
	}

	for i := range candidates {
		if candidates[i].Name == name {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

func (c *Client) searchTopLevelGroups(ctx context.Context, name string) ([]idp.Group, error) {
	path := "/groups?exact=true&briefRepresentation=false&search=" + url.QueryEscape(name)
	resp, err := c.doAuthorized(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var groups []GroupRepresentation
	if err := decodeResponse(resp, &groups); err != nil {
		return nil, fmt.Errorf("FindGroupByName: %w", err)
	}

	out := make([]idp.Group, 0, len(groups))
	for i := range groups {
		out = append(out, *groups[i].toIDP())
	}
	return out, nil
}

// ListGroupChildren возвращает все прямые подгруппы, обходя страницы.
func (c *Client) ListGroupChildren(ctx context.Context, parentID string) ([]idp.Group, error) {
	var out []idp.Group
	for first := 0; ; first += childrenPageSize {
		path := fmt.Sprintf("/groups/%s/children?briefRepresentation=false&first=%d&max=%d",
			url.PathEscape(parentID), first, childrenPageSize)

		resp, err := c.doAuthorized(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}

		var page []GroupRepresentation
		if err := decodeResponse(resp, &page); err != nil {
			return nil, fmt.Errorf("ListGroupChildren: %w", err)
		}
		for i := range page {
			g := page[i].toIDP()
			if g.ParentID == "" {
				g.ParentID = parentID
			}
			out = append(out, *g)
		}
		if len(page) < childrenPageSize {
			return out, nil
		}
	}
}

// GetGroup возвращает группу по id или nil, если её нет.
func (c *Client) GetGroup(ctx context.Context, id string) (*idp.Group, error) {
	return c.getGroup(ctx, "/groups/"+url.PathEscape(id))
}

// GetGroupByPath возвращает группу по пути ("/acme/portal") или nil.
func (c *Client) GetGroupByPath(ctx context.Context, path string) (*idp.Group, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.getGroup(ctx, "/group-by-path/"+strings.Join(segments, "/"))
}

func (c *Client) getGroup(ctx context.Context, path string) (*idp.Group, error) {
	resp, err := c.doAuthorized(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, nil
	}

	var group GroupRepresentation
	if err := decodeResponse(resp, &group); err != nil {
		return nil, fmt.Errorf("GetGroup: %w", err)
	}
	return group.toIDP(), nil
}

// MapGroupClientRole назначает группе роль клиента clientUUID.
func (c *Client) MapGroupClientRole(ctx context.Context, groupID, clientUUID string, role *idp.Role) error {
	path := fmt.Sprintf("/groups/%s/role-mappings/clients/%s", url.PathEscape(groupID), url.PathEscape(clientUUID))
	resp, err := c.doAuthorized(ctx, http.MethodPost, path, []RoleRepresentation{{
		ID:   role.ID,
		Name: role.Name,
	}})
	if err != nil {
		return err
	}
	return checkResponse(resp)
}
