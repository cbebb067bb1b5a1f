package keycloak

import (
	"context"
	"net/http"
)

// RealmExists проверяет, существует ли рабочий realm.
func (c *Client) RealmExists(ctx context.Context) (bool, error) {
	resp, err := c.doAuthorized(ctx, http.MethodGet, "", nil)
	if err != nil {
		return false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return false, nil
	}

	var realm RealmRepresentation
	if err := decodeResponse(resp, &realm); err != nil {
		return false, err
	}
	return true, nil
}

// CreateRealm создаёт рабочий realm и возвращает его имя.
func (c *Client) CreateRealm(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/admin/realms", RealmRepresentation{
		Realm:   c.realm,
		Enabled: true,
	})
	if err != nil {
		return "", err
	}
	return createdID(resp)
}

// DeleteRealm удаляет рабочий realm. Отсутствие realm ошибкой не считается.
func (c *Client) DeleteRealm(ctx context.Context) error {
	resp, err := c.doAuthorized(ctx, http.MethodDelete, "", nil)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil
	}
	return checkResponse(resp)
}
