package keycloak

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bigkaa/realmbuilder/internal/idp"
)

// --- User profile ---

// GetUserProfile возвращает конфигурацию профиля пользователя realm.
func (c *Client) GetUserProfile(ctx context.Context) (*idp.UserProfileConfig, error) {
	resp, err := c.doAuthorized(ctx, http.MethodGet, "/users/profile", nil)
	if err != nil {
		return nil, err
	}

	var cfg idp.UserProfileConfig
	if err := decodeResponse(resp, &cfg); err != nil {
		return nil, fmt.Errorf("GetUserProfile: %w", err)
	}
	return &cfg, nil
}

// UpdateUserProfile сохраняет конфигурацию профиля пользователя.
func (c *Client) UpdateUserProfile(ctx context.Context, cfg *idp.UserProfileConfig) error {
	resp, err := c.doAuthorized(ctx, http.MethodPut, "/users/profile", cfg)
	if err != nil {
		return err
	}
	return checkResponse(resp)
}

// --- Users ---

// FindUserByUsername возвращает пользователя по точному username или nil.
func (c *Client) FindUserByUsername(ctx context.Context, username string) (*idp.User, error) {
	resp, err := c.doAuthorized(ctx, http.MethodGet, "/users?exact=true&username="+url.QueryEscape(username), nil)
	if err != nil {
		return nil, err
	}

	var users []UserRepresentation
	if err := decodeResponse(resp, &users); err != nil {
		return nil, fmt.Errorf("FindUserByUsername: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0].toIDP(), nil
}

// CreateUser создаёт включённого пользователя с постоянным паролем.
func (c *Client) CreateUser(ctx context.Context, in idp.CreateUserInput) (string, error) {
	user := UserRepresentation{
		Username:      in.Username,
		Email:         in.Email,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Enabled:       true,
		EmailVerified: in.EmailVerified,
		Attributes:    in.Attributes,
	}
	if in.Password != "" {
		user.Credentials = []CredentialRepresentation{{Type: "password", Value: in.Password}}
	}

	resp, err := c.doAuthorized(ctx, http.MethodPost, "/users", user)
	if err != nil {
		return "", err
	}
	return createdID(resp)
}

// JoinGroup добавляет пользователя в группу.
func (c *Client) JoinGroup(ctx context.Context, userID, groupID string) error {
	path := fmt.Sprintf("/users/%s/groups/%s", url.PathEscape(userID), url.PathEscape(groupID))
	resp, err := c.doAuthorized(ctx, http.MethodPut, path, nil)
	if err != nil {
		return err
	}
	return checkResponse(resp)
}

// SetEmailVerified меняет признак подтверждённого email пользователя.
func (c *Client) SetEmailVerified(ctx context.Context, userID string, verified bool) error {
	resp, err := c.doAuthorized(ctx, http.MethodPut, "/users/"+url.PathEscape(userID), map[string]bool{
		"emailVerified": verified,
	})
	if err != nil {
		return err
	}
	return checkResponse(resp)
}
