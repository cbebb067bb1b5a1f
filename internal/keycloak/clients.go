package keycloak

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bigkaa/realmbuilder/internal/idp"
)

// FindClientByClientID возвращает OAuth-клиент по clientId или nil.
func (c *Client) FindClientByClientID(ctx context.Context, clientID string) (*idp.Client, error) {
	resp, err := c.doAuthorized(ctx, http.MethodGet, "/clients?search=false&clientId="+url.QueryEscape(clientID), nil)
	if err != nil {
		return nil, err
	}

	var clients []ClientRepresentation
	if err := decodeResponse(resp, &clients); err != nil {
		return nil, fmt.Errorf("FindClientByClientID: %w", err)
	}

	for i := range clients {
		if clients[i].ClientID == clientID {
			return clients[i].toIDP(), nil
		}
	}
	return nil, nil
}

// CreatePublicClient регистрирует публичный клиент (без секрета)
// с Direct Access Grants и возвращает его uuid.
func (c *Client) CreatePublicClient(ctx context.Context, in idp.CreateClientInput) (string, error) {
	resp, err := c.doAuthorized(ctx, http.MethodPost, "/clients", ClientRepresentation{
		ClientID:                  in.ClientID,
		Name:                      in.Name,
		Description:               in.Description,
		Enabled:                   true,
		PublicClient:              true,
		DirectAccessGrantsEnabled: true,
		StandardFlowEnabled:       false,
		ServiceAccountsEnabled:    false,
		Attributes: map[string]string{
			"managed_by": "realm-builder",
		},
	})
	if err != nil {
		return "", err
	}
	return createdID(resp)
}
