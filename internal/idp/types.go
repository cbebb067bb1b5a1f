package idp

import (
	"encoding/json"
	"slices"
)

// Group — группа провайдера.
type Group struct {
	ID         string
	Name       string
	Path       string
	ParentID   string
	Attributes map[string][]string
}

// Attribute возвращает первое значение атрибута группы.
func (g *Group) Attribute(key string) string {
	if values := g.Attributes[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// CreateGroupInput — параметры создания группы.
type CreateGroupInput struct {
	Name       string
	ParentID   string
	Attributes map[string][]string
}

// Client — регистрация OAuth-клиента.
type Client struct {
	ID                        string // uuid внутри провайдера
	ClientID                  string
	Name                      string
	Description               string
	PublicClient              bool
	DirectAccessGrantsEnabled bool
}

// CreateClientInput — параметры регистрации OAuth-клиента.
type CreateClientInput struct {
	ClientID    string
	Name        string
	Description string
}

// Role — роль OAuth-клиента.
type Role struct {
	ID          string
	Name        string
	Description string
	Composite   bool
}

// CreateRoleInput — параметры создания роли.
type CreateRoleInput struct {
	ClientUUID   string
	Name         string
	Description  string
	ParentRoleID string
}

// User — пользователь провайдера.
type User struct {
	ID            string
	Username      string
	Email         string
	FirstName     string
	LastName      string
	Enabled       bool
	EmailVerified bool
	Attributes    map[string][]string
}

// CreateUserInput — параметры создания пользователя.
type CreateUserInput struct {
	Username      string
	Email         string
	FirstName     string
	LastName      string
	Password      string //nolint:gosec // G117: пароль передаётся в IdP
	EmailVerified bool
	Attributes    map[string][]string
}

// TokenSet — токены, выданные пользователю.
type TokenSet struct {
	AccessToken      string `json:"access_token"` //nolint:gosec // G117: структура токена OAuth2
	RefreshToken     string `json:"refresh_token,omitempty"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in,omitempty"`
	Scope            string `json:"scope,omitempty"`
}

// Валидаторы имени пользователя, которые реконсилятор снимает с профиля.
const (
	ValidatorProhibitedCharacters = "username-prohibited-characters"
	ValidatorIDNHomograph         = "up-username-not-idn-homograph"
)

// UserProfileConfig — конфигурация профиля пользователя (declarative user profile).
// Неизвестные поля сохраняются как есть, чтобы Update не терял настройки.
type UserProfileConfig struct {
	Attributes               []ProfileAttribute `json:"attributes"`
	Groups                   json.RawMessage    `json:"groups,omitempty"`
	UnmanagedAttributePolicy string             `json:"unmanagedAttributePolicy,omitempty"`
}

// ProfileAttribute — атрибут профиля пользователя.
type ProfileAttribute struct {
	Name        string                     `json:"name"`
	DisplayName string                     `json:"displayName,omitempty"`
	Validations map[string]json.RawMessage `json:"validations,omitempty"`
	Annotations json.RawMessage            `json:"annotations,omitempty"`
	Required    json.RawMessage            `json:"required,omitempty"`
	Permissions json.RawMessage            `json:"permissions,omitempty"`
	Selector    json.RawMessage            `json:"selector,omitempty"`
	Group       string                     `json:"group,omitempty"`
	Multivalued bool                       `json:"multivalued"`
}

// RelaxUsernameValidation снимает с атрибута username валидаторы формата.
// Возвращает true, если конфигурация изменилась.
func (c *UserProfileConfig) RelaxUsernameValidation() bool {
	changed := false
	for i := range c.Attributes {
		attr := &c.Attributes[i]
		if attr.Name != "username" {
			continue
		}
		for _, v := range []string{ValidatorProhibitedCharacters, ValidatorIDNHomograph} {
			if _, ok := attr.Validations[v]; ok {
				delete(attr.Validations, v)
				changed = true
			}
		}
	}
	return changed
}

// HasValidator сообщает, есть ли у атрибута name валидатор validator.
func (c *UserProfileConfig) HasValidator(name, validator string) bool {
	i := slices.IndexFunc(c.Attributes, func(a ProfileAttribute) bool { return a.Name == name })
	if i < 0 {
		return false
	}
	_, ok := c.Attributes[i].Validations[validator]
	return ok
}
