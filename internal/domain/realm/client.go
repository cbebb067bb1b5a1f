package realm

import (
	"fmt"
	"slices"

	"github.com/bigkaa/realmbuilder/internal/apperror"
)

// Client — OAuth-клиент приложения со своим деревом ролей и группами.
type Client struct {
	name        string
	description string
	attributes  Attributes
	roles       []*Role
	groups      []*Group
	auth        *ClientAuthConfig

	app        *App
	parentPath string
}

// NewClient создаёт клиент с конфигурацией аутентификации auth.
func NewClient(name string, auth *ClientAuthConfig) *Client {
	return &Client{name: name, auth: auth, attributes: Attributes{}}
}

// SetDescription задаёт описание OAuth-клиента.
func (c *Client) SetDescription(description string) *Client {
	c.description = description
	return c
}

// SetAttribute задаёт атрибут группы клиента.
func (c *Client) SetAttribute(key string, values ...string) *Client {
	c.attributes.Set(key, values...)
	return c
}

// AddRole добавляет корневую роль.
func (c *Client) AddRole(role *Role) *Client {
	c.roles = append(c.roles, role)
	return c
}

// AddGroup добавляет группу. Вторая группа по умолчанию — ошибка конфигурации.
func (c *Client) AddGroup(group *Group) (*Client, error) {
	if group.isDefault {
		if current := c.DefaultGroup(); current != nil {
			return c, apperror.BadConfig("DEFAULT_GROUP_DUPLICATE",
				fmt.Sprintf("у клиента %q уже есть группа по умолчанию %q", c.name, current.name)).
				With(apperror.Context{"client": c.name, "group": group.name, "defaultGroup": current.name})
		}
	}
	c.groups = append(c.groups, group)
	return c, nil
}

func (c *Client) Name() string            { return c.name }
func (c *Client) Description() string     { return c.description }
func (c *Client) Attributes() Attributes  { return c.attributes.Clone() }
func (c *Client) Auth() *ClientAuthConfig { return c.auth }
func (c *Client) Roles() []*Role          { return slices.Clone(c.roles) }
func (c *Client) Groups() []*Group        { return slices.Clone(c.groups) }
func (c *Client) App() *App               { return c.app }

// ClientID — идентификатор OAuth-клиента: "<app>-<client>".
// Пустая строка, пока клиент не добавлен в приложение.
func (c *Client) ClientID() string {
	if c.app == nil {
		return ""
	}
	return c.app.name + "-" + c.name
}

// DefaultGroup возвращает группу по умолчанию или nil.
func (c *Client) DefaultGroup() *Group {
	for _, g := range c.groups {
		if g.isDefault {
			return g
		}
	}
	return nil
}

// FindRole ищет роль по имени во всём дереве ролей клиента.
func (c *Client) FindRole(name string) *Role {
	for _, root := range c.roles {
		if found := root.find(name); found != nil {
			return found
		}
	}
	return nil
}

// Path — путь группы приложения. Известен после Resolve.
func (c *Client) Path() string { return c.parentPath }

// GroupPath — полный путь группы клиента.
func (c *Client) GroupPath() string { return joinPath(c.parentPath, c.name) }
