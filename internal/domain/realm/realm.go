package realm

import (
	"fmt"
	"slices"

	"github.com/bigkaa/realmbuilder/internal/apperror"
)

// App — логическое приложение внутри realm.
type App struct {
	name       string
	attributes Attributes
	clients    []*Client
	parentPath string
}

// NewApp создаёт приложение.
func NewApp(name string) *App {
	return &App{name: name, attributes: Attributes{}}
}

// SetAttribute задаёт атрибут группы приложения.
func (a *App) SetAttribute(key string, values ...string) *App {
	a.attributes.Set(key, values...)
	return a
}

// AddClient добавляет клиент; с этого момента у клиента определён ClientID.
func (a *App) AddClient(client *Client) *App {
	client.app = a
	a.clients = append(a.clients, client)
	return a
}

func (a *App) Name() string           { return a.name }
func (a *App) Attributes() Attributes { return a.attributes.Clone() }
func (a *App) Clients() []*Client     { return slices.Clone(a.clients) }

// Path — путь группы realm ("/<realm>"). Известен после Resolve.
func (a *App) Path() string { return a.parentPath }

// GroupPath — полный путь группы приложения.
func (a *App) GroupPath() string { return joinPath(a.parentPath, a.name) }

// Realm — пространство имён арендатора в IdP.
type Realm struct {
	name       string
	attributes Attributes
	apps       []*App
	separated  bool
	resolved   bool
}

// New создаёт realm. Имя после создания не меняется.
func New(name string) *Realm {
	return &Realm{name: name, attributes: Attributes{}}
}

// SetAttribute задаёт атрибут группы realm.
func (r *Realm) SetAttribute(key string, values ...string) *Realm {
	r.attributes.Set(key, values...)
	return r
}

// SetSeparatedUserCollections включает раздельное хранение пользователей по клиентам.
func (r *Realm) SetSeparatedUserCollections(separated bool) *Realm {
	r.separated = separated
	return r
}

// AddApp добавляет приложение.
func (r *Realm) AddApp(app *App) *Realm {
	r.apps = append(r.apps, app)
	r.resolved = false
	return r
}

func (r *Realm) Name() string                   { return r.name }
func (r *Realm) Attributes() Attributes         { return r.attributes.Clone() }
func (r *Realm) Apps() []*App                   { return slices.Clone(r.apps) }
func (r *Realm) SeparatedUserCollections() bool { return r.separated }
func (r *Realm) Resolved() bool                 { return r.resolved }

// GroupPath — путь корневой группы realm.
func (r *Realm) GroupPath() string { return "/" + r.name }

// Collection возвращает коллекцию пользователей клиента: clientId при
// раздельном хранении, иначе имя realm.
func (r *Realm) Collection(client *Client) string {
	if r.separated {
		return client.ClientID()
	}
	return r.name
}

// Resolve за один проход вычисляет пути всех узлов и проверяет инварианты:
// уникальность имён приложений и клиентов, наличие конфигурации
// аутентификации и ровно одной группы по умолчанию у каждого клиента.
// Повторный вызов безопасен.
func (r *Realm) Resolve() error {
	if r.name == "" {
		return apperror.BadConfig("REALM_NAME_EMPTY", "имя realm не задано")
	}

	apps := make(map[string]bool, len(r.apps))
	for _, app := range r.apps {
		if apps[app.name] {
			return apperror.BadConfig("APP_DUPLICATE",
				fmt.Sprintf("приложение %q объявлено дважды", app.name)).
				With(apperror.Context{"app": app.name})
		}
		apps[app.name] = true
		app.parentPath = r.GroupPath()

		clients := make(map[string]bool, len(app.clients))
		for _, client := range app.clients {
			if clients[client.name] {
				return apperror.BadConfig("CLIENT_DUPLICATE",
					fmt.Sprintf("клиент %q объявлен дважды в приложении %q", client.name, app.name)).
					With(apperror.Context{"app": app.name, "client": client.name})
			}
			clients[client.name] = true
			if err := resolveClient(app, client); err != nil {
				return err
			}
		}
	}

	r.resolved = true
	return nil
}

func resolveClient(app *App, client *Client) error {
	ctx := apperror.Context{"app": app.name, "client": client.name}

	client.app = app
	client.parentPath = app.GroupPath()

	if client.auth == nil {
		return apperror.BadConfig("AUTH_CONFIG_MISSING",
			fmt.Sprintf("у клиента %q нет конфигурации аутентификации", client.name)).With(ctx)
	}
	if client.DefaultGroup() == nil {
		return apperror.BadConfig("DEFAULT_GROUP_MISSING",
			fmt.Sprintf("у клиента %q нет группы по умолчанию", client.name)).With(ctx)
	}

	groups := make(map[string]bool, len(client.groups))
	for _, group := range client.groups {
		if groups[group.name] {
			return apperror.BadConfig("GROUP_DUPLICATE",
				fmt.Sprintf("группа %q объявлена дважды у клиента %q", group.name, client.name)).
				With(apperror.Context{"app": app.name, "client": client.name, "group": group.name})
		}
		groups[group.name] = true
		group.parentPath = client.GroupPath()
	}
	return nil
}

func joinPath(parent, name string) string {
	if parent == "" {
		return ""
	}
	return parent + "/" + name
}
