// Пакет blueprint — загрузка декларативного описания realm из YAML.
//
// Формат:
//
//	realm: acme
//	separatedUserCollections: false
//	attributes: {tier: [gold]}
//	apps:
//	  - name: portal
//	    clients:
//	      - name: web
//	        description: Веб-клиент
//	        auth:
//	          primaryFields: [email]
//	          register: {mode: public, verifyRequired: true, verifierRoles: [verifier]}
//	          login: {requireVerified: true}
//	          seed: {email: root@acme.test, passwordEnv: RB_SEED_PASSWORD}
//	        roles:
//	          - name: admin
//	            children:
//	              - name: viewer
//	        groups:
//	          - name: users
//	            default: true
//	            roles: [viewer]
//
// Группы ссылаются на роли клиента по имени.
package blueprint

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bigkaa/realmbuilder/internal/apperror"
	"github.com/bigkaa/realmbuilder/internal/domain/realm"
)

// Document — корень YAML-описания.
type Document struct {
	Realm                    string              `yaml:"realm"`
	SeparatedUserCollections bool                `yaml:"separatedUserCollections"`
	Attributes               map[string][]string `yaml:"attributes"`
	Apps                     []App               `yaml:"apps"`
}

// App — приложение.
type App struct {
	Name       string              `yaml:"name"`
	Attributes map[string][]string `yaml:"attributes"`
	Clients    []Client            `yaml:"clients"`
}

// Client — OAuth-клиент приложения.
type Client struct {
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Attributes  map[string][]string `yaml:"attributes"`
	Auth        Auth                `yaml:"auth"`
	Roles       []Role              `yaml:"roles"`
	Groups      []Group             `yaml:"groups"`
}

// Auth — правила регистрации и входа клиента.
type Auth struct {
	PrimaryFields []string  `yaml:"primaryFields"`
	Register      Register  `yaml:"register"`
	Login         Login     `yaml:"login"`
	Seed          *SeedUser `yaml:"seed"`
}

// Register — политика регистрации.
type Register struct {
	Mode           string   `yaml:"mode"`
	VerifyRequired bool     `yaml:"verifyRequired"`
	RequiredRoles  []string `yaml:"requiredRoles"`
	VerifierRoles  []string `yaml:"verifierRoles"`
}

// Login — политика входа.
type Login struct {
	Fields          []string `yaml:"fields"`
	RequireVerified bool     `yaml:"requireVerified"`
}

// SeedUser — встроенный пользователь. Пароль задаётся напрямую
// или именем переменной окружения (passwordEnv).
type SeedUser struct {
	Username    string `yaml:"username"`
	Email       string `yaml:"email"`
	Phone       string `yaml:"phone"`
	Password    string `yaml:"password"` //nolint:gosec // G117: пароль встроенного пользователя
	PasswordEnv string `yaml:"passwordEnv"`
	FirstName   string `yaml:"firstName"`
	LastName    string `yaml:"lastName"`
}

// Role — роль клиента с дочерними ролями.
type Role struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Children    []Role `yaml:"children"`
}

// Group — группа клиента.
type Group struct {
	Name       string              `yaml:"name"`
	Default    bool                `yaml:"default"`
	Attributes map[string][]string `yaml:"attributes"`
	Roles      []string            `yaml:"roles"`
}

// LoadFile читает описание из файла path и строит разрешённую модель realm.
func LoadFile(path string) (*realm.Realm, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение blueprint %s: %w", path, err)
	}
	return Load(bytes.NewReader(data))
}

// Load разбирает YAML из r и строит разрешённую модель realm.
// Неизвестные ключи — ошибка.
func Load(r io.Reader) (*realm.Realm, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperror.BadConfig("BLUEPRINT_EMPTY", "blueprint пуст")
		}
		return nil, apperror.BadConfig("BLUEPRINT_INVALID", "некорректный YAML blueprint").
			With(apperror.Context{"originalError": err.Error()})
	}
	return doc.Build()
}

// Build строит модель realm и выполняет Resolve.
func (d *Document) Build() (*realm.Realm, error) {
	rlm := realm.New(d.Realm).SetSeparatedUserCollections(d.SeparatedUserCollections)
	for k, v := range d.Attributes {
		rlm.SetAttribute(k, v...)
	}

	for _, a := range d.Apps {
		app := realm.NewApp(a.Name)
		for k, v := range a.Attributes {
			app.SetAttribute(k, v...)
		}
		for _, c := range a.Clients {
			client, err := c.build()
			if err != nil {
				return nil, err
			}
			app.AddClient(client)
		}
		rlm.AddApp(app)
	}

	if err := rlm.Resolve(); err != nil {
		return nil, err
	}
	return rlm, nil
}

func (c *Client) build() (*realm.Client, error) {
	meta := apperror.Context{"client": c.Name}

	auth, err := c.Auth.build(meta)
	if err != nil {
		return nil, err
	}

	client := realm.NewClient(c.Name, auth).SetDescription(c.Description)
	for k, v := range c.Attributes {
		client.SetAttribute(k, v...)
	}
	for _, r := range c.Roles {
		client.AddRole(r.build())
	}

	for _, g := range c.Groups {
		group := realm.NewGroup(g.Name).SetDefault(g.Default)
		for k, v := range g.Attributes {
			group.SetAttribute(k, v...)
		}
		for _, name := range g.Roles {
			role := client.FindRole(name)
			if role == nil {
				return nil, apperror.BadConfig("BLUEPRINT_ROLE_UNKNOWN",
					fmt.Sprintf("группа %q ссылается на необъявленную роль %q", g.Name, name)).
					With(meta).With(apperror.Context{"group": g.Name, "role": name})
			}
			group.AddRole(role)
		}
		if _, err := client.AddGroup(group); err != nil {
			return nil, err
		}
	}
	return client, nil
}

func (r *Role) build() *realm.Role {
	role := realm.NewRole(r.Name, r.Description)
	for _, child := range r.Children {
		role.AddChildRole(child.build())
	}
	return role
}

func (a *Auth) build(meta apperror.Context) (*realm.ClientAuthConfig, error) {
	primary := make([]realm.Field, len(a.PrimaryFields))
	for i, f := range a.PrimaryFields {
		primary[i] = realm.Field(f)
	}
	auth, err := realm.NewClientAuthConfig(primary...)
	if err != nil {
		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			return nil, appErr.With(meta)
		}
		return nil, err
	}

	mode := realm.RegisterMode(a.Register.Mode)
	switch mode {
	case "", realm.RegisterPublic, realm.RegisterPrivate, realm.RegisterDisabled:
	default:
		return nil, apperror.BadConfig("BLUEPRINT_REGISTER_MODE",
			fmt.Sprintf("неизвестный режим регистрации %q", a.Register.Mode)).
			With(meta).With(apperror.Context{"mode": a.Register.Mode})
	}
	auth.WithRegister(realm.RegisterPolicy{
		Mode:           mode,
		VerifyRequired: a.Register.VerifyRequired,
		RequiredRoles:  a.Register.RequiredRoles,
		VerifierRoles:  a.Register.VerifierRoles,
	})

	login := realm.LoginPolicy{RequireVerified: a.Login.RequireVerified}
	for _, f := range a.Login.Fields {
		field := realm.Field(f)
		if !field.Valid() {
			return nil, apperror.BadConfig("BLUEPRINT_LOGIN_FIELD",
				fmt.Sprintf("неизвестное поле входа %q", f)).
				With(meta).With(apperror.Context{"field": f})
		}
		login.Fields = append(login.Fields, field)
	}
	auth.WithLogin(login)

	if a.Seed != nil {
		seed, err := a.Seed.build(meta)
		if err != nil {
			return nil, err
		}
		auth.WithSeed(seed)
	}
	return auth, nil
}

func (s *SeedUser) build(meta apperror.Context) (*realm.SeedUser, error) {
	password := s.Password
	if s.PasswordEnv != "" {
		password = os.Getenv(s.PasswordEnv)
		if password == "" {
			return nil, apperror.BadConfig("BLUEPRINT_SEED_PASSWORD",
				fmt.Sprintf("переменная окружения %s с паролем встроенного пользователя не задана", s.PasswordEnv)).
				With(meta).With(apperror.Context{"env": s.PasswordEnv})
		}
	}
	if password == "" {
		return nil, apperror.BadConfig("BLUEPRINT_SEED_PASSWORD", "не задан пароль встроенного пользователя").With(meta)
	}
	return &realm.SeedUser{
		Username:  s.Username,
		Email:     s.Email,
		Phone:     s.Phone,
		Password:  password,
		FirstName: s.FirstName,
		LastName:  s.LastName,
	}, nil
}
