package realm

import (
	"fmt"
	"slices"

	"github.com/bigkaa/realmbuilder/internal/apperror"
)

// Field — поле идентификации пользователя.
type Field string

const (
	FieldEmail    Field = "email"
	FieldPhone    Field = "phone"
	FieldUsername Field = "username"
)

// Valid сообщает, является ли значение допустимым полем.
func (f Field) Valid() bool {
	switch f {
	case FieldEmail, FieldPhone, FieldUsername:
		return true
	}
	return false
}

// RegisterMode — режим регистрации пользователей клиента.
type RegisterMode string

const (
	// RegisterPublic — регистрация открыта всем.
	RegisterPublic RegisterMode = "public"
	// RegisterPrivate — регистрирует только вызывающий с RequiredRoles.
	RegisterPrivate RegisterMode = "private"
	// RegisterDisabled — регистрация выключена.
	RegisterDisabled RegisterMode = "disabled"
)

// RegisterPolicy — политика регистрации.
type RegisterPolicy struct {
	Mode RegisterMode
	// VerifyRequired — email нового пользователя считается неподтверждённым.
	VerifyRequired bool
	// RequiredRoles — роли клиента, нужные вызывающему в режиме private.
	RequiredRoles []string
	// VerifierRoles — роли клиента, нужные для подтверждения email.
	VerifierRoles []string
}

// LoginPolicy — политика входа.
type LoginPolicy struct {
	// Fields — поля, по которым ищется пользователь. Пусто — основные поля.
	Fields []Field
	// RequireVerified — запрещать вход с неподтверждённым email.
	RequireVerified bool
}

// SeedUser — встроенный пользователь, создаваемый при реконсиляции.
type SeedUser struct {
	Username  string
	Email     string
	Phone     string
	Password  string
	FirstName string
	LastName  string
}

// ClientAuthConfig — правила регистрации и входа для клиента.
type ClientAuthConfig struct {
	primary  []Field
	register RegisterPolicy
	login    LoginPolicy
	seed     *SeedUser
}

// NewClientAuthConfig создаёт конфигурацию с набором основных полей.
// Пустой набор или неизвестное поле — ошибка конфигурации.
func NewClientAuthConfig(primary ...Field) (*ClientAuthConfig, error) {
	if len(primary) == 0 {
		return nil, apperror.BadConfig("PRIMARY_FIELDS_EMPTY",
			"набор основных полей идентификации не может быть пустым")
	}
	var fields []Field
	for _, f := range primary {
		if !f.Valid() {
			return nil, apperror.BadConfig("PRIMARY_FIELD_UNKNOWN",
				fmt.Sprintf("неизвестное поле идентификации %q", f)).
				With(apperror.Context{"field": string(f)})
		}
		if !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}
	return &ClientAuthConfig{
		primary:  fields,
		register: RegisterPolicy{Mode: RegisterPublic},
	}, nil
}

// WithRegister задаёт политику регистрации.
func (c *ClientAuthConfig) WithRegister(p RegisterPolicy) *ClientAuthConfig {
	if p.Mode == "" {
		p.Mode = RegisterPublic
	}
	c.register = p
	return c
}

// WithLogin задаёт политику входа.
func (c *ClientAuthConfig) WithLogin(p LoginPolicy) *ClientAuthConfig {
	c.login = p
	return c
}

// WithSeed задаёт встроенного пользователя.
func (c *ClientAuthConfig) WithSeed(seed *SeedUser) *ClientAuthConfig {
	c.seed = seed
	return c
}

func (c *ClientAuthConfig) PrimaryFields() []Field   { return slices.Clone(c.primary) }
func (c *ClientAuthConfig) Register() RegisterPolicy { return c.register }
func (c *ClientAuthConfig) Seed() *SeedUser          { return c.seed }

// HasPrimary сообщает, входит ли поле в набор основных.
func (c *ClientAuthConfig) HasPrimary(f Field) bool { return slices.Contains(c.primary, f) }

// Login возвращает политику входа; пустой список полей заменяется основными.
func (c *ClientAuthConfig) Login() LoginPolicy {
	p := c.login
	if len(p.Fields) == 0 {
		p.Fields = slices.Clone(c.primary)
	}
	return p
}
