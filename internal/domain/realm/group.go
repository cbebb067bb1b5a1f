package realm

import "slices"

// AttrIsDefault — атрибут группы, в котором хранится флаг группы по умолчанию.
// Значение кодируется строкой "yes"/"no", а не булевым полем.
const AttrIsDefault = "isDefault"

// Group — группа членства под клиентом. Новые пользователи клиента
// попадают в группу по умолчанию и получают её роли.
type Group struct {
	name       string
	isDefault  bool
	attributes Attributes
	roles      []*Role
	parentPath string
}

// NewGroup создаёт группу.
func NewGroup(name string) *Group {
	return &Group{name: name, attributes: Attributes{}}
}

// SetDefault помечает группу как группу по умолчанию.
func (g *Group) SetDefault(isDefault bool) *Group {
	g.isDefault = isDefault
	return g
}

// SetAttribute задаёт атрибут группы.
func (g *Group) SetAttribute(key string, values ...string) *Group {
	g.attributes.Set(key, values...)
	return g
}

// AddRole назначает группе роль клиента.
func (g *Group) AddRole(role *Role) *Group {
	g.roles = append(g.roles, role)
	return g
}

func (g *Group) Name() string    { return g.name }
func (g *Group) IsDefault() bool { return g.isDefault }

// Roles возвращает роли, назначенные группе напрямую.
func (g *Group) Roles() []*Role { return slices.Clone(g.roles) }

// FlattenedRoles возвращает имена всех ролей, доступных членам группы, без повторов.
func (g *Group) FlattenedRoles() []string {
	var out []string
	for _, role := range g.roles {
		for _, name := range role.flattened {
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	return out
}

// Attributes возвращает атрибуты группы в том виде, в котором они
// хранятся в IdP (с флагом isDefault).
func (g *Group) Attributes() Attributes {
	out := g.attributes.Clone()
	flag := "no"
	if g.isDefault {
		flag = "yes"
	}
	out.Set(AttrIsDefault, flag)
	return out
}

// Path — путь родителя (группы клиента). Известен после Resolve.
func (g *Group) Path() string { return g.parentPath }

// GroupPath — полный путь группы в IdP.
func (g *Group) GroupPath() string { return joinPath(g.parentPath, g.name) }
