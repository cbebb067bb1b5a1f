package realm

import "slices"

// Role — единица разрешений клиента. Роль с дочерними ролями — составная:
// она выдаёт все роли своего поддерева.
type Role struct {
	name        string
	description string
	children    []*Role
	parent      *Role

	// flattened — [своё имя] + развёрнутые списки детей в порядке объявления.
	flattened []string
}

// NewRole создаёт роль без дочерних ролей.
func NewRole(name, description string) *Role {
	return &Role{
		name:        name,
		description: description,
		flattened:   []string{name},
	}
}

// AddChildRole добавляет дочернюю роль и сразу пересчитывает развёрнутые
// списки этой роли и всех её предков.
func (r *Role) AddChildRole(child *Role) *Role {
	child.parent = r
	r.children = append(r.children, child)
	for node := r; node != nil; node = node.parent {
		node.reflatten()
	}
	return r
}

func (r *Role) reflatten() {
	flat := []string{r.name}
	for _, child := range r.children {
		flat = append(flat, child.flattened...)
	}
	r.flattened = flat
}

func (r *Role) Name() string        { return r.name }
func (r *Role) Description() string { return r.description }

// Children возвращает дочерние роли в порядке объявления.
func (r *Role) Children() []*Role { return slices.Clone(r.children) }

// Flattened возвращает имена всех ролей, выдаваемых ролью (pre-order).
func (r *Role) Flattened() []string { return slices.Clone(r.flattened) }

// find ищет роль с именем name в поддереве r.
func (r *Role) find(name string) *Role {
	if r.name == name {
		return r
	}
	for _, child := range r.children {
		if found := child.find(name); found != nil {
			return found
		}
	}
	return nil
}
