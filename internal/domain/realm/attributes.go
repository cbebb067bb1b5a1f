// Пакет realm — декларативная модель дерева ресурсов IdP:
// Realm → App → Client → (Role, Group).
//
// Модель собирается вызывающим кодом (fluent-методы), затем один раз
// разрешается через Realm.Resolve: вычисляются пути и clientId, проверяются
// инварианты. После Resolve дерево — входные данные реконсилятора только для чтения.
package realm

import (
	"maps"
	"slices"
)

// Attributes — многозначные атрибуты узла (формат Keycloak: string → []string).
type Attributes map[string][]string

// Set задаёт значения атрибута, заменяя прежние.
func (a Attributes) Set(key string, values ...string) Attributes {
	a[key] = slices.Clone(values)
	return a
}

// Get возвращает первое значение атрибута.
func (a Attributes) Get(key string) (string, bool) {
	values, ok := a[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Clone возвращает глубокую копию атрибутов. nil → пустая карта.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = slices.Clone(v)
	}
	return out
}

// Equal сравнивает атрибуты по значению.
func (a Attributes) Equal(other Attributes) bool {
	return maps.EqualFunc(a, other, slices.Equal[[]string])
}
