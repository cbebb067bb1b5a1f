// Пакет idp — узкий фасад над Admin API провайдера идентификации.
//
// Реконсилятор и сервис пользователей работают только с этими интерфейсами;
// протокол конкретного провайдера (Keycloak) скрыт в internal/keycloak.
// Каждый метод либо возвращает результат в доменной форме, либо ошибку
// таксономии apperror. Методы поиска возвращают nil без ошибки, если
// объекта нет.
package idp

import "context"

// RealmAPI — операции над рабочим realm.
type RealmAPI interface {
	Exists(ctx context.Context) (bool, error)
	// Create создаёт realm и возвращает его идентификатор.
	Create(ctx context.Context) (string, error)
	// Delete удаляет realm; отсутствие realm ошибкой не считается.
	Delete(ctx context.Context) error
}

// GroupAPI — операции над деревом групп.
type GroupAPI interface {
	// Create создаёт группу (подгруппу, если задан ParentID) и возвращает её id.
	Create(ctx context.Context, in CreateGroupInput) (string, error)
	// FindByName ищет группу по точному имени среди детей parentID.
	// Пустой parentID — поиск среди групп верхнего уровня.
	FindByName(ctx context.Context, parentID, name string) (*Group, error)
	ListChildren(ctx context.Context, parentID string) ([]Group, error)
	GetByID(ctx context.Context, id string) (*Group, error)
	GetByPath(ctx context.Context, path string) (*Group, error)
	// MapRole назначает группе роль OAuth-клиента clientUUID.
	MapRole(ctx context.Context, groupID, clientUUID string, role *Role) error
}

// ClientAPI — регистрации OAuth-клиентов.
type ClientAPI interface {
	FindByClientID(ctx context.Context, clientID string) (*Client, error)
	// Create регистрирует публичный клиент с Direct Access Grants и возвращает его uuid.
	Create(ctx context.Context, in CreateClientInput) (string, error)
}

// RoleAPI — роли OAuth-клиента.
type RoleAPI interface {
	FindByName(ctx context.Context, clientUUID, name string) (*Role, error)
	// Create создаёт роль; при заданном ParentRoleID роль дополнительно
	// регистрируется как составная часть родителя.
	Create(ctx context.Context, in CreateRoleInput) (*Role, error)
	// Composites возвращает роли, входящие в состав роли roleID.
	Composites(ctx context.Context, roleID string) ([]Role, error)
	// AddComposite добавляет role в состав роли parentID.
	AddComposite(ctx context.Context, parentID string, role *Role) error
}

// UserProfileAPI — конфигурация профиля пользователя realm.
type UserProfileAPI interface {
	Get(ctx context.Context) (*UserProfileConfig, error)
	Update(ctx context.Context, cfg *UserProfileConfig) error
}

// UserAPI — пользователи realm.
type UserAPI interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, in CreateUserInput) (string, error)
	JoinGroup(ctx context.Context, userID, groupID string) error
	SetEmailVerified(ctx context.Context, userID string, verified bool) error
}

// TokenAPI — выдача токенов пользователям.
type TokenAPI interface {
	// PasswordGrant получает токены по логину и паролю через публичный клиент clientID.
	PasswordGrant(ctx context.Context, clientID, username, password string) (*TokenSet, error)
}

// Facade объединяет все операции над рабочим realm.
type Facade struct {
	Realm       RealmAPI
	Groups      GroupAPI
	Clients     ClientAPI
	Roles       RoleAPI
	UserProfile UserProfileAPI
	Users       UserAPI
	Tokens      TokenAPI
}
