// Пакет reconcile — реконсилятор дерева ресурсов IdP (RealmBuilder).
//
// Builder обходит разрешённую модель realm и через фасад idp приводит
// удалённое состояние к объявленному. Каждый узел либо находится по имени
// среди соседей (found), либо создаётся и перечитывается (created).
// Любая ошибка прерывает Build целиком; частично созданные ресурсы остаются,
// повторный Build сходится к объявленному состоянию.
//
// Порядок строго последовательный:
//  1. realm + группа верхнего уровня с именем realm + ослабление валидации username
//  2. группа приложения
//  3. группа клиента, публичный OAuth-клиент, все роли клиента (pre-order)
//  4. группы клиента с назначением ролей (только после всех ролей клиента)
//  5. встроенный пользователь (UserSeeder)
//  6. монтирование контроллера клиента (Mounter)
//
// Build не безопасен для параллельного вызова над одним realm: два запуска
// могут оба не найти узел и оба попытаться его создать. Запуски нужно
// сериализовать снаружи.
//
// Prometheus-метрики:
//   - realm_builder_build_duration_seconds — длительность Build
//   - realm_builder_nodes_total — узлы по виду и исходу (found/created)
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/realmbuilder/internal/apperror"
	"github.com/bigkaa/realmbuilder/internal/domain/realm"
	"github.com/bigkaa/realmbuilder/internal/idp"
)

var (
	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "realm_builder_build_duration_seconds",
		Help:    "Длительность реконсиляции realm",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s … ~51s
	})

	nodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realm_builder_nodes_total",
			Help: "Количество обработанных узлов дерева realm",
		},
		[]string{"kind", "outcome"},
	)
)

// Виды узлов в Result и метриках.
const (
	KindRealm  = "realm"
	KindGroup  = "group"
	KindClient = "client"
	KindRole   = "role"
	KindUser   = "user"

	// KindComposite — связь роли с родительской составной ролью.
	KindComposite = "composite"
)

const (
	outcomeFound   = "found"
	outcomeCreated = "created"
)

// Target — разрешённый клиент: всё, что нужно сервису пользователей
// и HTTP-слою для работы с ним.
type Target struct {
	Realm  *realm.Realm
	App    *realm.App
	Client *realm.Client

	// ClientUUID — uuid OAuth-клиента (пространство ролей).
	ClientUUID string
	// ClientGroupID — id группы клиента (иерархия членства).
	ClientGroupID    string
	DefaultGroupID   string
	DefaultGroupPath string
}

// Collection возвращает коллекцию пользователей клиента.
func (t Target) Collection() string { return t.Realm.Collection(t.Client) }

// ClientID возвращает clientId OAuth-клиента.
func (t Target) ClientID() string { return t.Client.ClientID() }

// UserSeeder создаёт встроенного пользователя клиента.
type UserSeeder interface {
	SeedExists(ctx context.Context, t Target) (bool, error)
	RegisterSeed(ctx context.Context, t Target) error
}

// Mounter подключает контроллер клиента к HTTP-слою.
type Mounter interface {
	Mount(t Target) error
}

// Result — итог реконсиляции.
type Result struct {
	Created  map[string]int
	Found    map[string]int
	Targets  []Target
	Duration time.Duration
}

func newResult() *Result {
	return &Result{Created: map[string]int{}, Found: map[string]int{}}
}

// TotalCreated возвращает общее число созданных узлов.
func (r *Result) TotalCreated() int {
	total := 0
	for _, n := range r.Created {
		total += n
	}
	return total
}

// Builder — реконсилятор.
type Builder struct {
	api     idp.Facade
	seeder  UserSeeder
	mounter Mounter
	logger  *slog.Logger
}

// Option настраивает Builder.
type Option func(*Builder)

// WithSeeder задаёт исполнителя шага встроенных пользователей.
func WithSeeder(s UserSeeder) Option { return func(b *Builder) { b.seeder = s } }

// WithMounter задаёт исполнителя шага монтирования.
func WithMounter(m Mounter) Option { return func(b *Builder) { b.mounter = m } }

// New создаёт реконсилятор поверх фасада api.
func New(api idp.Facade, logger *slog.Logger, opts ...Option) *Builder {
	b := &Builder{
		api:    api,
		logger: logger.With(slog.String("component", "realm_builder")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build приводит удалённое состояние к модели r.
func (b *Builder) Build(ctx context.Context, r *realm.Realm) (*Result, error) {
	startedAt := time.Now()

	if err := r.Resolve(); err != nil {
		return nil, err
	}

	b.logger.Info("Реконсиляция realm запущена",
		slog.String("realm", r.Name()),
		slog.Int("apps", len(r.Apps())),
	)

	run := &buildRun{Builder: b, realm: r, result: newResult()}

	realmGroup, err := run.realmStep(ctx)
	if err != nil {
		return nil, err
	}

	for _, app := range r.Apps() {
		appGroup, err := run.ensureGroup(ctx, realmGroup.ID, app.Name(), app.Attributes())
		if err != nil {
			return nil, err
		}
		for _, client := range app.Clients() {
			target, err := run.clientStep(ctx, app, client, appGroup.ID)
			if err != nil {
				return nil, err
			}
			if err := run.seedStep(ctx, target); err != nil {
				return nil, err
			}
			if b.mounter != nil {
				if err := b.mounter.Mount(target); err != nil {
					return nil, fmt.Errorf("монтирование клиента %s: %w", target.ClientID(), err)
				}
			}
			run.result.Targets = append(run.result.Targets, target)
		}
	}

	run.result.Duration = time.Since(startedAt)
	buildDuration.Observe(run.result.Duration.Seconds())

	b.logger.Info("Реконсиляция realm завершена",
		slog.String("realm", r.Name()),
		slog.Int("created", run.result.TotalCreated()),
		slog.Int("clients", len(run.result.Targets)),
		slog.String("duration", run.result.Duration.String()),
	)

	return run.result, nil
}

// buildRun — состояние одного вызова Build.
type buildRun struct {
	*Builder
	realm  *realm.Realm
	result *Result
}

func (run *buildRun) record(kind, outcome string) {
	if outcome == outcomeCreated {
		run.result.Created[kind]++
	} else {
		run.result.Found[kind]++
	}
	nodesTotal.WithLabelValues(kind, outcome).Inc()
}

// realmStep гарантирует realm, группу верхнего уровня с его именем
// и ослабленную валидацию username.
func (run *buildRun) realmStep(ctx context.Context) (*idp.Group, error) {
	exists, err := run.api.Realm.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		run.record(KindRealm, outcomeFound)
	} else {
		if _, err := run.api.Realm.Create(ctx); err != nil {
			return nil, err
		}
		run.record(KindRealm, outcomeCreated)
		run.logger.Info("Realm создан", slog.String("realm", run.realm.Name()))
	}

	group, err := run.ensureGroup(ctx, "", run.realm.Name(), run.realm.Attributes())
	if err != nil {
		return nil, err
	}

	if err := run.relaxUsernameValidation(ctx); err != nil {
		return nil, err
	}
	return group, nil
}

func (run *buildRun) relaxUsernameValidation(ctx context.Context) error {
	profile, err := run.api.UserProfile.Get(ctx)
	if err != nil {
		return err
	}
	if !profile.RelaxUsernameValidation() {
		return nil
	}
	if err := run.api.UserProfile.Update(ctx, profile); err != nil {
		return err
	}
	run.logger.Info("Валидация формата username ослаблена", slog.String("realm", run.realm.Name()))
	return nil
}

// ensureGroup находит группу по имени среди детей parentID или создаёт её,
// затем перечитывает по id.
func (run *buildRun) ensureGroup(ctx context.Context, parentID, name string, attrs realm.Attributes) (*idp.Group, error) {
	found, err := run.api.Groups.FindByName(ctx, parentID, name)
	if err != nil {
		return nil, err
	}

	var id string
	outcome := outcomeFound
	if found != nil {
		id = found.ID
	} else {
		id, err = run.api.Groups.Create(ctx, idp.CreateGroupInput{
			Name:       name,
			ParentID:   parentID,
			Attributes: attrs,
		})
		if err != nil {
			return nil, err
		}
		outcome = outcomeCreated
	}

	group, err := run.api.Groups.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if group == nil || group.ID == "" {
		return nil, apperror.ExternalService("GROUP_NOT_RESOLVED",
			fmt.Sprintf("группа %q не найдена после поиска или создания", name)).
			With(apperror.Context{"groupName": name, "parentId": parentID, "groupId": id})
	}

	run.record(KindGroup, outcome)
	run.logger.Debug("Группа разрешена",
		slog.String("group", name),
		slog.String("group_id", group.ID),
		slog.String("outcome", outcome),
	)
	return group, nil
}

// clientStep разрешает группу клиента, OAuth-клиент, все роли и затем группы.
func (run *buildRun) clientStep(ctx context.Context, app *realm.App, client *realm.Client, appGroupID string) (Target, error) {
	target := Target{Realm: run.realm, App: app, Client: client}

	clientGroup, err := run.ensureGroup(ctx, appGroupID, client.Name(), client.Attributes())
	if err != nil {
		return target, err
	}
	target.ClientGroupID = clientGroup.ID

	clientUUID, err := run.ensureOAuthClient(ctx, client)
	if err != nil {
		return target, err
	}
	target.ClientUUID = clientUUID

	// Все роли клиента материализуются до групп: группы ссылаются на роли по имени.
	for _, role := range client.Roles() {
		if _, _, err := run.ensureRole(ctx, clientUUID, role, ""); err != nil {
			return target, err
		}
	}

	for _, group := range client.Groups() {
		groupID, err := run.groupStep(ctx, client, clientUUID, clientGroup.ID, group)
		if err != nil {
			return target, err
		}
		if group.IsDefault() {
			target.DefaultGroupID = groupID
			target.DefaultGroupPath = group.GroupPath()
		}
	}

	return target, nil
}

func (run *buildRun) ensureOAuthClient(ctx context.Context, client *realm.Client) (string, error) {
	clientID := client.ClientID()

	found, err := run.api.Clients.FindByClientID(ctx, clientID)
	if err != nil {
		return "", err
	}
	if found != nil {
		run.record(KindClient, outcomeFound)
		return found.ID, nil
	}

	id, err := run.api.Clients.Create(ctx, idp.CreateClientInput{
		ClientID:    clientID,
		Name:        client.Name(),
		Description: client.Description(),
	})
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", apperror.ExternalService("CLIENT_NOT_RESOLVED",
			fmt.Sprintf("OAuth-клиент %s создан без идентификатора", clientID)).
			With(apperror.Context{"clientId": clientID})
	}

	run.record(KindClient, outcomeCreated)
	run.logger.Info("OAuth-клиент создан", slog.String("client_id", clientID), slog.String("uuid", id))
	return id, nil
}

// ensureRole разрешает роль и рекурсивно её поддерево (pre-order).
// Созданная роль с parentID регистрируется в составе родителя; найденной
// роли недостающая связь с родителем добавляется отдельно.
func (run *buildRun) ensureRole(ctx context.Context, clientUUID string, role *realm.Role, parentID string) (*idp.Role, bool, error) {
	remote, err := run.api.Roles.FindByName(ctx, clientUUID, role.Name())
	if err != nil {
		return nil, false, err
	}

	outcome := outcomeFound
	if remote == nil {
		remote, err = run.api.Roles.Create(ctx, idp.CreateRoleInput{
			ClientUUID:   clientUUID,
			Name:         role.Name(),
			Description:  role.Description(),
			ParentRoleID: parentID,
		})
		if err != nil {
			return nil, false, err
		}
		outcome = outcomeCreated
	}
	if remote == nil || remote.ID == "" {
		return nil, false, apperror.ExternalService("ROLE_NOT_RESOLVED",
			fmt.Sprintf("роль %q не найдена после поиска или создания", role.Name())).
			With(apperror.Context{"roleName": role.Name(), "clientUuid": clientUUID})
	}
	run.record(KindRole, outcome)

	children := role.Children()
	if len(children) == 0 {
		return remote, outcome == outcomeCreated, nil
	}

	linked := map[string]bool{}
	if outcome == outcomeFound {
		composites, err := run.api.Roles.Composites(ctx, remote.ID)
		if err != nil {
			return nil, false, err
		}
		for _, c := range composites {
			linked[c.ID] = true
		}
	}

	for _, child := range children {
		childRemote, created, err := run.ensureRole(ctx, clientUUID, child, remote.ID)
		if err != nil {
			return nil, false, err
		}
		if created || linked[childRemote.ID] {
			continue
		}
		if err := run.api.Roles.AddComposite(ctx, remote.ID, childRemote); err != nil {
			return nil, false, err
		}
		run.record(KindComposite, outcomeCreated)
		run.logger.Info("Роль добавлена в состав родительской",
			slog.String("role", child.Name()),
			slog.String("parent", role.Name()),
		)
	}
	return remote, outcome == outcomeCreated, nil
}

// groupStep разрешает группу клиента и назначает ей роли. Роли здесь
// никогда не создаются: отсутствующая роль — ошибка конфигурации.
func (run *buildRun) groupStep(ctx context.Context, client *realm.Client, clientUUID, clientGroupID string, group *realm.Group) (string, error) {
	remoteGroup, err := run.ensureGroup(ctx, clientGroupID, group.Name(), group.Attributes())
	if err != nil {
		return "", err
	}

	for _, role := range group.Roles() {
		var remote *idp.Role
		if client.FindRole(role.Name()) != nil {
			remote, err = run.api.Roles.FindByName(ctx, clientUUID, role.Name())
			if err != nil {
				return "", err
			}
		}
		if remote == nil {
			return "", apperror.BadConfig("ROLE_NOT_MATERIALIZED",
				fmt.Sprintf("роль %q группы %q не объявлена у клиента %s", role.Name(), group.Name(), client.ClientID())).
				With(apperror.Context{"roleName": role.Name(), "groupName": group.Name(), "clientId": client.ClientID()})
		}

		if err := run.api.Groups.MapRole(ctx, remoteGroup.ID, clientUUID, remote); err != nil {
			return "", err
		}
	}
	return remoteGroup.ID, nil
}

// seedStep создаёт встроенного пользователя клиента, если он объявлен и ещё не существует.
func (run *buildRun) seedStep(ctx context.Context, target Target) error {
	if run.seeder == nil || target.Client.Auth().Seed() == nil {
		return nil
	}

	exists, err := run.seeder.SeedExists(ctx, target)
	if err != nil {
		return err
	}
	if exists {
		run.record(KindUser, outcomeFound)
		return nil
	}

	if err := run.seeder.RegisterSeed(ctx, target); err != nil {
		return err
	}
	run.record(KindUser, outcomeCreated)
	run.logger.Info("Встроенный пользователь создан", slog.String("client_id", target.ClientID()))
	return nil
}
