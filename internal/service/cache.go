// cache.go — LRU-кэш сопоставления идентификатора входа с пользователем.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/realmbuilder/internal/domain/realm"
)

// Prometheus-метрики кэша.
var (
	loginCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realm_builder_login_cache_hits_total",
		Help: "Общее количество попаданий в кэш идентификаторов входа.",
	})
	loginCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realm_builder_login_cache_misses_total",
		Help: "Общее количество промахов кэша идентификаторов входа.",
	})
)

// loginEntry — результат поиска пользователя по идентификатору.
type loginEntry struct {
	UserID   string
	Username string // имя пользователя в IdP
	Field    realm.Field
}

// LoginCache — LRU-кэш идентификатор входа → пользователь с автоматическим TTL.
// Кэш локален для экземпляра сервиса.
type LoginCache struct {
	cache *expirable.LRU[string, loginEntry]
}

// NewLoginCache создаёт кэш с указанным максимальным размером и TTL.
func NewLoginCache(maxSize int, ttl time.Duration) *LoginCache {
	return &LoginCache{cache: expirable.NewLRU[string, loginEntry](maxSize, nil, ttl)}
}

func loginKey(collection, identifier string) string {
	return collection + "\x00" + identifier
}

// Get возвращает запись по коллекции и идентификатору.
func (c *LoginCache) Get(collection, identifier string) (loginEntry, bool) {
	entry, ok := c.cache.Get(loginKey(collection, identifier))
	if ok {
		loginCacheHitsTotal.Inc()
		return entry, true
	}
	loginCacheMissesTotal.Inc()
	return loginEntry{}, false
}

// Set добавляет или обновляет запись.
func (c *LoginCache) Set(collection, identifier string, entry loginEntry) {
	c.cache.Add(loginKey(collection, identifier), entry)
}

// Remove удаляет запись.
func (c *LoginCache) Remove(collection, identifier string) {
	c.cache.Remove(loginKey(collection, identifier))
}

// Len возвращает количество записей в кэше.
func (c *LoginCache) Len() int { return c.cache.Len() }
