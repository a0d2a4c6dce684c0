package mailbox

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TokenCache — кэш сессий Zimbra по ключу субъекта.
// Безопасен для конкурентного использования. Просроченные записи удаляются
// лениво, при обращении.
type TokenCache struct {
	lru *expirable.LRU[string, Session]
}

// NewTokenCache создаёт кэш на maxSize сессий.
// Срок жизни записи определяется Session.ExpiresAt, а не TTL кэша.
func NewTokenCache(maxSize int) *TokenCache {
	return &TokenCache{lru: expirable.NewLRU[string, Session](maxSize, nil, 0)}
}

// Get возвращает действительную сессию. Просроченная сессия удаляется.
func (c *TokenCache) Get(key string, now time.Time) (Session, bool) {
	s, ok := c.lru.Get(key)
	if !ok {
		return Session{}, false
	}
	if !s.Valid(now) {
		c.lru.Remove(key)
		return Session{}, false
	}
	return s, true
}

// Put сохраняет сессию.
func (c *TokenCache) Put(key string, s Session) {
	c.lru.Add(key, s)
}

// Invalidate удаляет сессию.
func (c *TokenCache) Invalidate(key string) {
	c.lru.Remove(key)
}

// Len возвращает количество записей (включая ещё не удалённые просроченные).
func (c *TokenCache) Len() int {
	return c.lru.Len()
}
