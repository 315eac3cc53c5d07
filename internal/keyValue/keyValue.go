// Package keyValue is a small expiring key/value layer with two backends:
// an in-process map when the server runs self-contained, redis otherwise.
// The auth handlers use it as the registry of live session-resume tokens.
package keyValue

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type entry struct {
	value   string
	expires time.Time
}

var (
	mutex   sync.RWMutex
	hashmap = make(map[string]entry)

	sugar         *zap.SugaredLogger
	redisClient   *redis.Client
	redisCtx      = context.Background()
	selfContained = true
)

func Setup(_sugar *zap.SugaredLogger, _redisClient *redis.Client, _selfContained bool) {
	sugar = _sugar
	redisClient = _redisClient
	selfContained = _selfContained

	if selfContained {
		go sweepExpiredKeys()
	}
}

func sweepExpiredKeys() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		mutex.Lock()
		for key, e := range hashmap {
			if e.expires.Before(now) {
				delete(hashmap, key)
			}
		}
		mutex.Unlock()
	}
}

// Get returns the value for key, or "" when the key is absent or expired.
func Get(key string) (string, error) {
	if selfContained {
		mutex.RLock()
		defer mutex.RUnlock()

		e, ok := hashmap[key]
		if !ok || e.expires.Before(time.Now()) {
			return "", nil
		}
		return e.value, nil
	}

	value, err := redisClient.Get(redisCtx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return value, err
}

func Set(key string, value string, expiration time.Duration) error {
	sugar.Debugf("Setting key [%s] with expiration %s", key, expiration)

	if selfContained {
		mutex.Lock()
		defer mutex.Unlock()

		hashmap[key] = entry{value: value, expires: time.Now().Add(expiration)}
		return nil
	}

	return redisClient.Set(redisCtx, key, value, expiration).Err()
}

func Delete(key string) error {
	if selfContained {
		mutex.Lock()
		defer mutex.Unlock()

		delete(hashmap, key)
		return nil
	}

	return redisClient.Del(redisCtx, key).Err()
}
