package errx

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// WrapRedis maps Redis errors to STORE_UNAVAILABLE. redis.Nil is a miss, not an outage.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return New(err, CodeStoreUnavailable, http.StatusBadGateway, RedisErrorMessage)
}

// WrapDB maps gorm errors the same way.
func WrapDB(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return New(err, CodeStoreUnavailable, http.StatusServiceUnavailable, DatabaseErrorMessage)
}
