// Package marker assembles the marker registry from a storage backend, a
// custody ledger and the lifecycle service.
package marker

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"markers/internal/marker/service"
	"markers/internal/marker/store"
	"markers/internal/platform/config"
)

// Backend pairs a marker store with the transaction runner that guards it.
type Backend struct {
	Store service.Store
	Tx    service.StoreTx
}

func MemoryBackend(timeout time.Duration) Backend {
	st := store.NewInMemory()
	return Backend{Store: st, Tx: service.NewShardedTx(st, timeout)}
}

func PostgresBackend(db *sql.DB, timeout time.Duration) Backend {
	return Backend{Store: store.NewPostgres(db), Tx: NewPostgresTx(db, timeout)}
}

func RedisBackend(client *redis.Client, timeout time.Duration) Backend {
	return Backend{Store: store.NewRedis(client), Tx: NewRedisTx(client, timeout)}
}

// Resources are the shared connections a backend may be built from.
type Resources struct {
	DB    *sql.DB
	Redis *redis.Client
}

// SelectBackend picks the backend named by kind.
func SelectBackend(kind string, res Resources, timeout time.Duration) (Backend, error) {
	switch kind {
	case config.StoreMemory, "":
		return MemoryBackend(timeout), nil
	case config.StorePostgres:
		if res.DB == nil {
			return Backend{}, fmt.Errorf("postgres backend requires a database")
		}
		return PostgresBackend(res.DB, timeout), nil
	case config.StoreRedis:
		if res.Redis == nil {
			return Backend{}, fmt.Errorf("redis backend requires a client")
		}
		return RedisBackend(res.Redis, timeout), nil
	default:
		return Backend{}, fmt.Errorf("unknown marker store %q", kind)
	}
}
