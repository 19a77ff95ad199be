package driver_redis

import (
	"context"
	"time"

	"github.com/paularlott/loom/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	healthCheckInterval = 10 * time.Second
)

type RedisDbDriver struct {
	prefix     string
	connection redis.UniversalClient
}

func convertRedisError(err error) error {
	if err == redis.Nil {
		return nil
	}
	return err
}

// Performs the real connection to the database, we use this to reconnect if the database moves to a new server etc.
func (db *RedisDbDriver) realConnect() {
	log.Debug().Msg("db: connecting to Redis")

	cfg := config.GetServerConfig()

	log.Debug().Msgf("db: connecting to redis server: %s, db: %d", cfg.Redis.Hosts, cfg.Redis.DB)

	db.connection = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      cfg.Redis.Hosts,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		MasterName: cfg.Redis.MasterName,
	})

	log.Debug().Msg("db: connected to Redis")
}

func (db *RedisDbDriver) Connect() error {

	// If prefix doesn't end with : append it
	cfg := config.GetServerConfig()
	db.prefix = cfg.Redis.KeyPrefix
	if db.prefix != "" && db.prefix[len(db.prefix)-1:] != ":" {
		db.prefix += ":"
	}

	db.realConnect()

	// Monitor the connection and reconnect if the connection is lost
	go func() {
		interval := time.NewTicker(healthCheckInterval)
		defer interval.Stop()

		for range interval.C {
			log.Debug().Msg("db: testing Redis connection")

			_, err := db.connection.Ping(context.Background()).Result()
			if err != nil {
				log.Error().Err(err).Msg("db: redis connection lost")
				db.connection.Close()
				db.realConnect()
			}
		}
	}()

	return nil
}
