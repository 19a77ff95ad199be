package database

import (
	"sync"

	driver_badgerdb "github.com/paularlott/loom/internal/database/drivers/badgerdb"
	driver_memory "github.com/paularlott/loom/internal/database/drivers/memory"
	driver_redis "github.com/paularlott/loom/internal/database/drivers/redis"
	"github.com/paularlott/loom/internal/config"
	"github.com/paularlott/loom/internal/database/model"

	"github.com/rs/zerolog/log"
)

var (
	once       sync.Once
	dbInstance DbDriver
)

// DbDriver is the interface for the database drivers
type DbDriver interface {
	Connect() error

	// Threads
	SaveThread(thread *model.Thread) error
	DeleteThread(thread *model.Thread) error
	GetThread(id string) (*model.Thread, error)
	GetThreads() ([]*model.Thread, error)

	// Turns
	SaveTurn(turn *model.Turn) error
	DeleteTurn(turn *model.Turn) error
	GetTurn(id string) (*model.Turn, error)
	GetTurnsForThread(threadId string) ([]*model.Turn, error)

	// Tool Results
	SaveToolResult(result *model.ToolResult) error
	GetToolResult(toolUseId string) (*model.ToolResult, error)
	GetToolResultsForThread(threadId string) ([]*model.ToolResult, error)
}

// Initialize the database driver
func initDrivers() {
	once.Do(func() {
		cfg := config.GetServerConfig()

		if cfg.BadgerDB.Enabled {
			// Connect to and use BadgerDB
			log.Debug().Msg("db: BadgerDB enabled")

			dbInstance = &driver_badgerdb.BadgerDbDriver{}

		} else if cfg.Redis.Enabled {
			// Connect to and use Redis
			log.Debug().Msg("db: Redis enabled")

			dbInstance = &driver_redis.RedisDbDriver{}
		} else {
			// No persistent store configured, keep everything in memory
			log.Debug().Msg("db: memory store enabled")

			dbInstance = &driver_memory.MemoryDbDriver{}
		}

		// Initialize the database
		err := dbInstance.Connect()
		if err != nil {
			log.Fatal().Err(err).Msg("db: failed to connect to database")
		} else {
			log.Debug().Msg("db: connected to database")
		}
	})
}

// Returns the database driver and on first call initializes it
func GetInstance() DbDriver {
	initDrivers()
	return dbInstance
}
