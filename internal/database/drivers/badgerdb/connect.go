package driver_badgerdb

import (
	"time"

	"github.com/paularlott/loom/internal/config"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"
)

type BadgerDbDriver struct {
	connection *badger.DB
}

func (db *BadgerDbDriver) Connect() error {
	log.Debug().Msg("db: connecting to BadgerDB")

	var err error
	cfg := config.GetServerConfig()
	options := badger.DefaultOptions(cfg.BadgerDB.Path)
	options.Logger = badgerdbLogger()
	options.IndexCacheSize = 100 << 20 // 100MB

	db.connection, err = badger.Open(options)
	if err == nil {

		// Start the garbage collector
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
			again:
				log.Debug().Msg("db: running GC")
				err := db.connection.RunValueLogGC(0.5)
				if err == nil {
					goto again
				}
			}
		}()
	}

	return err
}
