package driver_memory

import (
	"sync"

	"github.com/paularlott/loom/internal/database/model"

	"github.com/paularlott/loom/internal/log"
)

type MemoryDbDriver struct {
	mutex                 *sync.RWMutex
	threads               map[string]*model.Thread
	turns                 map[string]*model.Turn
	turnsByThreadId       map[string][]string
	toolResults           map[string]*model.ToolResult
	toolResultsByThreadId map[string][]string
}

func (db *MemoryDbDriver) Connect() error {
	log.Debug("db: starting memory driver")

	// Initialize the mutex and maps
	db.mutex = &sync.RWMutex{}
	db.threads = make(map[string]*model.Thread)
	db.turns = make(map[string]*model.Turn)
	db.turnsByThreadId = make(map[string][]string)
	db.toolResults = make(map[string]*model.ToolResult)
	db.toolResultsByThreadId = make(map[string][]string)

	return nil
}
