package driver_memory

import (
	"fmt"

	"github.com/paularlott/loom/internal/database/model"
)

func (db *MemoryDbDriver) SaveToolResult(result *model.ToolResult) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, ok := db.toolResults[result.ToolUseId]; !ok {
		db.toolResultsByThreadId[result.ThreadId] = append(db.toolResultsByThreadId[result.ThreadId], result.ToolUseId)
	}
	db.toolResults[result.ToolUseId] = result

	return nil
}

func (db *MemoryDbDriver) GetToolResult(toolUseId string) (*model.ToolResult, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	result, ok := db.toolResults[toolUseId]
	if !ok {
		return nil, fmt.Errorf("tool result not found")
	}

	return result, nil
}

func (db *MemoryDbDriver) GetToolResultsForThread(threadId string) ([]*model.ToolResult, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	var results []*model.ToolResult
	for _, id := range db.toolResultsByThreadId[threadId] {
		if result, ok := db.toolResults[id]; ok {
			results = append(results, result)
		}
	}

	return results, nil
}
