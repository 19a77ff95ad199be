package driver_memory

import (
	"fmt"

	"github.com/paularlott/loom/internal/database/model"
)

func (db *MemoryDbDriver) SaveThread(thread *model.Thread) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.threads[thread.Id] = thread

	return nil
}

func (db *MemoryDbDriver) DeleteThread(thread *model.Thread) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	delete(db.threads, thread.Id)

	for _, turnId := range db.turnsByThreadId[thread.Id] {
		delete(db.turns, turnId)
	}
	delete(db.turnsByThreadId, thread.Id)

	for _, toolUseId := range db.toolResultsByThreadId[thread.Id] {
		delete(db.toolResults, toolUseId)
	}
	delete(db.toolResultsByThreadId, thread.Id)

	return nil
}

func (db *MemoryDbDriver) GetThread(id string) (*model.Thread, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	thread, ok := db.threads[id]
	if !ok {
		return nil, fmt.Errorf("thread not found")
	}

	return thread, nil
}

func (db *MemoryDbDriver) GetThreads() ([]*model.Thread, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	threads := make([]*model.Thread, 0, len(db.threads))
	for _, thread := range db.threads {
		threads = append(threads, thread)
	}

	return threads, nil
}
