package driver_memory

import (
	"fmt"

	"github.com/paularlott/loom/internal/database/model"
)

func (db *MemoryDbDriver) SaveTurn(turn *model.Turn) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, ok := db.turns[turn.Id]; !ok {
		db.turnsByThreadId[turn.ThreadId] = append(db.turnsByThreadId[turn.ThreadId], turn.Id)
	}
	db.turns[turn.Id] = turn

	return nil
}

func (db *MemoryDbDriver) DeleteTurn(turn *model.Turn) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	delete(db.turns, turn.Id)

	for i, id := range db.turnsByThreadId[turn.ThreadId] {
		if id == turn.Id {
			db.turnsByThreadId[turn.ThreadId] = append(db.turnsByThreadId[turn.ThreadId][:i], db.turnsByThreadId[turn.ThreadId][i+1:]...)
			break
		}
	}

	return nil
}

func (db *MemoryDbDriver) GetTurn(id string) (*model.Turn, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	turn, ok := db.turns[id]
	if !ok {
		return nil, fmt.Errorf("turn not found")
	}

	return turn, nil
}

func (db *MemoryDbDriver) GetTurnsForThread(threadId string) ([]*model.Turn, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	var turns []*model.Turn
	for _, id := range db.turnsByThreadId[threadId] {
		if turn, ok := db.turns[id]; ok {
			turns = append(turns, turn)
		}
	}

	return turns, nil
}
