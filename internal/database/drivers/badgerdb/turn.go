package driver_badgerdb

import (
	"encoding/json"
	"fmt"

	"github.com/paularlott/loom/internal/database/model"

	badger "github.com/dgraph-io/badger/v4"
)

func (db *BadgerDbDriver) SaveTurn(turn *model.Turn) error {
	err := db.connection.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(turn)
		if err != nil {
			return err
		}

		if err = txn.Set([]byte(fmt.Sprintf("Turns:%s", turn.Id)), data); err != nil {
			return err
		}

		return txn.Set([]byte(fmt.Sprintf("TurnsByThreadId:%s:%s", turn.ThreadId, turn.Id)), []byte(turn.Id))
	})

	return err
}

func (db *BadgerDbDriver) DeleteTurn(turn *model.Turn) error {
	err := db.connection.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(fmt.Sprintf("Turns:%s", turn.Id)))
		if err != nil {
			return err
		}

		return txn.Delete([]byte(fmt.Sprintf("TurnsByThreadId:%s:%s", turn.ThreadId, turn.Id)))
	})

	return err
}

func (db *BadgerDbDriver) GetTurn(id string) (*model.Turn, error) {
	var turn = &model.Turn{}

	err := db.connection.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(fmt.Sprintf("Turns:%s", id)))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, turn)
		})
	})

	if err != nil {
		return nil, err
	}

	return turn, err
}

func (db *BadgerDbDriver) GetTurnsForThread(threadId string) ([]*model.Turn, error) {
	var turns []*model.Turn

	err := db.connection.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(fmt.Sprintf("TurnsByThreadId:%s:", threadId))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var turnId string
			err := item.Value(func(val []byte) error {
				turnId = string(val)
				return nil
			})
			if err != nil {
				return err
			}

			turn, err := db.GetTurn(turnId)
			if err != nil {
				return err
			}

			turns = append(turns, turn)
		}

		return nil
	})

	return turns, err
}
