package driver_badgerdb

import (
	"encoding/json"
	"fmt"

	"github.com/paularlott/loom/internal/database/model"

	badger "github.com/dgraph-io/badger/v4"
)

func (db *BadgerDbDriver) SaveThread(thread *model.Thread) error {
	err := db.connection.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(thread)
		if err != nil {
			return err
		}

		return txn.Set([]byte(fmt.Sprintf("Threads:%s", thread.Id)), data)
	})

	return err
}

func (db *BadgerDbDriver) DeleteThread(thread *model.Thread) error {
	err := db.connection.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(fmt.Sprintf("Threads:%s", thread.Id)))
		if err != nil {
			return err
		}

		// Drop the turns and tool results belonging to the thread
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		var keys [][]byte
		prefix := []byte(fmt.Sprintf("TurnsByThreadId:%s:", thread.Id))
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

			keys = append(keys, []byte(fmt.Sprintf("Turns:%s", turnId)))
			keys = append(keys, item.KeyCopy(nil))
		}

		prefix = []byte(fmt.Sprintf("ToolResultsByThreadId:%s:", thread.Id))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var toolUseId string
			err := item.Value(func(val []byte) error {
				toolUseId = string(val)
				return nil
			})
			if err != nil {
				return err
			}

			keys = append(keys, []byte(fmt.Sprintf("ToolResults:%s", toolUseId)))
			keys = append(keys, item.KeyCopy(nil))
		}

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		return nil
	})

	return err
}

func (db *BadgerDbDriver) GetThread(id string) (*model.Thread, error) {
	var thread = &model.Thread{}

	err := db.connection.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(fmt.Sprintf("Threads:%s", id)))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, thread)
		})
	})

	if err != nil {
		return nil, err
	}

	return thread, err
}

func (db *BadgerDbDriver) GetThreads() ([]*model.Thread, error) {
	var threads []*model.Thread

	err := db.connection.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("Threads:")

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var thread = &model.Thread{}

			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, thread)
			})
			if err != nil {
				return err
			}

			threads = append(threads, thread)
		}

		return nil
	})

	return threads, err
}
