package driver_badgerdb

import (
	"encoding/json"
	"fmt"

	"github.com/paularlott/loom/internal/database/model"

	badger "github.com/dgraph-io/badger/v4"
)

func (db *BadgerDbDriver) SaveToolResult(result *model.ToolResult) error {
	err := db.connection.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}

		if err = txn.Set([]byte(fmt.Sprintf("ToolResults:%s", result.ToolUseId)), data); err != nil {
			return err
		}

		return txn.Set([]byte(fmt.Sprintf("ToolResultsByThreadId:%s:%s", result.ThreadId, result.ToolUseId)), []byte(result.ToolUseId))
	})

	return err
}

func (db *BadgerDbDriver) GetToolResult(toolUseId string) (*model.ToolResult, error) {
	var result = &model.ToolResult{}

	err := db.connection.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(fmt.Sprintf("ToolResults:%s", toolUseId)))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, result)
		})
	})

	if err != nil {
		return nil, err
	}

	return result, err
}

func (db *BadgerDbDriver) GetToolResultsForThread(threadId string) ([]*model.ToolResult, error) {
	var results []*model.ToolResult

	err := db.connection.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(fmt.Sprintf("ToolResultsByThreadId:%s:", threadId))
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

			result, err := db.GetToolResult(toolUseId)
			if err != nil {
				return err
			}

			results = append(results, result)
		}

		return nil
	})

	return results, err
}
