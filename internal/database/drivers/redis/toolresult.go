package driver_redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paularlott/loom/internal/database/model"
)

func (db *RedisDbDriver) SaveToolResult(result *model.ToolResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := db.connection.Set(ctx, fmt.Sprintf("%sToolResults:%s", db.prefix, result.ToolUseId), data, 0).Err(); err != nil {
		return err
	}

	return db.connection.Set(ctx, fmt.Sprintf("%sToolResultsByThreadId:%s:%s", db.prefix, result.ThreadId, result.ToolUseId), result.ToolUseId, 0).Err()
}

func (db *RedisDbDriver) GetToolResult(toolUseId string) (*model.ToolResult, error) {
	var result = &model.ToolResult{}

	v, err := db.connection.Get(context.Background(), fmt.Sprintf("%sToolResults:%s", db.prefix, toolUseId)).Result()
	if err != nil {
		return nil, convertRedisError(err)
	}

	err = json.Unmarshal([]byte(v), &result)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (db *RedisDbDriver) GetToolResultsForThread(threadId string) ([]*model.ToolResult, error) {
	var results []*model.ToolResult

	ctx := context.Background()
	prefix := fmt.Sprintf("%sToolResultsByThreadId:%s:", db.prefix, threadId)

	iter := db.connection.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		result, err := db.GetToolResult(iter.Val()[len(prefix):])
		if err != nil {
			return nil, err
		}
		if result == nil {
			continue
		}

		results = append(results, result)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
