package driver_redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paularlott/loom/internal/database/model"
)

func (db *RedisDbDriver) SaveThread(thread *model.Thread) error {
	data, err := json.Marshal(thread)
	if err != nil {
		return err
	}

	return db.connection.Set(context.Background(), fmt.Sprintf("%sThreads:%s", db.prefix, thread.Id), data, 0).Err()
}

func (db *RedisDbDriver) DeleteThread(thread *model.Thread) error {
	ctx := context.Background()

	// Drop the turns and tool results belonging to the thread
	turns, err := db.GetTurnsForThread(thread.Id)
	if err != nil {
		return err
	}
	for _, turn := range turns {
		if err := db.DeleteTurn(turn); err != nil {
			return err
		}
	}

	iter := db.connection.Scan(ctx, 0, fmt.Sprintf("%sToolResultsByThreadId:%s:*", db.prefix, thread.Id), 0).Iterator()
	for iter.Next(ctx) {
		toolUseId := iter.Val()[len(fmt.Sprintf("%sToolResultsByThreadId:%s:", db.prefix, thread.Id)):]
		if err := db.connection.Del(ctx, fmt.Sprintf("%sToolResults:%s", db.prefix, toolUseId), iter.Val()).Err(); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	return db.connection.Del(ctx, fmt.Sprintf("%sThreads:%s", db.prefix, thread.Id)).Err()
}

func (db *RedisDbDriver) GetThread(id string) (*model.Thread, error) {
	var thread = &model.Thread{}

	v, err := db.connection.Get(context.Background(), fmt.Sprintf("%sThreads:%s", db.prefix, id)).Result()
	if err != nil {
		return nil, convertRedisError(err)
	}

	err = json.Unmarshal([]byte(v), &thread)
	if err != nil {
		return nil, err
	}

	return thread, nil
}

func (db *RedisDbDriver) GetThreads() ([]*model.Thread, error) {
	var threads []*model.Thread

	iter := db.connection.Scan(context.Background(), 0, fmt.Sprintf("%sThreads:*", db.prefix), 0).Iterator()
	for iter.Next(context.Background()) {
		thread, err := db.GetThread(iter.Val()[len(fmt.Sprintf("%sThreads:", db.prefix)):])
		if err != nil {
			return nil, err
		}
		if thread == nil {
			continue
		}

		threads = append(threads, thread)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return threads, nil
}
