package driver_redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/paularlott/loom/internal/database/model"
)

func (db *RedisDbDriver) SaveTurn(turn *model.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := db.connection.Set(ctx, fmt.Sprintf("%sTurns:%s", db.prefix, turn.Id), data, 0).Err(); err != nil {
		return err
	}

	return db.connection.Set(ctx, fmt.Sprintf("%sTurnsByThreadId:%s:%s", db.prefix, turn.ThreadId, turn.Id), turn.Id, 0).Err()
}

func (db *RedisDbDriver) DeleteTurn(turn *model.Turn) error {
	return db.connection.Del(
		context.Background(),
		fmt.Sprintf("%sTurns:%s", db.prefix, turn.Id),
		fmt.Sprintf("%sTurnsByThreadId:%s:%s", db.prefix, turn.ThreadId, turn.Id),
	).Err()
}

func (db *RedisDbDriver) GetTurn(id string) (*model.Turn, error) {
	var turn = &model.Turn{}

	v, err := db.connection.Get(context.Background(), fmt.Sprintf("%sTurns:%s", db.prefix, id)).Result()
	if err != nil {
		return nil, convertRedisError(err)
	}

	err = json.Unmarshal([]byte(v), &turn)
	if err != nil {
		return nil, err
	}

	return turn, nil
}

func (db *RedisDbDriver) GetTurnsForThread(threadId string) ([]*model.Turn, error) {
	var turns []*model.Turn

	ctx := context.Background()
	prefix := fmt.Sprintf("%sTurnsByThreadId:%s:", db.prefix, threadId)

	iter := db.connection.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		turn, err := db.GetTurn(iter.Val()[len(prefix):])
		if err != nil {
			return nil, err
		}
		if turn == nil {
			continue
		}

		turns = append(turns, turn)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	sort.Slice(turns, func(i, j int) bool {
		return turns[i].CreatedAt.Before(turns[j].CreatedAt)
	})

	return turns, nil
}
