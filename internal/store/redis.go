package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	redisIndexKey   = "peer-relay:ledger:destinations"
	redisDestPrefix = "peer-relay:ledger:dest:"
)

// RedisStore keeps one hash per destination, field = file name,
// value = "<send time unix nanos>|<part ranges>".
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (rs *RedisStore) Load(ctx context.Context) ([]Transfer, error) {
	dests, err := rs.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing destinations: %w", err)
	}

	var transfers []Transfer
	for _, dest := range dests {
		fields, err := rs.client.HGetAll(ctx, redisDestPrefix+dest).Result()
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", dest, err)
		}
		for fileName, value := range fields {
			nanos, ranges, ok := strings.Cut(value, "|")
			if !ok {
				return nil, fmt.Errorf("%w: %s/%s: %q", ErrCorrupt, dest, fileName, value)
			}
			sent, err := strconv.ParseInt(nanos, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s/%s send time: %v", ErrCorrupt, dest, fileName, err)
			}
			parts, err := ParseParts(ranges)
			if err != nil {
				return nil, err
			}
			transfers = append(transfers, Transfer{
				Destination: dest,
				FileName:    fileName,
				SendTime:    time.Unix(0, sent),
				Unacked:     parts,
			})
		}
	}
	return transfers, nil
}

// Save rewrites every destination hash inside one MULTI/EXEC.
func (rs *RedisStore) Save(ctx context.Context, transfers []Transfer) error {
	old, err := rs.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return fmt.Errorf("listing destinations: %w", err)
	}

	grouped := make(map[string][]interface{})
	for _, t := range transfers {
		value := strconv.FormatInt(t.SendTime.UnixNano(), 10) + "|" + FormatParts(t.Unacked)
		grouped[t.Destination] = append(grouped[t.Destination], t.FileName, value)
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, dest := range old {
			pipe.Del(ctx, redisDestPrefix+dest)
		}
		pipe.Del(ctx, redisIndexKey)
		for dest, fields := range grouped {
			pipe.HSet(ctx, redisDestPrefix+dest, fields...)
			pipe.SAdd(ctx, redisIndexKey, dest)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving ledger: %w", err)
	}
	return nil
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
