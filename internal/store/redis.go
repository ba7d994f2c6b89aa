package store

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"saykit-agent/internal/model"
)

const keyPrefix = "saykit:events:"

// RedisLog 基于 Redis list 的事件日志：LPUSH 新序列，LTRIM 保留最近 capacity 条
type RedisLog struct {
	client   *redis.Client
	capacity int
	ttl      time.Duration
	log      *logrus.Entry
}

// NewRedisLog 连接 Redis 并 ping 校验。ttl 为会话日志的过期时间，0 表示不过期
func NewRedisLog(url string, capacity int, ttl time.Duration, log *logrus.Entry) (*RedisLog, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	log.WithField("component", "store").Info("connected to redis event log")
	return &RedisLog{client: client, capacity: capacity, ttl: ttl, log: log.WithField("component", "store")}, nil
}

func sessionKey(sessionID string) string { return keyPrefix + sessionID }

func (l *RedisLog) Append(ctx context.Context, posted model.PostedSequence) error {
	data, err := json.Marshal(posted)
	if err != nil {
		return fmt.Errorf("marshal posted sequence: %w", err)
	}
	key := sessionKey(posted.SessionID)
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, int64(l.capacity-1))
		if l.ttl > 0 {
			pipe.Expire(ctx, key, l.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append event log %s: %w", posted.SessionID, err)
	}
	return nil
}

func (l *RedisLog) Recent(ctx context.Context, sessionID string, limit int) ([]model.PostedSequence, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raw, err := l.client.LRange(ctx, sessionKey(sessionID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read event log %s: %w", sessionID, err)
	}
	out := make([]model.PostedSequence, 0, len(raw))
	// list 头部是最新的，倒序还原为投递顺序
	for i := len(raw) - 1; i >= 0; i-- {
		var p model.PostedSequence
		if err := json.Unmarshal([]byte(raw[i]), &p); err != nil {
			l.log.WithError(err).Warn("skip malformed event log entry")
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (l *RedisLog) Delete(ctx context.Context, sessionID string) error {
	return l.client.Del(ctx, sessionKey(sessionID)).Err()
}

func (l *RedisLog) Close() error {
	return l.client.Close()
}
