package match

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ttlRecord   = 24 * time.Hour
	recentLimit = 100
)

// Archive keeps finished-match records in Redis with a rolling recency
// index. Records expire after 24h; this is bookkeeping, not durable storage.
type Archive struct {
	rdb *redis.Client
}

func NewArchive(rdb *redis.Client) *Archive { return &Archive{rdb: rdb} }

func NewArchiveFromURL(redisURL string) (*Archive, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for match archive")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Archive{rdb: rdb}, nil
}

func (a *Archive) Close() error {
	if a == nil || a.rdb == nil {
		return nil
	}
	return a.rdb.Close()
}

func recordKey(id string) string { return "arena:match:" + strings.TrimSpace(id) }
func recentKey() string          { return "arena:recent" }

func (a *Archive) SaveRecord(ctx context.Context, rec *Record) error {
	if a == nil || a.rdb == nil || rec == nil {
		return nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := a.rdb.Set(ctx, recordKey(rec.ID), raw, ttlRecord).Err(); err != nil {
		return err
	}
	pipe := a.rdb.Pipeline()
	pipe.LPush(ctx, recentKey(), rec.ID)
	pipe.LTrim(ctx, recentKey(), 0, recentLimit-1)
	pipe.Expire(ctx, recentKey(), ttlRecord)
	_, err = pipe.Exec(ctx)
	return err
}

func (a *Archive) LoadRecord(ctx context.Context, id string) (*Record, error) {
	if a == nil || a.rdb == nil {
		return nil, nil
	}
	raw, err := a.rdb.Get(ctx, recordKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recent returns up to limit most recently finished matches, newest first.
func (a *Archive) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if a == nil || a.rdb == nil {
		return nil, nil
	}
	if limit <= 0 || limit > recentLimit {
		limit = recentLimit
	}
	ids, err := a.rdb.LRange(ctx, recentKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, lerr := a.LoadRecord(ctx, id)
		if lerr != nil || rec == nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
