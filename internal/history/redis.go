package history

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"

    redis "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog/log"
)

const DefaultKey = "quiz:history"

// NewRedis keeps the history as a single JSON document under key.
func NewRedis(client redis.Cmdable, key string, opts ...Option) *History {
    if key == "" { key = DefaultKey }
    return newHistory(&redisBackend{client: client, key: key}, opts...)
}

type redisBackend struct {
    client redis.Cmdable
    key    string
}

func (r *redisBackend) load(ctx context.Context) ([]Entry, error) {
    raw, err := r.client.Get(ctx, r.key).Result()
    if errors.Is(err, redis.Nil) { return nil, nil }
    if err != nil { return nil, fmt.Errorf("load history: %w", err) }
    var entries []Entry
    if err := json.Unmarshal([]byte(raw), &entries); err != nil {
        // a corrupt document is treated as empty, it is replaced on the next write
        log.Error().Err(err).Str("key", r.key).Msg("history document unreadable")
        return nil, nil
    }
    return entries, nil
}

func (r *redisBackend) store(ctx context.Context, entries []Entry) error {
    if entries == nil { entries = []Entry{} }
    b, err := json.Marshal(entries)
    if err != nil { return err }
    if err := r.client.Set(ctx, r.key, string(b), 0).Err(); err != nil {
        return fmt.Errorf("store history: %w", err)
    }
    return nil
}

func (r *redisBackend) clear(ctx context.Context) error {
    return r.client.Del(ctx, r.key).Err()
}
