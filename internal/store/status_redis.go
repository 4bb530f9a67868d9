package store

import (
    "context"
    "encoding/json"
    "fmt"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Status is the externally visible state of a quiz job.
type Status struct {
    Status     string     `json:"status"`
    Progress   int        `json:"progress"`
    Message    string     `json:"message"`
    QuizID     string     `json:"quiz_id,omitempty"`
    ErrorKind  string     `json:"error_kind,omitempty"`
    RetryAfter int        `json:"retry_after_seconds,omitempty"`
    Details    []string   `json:"details,omitempty"`
    Start      *time.Time `json:"start_time,omitempty"`
    End        *time.Time `json:"end_time,omitempty"`
}

type RedisStatus struct {
    client redis.Cmdable
    keyNS  string
    ttl    time.Duration
}

// NewRedisStatus stores one hash per job, expiring ttl after the last write.
func NewRedisStatus(client redis.Cmdable, ttl time.Duration) *RedisStatus {
    return &RedisStatus{client: client, keyNS: "job", ttl: ttl}
}

func (s *RedisStatus) key(jobID string) string { return fmt.Sprintf("%s:%s:status", s.keyNS, jobID) }

func (s *RedisStatus) Set(ctx context.Context, jobID string, st Status) error {
    m := map[string]interface{}{
        "status":   st.Status,
        "progress": st.Progress,
        "message":  st.Message,
    }
    if st.QuizID != "" { m["quiz_id"] = st.QuizID }
    if st.ErrorKind != "" { m["error_kind"] = st.ErrorKind }
    if st.RetryAfter > 0 { m["retry_after"] = st.RetryAfter }
    if len(st.Details) > 0 {
        b, _ := json.Marshal(st.Details)
        m["details"] = string(b)
    }
    if st.Start != nil { m["start"] = st.Start.Format(time.RFC3339Nano) }
    if st.End != nil { m["end"] = st.End.Format(time.RFC3339Nano) }

    k := s.key(jobID)
    if err := s.client.HSet(ctx, k, m).Err(); err != nil { return err }
    if s.ttl > 0 {
        return s.client.Expire(ctx, k, s.ttl).Err()
    }
    return nil
}

func (s *RedisStatus) Get(ctx context.Context, jobID string) (Status, bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
    if err != nil { return Status{}, false, err }
    if len(res) == 0 { return Status{}, false, nil }
    st := Status{
        Status:    res["status"],
        Message:   res["message"],
        QuizID:    res["quiz_id"],
        ErrorKind: res["error_kind"],
    }
    // ignore parse errors; default 0
    st.Progress, _ = strconv.Atoi(res["progress"])
    st.RetryAfter, _ = strconv.Atoi(res["retry_after"])
    if v := res["details"]; v != "" {
        _ = json.Unmarshal([]byte(v), &st.Details)
    }
    if v := res["start"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.Start = &t }
    }
    if v := res["end"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.End = &t }
    }
    return st, true, nil
}
