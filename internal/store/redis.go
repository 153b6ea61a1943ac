package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/cheese-chess/internal/domain"
)

const (
	redisGameSeqKey = "chess:game:seq"
	redisGameIdxKey = "chess:games"
	// maxTxRetries bounds WATCH retries in Update.
	maxTxRetries = 16
)

func redisGameKey(id int) string { return "chess:game:" + strconv.Itoa(id) }
func redisUserKey(name string) string { return "chess:user:" + strings.TrimSpace(name) }
func redisAuthKey(token string) string { return "chess:auth:" + token }

// Redis stores records as JSON values. Games are indexed in a sorted set
// scored by id; the id counter lives under its own key and survives Clear.
type Redis struct {
	rdb     *redis.Client
	authTTL time.Duration
}

// NewRedis dials redisURL (redis:// or rediss://) and pings it. A zero authTTL keeps tickets forever.
func NewRedis(ctx context.Context, redisURL string, authTTL time.Duration) (*Redis, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis store")
	}
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb, authTTL: authTTL}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb *redis.Client, authTTL time.Duration) *Redis {
	return &Redis{rdb: rdb, authTTL: authTTL}
}

func (s *Redis) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// ParseRedisURL extracts address, password and db number.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

func (s *Redis) Create(ctx context.Context, name string) (*domain.GameRecord, error) {
	id, err := s.rdb.Incr(ctx, redisGameSeqKey).Result()
	if err != nil {
		return nil, dataAccess("allocate game id", err)
	}
	rec := domain.NewGameRecord(int(id), name)
	if err := s.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Redis) Load(ctx context.Context, id int) (*domain.GameRecord, error) {
	raw, err := s.rdb.Get(ctx, redisGameKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gameNotFound(id)
	}
	if err != nil {
		return nil, dataAccess("load game", err)
	}
	return decodeRecord(raw)
}

func (s *Redis) Save(ctx context.Context, rec *domain.GameRecord) error {
	if rec == nil {
		return nilRecord()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode game %d: %w", rec.ID, err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisGameKey(rec.ID), raw, 0)
		pipe.ZAdd(ctx, redisGameIdxKey, redis.Z{Score: float64(rec.ID), Member: rec.ID})
		return nil
	})
	if err != nil {
		return dataAccess("save game", err)
	}
	return nil
}

// Update is a WATCH/MULTI read-modify-write. A concurrent writer on the same
// key aborts the transaction and fn is run again on the fresh record.
func (s *Redis) Update(ctx context.Context, id int, fn func(*domain.GameRecord) error) (*domain.GameRecord, error) {
	key := redisGameKey(id)
	var out *domain.GameRecord
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return gameNotFound(id)
		}
		if err != nil {
			return dataAccess("load game", err)
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		next, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode game %d: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		if err != nil {
			if errors.Is(err, redis.TxFailedErr) {
				return err
			}
			return dataAccess("save game", err)
		}
		out = rec
		return nil
	}
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: game %d: too many concurrent writers", domain.ErrDataAccess, id)
}

func (s *Redis) List(ctx context.Context) ([]*domain.GameRecord, error) {
	ids, err := s.rdb.ZRange(ctx, redisGameIdxKey, 0, -1).Result()
	if err != nil {
		return nil, dataAccess("list games", err)
	}
	out := make([]*domain.GameRecord, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		keys = append(keys, redisGameKey(id))
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, dataAccess("list games", err)
	}
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Clear removes game records and the index but keeps the id counter.
func (s *Redis) Clear(ctx context.Context) error {
	ids, err := s.rdb.ZRange(ctx, redisGameIdxKey, 0, -1).Result()
	if err != nil {
		return dataAccess("clear games", err)
	}
	keys := []string{redisGameIdxKey}
	for _, raw := range ids {
		if id, err := strconv.Atoi(raw); err == nil {
			keys = append(keys, redisGameKey(id))
		}
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return dataAccess("clear games", err)
	}
	return nil
}

func (s *Redis) CreateUser(ctx context.Context, u domain.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, redisUserKey(u.Username), raw, 0).Result()
	if err != nil {
		return dataAccess("create user", err)
	}
	if !ok {
		return fmt.Errorf("%w: username %q", domain.ErrAlreadyTaken, u.Username)
	}
	return nil
}

func (s *Redis) GetUser(ctx context.Context, username string) (*domain.User, error) {
	raw, err := s.rdb.Get(ctx, redisUserKey(username)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: user %q", domain.ErrNotFound, username)
	}
	if err != nil {
		return nil, dataAccess("get user", err)
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

func (s *Redis) ClearUsers(ctx context.Context) error {
	return s.deleteMatching(ctx, "chess:user:*")
}

func (s *Redis) PutAuth(ctx context.Context, t domain.AuthTicket) error {
	if err := s.rdb.Set(ctx, redisAuthKey(t.Token), t.Username, s.authTTL).Err(); err != nil {
		return dataAccess("put auth", err)
	}
	return nil
}

func (s *Redis) GetAuth(ctx context.Context, token string) (*domain.AuthTicket, error) {
	username, err := s.rdb.Get(ctx, redisAuthKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: auth token", domain.ErrNotFound)
	}
	if err != nil {
		return nil, dataAccess("get auth", err)
	}
	return &domain.AuthTicket{Token: token, Username: username}, nil
}

func (s *Redis) DeleteAuth(ctx context.Context, token string) error {
	n, err := s.rdb.Del(ctx, redisAuthKey(token)).Result()
	if err != nil {
		return dataAccess("delete auth", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: auth token", domain.ErrNotFound)
	}
	return nil
}

func (s *Redis) ClearAuth(ctx context.Context) error {
	return s.deleteMatching(ctx, "chess:auth:*")
}

func (s *Redis) deleteMatching(ctx context.Context, pattern string) error {
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return dataAccess("scan "+pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return dataAccess("delete "+pattern, err)
	}
	return nil
}

func decodeRecord(raw []byte) (*domain.GameRecord, error) {
	var rec domain.GameRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode game: %w", err)
	}
	return &rec, nil
}
