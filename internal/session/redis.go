package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	logaierrors "github.com/logai/logai/internal/errors"
	"github.com/logai/logai/internal/logmodel"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// KeyPrefix namespaces session keys, e.g. "logai:session:".
	KeyPrefix string
	// TTL expires idle sessions; zero disables expiry.
	TTL time.Duration
}

// RedisStore is an optional distributed Store backend for multi-instance
// deployments, selected by configuration. Each session is a JSON blob at
// KeyPrefix+id; AppendTurn uses an optimistic WATCH transaction so
// concurrent writers from different instances never interleave a
// read-modify-write.
type RedisStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to a Redis instance per opts.
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     nonZero(opts.PoolSize, 20),
		MinIdleConns: nonZero(opts.MinIdleConns, 5),
		DialTimeout:  nonZeroDuration(opts.DialTimeout, 5*time.Second),
		ReadTimeout:  nonZeroDuration(opts.ReadTimeout, 3*time.Second),
		WriteTimeout: nonZeroDuration(opts.WriteTimeout, 3*time.Second),
	})
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "logai:session:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: opts.TTL}
}

func nonZero(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) GetOrCreate(ctx context.Context, id string) error {
	_, err := r.load(ctx, id)
	if err == nil {
		return nil
	}
	if !logaierrors.Is(err, logaierrors.CodeResourceNotFound) {
		return err
	}

	sess := &logmodel.ChatSession{ID: id, CreatedAt: time.Now().UTC()}
	return r.save(ctx, sess)
}

func (r *RedisStore) ReadSnapshot(ctx context.Context, id string) (Snapshot, error) {
	sess, err := r.load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return cloneSnapshot(sess), nil
}

func (r *RedisStore) AppendTurn(ctx context.Context, id, userMsg, assistantMsg string, evidence []string, query string) error {
	key := r.key(id)

	txFn := func(tx *goredis.Tx) error {
		sess, err := r.loadTx(ctx, tx, id)
		if err != nil {
			if !logaierrors.Is(err, logaierrors.CodeResourceNotFound) {
				return err
			}
			sess = &logmodel.ChatSession{ID: id, CreatedAt: time.Now().UTC()}
		}

		sess.History = append(sess.History,
			logmodel.ChatTurn{Role: logmodel.RoleUser, Content: userMsg},
			logmodel.ChatTurn{Role: logmodel.RoleAssistant, Content: assistantMsg},
		)
		if len(sess.History) > maxHistory {
			sess.History = sess.History[len(sess.History)-maxHistory:]
		}
		sess.LastEvidence = evidence
		sess.LastQuery = query
		sess.Turns++

		blob, err := json.Marshal(sess)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, blob, r.ttl)
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txFn, key)
	if err == goredis.TxFailedErr {
		return r.AppendTurn(ctx, id, userMsg, assistantMsg, evidence, query)
	}
	return err
}

func (r *RedisStore) Info(ctx context.Context, id string) (Info, error) {
	sess, err := r.load(ctx, id)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Turns:             sess.Turns,
		LastEvidenceCount: len(sess.LastEvidence),
		AgeSeconds:        time.Since(sess.CreatedAt).Seconds(),
	}, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) save(ctx context.Context, sess *logmodel.ChatSession) error {
	blob, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(sess.ID), blob, r.ttl).Err()
}

func (r *RedisStore) load(ctx context.Context, id string) (*logmodel.ChatSession, error) {
	blob, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, logaierrors.NewResourceNotFound("session", id)
	}
	if err != nil {
		return nil, logaierrors.NewServiceUnavailable()
	}
	var sess logmodel.ChatSession
	if err := json.Unmarshal(blob, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (r *RedisStore) loadTx(ctx context.Context, tx *goredis.Tx, id string) (*logmodel.ChatSession, error) {
	blob, err := tx.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, logaierrors.NewResourceNotFound("session", id)
	}
	if err != nil {
		return nil, logaierrors.NewServiceUnavailable()
	}
	var sess logmodel.ChatSession
	if err := json.Unmarshal(blob, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}
