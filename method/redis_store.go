package method

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is the key prefix used when none is configured.
const DefaultRedisPrefix = "mfa:m:"

const defaultMaxRetries = 8

// RedisStore keeps one hash per user, one field per method name.
//
// Mutate uses WATCH on the user's hash and commits the changed fields in a
// MULTI block. A concurrent writer aborts the transaction and fn is re-run
// against the fresh state, up to a bounded number of attempts.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries int
}

// NewRedisStore returns a store using prefix for keys. An empty prefix uses
// "mfa:m:".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, maxRetries: defaultMaxRetries}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

// Load reads every method of the user.
func (s *RedisStore) Load(ctx context.Context, userID string) (*Set, error) {
	raw, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, err
	}
	return decodeSet(userID, raw)
}

// Mutate implements Store.
func (s *RedisStore) Mutate(ctx context.Context, userID string, fn func(*Set) error) error {
	key := s.key(userID)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			set, err := decodeSet(userID, raw)
			if err != nil {
				return err
			}
			if err := fn(set); err != nil {
				return err
			}

			changed := set.Changed()
			if len(changed) == 0 {
				return nil
			}
			values := make([]interface{}, 0, 2*len(changed))
			for _, m := range changed {
				encoded, err := Encode(m)
				if err != nil {
					return err
				}
				values = append(values, m.Name, encoded)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, values...)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return fmt.Errorf("%w: user %s after %d attempts", ErrConflict, userID, s.maxRetries)
}

func decodeSet(userID string, raw map[string]string) (*Set, error) {
	methods := make([]*Method, 0, len(raw))
	for field, value := range raw {
		m, err := Decode(userID, []byte(value))
		if err != nil {
			return nil, fmt.Errorf("method %q: %w", field, err)
		}
		methods = append(methods, m)
	}
	return NewSet(userID, methods), nil
}
