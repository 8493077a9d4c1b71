package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	cmodels "proofbridge/internal/credential/models"
	"proofbridge/internal/proof/models"
	id "proofbridge/pkg/domain"
)

// DefaultRedisScopeTTL bounds how long an abandoned scope survives in Redis.
const DefaultRedisScopeTTL = 30 * time.Minute

const (
	redisKeyPrefix     = "proof:state:"
	fieldVerified      = "verified"
	fieldRetrievedData = "retrieved_data"
)

// RedisStore keeps each scope in a Redis hash so the two fields are written
// independently, refreshing the scope TTL on every write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a Redis-backed state store. A zero ttl uses DefaultRedisScopeTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultRedisScopeTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Get loads a scope. A missing key is a fresh scope, not an error.
func (s *RedisStore) Get(ctx context.Context, sessionID id.SessionID) (models.VerificationState, error) {
	values, err := s.client.HGetAll(ctx, scopeKey(sessionID)).Result()
	if err != nil {
		return models.VerificationState{}, fmt.Errorf("load verification state: %w", err)
	}

	var st models.VerificationState
	st.Verified = values[fieldVerified] == "1"
	if raw, ok := values[fieldRetrievedData]; ok && raw != "" && raw != "null" {
		var bundle cmodels.Bundle
		if err := json.Unmarshal([]byte(raw), &bundle); err != nil {
			return models.VerificationState{}, fmt.Errorf("decode retrieved data: %w", err)
		}
		st.RetrievedData = &bundle
	}
	return st, nil
}

func (s *RedisStore) SetVerified(ctx context.Context, sessionID id.SessionID, verified bool) error {
	value := "0"
	if verified {
		value = "1"
	}
	if err := s.write(ctx, sessionID, fieldVerified, value); err != nil {
		return fmt.Errorf("save verified flag: %w", err)
	}
	return nil
}

func (s *RedisStore) SetRetrievedData(ctx context.Context, sessionID id.SessionID, bundle *cmodels.Bundle) error {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("encode retrieved data: %w", err)
	}
	if err := s.write(ctx, sessionID, fieldRetrievedData, string(payload)); err != nil {
		return fmt.Errorf("save retrieved data: %w", err)
	}
	return nil
}

func (s *RedisStore) Reset(ctx context.Context, sessionID id.SessionID) error {
	if err := s.client.Del(ctx, scopeKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("reset verification state: %w", err)
	}
	return nil
}

func (s *RedisStore) write(ctx context.Context, sessionID id.SessionID, field, value string) error {
	key := scopeKey(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, field, value)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	return err
}

func scopeKey(sessionID id.SessionID) string {
	return redisKeyPrefix + sessionID.String()
}

var _ Store = (*RedisStore)(nil)
