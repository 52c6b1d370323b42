// Package store persists parsed envelopes and the seen-id set in Redis.
//
// The envelope protocol itself defines no persistence responsibility; this
// layer exists so a restarted process keeps its idempotence guarantees and
// an operator can inspect recent traffic. Redis hashes hold only flat
// string fields, so the extension map is stored as a JSON string.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/deaddrop-research/agentwire/envelope"
)

const (
	// ParsedKeyPrefix guarantees all keys with this prefix hold one parsed
	// envelope.
	ParsedKeyPrefix = "agent-msg-parsed-"

	// seenSetKey holds the ids of envelopes already ingested.
	seenSetKey = "_agent_meta-msgs"
)

// ErrNotFound is returned when no envelope is stored under an id.
var ErrNotFound = errors.New("envelope not found")

// RedisStore reads and writes parsed envelopes. The caller owns the
// client's lifecycle.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore on an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Key returns the Redis key an envelope id is stored under.
func (s *RedisStore) Key(id string) string {
	return ParsedKeyPrefix + id
}

// Put stores an envelope as a flat hash under its id key.
func (s *RedisStore) Put(ctx context.Context, e *envelope.Envelope) error {
	fields := map[string]any{
		"id":           e.ID,
		"message_type": string(e.MessageType),
		"initiated_by": string(e.InitiatedBy),
		"timestamp":    strconv.FormatInt(e.Timestamp, 10),
		"data":         e.Data,
	}
	if e.Extra != nil {
		extraJSON, err := json.Marshal(e.Extra)
		if err != nil {
			return fmt.Errorf("serialize extra: %w", err)
		}
		fields["extra"] = string(extraJSON)
	}

	if err := s.client.HSet(ctx, s.Key(e.ID), fields).Err(); err != nil {
		return fmt.Errorf("store envelope %s: %w", e.ID, err)
	}
	return nil
}

// Get loads the envelope stored under id. Returns ErrNotFound if absent.
func (s *RedisStore) Get(ctx context.Context, id string) (*envelope.Envelope, error) {
	fields, err := s.client.HGetAll(ctx, s.Key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load envelope %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	ts, err := strconv.ParseInt(fields["timestamp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("stored envelope %s has bad timestamp: %w", id, err)
	}

	e := &envelope.Envelope{
		ID:          fields["id"],
		MessageType: envelope.MessageType(fields["message_type"]),
		InitiatedBy: envelope.Origin(fields["initiated_by"]),
		Timestamp:   ts,
		Data:        fields["data"],
	}
	if extraJSON, ok := fields["extra"]; ok {
		if err := json.Unmarshal([]byte(extraJSON), &e.Extra); err != nil {
			return nil, fmt.Errorf("stored envelope %s has bad extra: %w", id, err)
		}
	}
	return e, nil
}

// Delete removes the envelope stored under id.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.Key(id)).Err()
}

// MarkSeen records an envelope id in the seen set. Returns true if the id
// was new, false if it had been recorded before.
func (s *RedisStore) MarkSeen(ctx context.Context, id string) (bool, error) {
	added, err := s.client.SAdd(ctx, seenSetKey, id).Result()
	if err != nil {
		return false, fmt.Errorf("mark %s seen: %w", id, err)
	}
	return added == 1, nil
}

// WasSeen reports whether an envelope id is in the seen set.
func (s *RedisStore) WasSeen(ctx context.Context, id string) (bool, error) {
	seen, err := s.client.SIsMember(ctx, seenSetKey, id).Result()
	if err != nil {
		return false, fmt.Errorf("check %s seen: %w", id, err)
	}
	return seen, nil
}

// ListIDs scans the store for ids of all persisted envelopes.
func (s *RedisStore) ListIDs(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, ParsedKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan envelopes: %w", err)
		}
		for _, key := range keys {
			ids = append(ids, key[len(ParsedKeyPrefix):])
		}
		cursor = next
		if cursor == 0 {
			return ids, nil
		}
	}
}
