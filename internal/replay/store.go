// internal/replay/store.go
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/luxgrid/luxgrid/internal/models"
)

const (
	dataKeyPrefix = "replays:data:"
	userKeyPrefix = "replays:users:"
)

// ErrNotFound is returned when a replay blob or index entry does not exist.
var ErrNotFound = errors.New("replay: not found")

// KV is the minimal key-value surface the store needs. Redis implements it
// in production; tests substitute an in-memory map.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error
}

// redisKV adapts a go-redis client to the KV surface.
type redisKV struct {
	rdb *redis.Client
}

func (r redisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (r redisKV) Set(ctx context.Context, key, value string) error {
	if err := r.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r redisKV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Store persists replay blobs and per-user indexes.
type Store struct {
	kv     KV
	logger *logrus.Logger
}

// NewStore builds a Redis-backed store.
func NewStore(rdb *redis.Client, logger *logrus.Logger) *Store {
	return &Store{kv: redisKV{rdb: rdb}, logger: logger}
}

// NewStoreWithKV builds a store over an arbitrary KV (tests).
func NewStoreWithKV(kv KV, logger *logrus.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// NewReplayID returns a 12-character opaque replay id.
func NewReplayID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Save writes the blob and prepends an entry to the owner's index,
// truncating the index to the per-user cap and deleting evicted blobs.
func (s *Store) Save(ctx context.Context, data *models.ReplayData) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal replay %s: %w", data.Metadata.ReplayID, err)
	}
	if err := s.kv.Set(ctx, dataKeyPrefix+data.Metadata.ReplayID, string(blob)); err != nil {
		return err
	}

	index, err := s.userIndex(ctx, data.Metadata.UserID)
	if err != nil {
		return err
	}

	entryMeta := data.Metadata
	entryMeta.UserID = "" // the index never duplicates the owner id
	index.Replays = append([]models.UserReplayEntry{{
		ReplayID: data.Metadata.ReplayID,
		Metadata: entryMeta,
	}}, index.Replays...)

	if len(index.Replays) > models.MaxReplaysPerUser {
		evicted := index.Replays[models.MaxReplaysPerUser:]
		index.Replays = index.Replays[:models.MaxReplaysPerUser]
		keys := make([]string, 0, len(evicted))
		for _, e := range evicted {
			keys = append(keys, dataKeyPrefix+e.ReplayID)
		}
		if err := s.kv.Del(ctx, keys...); err != nil {
			s.logger.Warnf("replay store: failed to delete %d evicted blobs: %v", len(keys), err)
		}
	}

	return s.writeUserIndex(ctx, index)
}

// Load reads a replay blob by id.
func (s *Store) Load(ctx context.Context, replayID string) (*models.ReplayData, error) {
	raw, ok, err := s.kv.Get(ctx, dataKeyPrefix+replayID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	var data models.ReplayData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("unmarshal replay %s: %w", replayID, err)
	}
	return &data, nil
}

// Delete removes the index entry and the blob.
func (s *Store) Delete(ctx context.Context, userID, replayID string) error {
	index, err := s.userIndex(ctx, userID)
	if err != nil {
		return err
	}

	found := false
	kept := index.Replays[:0]
	for _, e := range index.Replays {
		if e.ReplayID == replayID {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return ErrNotFound
	}
	index.Replays = kept

	if err := s.writeUserIndex(ctx, index); err != nil {
		return err
	}
	return s.kv.Del(ctx, dataKeyPrefix+replayID)
}

// List returns the user's index entries, newest first.
func (s *Store) List(ctx context.Context, userID string) ([]models.UserReplayEntry, error) {
	index, err := s.userIndex(ctx, userID)
	if err != nil {
		return nil, err
	}
	return index.Replays, nil
}

func (s *Store) userIndex(ctx context.Context, userID string) (*models.UserReplayIndex, error) {
	raw, ok, err := s.kv.Get(ctx, userKeyPrefix+userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &models.UserReplayIndex{UserID: userID}, nil
	}
	var index models.UserReplayIndex
	if err := json.Unmarshal([]byte(raw), &index); err != nil {
		return nil, fmt.Errorf("unmarshal replay index for %s: %w", userID, err)
	}
	return &index, nil
}

func (s *Store) writeUserIndex(ctx context.Context, index *models.UserReplayIndex) error {
	blob, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("marshal replay index for %s: %w", index.UserID, err)
	}
	return s.kv.Set(ctx, userKeyPrefix+index.UserID, string(blob))
}
