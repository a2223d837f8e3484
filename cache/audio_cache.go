package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"audiohub/db"
	"audiohub/model"
)

// userAudioTTL bounds staleness of cached per-user listings. Every write
// path invalidates the key, the TTL only covers missed invalidations.
const userAudioTTL = 5 * time.Minute

// UserAudioKey builds the Redis key for a user's active audio list.
func UserAudioKey(userID int64) string {
	return fmt.Sprintf("audio:user:%d", userID)
}

// GetUserAudioList returns the cached active audio list for a user. A cache
// miss or unavailable Redis surfaces as an error; callers fall back to the
// database.
func GetUserAudioList(ctx context.Context, userID int64) ([]*model.AudioFile, error) {
	if db.RedisClient == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	data, err := db.RedisClient.Get(ctx, UserAudioKey(userID)).Bytes()
	if err != nil {
		return nil, err
	}

	var files []*model.AudioFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached audio list: %w", err)
	}
	return files, nil
}

// SetUserAudioList caches the active audio list for a user.
func SetUserAudioList(ctx context.Context, userID int64, files []*model.AudioFile) error {
	if db.RedisClient == nil {
		return fmt.Errorf("redis client not initialized")
	}

	data, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("failed to marshal audio list: %w", err)
	}

	if err := db.RedisClient.Set(ctx, UserAudioKey(userID), data, userAudioTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache audio list for user %d: %w", userID, err)
	}
	return nil
}

// InvalidateUserAudio drops the cached list for a user after any write
// touching that user's records.
func InvalidateUserAudio(ctx context.Context, userID int64) error {
	if db.RedisClient == nil {
		return fmt.Errorf("redis client not initialized")
	}

	if err := db.RedisClient.Del(ctx, UserAudioKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate audio cache for user %d: %w", userID, err)
	}
	return nil
}
