package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MeetScope/db"

	"github.com/go-redis/redis/v8"
)

// calendarTTL 日历数据来自外部服务，短缓存即可明显降低请求量
const calendarTTL = 5 * time.Minute

func calendarKey(calendarID string) string {
	return fmt.Sprintf("calendar:upcoming:%s", calendarID)
}

// CacheUpcomingEvents 缓存日历服务返回的原始JSON
func CacheUpcomingEvents(ctx context.Context, calendarID string, payload []byte) error {
	if db.RedisClient == nil {
		return nil
	}
	if err := db.RedisClient.Set(ctx, calendarKey(calendarID), payload, calendarTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache upcoming events: %w", err)
	}
	return nil
}

// GetCachedUpcomingEvents 读取日历缓存，未命中时返回 (nil, nil)
func GetCachedUpcomingEvents(ctx context.Context, calendarID string) (json.RawMessage, error) {
	if db.RedisClient == nil {
		return nil, nil
	}

	data, err := db.RedisClient.Get(ctx, calendarKey(calendarID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached upcoming events: %w", err)
	}
	return data, nil
}
