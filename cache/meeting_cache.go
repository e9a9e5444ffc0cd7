package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MeetScope/db"
	"MeetScope/model"

	"github.com/go-redis/redis/v8"
)

// meetingListKey 会议列表缓存键
const meetingListKey = "meetings:list"

// meetingListTTL 列表缓存过期时间，写操作会主动失效，这里只是兜底
const meetingListTTL = 60 * time.Second

// CacheMeetingList 缓存完整的会议列表（新的在前）
func CacheMeetingList(ctx context.Context, meetings []*model.Meeting) error {
	if db.RedisClient == nil {
		return nil
	}

	data, err := json.Marshal(meetings)
	if err != nil {
		return fmt.Errorf("failed to marshal meeting list: %w", err)
	}

	if err := db.RedisClient.Set(ctx, meetingListKey, data, meetingListTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache meeting list: %w", err)
	}
	return nil
}

// GetCachedMeetingList 读取会议列表缓存，未命中时返回 (nil, nil)
func GetCachedMeetingList(ctx context.Context) ([]*model.Meeting, error) {
	if db.RedisClient == nil {
		return nil, nil
	}

	data, err := db.RedisClient.Get(ctx, meetingListKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached meeting list: %w", err)
	}

	var meetings []*model.Meeting
	if err := json.Unmarshal(data, &meetings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached meeting list: %w", err)
	}
	return meetings, nil
}

// InvalidateMeetingList 使会议列表缓存失效，创建/删除/状态流转后调用
func InvalidateMeetingList(ctx context.Context) {
	if db.RedisClient == nil {
		return
	}
	db.RedisClient.Del(ctx, meetingListKey)
}
