package service

import (
	"comic_english_backend/internal/stats"
	"comic_english_backend/pkg/logger"
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const leaderboardKeyPrefix = "leaderboard:"

var leaderboardTimeframes = []stats.Timeframe{stats.AllTime, stats.ThisWeek, stats.ThisMonth}

// LeaderboardCache 按时间范围缓存完整排名。Redis 为 nil 时所有操作都是空操作
type LeaderboardCache struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewLeaderboardCache(rdb *redis.Client, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LeaderboardCache{Redis: rdb, TTL: ttl}
}

func (c *LeaderboardCache) enabled() bool {
	return c != nil && c.Redis != nil
}

func (c *LeaderboardCache) Get(ctx context.Context, tf stats.Timeframe) ([]LeaderboardEntry, bool) {
	if !c.enabled() {
		return nil, false
	}
	val, err := c.Redis.Get(ctx, leaderboardKeyPrefix+string(tf)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Log.Warn("Leaderboard cache read failed", zap.String("timeframe", string(tf)), zap.Error(err))
		return nil, false
	}
	var entries []LeaderboardEntry
	if err := json.Unmarshal([]byte(val), &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (c *LeaderboardCache) Set(ctx context.Context, tf stats.Timeframe, entries []LeaderboardEntry) {
	if !c.enabled() {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := c.Redis.Set(ctx, leaderboardKeyPrefix+string(tf), raw, c.TTL).Err(); err != nil {
		logger.Log.Warn("Leaderboard cache write failed", zap.String("timeframe", string(tf)), zap.Error(err))
	}
}

// Invalidate 学习记录变化后删除全部时间范围的缓存
func (c *LeaderboardCache) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	keys := make([]string, len(leaderboardTimeframes))
	for i, tf := range leaderboardTimeframes {
		keys[i] = leaderboardKeyPrefix + string(tf)
	}
	if err := c.Redis.Del(ctx, keys...).Err(); err != nil {
		logger.Log.Warn("Leaderboard cache invalidation failed", zap.Error(err))
	}
}
