package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Strategy 定义限流算法策略接口
type Strategy interface {
	// Allow 检查是否允许通过
	// key: 限流标识 (如 IP)
	// limit: 限制次数
	// window: 时间窗口
	Allow(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (bool, error)
}

// NewStrategy 按名称返回限流策略，未知名称回退到固定窗口。
func NewStrategy(name string) Strategy {
	if name == "sliding_window" {
		return &SlidingWindowStrategy{}
	}
	return &FixedWindowStrategy{}
}

// Manager 限流管理器
type Manager struct {
	rdb      *redis.Client
	strategy Strategy
}

func NewManager(rdb *redis.Client, strategy Strategy) *Manager {
	return &Manager{
		rdb:      rdb,
		strategy: strategy,
	}
}

// Allow 代理执行具体的策略
func (m *Manager) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return m.strategy.Allow(ctx, m.rdb, key, limit, window)
}

// 固定窗口 (Fixed Window / Counter)
type FixedWindowStrategy struct{}

func (s *FixedWindowStrategy) Allow(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (bool, error) {
	// Lua 脚本：原子性执行 INCR 和 EXPIRE
	const script = `
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local window = tonumber(ARGV[2])

		local current = redis.call("INCR", key)

		if current == 1 then
			redis.call("EXPIRE", key, window)
		end

		if current > limit then
			return 0
		end
		return 1
	`
	result, err := rdb.Eval(ctx, script, []string{key}, limit, int(window.Seconds())).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// 滑动窗口 (Sliding Window Log)
type SlidingWindowStrategy struct{}

func (s *SlidingWindowStrategy) Allow(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (bool, error) {
	// Lua 脚本：ZSET 记录时间戳，先清理过期成员再计数
	const script = `
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local window = tonumber(ARGV[2])
		local now = tonumber(ARGV[3])

		redis.call("ZREMRANGEBYSCORE", key, 0, now - window * 1000)

		local current = redis.call("ZCARD", key)
		if current >= limit then
			return 0
		end

		redis.call("ZADD", key, now, now)
		redis.call("EXPIRE", key, window)
		return 1
	`
	now := time.Now().UnixMilli()
	result, err := rdb.Eval(ctx, script, []string{key}, limit, int(window.Seconds()), now).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}
