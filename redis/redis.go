package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appconfig "github.com/carlos18bp/live-chat-feature/config"

	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	Client *redis.Client
}

// NewRedisClient 初始化并返回一个新的 RedisClient 实例
func NewRedisClient(cfg *appconfig.RedisConfig) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password, // 密码，没有则留空
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
		// 可选：添加超时配置
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// PING 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("redis client connection test failed: %w", err)
	}

	return &RedisClient{
		Client: client,
	}, nil
}

// Close 关闭 Redis 连接
func (r *RedisClient) Close() error {
	return r.Client.Close()
}

// ClientInfo 在线连接信息（按网关连接维度）
type ClientInfo struct {
	ClientID    string    `json:"client_id"`
	Email       string    `json:"email,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

func presenceKey(room string) string {
	return fmt.Sprintf("chat:%s:online_clients", room)
}

// AddOnlineClient 把一个网关连接登记到房间的在线列表。
func (r *RedisClient) AddOnlineClient(ctx context.Context, room string, info ClientInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	key := presenceKey(room)
	if err := r.Client.HSet(ctx, key, info.ClientID, data).Err(); err != nil {
		return fmt.Errorf("failed to add client to presence list: %w", err)
	}
	// 过期兜底：进程异常退出时不留永久脏数据
	r.Client.Expire(ctx, key, 24*time.Hour)
	return nil
}

// RemoveOnlineClient 把一个网关连接从房间在线列表移除。
func (r *RedisClient) RemoveOnlineClient(ctx context.Context, room, clientID string) error {
	if err := r.Client.HDel(ctx, presenceKey(room), clientID).Err(); err != nil {
		return fmt.Errorf("failed to remove client from presence list: %w", err)
	}
	return nil
}

// GetOnlineClients 返回房间当前在线的全部连接。
func (r *RedisClient) GetOnlineClients(ctx context.Context, room string) ([]ClientInfo, error) {
	result, err := r.Client.HGetAll(ctx, presenceKey(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch online clients: %w", err)
	}
	clients := make([]ClientInfo, 0, len(result))
	for _, data := range result {
		var info ClientInfo
		if err := json.Unmarshal([]byte(data), &info); err != nil {
			continue
		}
		clients = append(clients, info)
	}
	return clients, nil
}

// IncrMessageStat 累加某个会话的消息统计（Kafka 消费端使用）。
func (r *RedisClient) IncrMessageStat(ctx context.Context, chatID uint) error {
	return r.Client.HIncrBy(ctx, "chat:stats:messages", fmt.Sprintf("%d", chatID), 1).Err()
}
