package kafka

import (
	"context"
	"encoding/json"
	"log"

	appredis "github.com/carlos18bp/live-chat-feature/redis"

	"github.com/IBM/sarama"
)

// ChatEventHandler 消费聊天事件流：记录日志并在 Redis 里累加会话消息统计。
type ChatEventHandler struct {
	redis *appredis.RedisClient
}

func NewChatEventHandler(redisClient *appredis.RedisClient) *ChatEventHandler {
	return &ChatEventHandler{redis: redisClient}
}

func (h *ChatEventHandler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	var event ChatEvent

	if err := json.Unmarshal(message.Value, &event); err != nil {
		log.Printf("Failed to unmarshal chat event: %v", err)
		return err
	}

	log.Printf("Processing chat event: %+v", event)

	if event.Type == EventMessageCreated && h.redis != nil {
		if err := h.redis.IncrMessageStat(ctx, event.ChatID); err != nil {
			log.Printf("Failed to update message stats: %v", err)
		}
	}

	return nil
}
