package kafka

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/IBM/sarama"
)

// 聊天事件类型
const (
	EventChatCreated    = "chat_created"
	EventMessageCreated = "message_created"
)

// ChatEvent 是发到事件流的信封：会话状态每次变更发一条。
type ChatEvent struct {
	Type      string `json:"type"`
	ChatID    uint   `json:"chat_id"`
	UserID    uint   `json:"user_id"`
	Timestamp int64  `json:"timestamp"`
}

type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(brokers []string, topic string, config *sarama.Config) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &Producer{producer: producer, topic: topic}, nil
}

// PublishChatEvent 按会话 id 作 key 发送事件，同一会话的事件保持有序。
func (p *Producer) PublishChatEvent(event ChatEvent) error {
	jsonValue, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(fmt.Sprintf("%d", event.ChatID)),
		Value: sarama.ByteEncoder(jsonValue),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		log.Printf("Failed to publish chat event: %v", err)
		return err
	}

	log.Printf("Chat event %s sent to partition %d at offset %d", event.Type, partition, offset)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
