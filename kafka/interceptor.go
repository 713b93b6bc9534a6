package kafka

import (
	"github.com/IBM/sarama"
)

type ChatEventInterceptor struct {
}

func (i *ChatEventInterceptor) OnSend(msg *sarama.ProducerMessage) {
	msg.Headers = append(msg.Headers, sarama.RecordHeader{
		Key:   []byte("origin"),
		Value: []byte("live-chat-backend"),
	})
}

func NewChatEventInterceptor() *ChatEventInterceptor {
	return &ChatEventInterceptor{}
}
