package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/carlos18bp/live-chat-feature/models"
	"github.com/carlos18bp/live-chat-feature/services"

	"github.com/brianvoe/gofakeit/v7"
	"gorm.io/gorm"
)

// SeedChats 生成 numberOfChats 个伪造会话用于开发环境。
// 每个会话挂一个伪造用户，2~10 条随机方向的消息，
// last_message_timestamp 对齐到最新一条消息。
func SeedChats(db *gorm.DB, numberOfChats int) error {
	svc := services.NewChatService(db)

	admin, _, err := svc.GetOrCreateAdmin()
	if err != nil {
		return fmt.Errorf("failed to ensure admin user: %w", err)
	}

	now := time.Now()
	for i := 0; i < numberOfChats; i++ {
		user, _, err := svc.GetOrCreateUser(gofakeit.Email(), gofakeit.FirstName(), gofakeit.LastName(), false)
		if err != nil {
			return fmt.Errorf("failed to create fake user: %w", err)
		}

		chat, _, err := svc.GetOrCreateChat(user.ID, admin.ID)
		if err != nil {
			return fmt.Errorf("failed to create fake chat: %w", err)
		}

		// 直接写消息行，不走未读逻辑：伪造数据不应把收件箱标脏。
		// 欢迎消息（创建会话时由 service 写入）也参与最新时间的计算。
		lastTimestamp := chat.LastMessageTimestamp
		for j := 0; j < rand.Intn(9)+2; j++ {
			author := user
			if rand.Intn(2) == 0 {
				author = admin
			}
			ts := gofakeit.DateRange(now.AddDate(0, -6, 0), now)
			message := models.Message{
				ChatID:    chat.ID,
				UserID:    author.ID,
				Text:      gofakeit.Sentence(12),
				CreatedAt: ts,
			}
			if err := db.Create(&message).Error; err != nil {
				return fmt.Errorf("failed to create fake message: %w", err)
			}
			if lastTimestamp == nil || ts.After(*lastTimestamp) {
				lastTimestamp = &ts
			}
		}

		err = db.Model(&models.Chat{}).Where("id = ?", chat.ID).
			Update("last_message_timestamp", lastTimestamp).Error
		if err != nil {
			return fmt.Errorf("failed to update chat timestamp: %w", err)
		}
	}

	return nil
}

// DeleteAll 清空全部聊天数据（消息、会话、用户）。
func DeleteAll(db *gorm.DB) error {
	session := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	// 先删子表再删父表
	if err := session.Delete(&models.Message{}).Error; err != nil {
		return err
	}
	if err := session.Delete(&models.Chat{}).Error; err != nil {
		return err
	}
	if err := session.Delete(&models.User{}).Error; err != nil {
		return err
	}
	return nil
}
