package services

import (
	"time"

	"github.com/carlos18bp/live-chat-feature/models"
)

// 未读状态只对管理员有意义：用户发消息累加未读，管理员查看清零。
// 这里是纯粹的字段变换；落库时 ChatService 按返回值用等价的单条 SQL 执行，避免丢更新。

// ApplyMessageCreated 在一条消息创建后推进会话状态。
// last_message_timestamp 无条件更新；只有非管理员作者才累加未读。
// 返回是否累加了未读计数。
func ApplyMessageCreated(chat *models.Chat, author *models.User, createdAt time.Time) bool {
	ts := createdAt
	chat.LastMessageTimestamp = &ts
	if author.ID == chat.AdminID {
		return false
	}
	chat.Unread = true
	chat.UnreadCount++
	return true
}

// ApplyChatViewed 在某个用户打开会话后推进状态。
// 只有管理员查看才会清零未读；普通用户查看不改变任何字段。
// 返回是否发生了清零。
func ApplyChatViewed(chat *models.Chat, viewer *models.User) bool {
	if !viewer.IsAdmin {
		return false
	}
	chat.Unread = false
	chat.UnreadCount = 0
	return true
}
