package models

import "time"

// Chat 表示一个用户与一个管理员之间的会话。
// (user_id, admin_id) 组合唯一：同一对只存在一个会话。
type Chat struct {
	ID                   uint       `json:"id" gorm:"primaryKey"`
	UserID               uint       `json:"user_id" gorm:"uniqueIndex:idx_chats_user_admin"`
	AdminID              uint       `json:"admin_id" gorm:"uniqueIndex:idx_chats_user_admin"`
	CreatedAt            time.Time  `json:"created_at"`
	LastMessageTimestamp *time.Time `json:"last_message_timestamp"`
	Unread               bool       `json:"unread" gorm:"default:false"`
	UnreadCount          int        `json:"unread_count" gorm:"default:0"`
	// 关联
	User     User      `json:"user" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Admin    User      `json:"admin" gorm:"foreignKey:AdminID;constraint:OnDelete:CASCADE"`
	Messages []Message `json:"messages" gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE"`
}
