package models

import "time"

// Message 创建后不可变，只随 Chat 级联删除。
type Message struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ChatID    uint      `json:"chat_id" gorm:"index"`
	UserID    uint      `json:"user_id"`
	Text      string    `json:"text" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	// 关联
	User User `json:"user" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}
