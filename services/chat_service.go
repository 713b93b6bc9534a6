package services

import (
	"errors"
	"time"

	"github.com/carlos18bp/live-chat-feature/models"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrAdminNotFound   = errors.New("admin not found")
	ErrChatNotFound    = errors.New("chat not found")
	ErrAuthorNotInChat = errors.New("author does not belong to this chat")
)

// 固定的后台管理员账号（首次调用时创建）
const (
	AdminEmail     = "admin@example.com"
	AdminFirstName = "Admin"
	AdminLastName  = "Web Site"
)

// WelcomeMessageText 是会话创建时由管理员自动发出的第一条消息。
const WelcomeMessageText = "This is a default welcome message"

type ChatService struct {
	db *gorm.DB
}

func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{db: db}
}

// GetOrCreateUser 按 email 查找用户，不存在则用给定资料创建。
func (s *ChatService) GetOrCreateUser(email, firstName, lastName string, isAdmin bool) (*models.User, bool, error) {
	var user models.User
	err := s.db.Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	user = models.User{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		IsAdmin:   isAdmin,
	}
	if err := s.db.Create(&user).Error; err != nil {
		// email 唯一索引冲突：并发创建时回退为查找
		var existing models.User
		if findErr := s.db.Where("email = ?", email).First(&existing).Error; findErr == nil {
			return &existing, false, nil
		}
		return nil, false, err
	}
	return &user, true, nil
}

// GetOrCreateAdmin 返回后台管理员账号。
func (s *ChatService) GetOrCreateAdmin() (*models.User, bool, error) {
	return s.GetOrCreateUser(AdminEmail, AdminFirstName, AdminLastName, true)
}

// GetUserByEmail 按 email 查找用户。
func (s *ChatService) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetOrCreateChat 返回 (user, admin) 对应的会话，不存在则创建。
// 创建时在同一事务里写入唯一一条欢迎消息并推进 last_message_timestamp，
// 因此无论调用多少次，同一对用户只有一个会话、一条欢迎消息。
func (s *ChatService) GetOrCreateChat(userID, adminID uint) (*models.Chat, bool, error) {
	var chat models.Chat
	err := s.db.Where("user_id = ? AND admin_id = ?", userID, adminID).First(&chat).Error
	if err == nil {
		return &chat, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	chat = models.Chat{UserID: userID, AdminID: adminID}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		welcome := models.Message{
			ChatID:    chat.ID,
			UserID:    adminID,
			Text:      WelcomeMessageText,
			CreatedAt: time.Now(),
		}
		if err := tx.Create(&welcome).Error; err != nil {
			return err
		}
		chat.LastMessageTimestamp = &welcome.CreatedAt
		return tx.Model(&models.Chat{}).Where("id = ?", chat.ID).
			Update("last_message_timestamp", welcome.CreatedAt).Error
	})
	if err != nil {
		// (user_id, admin_id) 唯一索引冲突：并发创建时回退为查找
		var existing models.Chat
		if findErr := s.db.Where("user_id = ? AND admin_id = ?", userID, adminID).First(&existing).Error; findErr == nil {
			return &existing, false, nil
		}
		return nil, false, err
	}
	return &chat, true, nil
}

// CreateMessage 在会话里创建一条消息并推进未读状态。
// 作者必须是会话的用户或管理员，否则拒绝且不产生任何写入。
// unread_count 的自增用 SQL 表达式完成，并发的消息创建与管理员查看不会丢计数。
func (s *ChatService) CreateMessage(chatID, authorID uint, text string) (*models.Message, error) {
	var message *models.Message
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var chat models.Chat
		if err := tx.First(&chat, chatID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChatNotFound
			}
			return err
		}
		var author models.User
		if err := tx.First(&author, authorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if authorID != chat.UserID && authorID != chat.AdminID {
			return ErrAuthorNotInChat
		}

		msg := models.Message{
			ChatID:    chatID,
			UserID:    authorID,
			Text:      text,
			CreatedAt: time.Now(),
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"last_message_timestamp": msg.CreatedAt,
		}
		if ApplyMessageCreated(&chat, &author, msg.CreatedAt) {
			// 自增走 SQL 表达式，和并发的管理员查看不会互相丢写
			updates["unread"] = true
			updates["unread_count"] = gorm.Expr("unread_count + ?", 1)
		}
		if err := tx.Model(&models.Chat{}).Where("id = ?", chatID).Updates(updates).Error; err != nil {
			return err
		}
		message = &msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

// ListMessagesByChat 返回会话的全部消息（按时间升序）。
// 查看者是管理员时原子地清零未读状态，第二个返回值表示是否发生了清零。
func (s *ChatService) ListMessagesByChat(chatID, viewerID uint) ([]models.Message, bool, error) {
	var chat models.Chat
	if err := s.db.First(&chat, chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrChatNotFound
		}
		return nil, false, err
	}
	var viewer models.User
	if err := s.db.First(&viewer, viewerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrUserNotFound
		}
		return nil, false, err
	}

	reset := ApplyChatViewed(&chat, &viewer)
	if reset {
		err := s.db.Model(&models.Chat{}).Where("id = ?", chatID).Updates(map[string]interface{}{
			"unread":       false,
			"unread_count": 0,
		}).Error
		if err != nil {
			return nil, false, err
		}
	}

	var messages []models.Message
	err := s.db.Preload("User").Where("chat_id = ?", chatID).
		Order("created_at ASC").Find(&messages).Error
	if err != nil {
		return nil, false, err
	}
	return messages, reset, nil
}

// GetChat 按 id 返回会话，带上双方用户与消息。
func (s *ChatService) GetChat(chatID uint) (*models.Chat, error) {
	var chat models.Chat
	err := s.db.Preload("User").Preload("Admin").Preload("Messages").
		First(&chat, chatID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return &chat, nil
}

// ListChats 返回全部会话，按创建时间倒序，带上双方用户与消息。
func (s *ChatService) ListChats() ([]models.Chat, error) {
	var chats []models.Chat
	err := s.db.Preload("User").Preload("Admin").Preload("Messages").
		Order("created_at DESC").Find(&chats).Error
	if err != nil {
		return nil, err
	}
	return chats, nil
}

// ListAllMessages 返回全部消息（按时间升序）。
func (s *ChatService) ListAllMessages() ([]models.Message, error) {
	var messages []models.Message
	err := s.db.Preload("User").Order("created_at ASC").Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// DeleteChat 删除会话并级联删除其全部消息。
func (s *ChatService) DeleteChat(chatID uint) error {
	var chat models.Chat
	if err := s.db.First(&chat, chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", chatID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&chat).Error
	})
}
