package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/carlos18bp/live-chat-feature/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	// 内存库绑定单连接，避免连接池拿到空库
	sqlDB.SetMaxOpenConns(1)
	if err := models.AutoMigrateAll(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedPair(t *testing.T, s *ChatService) (*models.User, *models.User) {
	t.Helper()
	admin, _, err := s.GetOrCreateAdmin()
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	user, _, err := s.GetOrCreateUser("u1@example.com", "Uno", "Uno", false)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user, admin
}

func TestGetOrCreateUser_IdempotentByEmail(t *testing.T) {
	s := NewChatService(newTestDB(t))

	first, created, err := s.GetOrCreateUser("a@example.com", "A", "One", false)
	if err != nil || !created {
		t.Fatalf("expected fresh user, created=%v err=%v", created, err)
	}
	second, created, err := s.GetOrCreateUser("a@example.com", "Other", "Name", true)
	if err != nil || created {
		t.Fatalf("expected existing user, created=%v err=%v", created, err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same user id, got %d and %d", first.ID, second.ID)
	}
	if second.FirstName != "A" || second.IsAdmin {
		t.Fatal("defaults must only apply on creation")
	}
}

func TestGetOrCreateChat_IdempotentWithSingleWelcomeMessage(t *testing.T) {
	s := NewChatService(newTestDB(t))
	user, admin := seedPair(t, s)

	chat1, created, err := s.GetOrCreateChat(user.ID, admin.ID)
	if err != nil || !created {
		t.Fatalf("expected new chat, created=%v err=%v", created, err)
	}
	chat2, created, err := s.GetOrCreateChat(user.ID, admin.ID)
	if err != nil || created {
		t.Fatalf("expected existing chat, created=%v err=%v", created, err)
	}
	if chat1.ID != chat2.ID {
		t.Fatalf("expected same chat id, got %d and %d", chat1.ID, chat2.ID)
	}

	messages, _, err := s.ListMessagesByChat(chat1.ID, user.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected exactly one welcome message, got %d", len(messages))
	}
	if messages[0].UserID != admin.ID || messages[0].Text != WelcomeMessageText {
		t.Fatalf("welcome message must be admin-authored default text, got %+v", messages[0])
	}
	if chat1.LastMessageTimestamp == nil {
		t.Fatal("chat creation must set last_message_timestamp to the welcome message time")
	}
}

func TestCreateMessage_UserMessageUpdatesUnreadState(t *testing.T) {
	s := NewChatService(newTestDB(t))
	user, admin := seedPair(t, s)
	chat, _, _ := s.GetOrCreateChat(user.ID, admin.ID)

	msg, err := s.CreateMessage(chat.ID, user.ID, "hi")
	if err != nil {
		t.Fatalf("create message: %v", err)
	}

	var got models.Chat
	if err := s.db.First(&got, chat.ID).Error; err != nil {
		t.Fatalf("reload chat: %v", err)
	}
	if !got.Unread {
		t.Fatal("expected unread=true after user message")
	}
	if got.UnreadCount != 1 {
		t.Fatalf("expected unread_count 1, got %d", got.UnreadCount)
	}
	if got.LastMessageTimestamp == nil || !got.LastMessageTimestamp.Equal(msg.CreatedAt) {
		t.Fatalf("expected last_message_timestamp %v, got %v", msg.CreatedAt, got.LastMessageTimestamp)
	}
}

func TestCreateMessage_AdminReplyDoesNotIncrementUnread(t *testing.T) {
	s := NewChatService(newTestDB(t))
	user, admin := seedPair(t, s)
	chat, _, _ := s.GetOrCreateChat(user.ID, admin.ID)

	if _, err := s.CreateMessage(chat.ID, user.ID, "hi"); err != nil {
		t.Fatalf("user message: %v", err)
	}
	reply, err := s.CreateMessage(chat.ID, admin.ID, "hello")
	if err != nil {
		t.Fatalf("admin reply: %v", err)
	}

	var got models.Chat
	s.db.First(&got, chat.ID)
	if got.UnreadCount != 1 || !got.Unread {
		t.Fatalf("admin reply must not change unread state, got unread=%v count=%d", got.Unread, got.UnreadCount)
	}
	if got.LastMessageTimestamp == nil || !got.LastMessageTimestamp.Equal(reply.CreatedAt) {
		t.Fatal("admin reply must still advance last_message_timestamp")
	}
}

func TestAdminViewResetsUnreadState(t *testing.T) {
	s := NewChatService(newTestDB(t))
	user, admin := seedPair(t, s)
	chat, _, _ := s.GetOrCreateChat(user.ID, admin.ID)

	s.CreateMessage(chat.ID, user.ID, "one")
	s.CreateMessage(chat.ID, user.ID, "two")

	_, reset, err := s.ListMessagesByChat(chat.ID, admin.ID)
	if err != nil {
		t.Fatalf("admin view: %v", err)
	}
	if !reset {
		t.Fatal("expected admin view to report a reset")
	}

	var got models.Chat
	s.db.First(&got, chat.ID)
	if got.Unread || got.UnreadCount != 0 {
		t.Fatalf("admin view must reset unread state, got unread=%v count=%d", got.Unread, got.UnreadCount)
	}
}

func TestUserViewLeavesUnreadStateAlone(t *testing.T) {
	s := NewChatService(newTestDB(t))
	user, admin := seedPair(t, s)
	chat, _, _ := s.GetOrCreateChat(user.ID, admin.ID)

	s.CreateMessage(chat.ID, user.ID, "one")

	_, reset, err := s.ListMessagesByChat(chat.ID, user.ID)
	if err != nil {
		t.Fatalf("user view: %v", err)
	}
	if reset {
		t.Fatal("user view must not report a reset")
	}

	var got models.Chat
	s.db.First(&got, chat.ID)
	if !got.Unread || got.UnreadCount != 1 {
		t.Fatalf("user view must not clear unread state, got unread=%v count=%d", got.Unread, got.UnreadCount)
	}
}

// unread_count 的自增是单条 SQL 表达式，不是读-改-写。
// 内存 sqlite 绑定了单连接，事务在这里只会串行执行，
// 真正的语句交错只能在 Postgres 上出现；本用例仍并发调用，
// 确认计数在任意调度下都不丢。
func TestCreateMessage_ConcurrentCallsLoseNoIncrements(t *testing.T) {
	s := NewChatService(newTestDB(t))
	user, admin := seedPair(t, s)
	chat, _, _ := s.GetOrCreateChat(user.ID, admin.ID)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CreateMessage(chat.ID, user.ID, "ping"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent create: %v", err)
	}

	var got models.Chat
	s.db.First(&got, chat.ID)
	if got.UnreadCount != n {
		t.Fatalf("expected unread_count %d, got %d", n, got.UnreadCount)
	}
	if !got.Unread {
		t.Fatal("expected unread=true after user messages")
	}
}

func TestCreateMessage_RejectsForeignAuthor(t *testing.T) {
	s := NewChatService(newTestDB(t))
	user, admin := seedPair(t, s)
	stranger, _, err := s.GetOrCreateUser("intruder@example.com", "Not", "Yours", false)
	if err != nil {
		t.Fatalf("create stranger: %v", err)
	}
	chat, _, _ := s.GetOrCreateChat(user.ID, admin.ID)

	_, err = s.CreateMessage(chat.ID, stranger.ID, "let me in")
	if !errors.Is(err, ErrAuthorNotInChat) {
		t.Fatalf("expected ErrAuthorNotInChat, got %v", err)
	}

	// 校验失败不能留下任何写入
	var count int64
	s.db.Model(&models.Message{}).Where("chat_id = ?", chat.ID).Count(&count)
	if count != 1 { // 只有欢迎消息
		t.Fatalf("expected only the welcome message, got %d messages", count)
	}
	var got models.Chat
	s.db.First(&got, chat.ID)
	if got.Unread || got.UnreadCount != 0 {
		t.Fatal("rejected message must not change unread state")
	}
}

func TestCreateMessage_MissingChatOrAuthor(t *testing.T) {
	s := NewChatService(newTestDB(t))
	user, admin := seedPair(t, s)
	chat, _, _ := s.GetOrCreateChat(user.ID, admin.ID)

	if _, err := s.CreateMessage(9999, user.ID, "x"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
	if _, err := s.CreateMessage(chat.ID, 9999, "x"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestListChats_OrderedByCreatedDesc(t *testing.T) {
	s := NewChatService(newTestDB(t))
	admin, _, _ := s.GetOrCreateAdmin()
	u1, _, _ := s.GetOrCreateUser("one@example.com", "One", "User", false)
	u2, _, _ := s.GetOrCreateUser("two@example.com", "Two", "User", false)

	first, _, _ := s.GetOrCreateChat(u1.ID, admin.ID)
	second, _, _ := s.GetOrCreateChat(u2.ID, admin.ID)

	chats, err := s.ListChats()
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(chats))
	}
	// 同秒创建时 id 序作为平手参考：最新的在前
	if chats[0].ID != second.ID && chats[0].CreatedAt.Before(chats[1].CreatedAt) {
		t.Fatalf("expected newest chat first, got ids %d,%d", chats[0].ID, chats[1].ID)
	}
	if chats[0].User.ID == 0 || chats[0].Admin.ID == 0 || len(chats[0].Messages) == 0 {
		t.Fatal("expected user, admin and messages to be preloaded")
	}
	_ = first
}

func TestDeleteChat_CascadesToMessages(t *testing.T) {
	s := NewChatService(newTestDB(t))
	user, admin := seedPair(t, s)
	chat, _, _ := s.GetOrCreateChat(user.ID, admin.ID)
	s.CreateMessage(chat.ID, user.ID, "bye")

	if err := s.DeleteChat(chat.ID); err != nil {
		t.Fatalf("delete chat: %v", err)
	}

	var count int64
	s.db.Model(&models.Message{}).Where("chat_id = ?", chat.ID).Count(&count)
	if count != 0 {
		t.Fatalf("expected cascade delete of messages, %d left", count)
	}
	if err := s.DeleteChat(chat.ID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound on second delete, got %v", err)
	}
}
