package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/carlos18bp/live-chat-feature/hub"
	"github.com/carlos18bp/live-chat-feature/kafka"
	"github.com/carlos18bp/live-chat-feature/models"
	"github.com/carlos18bp/live-chat-feature/services"

	"github.com/labstack/echo/v4"
)

// Mailer 是会话创建通知的外部协作方。
type Mailer interface {
	SendChatCreated(user models.User, adminEmail string) error
}

// EventPublisher 把会话状态变更发到事件流。
type EventPublisher interface {
	PublishChatEvent(event kafka.ChatEvent) error
}

type ChatHandler struct {
	service *services.ChatService
	hub     *hub.Hub
	mailer  Mailer         // 可为 nil（未配置邮件）
	events  EventPublisher // 可为 nil（kafka 未启用）
}

func NewChatHandler(service *services.ChatService, h *hub.Hub, mailer Mailer, events EventPublisher) *ChatHandler {
	return &ChatHandler{
		service: service,
		hub:     h,
		mailer:  mailer,
		events:  events,
	}
}

// 状态变更后广播 update_chat，客户端收到后自行重新拉取
func (h *ChatHandler) notifyUpdate() {
	h.hub.Publish(hub.EventUpdateChat)
}

func (h *ChatHandler) publishEvent(eventType string, chatID, userID uint) {
	if h.events == nil {
		return
	}
	event := kafka.ChatEvent{
		Type:      eventType,
		ChatID:    chatID,
		UserID:    userID,
		Timestamp: time.Now().Unix(),
	}
	if err := h.events.PublishChatEvent(event); err != nil {
		log.Printf("Failed to publish %s event: %v", eventType, err)
	}
}

// 获取或创建后台管理员账号
func (h *ChatHandler) AdminGetOrCreate(c echo.Context) error {
	admin, _, err := h.service.GetOrCreateAdmin()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, admin)
}

// 按 email 获取或创建用户
func (h *ChatHandler) UserGetOrCreate(c echo.Context) error {
	var req struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid JSON format",
		})
	}
	if req.Email == "" || req.FirstName == "" || req.LastName == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Missing required fields",
		})
	}

	user, created, err := h.service.GetOrCreateUser(req.Email, req.FirstName, req.LastName, false)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}
	if created {
		return c.JSON(http.StatusCreated, user)
	}
	return c.JSON(http.StatusOK, user)
}

// 获取全部会话（按创建时间倒序）
func (h *ChatHandler) ChatList(c echo.Context) error {
	chats, err := h.service.ListChats()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch chats",
		})
	}
	return c.JSON(http.StatusOK, chats)
}

// 获取或创建 (user, admin) 会话。
// 首次创建的副作用：欢迎消息（service 内）、管理员通知邮件、事件流、广播。
func (h *ChatHandler) ChatCreate(c echo.Context) error {
	var req struct {
		UserEmail  string `json:"user_email"`
		AdminEmail string `json:"admin_email"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid JSON format",
		})
	}

	user, err := h.service.GetUserByEmail(req.UserEmail)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "User not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "database error",
		})
	}
	admin, err := h.service.GetUserByEmail(req.AdminEmail)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "Admin not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "database error",
		})
	}

	chat, created, err := h.service.GetOrCreateChat(user.ID, admin.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to create chat",
		})
	}

	if created {
		// 邮件是尽力而为：不阻塞请求，失败只记日志
		if h.mailer != nil {
			go func(u models.User, adminEmail string) {
				if err := h.mailer.SendChatCreated(u, adminEmail); err != nil {
					log.Printf("Failed to send chat notification: %v", err)
				}
			}(*user, admin.Email)
		}
		h.publishEvent(kafka.EventChatCreated, chat.ID, user.ID)
		h.notifyUpdate()
	}

	full, err := h.service.GetChat(chat.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch chat",
		})
	}
	return c.JSON(http.StatusOK, full)
}

// 获取全部消息
func (h *ChatHandler) MessageList(c echo.Context) error {
	messages, err := h.service.ListAllMessages()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch messages",
		})
	}
	return c.JSON(http.StatusOK, messages)
}

// 创建消息并推进未读状态
func (h *ChatHandler) MessageCreate(c echo.Context) error {
	var req struct {
		ChatID    uint   `json:"chat_id"`
		UserEmail string `json:"user_email"`
		Text      string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid JSON format",
		})
	}
	if req.ChatID == 0 || req.UserEmail == "" || req.Text == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Missing required fields",
		})
	}

	author, err := h.service.GetUserByEmail(req.UserEmail)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "User not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "database error",
		})
	}

	message, err := h.service.CreateMessage(req.ChatID, author.ID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "Chat not found",
			})
		case errors.Is(err, services.ErrAuthorNotInChat):
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "failed to create message",
			})
		}
	}

	h.publishEvent(kafka.EventMessageCreated, message.ChatID, author.ID)
	h.notifyUpdate()

	return c.JSON(http.StatusCreated, message)
}

// 按会话列出消息；查看者是管理员时清零未读并广播
func (h *ChatHandler) MessageListByChat(c echo.Context) error {
	chatID, err := strconv.ParseUint(c.Param("chat_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid chat ID"})
	}
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
	}

	messages, reset, err := h.service.ListMessagesByChat(uint(chatID), uint(userID))
	if err != nil {
		if errors.Is(err, services.ErrChatNotFound) || errors.Is(err, services.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": err.Error(),
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch messages",
		})
	}

	if reset {
		h.notifyUpdate()
	}

	return c.JSON(http.StatusOK, messages)
}

// 删除会话（级联删除消息）
func (h *ChatHandler) ChatDelete(c echo.Context) error {
	chatID, err := strconv.ParseUint(c.Param("chat_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid chat ID"})
	}

	if err := h.service.DeleteChat(uint(chatID)); err != nil {
		if errors.Is(err, services.ErrChatNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "Chat not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to delete chat",
		})
	}

	h.notifyUpdate()

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Chat deleted successfully",
	})
}
