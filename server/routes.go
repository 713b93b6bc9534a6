package server

import (
	"time"

	"github.com/carlos18bp/live-chat-feature/limiter"
	custommiddleware "github.com/carlos18bp/live-chat-feature/middleware"

	"github.com/labstack/echo/v4"
)

// 写接口限流：每 IP 每分钟 60 次
func newWriteRateLimit(manager *limiter.Manager) echo.MiddlewareFunc {
	return custommiddleware.NewRateLimitMiddleware(manager, custommiddleware.RateLimitConfig{
		Limit:  60,
		Window: time.Minute,
	})
}

func (s *Server) SetupRoutes(rateLimit echo.MiddlewareFunc) {
	e := s.Echo

	// 限流未启用时用空中间件占位
	if rateLimit == nil {
		rateLimit = func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	api := e.Group("/api")
	{
		api.POST("/admin_web_side/", s.ChatHandler.AdminGetOrCreate)
		api.POST("/user/", s.ChatHandler.UserGetOrCreate, rateLimit)

		// Chats
		api.GET("/chats/", s.ChatHandler.ChatList)
		api.POST("/chats/", s.ChatHandler.ChatCreate, rateLimit)
		api.DELETE("/chat_delete/:chat_id/", s.ChatHandler.ChatDelete)
		api.GET("/chats/online", s.ChatWebSocketHandler.GetOnlineClients)

		// Messages
		api.GET("/messages/", s.ChatHandler.MessageList)
		api.POST("/messages/", s.ChatHandler.MessageCreate, rateLimit)
		api.GET("/messages/:chat_id/user/:user_id", s.ChatHandler.MessageListByChat)
	}

	// 长连接网关
	e.GET("/ws/chat", s.ChatWebSocketHandler.HandleWebSocket)
}
