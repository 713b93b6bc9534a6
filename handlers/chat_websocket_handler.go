package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/carlos18bp/live-chat-feature/hub"
	appredis "github.com/carlos18bp/live-chat-feature/redis"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 入站/出站帧：只有一个 action 字段
type ActionFrame struct {
	Action string `json:"action"`
}

// ActionUpdateChat 是协议里唯一支持的 action 值。
const ActionUpdateChat = "update_chat"

// 入站 action 的封闭集合：未知值落到 actionUnknown，统一按 no-op 处理
type inboundAction int

const (
	actionUnknown inboundAction = iota
	actionUpdateChat
)

// decodeInboundAction 解析一帧入站数据。
// JSON 非法时返回错误（调用方丢弃该帧，连接保持）；action 缺失或未知时返回 actionUnknown。
func decodeInboundAction(data []byte) (inboundAction, error) {
	var frame ActionFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return actionUnknown, err
	}
	switch frame.Action {
	case ActionUpdateChat:
		return actionUpdateChat, nil
	default:
		return actionUnknown, nil
	}
}

var errSendBufferFull = errors.New("client send buffer full")

// ConnLike 是网关对 websocket 连接的最小依赖，测试时可以用假连接替换。
type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// ChatClient 代表一个已连接的网关会话。
type ChatClient struct {
	ID     string          // 连接唯一标识（UUID）
	Email  string          // 可选的客户端身份（query 参数）
	Conn   ConnLike        // WebSocket 连接
	Send   chan hub.Event  // 出站事件队列（缓冲256条）
	ctx    context.Context // 上下文管理
	cancel context.CancelFunc
}

// Deliver 实现 hub.Member：非阻塞入队。
// 队列满说明客户端写不动了，返回错误让 Hub 把该成员移出组。
func (c *ChatClient) Deliver(ev hub.Event) error {
	select {
	case c.Send <- ev:
		return nil
	default:
		return errSendBufferFull
	}
}

type ChatWebSocketHandler struct {
	hub   *hub.Hub
	redis *appredis.RedisClient
}

func NewChatWebSocketHandler(h *hub.Hub, redisClient *appredis.RedisClient) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{
		hub:   h,
		redis: redisClient,
	}
}

// HandleWebSocket 处理 GET /ws/chat：升级连接，加入全局广播组，
// 写协程异步推送，当前协程阻塞在读循环上。
func (h *ChatWebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &ChatClient{
		ID:     uuid.New().String(),
		Email:  c.QueryParam("email"),
		Conn:   ws,
		Send:   make(chan hub.Event, 256),
		ctx:    ctx,
		cancel: cancel,
	}

	// 先入组再开始收发：入组之前不处理任何消息
	h.hub.Join(client)
	h.addPresence(client)

	go h.writePump(client)
	h.readPump(client)

	return nil
}

// 读取客户端消息
func (h *ChatWebSocketHandler) readPump(client *ChatClient) {
	// 无论因何断开（对端关闭、网络错误、读超时），都要退组清理
	defer func() {
		client.cancel()
		h.hub.Leave(client)
		client.Conn.Close()
		h.removePresence(client)
	}()

	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		action, err := decodeInboundAction(data)
		if err != nil {
			// 非法帧直接丢弃，连接保持
			continue
		}
		switch action {
		case actionUpdateChat:
			h.hub.Publish(hub.EventUpdateChat)
		case actionUnknown:
			// 未知 action 是前向兼容的 no-op
		}
	}
}

// 向客户端写入消息
func (h *ChatWebSocketHandler) writePump(client *ChatClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case <-client.ctx.Done():
			return

		case ev, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(ActionFrame{Action: ev.Type})
			if err != nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("WriteMessage error: %v", err)
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *ChatWebSocketHandler) addPresence(client *ChatClient) {
	if h.redis == nil {
		return
	}
	info := appredis.ClientInfo{
		ClientID:    client.ID,
		Email:       client.Email,
		ConnectedAt: time.Now(),
	}
	if err := h.redis.AddOnlineClient(context.Background(), hub.GlobalChat, info); err != nil {
		log.Printf("Failed to add client to presence list: %v", err)
	}
}

func (h *ChatWebSocketHandler) removePresence(client *ChatClient) {
	if h.redis == nil {
		return
	}
	if err := h.redis.RemoveOnlineClient(context.Background(), hub.GlobalChat, client.ID); err != nil {
		log.Printf("Failed to remove client from presence list: %v", err)
	}
}

// HTTP接口：获取全局房间在线连接列表
func (h *ChatWebSocketHandler) GetOnlineClients(c echo.Context) error {
	if h.redis == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"room":    hub.GlobalChat,
			"count":   0,
			"clients": []appredis.ClientInfo{},
		})
	}
	clients, err := h.redis.GetOnlineClients(c.Request().Context(), hub.GlobalChat)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch online clients",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"room":    hub.GlobalChat,
		"count":   len(clients),
		"clients": clients,
	})
}
