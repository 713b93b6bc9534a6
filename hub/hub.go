package hub

import (
	"log"
	"sync"
)

// GlobalChat 是唯一的广播组名：所有连接共用一个全局房间。
const GlobalChat = "global_chat"

// Event 是组内广播的事件载荷。
type Event struct {
	Type string `json:"type"`
}

// EventUpdateChat 通知所有客户端重新拉取会话状态。
var EventUpdateChat = Event{Type: "update_chat"}

// Member 是 Hub 对一个连接的最小视图：投递一条事件的能力。
// Deliver 返回错误表示该连接已不可达。
type Member interface {
	Deliver(Event) error
}

// Hub 管理全局广播组的成员集合。
// 显式构造、按引用注入到各个连接处理器，不做包级单例。
type Hub struct {
	name    string
	mu      sync.RWMutex
	members map[Member]struct{}
}

func New() *Hub {
	return &Hub{
		name:    GlobalChat,
		members: make(map[Member]struct{}),
	}
}

// Join 注册成员。重复注册同一成员是幂等的。
func (h *Hub) Join(m Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.members[m] = struct{}{}
}

// Leave 注销成员。成员不存在时不做任何事。
func (h *Hub) Leave(m Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.members, m)
}

// Len 返回当前成员数。
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// Publish 把事件投递给发布时刻在组内的每一个成员，包括发布者自己。
// 先在锁内复制成员快照，再在锁外投递，避免慢成员阻塞 join/leave。
// 投递失败的成员被视为断开，直接移出组，不向发布者返回错误。
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	snapshot := make([]Member, 0, len(h.members))
	for m := range h.members {
		snapshot = append(snapshot, m)
	}
	h.mu.RUnlock()

	var failed []Member
	for _, m := range snapshot {
		if err := m.Deliver(ev); err != nil {
			failed = append(failed, m)
		}
	}

	for _, m := range failed {
		log.Printf("hub %s: dropping unreachable member: %T", h.name, m)
		h.Leave(m)
	}
}
