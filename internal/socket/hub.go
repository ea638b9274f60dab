// server/internal/websocket/hub.go
package socket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"device-manager-api-server/internal/models"
)

// client là một kết nối WebSocket kèm danh tính để định tuyến thông báo.
type client struct {
	conn   *websocket.Conn
	role   string
	wardID string
	// writeMu tuần tự hóa các lần ghi: gorilla/websocket chỉ cho phép một
	// goroutine ghi lên connection tại một thời điểm, trong khi Emit được
	// gọi từ nhiều goroutine (các feed subscription, HTTP handler).
	writeMu sync.Mutex
}

func (c *client) send(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// Hub quản lý tất cả các client WebSocket.
type Hub struct {
	// clients lưu các kết nối, key là userID của user.
	clients map[string]*client
	// mu là một Mutex để đảm bảo an toàn khi truy cập map clients từ nhiều goroutine.
	mu sync.RWMutex
}

// NewHub tạo một Hub mới.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
	}
}

// Register thêm một client mới vào Hub.
func (h *Hub) Register(userID, role, wardID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[userID] = &client{conn: conn, role: role, wardID: wardID}
	log.Printf("WebSocket client registered: %s (role=%s ward=%s)", userID, role, wardID)
}

// Unregister xóa một client khỏi Hub.
func (h *Hub) Unregister(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[userID]; ok {
		delete(h.clients, userID)
		log.Printf("WebSocket client unregistered: %s", userID)
	}
}

// SendToUser gửi một tin nhắn đến một client cụ thể.
func (h *Hub) SendToUser(userID string, message []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[userID]
	if !ok {
		// Không tìm thấy client (có thể đã offline), không coi đây là lỗi nghiêm trọng.
		return nil
	}
	return c.send(message)
}

// SendToRole gửi tin nhắn đến mọi client đang online có vai trò cho trước.
func (h *Hub) SendToRole(role string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for userID, c := range h.clients {
		if c.role != role {
			continue
		}
		if err := c.send(message); err != nil {
			log.Printf("Failed to send to %s: %v", userID, err)
		}
	}
}

// SendToWard gửi tin nhắn đến mọi client thuộc một phường.
func (h *Hub) SendToWard(wardID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for userID, c := range h.clients {
		if c.wardID != wardID {
			continue
		}
		if err := c.send(message); err != nil {
			log.Printf("Failed to send to %s: %v", userID, err)
		}
	}
}

// Emit định tuyến một Notification theo đích của nó: user cụ thể trước,
// rồi đến phường, cuối cùng là toàn bộ vai trò. Nhờ đó Hub dùng được làm
// sink cho notification projector.
func (h *Hub) Emit(n models.Notification) {
	payload, err := json.Marshal(map[string]interface{}{
		"event":        "notification",
		"notification": n,
	})
	if err != nil {
		log.Printf("Failed to marshal notification: %v", err)
		return
	}

	switch {
	case n.TargetUser != "":
		h.SendToUser(n.TargetUser, payload)
	case n.TargetWard != "":
		h.SendToWard(n.TargetWard, payload)
	case n.TargetRole != "":
		h.SendToRole(n.TargetRole, payload)
	}
}
