// server/internal/api/handlers/websocket_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"device-manager-api-server/internal/auth"
	"device-manager-api-server/internal/feed"
	"device-manager-api-server/internal/notify"
	"device-manager-api-server/internal/socket"
	"device-manager-api-server/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Thời gian chờ tối đa cho một tin nhắn từ client.
const pongWait = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	Hub   *socket.Hub
	Feed  feed.Adapter
	Store notify.WatermarkStore
}

// ServeWs xử lý các yêu cầu kết nối WebSocket.
// Mỗi kết nối mở các subscription change feed theo phạm vi của user; đóng kết
// nối là hủy subscription và bỏ cache, lần kết nối sau sẽ priming lại từ đầu.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
		return
	}

	claims := &auth.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return auth.JwtSecret, nil
	})

	if err != nil || !token.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}
	userID := claims.UserID

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	h.Hub.Register(userID, claims.Role, claims.WardID, conn)

	viewer := notify.Viewer{
		Role:   workflow.Role(claims.Role),
		WardID: claims.WardID,
		UserID: userID,
	}
	counter := notify.NewUnreadCounter(h.Store, userID)

	// Mở subscription theo phạm vi vai trò. Mỗi subscription có projector và
	// cache riêng, không chia sẻ trạng thái với nhau; bộ đếm chưa đọc dùng
	// chung và mỗi thay đổi của nó được đẩy luôn xuống client qua socket.
	var unsubs []feed.Unsubscribe
	for _, spec := range subscriptionSpecs(viewer) {
		projector := notify.NewProjector(spec.kind, viewer, h.Hub, counter)
		projector.CountsChanged = func() { h.pushUnreadCounts(userID, counter) }
		unsub, err := h.Feed.Subscribe(spec.query, projector)
		if err != nil {
			log.Printf("Failed to open %s subscription for %s: %v", spec.kind, userID, err)
			continue
		}
		unsubs = append(unsubs, unsub)
	}

	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
		h.Hub.Unregister(userID)
		conn.Close()
	}()

	// Cơ chế xử lý heartbeat: nhận PING từ client thì gia hạn deadline,
	// thư viện gorilla/websocket tự động gửi lại PONG.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Vòng lặp đọc: giữ kết nối sống cho đến khi client đóng.
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Unexpected close error: %v", err)
			}
			break
		}
	}
}

// pushUnreadCounts gửi số badge hiện tại của cả hai category xuống client.
// Được gọi từ goroutine của feed subscription mỗi khi bộ đếm thay đổi.
func (h *WebSocketHandler) pushUnreadCounts(userID string, counter *notify.UnreadCounter) {
	requests, err := counter.Count(context.Background(), notify.CategoryRequests)
	if err != nil {
		log.Printf("Failed to count unread requests for %s: %v", userID, err)
		return
	}
	incidents, err := counter.Count(context.Background(), notify.CategoryIncidents)
	if err != nil {
		log.Printf("Failed to count unread incidents for %s: %v", userID, err)
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"event": "unread_counts",
		"counts": map[string]int{
			string(notify.CategoryRequests):  requests,
			string(notify.CategoryIncidents): incidents,
		},
	})
	if err != nil {
		log.Printf("Failed to marshal unread counts: %v", err)
		return
	}
	if err := h.Hub.SendToUser(userID, payload); err != nil {
		log.Printf("Failed to push unread counts to %s: %v", userID, err)
	}
}

type subscriptionSpec struct {
	kind  string
	query feed.Query
}

// subscriptionSpecs xác định user này theo dõi collection nào, lọc ra sao.
func subscriptionSpecs(viewer notify.Viewer) []subscriptionSpec {
	var specs []subscriptionSpec

	switch viewer.Role {
	case workflow.RoleCenter:
		specs = append(specs,
			subscriptionSpec{workflow.KindDeviceRequest, feed.Query{Collection: "device_requests"}},
			subscriptionSpec{workflow.KindIncident, feed.Query{Collection: "incidents"}},
		)
	case workflow.RoleWard:
		specs = append(specs,
			subscriptionSpec{workflow.KindDeviceRequest, feed.Query{Collection: "device_requests", Filter: bson.M{"wardID": viewer.WardID}}},
			subscriptionSpec{workflow.KindIncident, feed.Query{Collection: "incidents", Filter: bson.M{"wardID": viewer.WardID}}},
		)
	case workflow.RoleUser:
		// Người dùng thường chỉ theo dõi sự cố do chính mình báo cáo.
		specs = append(specs,
			subscriptionSpec{workflow.KindIncident, feed.Query{Collection: "incidents", Filter: bson.M{"reportedBy": viewer.UserID}}},
		)
	}

	return specs
}

// bsonTime đọc một giá trị thời gian từ document đã decode.
func bsonTime(v interface{}) time.Time {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time()
	case time.Time:
		return t
	}
	return time.Time{}
}
