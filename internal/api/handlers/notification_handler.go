package handlers

import (
	"context"
	"net/http"

	"device-manager-api-server/internal/notify"
	"device-manager-api-server/internal/workflow"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationHandler struct {
	DB    *mongo.Database
	Store notify.WatermarkStore
}

// GetUnreadCounts trả về số mục chưa đọc theo từng category cho user hiện tại.
// Bộ đếm được dựng từ updatedAt của các document trong phạm vi của user,
// so với watermark đã lưu.
func (h *NotificationHandler) GetUnreadCounts(c *gin.Context) {
	userID := c.GetString("user_id")
	role := workflow.Role(c.GetString("user_role"))
	wardID := c.GetString("user_ward_id")

	counter := notify.NewUnreadCounter(h.Store, userID)

	if err := h.observeCategory(counter, notify.CategoryRequests, "device_requests", "requestID", requestScope(role, wardID)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load device requests"})
		return
	}
	if err := h.observeCategory(counter, notify.CategoryIncidents, "incidents", "incidentID", incidentScope(role, wardID, userID)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load incidents"})
		return
	}

	requests, err := counter.Count(context.Background(), notify.CategoryRequests)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read watermark"})
		return
	}
	incidents, err := counter.Count(context.Background(), notify.CategoryIncidents)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read watermark"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests":  requests,
		"incidents": incidents,
	})
}

// Acknowledge đặt watermark của category về hiện tại: badge về 0.
// Người dùng chỉ cần mở màn hình danh sách, không cần bấm từng thông báo.
func (h *NotificationHandler) Acknowledge(c *gin.Context) {
	category := c.Param("category")
	if !notify.ValidCategory(category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown notification category"})
		return
	}

	userID := c.GetString("user_id")
	counter := notify.NewUnreadCounter(h.Store, userID)
	if err := counter.Acknowledge(context.Background(), notify.Category(category)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save watermark"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// observeCategory nạp (entityID, updatedAt) của các document trong phạm vi vào bộ đếm.
func (h *NotificationHandler) observeCategory(counter *notify.UnreadCounter, category notify.Category, collection, idField string, scope bson.M) error {
	if scope == nil {
		return nil // vai trò này không theo dõi category này
	}

	opts := options.Find().SetProjection(bson.M{idField: 1, "updatedAt": 1})
	cursor, err := h.DB.Collection(collection).Find(context.Background(), scope, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(context.Background())

	for cursor.Next(context.Background()) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		id, _ := doc[idField].(string)
		if id == "" {
			continue
		}
		counter.Observe(category, id, bsonTime(doc["updatedAt"]))
	}
	return cursor.Err()
}

// requestScope trả về filter yêu cầu thiết bị theo vai trò; nil nếu không theo dõi.
func requestScope(role workflow.Role, wardID string) bson.M {
	switch role {
	case workflow.RoleCenter:
		return bson.M{}
	case workflow.RoleWard:
		return bson.M{"wardID": wardID}
	default:
		return nil
	}
}

// incidentScope trả về filter sự cố theo vai trò.
func incidentScope(role workflow.Role, wardID, userID string) bson.M {
	switch role {
	case workflow.RoleCenter:
		return bson.M{}
	case workflow.RoleWard:
		return bson.M{"wardID": wardID}
	default:
		return bson.M{"reportedBy": userID}
	}
}
