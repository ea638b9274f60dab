package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"device-manager-api-server/internal/models"
	"device-manager-api-server/internal/notify"
	"device-manager-api-server/internal/socket"
	"device-manager-api-server/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type IncidentHandler struct {
	DB  *mongo.Database
	Hub *socket.Hub
}

// Struct cho request body báo cáo sự cố
type CreateIncidentPayload struct {
	DeviceID    string `json:"deviceId"`
	DeviceName  string `json:"deviceName" binding:"required"`
	Severity    string `json:"severity" binding:"required,oneof=low medium high critical"`
	Description string `json:"description"`
}

// CreateIncident xử lý việc người dùng báo cáo sự cố mới.
// Sự cố được submit tự động: reported -> pending_ward_approval ngay khi tạo.
func (h *IncidentHandler) CreateIncident(c *gin.Context) {
	userID := c.GetString("user_id")
	wardID := c.GetString("user_ward_id")

	var payload CreateIncidentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	incident := models.Incident{
		IncidentID:  fmt.Sprintf("INC-%s", strings.ToUpper(uuid.New().String()[:8])),
		ReportedBy:  userID,
		WardID:      wardID,
		DeviceID:    payload.DeviceID,
		DeviceName:  payload.DeviceName,
		Severity:    payload.Severity,
		Description: payload.Description,
		Status:      workflow.StatusReported,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Submit tự động qua engine để giữ một đường đi duy nhất cho mọi transition.
	incident, _, err := workflow.TransitionIncident(incident, workflow.ActionSubmit, workflow.IncidentPayload{}, userID, workflow.RoleUser)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit incident"})
		return
	}
	incident.HasNewUpdate = false // bản ghi mới, chưa có cập nhật nào để xem

	collection := h.DB.Collection("incidents")
	result, err := collection.InsertOne(context.Background(), incident)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create incident"})
		return
	}
	incident.ID = result.InsertedID.(primitive.ObjectID)

	// Báo cho phường của sự cố có sự cố mới cần duyệt.
	for _, n := range notify.CreationFromEntity(workflow.KindIncident, incident.IncidentID, incident.DeviceName, wardID, now) {
		h.Hub.Emit(n)
	}

	c.JSON(http.StatusCreated, incident)
}

// GetAllIncidents lấy danh sách sự cố cho trung tâm.
func (h *IncidentHandler) GetAllIncidents(c *gin.Context) {
	filter := bson.M{}
	if status := c.Query("status"); status != "" {
		filter["status"] = status
	}
	h.listIncidents(c, filter)
}

// GetMyWardIncidents lấy danh sách sự cố thuộc phường đang đăng nhập.
func (h *IncidentHandler) GetMyWardIncidents(c *gin.Context) {
	filter := bson.M{"wardID": c.GetString("user_ward_id")}
	if status := c.Query("status"); status != "" {
		filter["status"] = status
	}
	h.listIncidents(c, filter)
}

// GetMyIncidents lấy danh sách sự cố do chính người dùng báo cáo.
func (h *IncidentHandler) GetMyIncidents(c *gin.Context) {
	filter := bson.M{"reportedBy": c.GetString("user_id")}
	if status := c.Query("status"); status != "" {
		filter["status"] = status
	}
	h.listIncidents(c, filter)
}

func (h *IncidentHandler) listIncidents(c *gin.Context, filter bson.M) {
	collection := h.DB.Collection("incidents")
	cursor, err := collection.Find(context.Background(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query incidents"})
		return
	}
	defer cursor.Close(context.Background())

	var incidents []models.Incident
	if err = cursor.All(context.Background(), &incidents); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode incidents"})
		return
	}

	if incidents == nil {
		incidents = []models.Incident{}
	}

	c.JSON(http.StatusOK, incidents)
}

// GetIncidentByID lấy chi tiết một sự cố.
func (h *IncidentHandler) GetIncidentByID(c *gin.Context) {
	incidentID := c.Param("id")
	collection := h.DB.Collection("incidents")
	var incident models.Incident
	if err := collection.FindOne(context.Background(), bson.M{"incidentID": incidentID}).Decode(&incident); err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Incident not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve incident"})
		}
		return
	}

	c.JSON(http.StatusOK, incident)
}

// Struct cho request body của quyết định phường
type IncidentDecisionPayload struct {
	Comment string `json:"comment"`
}

// WardApprove: phường duyệt sự cố, chuyển lên trung tâm xử lý.
func (h *IncidentHandler) WardApprove(c *gin.Context) {
	var payload IncidentDecisionPayload
	_ = c.ShouldBindJSON(&payload)
	h.applyTransition(c, workflow.ActionWardApprove, workflow.IncidentPayload{Comment: payload.Comment})
}

// WardReject: phường từ chối sự cố, bắt buộc có lý do.
func (h *IncidentHandler) WardReject(c *gin.Context) {
	var payload IncidentDecisionPayload
	_ = c.ShouldBindJSON(&payload)
	h.applyTransition(c, workflow.ActionWardReject, workflow.IncidentPayload{Comment: payload.Comment})
}

// Investigate: trung tâm bắt đầu điều tra.
func (h *IncidentHandler) Investigate(c *gin.Context) {
	h.applyTransition(c, workflow.ActionInvestigate, workflow.IncidentPayload{})
}

// Progress: trung tâm chuyển sự cố sang đang xử lý.
func (h *IncidentHandler) Progress(c *gin.Context) {
	h.applyTransition(c, workflow.ActionProgress, workflow.IncidentPayload{})
}

// Struct cho request body xử lý xong
type ResolveIncidentPayload struct {
	Resolution string `json:"resolution" binding:"required"`
}

// Resolve: trung tâm ghi nhận đã xử lý xong.
func (h *IncidentHandler) Resolve(c *gin.Context) {
	var payload ResolveIncidentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.applyTransition(c, workflow.ActionResolve, workflow.IncidentPayload{Resolution: payload.Resolution})
}

// Close: trung tâm đóng sự cố. Sau bước này không còn transition nào hợp lệ.
func (h *IncidentHandler) Close(c *gin.Context) {
	h.applyTransition(c, workflow.ActionClose, workflow.IncidentPayload{})
}

// MarkViewed xóa cờ hasNewUpdate khi người dùng mở chi tiết sự cố.
func (h *IncidentHandler) MarkViewed(c *gin.Context) {
	incidentID := c.Param("id")
	collection := h.DB.Collection("incidents")
	_, err := collection.UpdateOne(context.Background(),
		bson.M{"incidentID": incidentID},
		bson.M{"$set": bson.M{"hasNewUpdate": false}},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update incident"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// applyTransition là luồng chung cho mọi transition sự cố.
func (h *IncidentHandler) applyTransition(c *gin.Context, action string, payload workflow.IncidentPayload) {
	incidentID := c.Param("id")
	actor := c.GetString("user_id")
	actorRole := workflow.Role(c.GetString("user_role"))

	collection := h.DB.Collection("incidents")

	filter := bson.M{"incidentID": incidentID}
	if actorRole == workflow.RoleWard {
		// Phường chỉ duyệt sự cố của chính phường mình.
		filter["wardID"] = c.GetString("user_ward_id")
	}

	var incident models.Incident
	if err := collection.FindOne(context.Background(), filter).Decode(&incident); err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Incident not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve incident"})
		}
		return
	}

	updated, event, err := workflow.TransitionIncident(incident, action, payload, actor, actorRole)
	if err != nil {
		var invalid *workflow.InvalidTransitionError
		switch {
		case errors.Is(err, workflow.ErrCommentRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.As(err, &invalid):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	// Cập nhật nguyên tử trên status cũ, giống luồng device request.
	atomicFilter := bson.M{"incidentID": incidentID, "status": event.PreviousStatus}
	update := bson.M{"$set": incidentUpdateFields(updated, action)}
	updateResult, err := collection.UpdateOne(context.Background(), atomicFilter, update)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error during transition"})
		return
	}
	if updateResult.ModifiedCount == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Incident status changed concurrently, please reload"})
		return
	}

	for _, n := range notify.FromDomainEvent(event, updated.DeviceName, updated.WardID, updated.ReportedBy) {
		h.Hub.Emit(n)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"incident": updated,
	})
}

func incidentUpdateFields(inc models.Incident, action string) bson.M {
	fields := bson.M{
		"status":       inc.Status,
		"updatedAt":    inc.UpdatedAt,
		"hasNewUpdate": inc.HasNewUpdate,
	}
	if inc.WardComment != "" {
		fields["wardComment"] = inc.WardComment
	}
	if action == workflow.ActionResolve {
		fields["resolution"] = inc.Resolution
		fields["resolvedAt"] = inc.ResolvedAt
	}
	return fields
}
