package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
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

type RequestHandler struct {
	DB  *mongo.Database
	Hub *socket.Hub
}

// Struct cho request body tạo yêu cầu thiết bị
type CreateDeviceRequestPayload struct {
	DeviceType string `json:"deviceType" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,gt=0"`
	Notes      string `json:"notes"`
}

// CreateDeviceRequest xử lý việc phường tạo yêu cầu cấp thiết bị mới.
func (h *RequestHandler) CreateDeviceRequest(c *gin.Context) {
	userID := c.GetString("user_id")
	wardID := c.GetString("user_ward_id")

	var payload CreateDeviceRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	newRequest := models.DeviceRequest{
		RequestID:   fmt.Sprintf("REQ-%s", strings.ToUpper(uuid.New().String()[:8])),
		WardID:      wardID,
		RequestedBy: userID,
		DeviceType:  payload.DeviceType,
		Quantity:    payload.Quantity,
		Notes:       payload.Notes,
		Status:      workflow.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	collection := h.DB.Collection("device_requests")
	result, err := collection.InsertOne(context.Background(), newRequest)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create device request"})
		return
	}
	newRequest.ID = result.InsertedID.(primitive.ObjectID)

	// Báo cho trung tâm có yêu cầu mới (phường tạo không tự nhận thông báo).
	for _, n := range notify.CreationFromEntity(workflow.KindDeviceRequest, newRequest.RequestID, requestDisplayName(newRequest), wardID, now) {
		h.Hub.Emit(n)
	}

	c.JSON(http.StatusCreated, newRequest)
}

// GetAllRequests lấy danh sách yêu cầu cho trung tâm, lọc theo status nếu có.
func (h *RequestHandler) GetAllRequests(c *gin.Context) {
	filter := bson.M{}
	if status := c.Query("status"); status != "" {
		filter["status"] = statusFilter(status)
	}

	collection := h.DB.Collection("device_requests")
	cursor, err := collection.Find(context.Background(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query device requests"})
		return
	}
	defer cursor.Close(context.Background())

	var requests []models.DeviceRequest
	if err = cursor.All(context.Background(), &requests); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode requests"})
		return
	}

	if requests == nil {
		requests = []models.DeviceRequest{}
	}

	c.JSON(http.StatusOK, requests)
}

// statusFilter khớp cả dạng chuẩn hóa lẫn biến thể thô center_ trong document:
// client lọc ?status=approved phải thấy cả các yêu cầu lưu là center_approved.
func statusFilter(status string) bson.M {
	canonical := workflow.Canonical(status)
	return bson.M{"$in": bson.A{canonical, workflow.CenterPrefix + canonical}}
}

// GetMyWardRequests lấy danh sách yêu cầu của phường đang đăng nhập.
func (h *RequestHandler) GetMyWardRequests(c *gin.Context) {
	wardID := c.GetString("user_ward_id")

	filter := bson.M{"wardID": wardID}
	if status := c.Query("status"); status != "" {
		filter["status"] = statusFilter(status)
	}

	collection := h.DB.Collection("device_requests")
	cursor, err := collection.Find(context.Background(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query device requests"})
		return
	}
	defer cursor.Close(context.Background())

	var requests []models.DeviceRequest
	if err = cursor.All(context.Background(), &requests); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode requests"})
		return
	}

	if requests == nil {
		requests = []models.DeviceRequest{}
	}

	c.JSON(http.StatusOK, requests)
}

// GetRequestByID lấy chi tiết một yêu cầu theo requestID.
func (h *RequestHandler) GetRequestByID(c *gin.Context) {
	requestID := c.Param("id")
	collection := h.DB.Collection("device_requests")
	var request models.DeviceRequest
	if err := collection.FindOne(context.Background(), bson.M{"requestID": requestID}).Decode(&request); err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device request not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve device request"})
		}
		return
	}

	c.JSON(http.StatusOK, request)
}

// Struct cho request body của các transition đơn giản
type RequestDecisionPayload struct {
	Notes string `json:"notes"`
}

// ApproveRequest: trung tâm duyệt một yêu cầu đang pending.
func (h *RequestHandler) ApproveRequest(c *gin.Context) {
	var payload RequestDecisionPayload
	// Body có thể rỗng
	_ = c.ShouldBindJSON(&payload)
	h.applyTransition(c, workflow.ActionApprove, workflow.DeviceRequestPayload{Notes: payload.Notes})
}

// RejectRequest: trung tâm từ chối một yêu cầu đang pending.
func (h *RequestHandler) RejectRequest(c *gin.Context) {
	var payload RequestDecisionPayload
	_ = c.ShouldBindJSON(&payload)
	h.applyTransition(c, workflow.ActionReject, workflow.DeviceRequestPayload{Notes: payload.Notes})
}

// Struct cho request body cấp phát thiết bị
type AllocateDevicesPayload struct {
	DeviceIDs        []string       `json:"deviceIds" binding:"required"`
	DeviceQuantities map[string]int `json:"deviceQuantities"`
}

// AllocateDevices: trung tâm chọn thiết bị cụ thể và chuyển yêu cầu sang delivering.
// Thiết bị đang gắn với yêu cầu khác vẫn chọn được (điều chuyển) nhưng sẽ bị
// flag trong sự kiện trả về để audit.
func (h *RequestHandler) AllocateDevices(c *gin.Context) {
	var payload AllocateDevicesPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := c.Param("id")

	// Tra cứu các thiết bị đang gắn với yêu cầu in-flight khác để engine flag điều chuyển.
	inFlight := map[string]string{}
	cursor, err := h.DB.Collection("device_requests").Find(context.Background(), bson.M{
		"status":              bson.M{"$in": bson.A{workflow.StatusDelivering, workflow.StatusReceived}},
		"deviceSerialNumbers": bson.M{"$in": payload.DeviceIDs},
		"requestID":           bson.M{"$ne": requestID},
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check in-flight allocations"})
		return
	}
	var holders []models.DeviceRequest
	if err = cursor.All(context.Background(), &holders); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode in-flight allocations"})
		return
	}
	for _, holder := range holders {
		for _, deviceID := range holder.DeviceSerialNumbers {
			inFlight[deviceID] = holder.RequestID
		}
	}

	h.applyTransition(c, workflow.ActionAllocate, workflow.DeviceRequestPayload{
		AllocatedDeviceIDs:  payload.DeviceIDs,
		DeviceQuantities:    payload.DeviceQuantities,
		InFlightAllocations: inFlight,
	})
}

// ConfirmReceived: phường xác nhận đã nhận thiết bị.
func (h *RequestHandler) ConfirmReceived(c *gin.Context) {
	h.applyTransition(c, workflow.ActionReceive, workflow.DeviceRequestPayload{})
}

// applyTransition là luồng chung: đọc yêu cầu, chạy workflow engine, ghi kết quả
// bằng cập nhật nguyên tử trên status cũ, rồi đẩy thông báo WebSocket.
func (h *RequestHandler) applyTransition(c *gin.Context, action string, payload workflow.DeviceRequestPayload) {
	requestID := c.Param("id")
	actor := c.GetString("user_id")
	actorRole := workflow.Role(c.GetString("user_role"))

	collection := h.DB.Collection("device_requests")

	filter := bson.M{"requestID": requestID}
	if actorRole == workflow.RoleWard {
		// Phường chỉ thao tác trên yêu cầu của chính mình.
		filter["wardID"] = c.GetString("user_ward_id")
	}

	var request models.DeviceRequest
	if err := collection.FindOne(context.Background(), filter).Decode(&request); err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device request not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve device request"})
		}
		return
	}

	updated, event, err := workflow.TransitionDeviceRequest(request, action, payload, actor, actorRole)
	if err != nil {
		var invalid *workflow.InvalidTransitionError
		var mismatch *workflow.AllocationMismatchError
		switch {
		case errors.As(err, &mismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.As(err, &invalid):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	// Cập nhật nguyên tử: chỉ ghi nếu status chưa bị ai đổi kể từ lúc đọc.
	atomicFilter := bson.M{"requestID": requestID, "status": event.PreviousStatus}
	update := bson.M{"$set": requestUpdateFields(updated, action)}
	updateResult, err := collection.UpdateOne(context.Background(), atomicFilter, update)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error during transition"})
		return
	}
	if updateResult.ModifiedCount == 0 {
		// Ai đó vừa đổi trạng thái trước chúng ta.
		c.JSON(http.StatusConflict, gin.H{"error": "Request status changed concurrently, please reload"})
		return
	}

	if len(event.Reassigned) > 0 {
		log.Printf("AUDIT: request %s reassigned devices %v by %s", requestID, event.Reassigned, actor)
	}

	// Đẩy thông báo cho các vai trò còn lại (vai trò thực hiện không tự nhận).
	for _, n := range notify.FromDomainEvent(event, requestDisplayName(updated), updated.WardID, updated.RequestedBy) {
		h.Hub.Emit(n)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"request":    updated,
		"reassigned": event.Reassigned,
	})
}

// requestUpdateFields chọn các field cần $set theo từng action.
func requestUpdateFields(req models.DeviceRequest, action string) bson.M {
	fields := bson.M{
		"status":    req.Status,
		"updatedAt": req.UpdatedAt,
	}
	if req.Notes != "" {
		fields["notes"] = req.Notes
	}
	switch action {
	case workflow.ActionAllocate:
		fields["allocatedBy"] = req.AllocatedBy
		fields["allocatedAt"] = req.AllocatedAt
		fields["deviceSerialNumbers"] = req.DeviceSerialNumbers
		fields["deviceQuantities"] = req.DeviceQuantities
		fields["deliveredAt"] = req.DeliveredAt
	case workflow.ActionReceive:
		fields["receivedBy"] = req.ReceivedBy
		fields["receivedAt"] = req.ReceivedAt
	}
	return fields
}

func requestDisplayName(req models.DeviceRequest) string {
	return fmt.Sprintf("%s (x%d)", req.DeviceType, req.Quantity)
}
