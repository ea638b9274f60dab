package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeviceRequest là yêu cầu cấp phát thiết bị do phường tạo.
// Trạng thái chỉ được thay đổi thông qua workflow engine, không sửa field trực tiếp.
type DeviceRequest struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestID           string             `bson:"requestID" json:"requestID"`
	WardID              string             `bson:"wardID" json:"wardID"`
	RequestedBy         string             `bson:"requestedBy" json:"requestedBy"`
	DeviceType          string             `bson:"deviceType" json:"deviceType"`
	Quantity            int                `bson:"quantity" json:"quantity"`
	Status              string             `bson:"status" json:"status"` // pending, center_approved, center_rejected, delivering, received, completed
	Notes               string             `bson:"notes,omitempty" json:"notes"`
	AllocatedBy         string             `bson:"allocatedBy,omitempty" json:"allocatedBy"`
	AllocatedAt         *time.Time         `bson:"allocatedAt,omitempty" json:"allocatedAt"`
	DeviceSerialNumbers []string           `bson:"deviceSerialNumbers,omitempty" json:"deviceSerialNumbers"`
	DeviceQuantities    map[string]int     `bson:"deviceQuantities,omitempty" json:"deviceQuantities"`
	DeliveredAt         *time.Time         `bson:"deliveredAt,omitempty" json:"deliveredAt"`
	ReceivedBy          string             `bson:"receivedBy,omitempty" json:"receivedBy"`
	ReceivedAt          *time.Time         `bson:"receivedAt,omitempty" json:"receivedAt"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt" json:"updatedAt"`
}
