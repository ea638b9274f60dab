package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Incident là sự cố thiết bị do người dùng báo cáo.
// Phường duyệt trước, sau đó trung tâm tiếp nhận xử lý.
type Incident struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	IncidentID   string             `bson:"incidentID" json:"incidentID"`
	ReportedBy   string             `bson:"reportedBy" json:"reportedBy"`
	WardID       string             `bson:"wardID" json:"wardID"`
	DeviceID     string             `bson:"deviceID,omitempty" json:"deviceID"`
	DeviceName   string             `bson:"deviceName,omitempty" json:"deviceName"`
	Severity     string             `bson:"severity" json:"severity"` // low, medium, high, critical
	Status       string             `bson:"status" json:"status"`
	Description  string             `bson:"description,omitempty" json:"description"`
	WardComment  string             `bson:"wardComment,omitempty" json:"wardComment"`
	Resolution   string             `bson:"resolution,omitempty" json:"resolution"`
	ResolvedAt   *time.Time         `bson:"resolvedAt,omitempty" json:"resolvedAt"`
	HasNewUpdate bool               `bson:"hasNewUpdate" json:"hasNewUpdate"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
