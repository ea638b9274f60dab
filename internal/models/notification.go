package models

import "time"

// Mức độ của một thông báo đẩy tới client.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Notification là thông báo đã được phân loại, sẵn sàng đẩy qua WebSocket.
// TargetUser có độ ưu tiên cao nhất, sau đó đến TargetWard rồi TargetRole.
type Notification struct {
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Severity    string    `json:"severity"`
	Category    string    `json:"category"` // requests, incidents
	EntityID    string    `json:"entityID"`
	ActionRoute string    `json:"actionRoute"`
	TargetRole  string    `json:"targetRole,omitempty"`
	TargetWard  string    `json:"targetWard,omitempty"`
	TargetUser  string    `json:"targetUser,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
