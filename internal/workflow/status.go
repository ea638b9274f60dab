package workflow

import "strings"

// Role là vai trò của người xem / người thao tác trong hệ thống.
type Role string

const (
	RoleCenter Role = "center"
	RoleWard   Role = "ward"
	RoleUser   Role = "user"
)

// Loại thực thể đi qua workflow.
const (
	KindDeviceRequest = "device_request"
	KindIncident      = "incident"
)

// Trạng thái của DeviceRequest (dạng chuẩn hóa).
const (
	StatusPending    = "pending"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusDelivering = "delivering"
	StatusReceived   = "received"
	StatusCompleted  = "completed"
)

// Trạng thái của Incident.
const (
	StatusReported          = "reported"
	StatusPendingWardApprov = "pending_ward_approval"
	StatusWardApproved      = "ward_approved"
	StatusWardRejected      = "ward_rejected"
	StatusInvestigating     = "investigating"
	StatusInProgress        = "in_progress"
	StatusResolved          = "resolved"
	StatusClosed            = "closed"
)

// CenterPrefix đánh dấu biến thể trạng thái do trung tâm ghi nhận.
// Document lưu biến thể thô (ví dụ "center_approved"); người xem không thuộc
// trung tâm luôn so sánh và hiển thị theo dạng đã bỏ tiền tố.
const CenterPrefix = "center_"

// NormalizeStatus trả về trạng thái theo góc nhìn của viewer.
// Trung tâm thấy trạng thái thô; các vai trò khác thấy dạng chuẩn hóa.
// Đây là nơi duy nhất chứa quy tắc này, các chỗ khác không tự suy lại.
func NormalizeStatus(raw string, viewer Role) string {
	if viewer == RoleCenter {
		return raw
	}
	return Canonical(raw)
}

// Canonical bỏ tiền tố vai trò để lấy trạng thái chuẩn dùng cho validate transition.
func Canonical(raw string) string {
	return strings.TrimPrefix(raw, CenterPrefix)
}

// IsTerminalIncidentStatus báo trạng thái sự cố không còn transition hợp lệ nào.
func IsTerminalIncidentStatus(status string) bool {
	s := Canonical(status)
	return s == StatusWardRejected || s == StatusClosed
}
