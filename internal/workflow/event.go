package workflow

import "time"

// DomainEvent mô tả một transition đã được áp dụng thành công.
// Caller dùng event này để đẩy thông báo trực tiếp (không qua change feed)
// và để ghi nhận các thiết bị bị điều chuyển từ yêu cầu khác.
type DomainEvent struct {
	EntityID       string
	EntityKind     string
	PreviousStatus string
	NewStatus      string
	Actor          string
	ActorRole      Role
	// Reassigned liệt kê các thiết bị đang gắn với yêu cầu khác nhưng được
	// chọn cấp cho yêu cầu này. Việc điều chuyển là hợp lệ nhưng phải lộ ra
	// để audit, không được giấu.
	Reassigned []string
	At         time.Time
}
