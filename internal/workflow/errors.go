package workflow

import (
	"errors"
	"fmt"
)

// ErrCommentRequired báo phường từ chối sự cố mà không ghi lý do.
var ErrCommentRequired = errors.New("ward rejection requires a non-empty comment")

// InvalidTransitionError báo cạnh chuyển trạng thái không nằm trong đồ thị cho phép.
// Lỗi được trả về trước khi có bất kỳ thay đổi nào trên thực thể.
type InvalidTransitionError struct {
	EntityKind string
	From       string
	To         string
	Action     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition %q -> %q (action %q)", e.EntityKind, e.From, e.To, e.Action)
}

// AllocationMismatchError báo số thiết bị được chọn không khớp số lượng yêu cầu.
type AllocationMismatchError struct {
	Expected int
	Actual   int
}

func (e *AllocationMismatchError) Error() string {
	return fmt.Sprintf("allocation mismatch: request needs %d unit(s), got %d", e.Expected, e.Actual)
}

// MalformedSnapshotError báo document từ change feed thiếu field bắt buộc.
// Subscription không dừng lại vì lỗi này, chỉ log và dùng giá trị mặc định an toàn.
type MalformedSnapshotError struct {
	EntityID string
	Field    string
}

func (e *MalformedSnapshotError) Error() string {
	return fmt.Sprintf("malformed snapshot for %s: missing field %q", e.EntityID, e.Field)
}
