package workflow

import (
	"time"

	"device-manager-api-server/internal/models"
)

// Action trên DeviceRequest.
const (
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionAllocate = "allocate"
	ActionReceive  = "receive"
)

// DeviceRequestPayload là dữ liệu kèm theo một transition của DeviceRequest.
type DeviceRequestPayload struct {
	Notes string
	// AllocatedDeviceIDs là danh sách thiết bị được cấp (bắt buộc với ActionAllocate).
	AllocatedDeviceIDs []string
	// DeviceQuantities là số đơn vị theo từng thiết bị. Nếu bỏ trống, mỗi
	// thiết bị tính là một đơn vị.
	DeviceQuantities map[string]int
	// InFlightAllocations do caller tra cứu: thiết bị nào đang gắn với yêu cầu
	// khác chưa hoàn tất (deviceID -> requestID). Engine không tự truy vấn.
	InFlightAllocations map[string]string
}

// TransitionDeviceRequest kiểm tra và áp dụng một transition trên yêu cầu thiết bị.
// Hàm thuần túy: không I/O, trả về bản sao đã cập nhật; caller chịu trách nhiệm
// lưu kết quả và phát sự kiện change feed tương ứng.
//
// Đồ thị hợp lệ: pending -> approved | rejected, approved -> delivering
// (kèm kiểm tra số lượng cấp phát), delivering -> received. Mọi cạnh khác
// trả về InvalidTransitionError.
func TransitionDeviceRequest(req models.DeviceRequest, action string, payload DeviceRequestPayload, actor string, actorRole Role) (models.DeviceRequest, DomainEvent, error) {
	now := time.Now()
	from := Canonical(req.Status)

	var newRaw string
	var reassigned []string

	switch action {
	case ActionApprove:
		if from != StatusPending {
			return req, DomainEvent{}, &InvalidTransitionError{EntityKind: KindDeviceRequest, From: req.Status, To: StatusApproved, Action: action}
		}
		// Trung tâm duyệt: document lưu biến thể thô center_approved,
		// các vai trò khác đọc ra "approved" qua NormalizeStatus.
		newRaw = CenterPrefix + StatusApproved

	case ActionReject:
		if from != StatusPending {
			return req, DomainEvent{}, &InvalidTransitionError{EntityKind: KindDeviceRequest, From: req.Status, To: StatusRejected, Action: action}
		}
		newRaw = CenterPrefix + StatusRejected

	case ActionAllocate:
		if from != StatusApproved {
			return req, DomainEvent{}, &InvalidTransitionError{EntityKind: KindDeviceRequest, From: req.Status, To: StatusDelivering, Action: action}
		}
		units := 0
		for _, id := range payload.AllocatedDeviceIDs {
			if q, ok := payload.DeviceQuantities[id]; ok {
				units += q
			} else {
				units++
			}
		}
		if units != req.Quantity {
			return req, DomainEvent{}, &AllocationMismatchError{Expected: req.Quantity, Actual: units}
		}
		for _, id := range payload.AllocatedDeviceIDs {
			if otherReq, ok := payload.InFlightAllocations[id]; ok && otherReq != req.RequestID {
				reassigned = append(reassigned, id)
			}
		}
		newRaw = StatusDelivering

	case ActionReceive:
		if from != StatusDelivering {
			return req, DomainEvent{}, &InvalidTransitionError{EntityKind: KindDeviceRequest, From: req.Status, To: StatusReceived, Action: action}
		}
		newRaw = StatusReceived

	default:
		return req, DomainEvent{}, &InvalidTransitionError{EntityKind: KindDeviceRequest, From: req.Status, To: "", Action: action}
	}

	event := DomainEvent{
		EntityID:       req.RequestID,
		EntityKind:     KindDeviceRequest,
		PreviousStatus: req.Status,
		NewStatus:      newRaw,
		Actor:          actor,
		ActorRole:      actorRole,
		Reassigned:     reassigned,
		At:             now,
	}

	// Validate xong mới mutate bản sao.
	req.Status = newRaw
	req.UpdatedAt = now
	if payload.Notes != "" {
		req.Notes = payload.Notes
	}
	switch action {
	case ActionAllocate:
		req.AllocatedBy = actor
		req.AllocatedAt = &now
		req.DeviceSerialNumbers = payload.AllocatedDeviceIDs
		req.DeviceQuantities = allocationUnits(payload)
		req.DeliveredAt = &now
	case ActionReceive:
		req.ReceivedBy = actor
		req.ReceivedAt = &now
	}

	return req, event, nil
}

// allocationUnits xây map deviceID -> số đơn vị, mặc định 1 đơn vị mỗi thiết bị.
// Khi status là delivering/received, tổng map này luôn bằng Quantity của yêu cầu.
func allocationUnits(payload DeviceRequestPayload) map[string]int {
	units := make(map[string]int, len(payload.AllocatedDeviceIDs))
	for _, id := range payload.AllocatedDeviceIDs {
		if q, ok := payload.DeviceQuantities[id]; ok {
			units[id] = q
		} else {
			units[id] = 1
		}
	}
	return units
}
