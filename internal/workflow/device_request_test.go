package workflow

import (
	"errors"
	"testing"

	"device-manager-api-server/internal/models"
)

func newTestRequest(status string, quantity int) models.DeviceRequest {
	return models.DeviceRequest{
		RequestID:   "REQ-TEST01",
		WardID:      "ward_1",
		RequestedBy: "user-1",
		DeviceType:  "Laptop",
		Quantity:    quantity,
		Status:      status,
	}
}

func TestTransitionDeviceRequest_ApproveWritesRawCenterVariant(t *testing.T) {
	req := newTestRequest(StatusPending, 2)

	updated, event, err := TransitionDeviceRequest(req, ActionApprove, DeviceRequestPayload{}, "center-admin", RoleCenter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != "center_approved" {
		t.Errorf("raw status = %q, want center_approved", updated.Status)
	}
	if event.PreviousStatus != StatusPending || event.NewStatus != "center_approved" {
		t.Errorf("event statuses = %q -> %q", event.PreviousStatus, event.NewStatus)
	}
	// Người xem không thuộc trung tâm đọc ra dạng chuẩn hóa.
	if got := NormalizeStatus(updated.Status, RoleWard); got != StatusApproved {
		t.Errorf("ward view = %q, want approved", got)
	}
}

func TestTransitionDeviceRequest_InvalidEdges(t *testing.T) {
	tests := []struct {
		name   string
		status string
		action string
	}{
		{"approve from rejected", "center_rejected", ActionApprove},
		{"approve from delivering", StatusDelivering, ActionApprove},
		{"reject from approved", "center_approved", ActionReject},
		{"allocate from pending", StatusPending, ActionAllocate},
		{"allocate from received", StatusReceived, ActionAllocate},
		{"receive from approved", "center_approved", ActionReceive},
		{"receive from received", StatusReceived, ActionReceive},
		{"unknown action", StatusPending, "escalate"},
		{"no edge out of received", StatusReceived, ActionApprove},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newTestRequest(tt.status, 1)
			updated, _, err := TransitionDeviceRequest(req, tt.action, DeviceRequestPayload{AllocatedDeviceIDs: []string{"dev-1"}}, "actor", RoleCenter)

			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidTransitionError, got %v", err)
			}
			if updated.Status != tt.status {
				t.Errorf("request mutated on failed transition: %q -> %q", tt.status, updated.Status)
			}
		})
	}
}

func TestTransitionDeviceRequest_AllocationExactness(t *testing.T) {
	tests := []struct {
		name       string
		quantity   int
		deviceIDs  []string
		perDevice  map[string]int
		wantErr    bool
		wantActual int
	}{
		{"exact match one per device", 3, []string{"d1", "d2", "d3"}, nil, false, 0},
		{"too few devices", 3, []string{"d1", "d2"}, nil, true, 2},
		{"too many devices", 1, []string{"d1", "d2"}, nil, true, 2},
		{"zero devices", 2, nil, nil, true, 0},
		{"unit counts sum to quantity", 5, []string{"d1", "d2"}, map[string]int{"d1": 3, "d2": 2}, false, 0},
		{"unit counts undershoot", 5, []string{"d1", "d2"}, map[string]int{"d1": 2, "d2": 2}, true, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newTestRequest("center_approved", tt.quantity)
			payload := DeviceRequestPayload{AllocatedDeviceIDs: tt.deviceIDs, DeviceQuantities: tt.perDevice}

			updated, _, err := TransitionDeviceRequest(req, ActionAllocate, payload, "center-admin", RoleCenter)
			if tt.wantErr {
				var mismatch *AllocationMismatchError
				if !errors.As(err, &mismatch) {
					t.Fatalf("expected AllocationMismatchError, got %v", err)
				}
				if mismatch.Expected != tt.quantity || mismatch.Actual != tt.wantActual {
					t.Errorf("mismatch = %d/%d, want %d/%d", mismatch.Actual, mismatch.Expected, tt.wantActual, tt.quantity)
				}
				if updated.Status != "center_approved" {
					t.Errorf("request mutated on failed allocation")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if updated.Status != StatusDelivering {
				t.Errorf("status = %q, want delivering", updated.Status)
			}
			sum := 0
			for _, q := range updated.DeviceQuantities {
				sum += q
			}
			if sum != tt.quantity {
				t.Errorf("sum(deviceQuantities) = %d, want %d", sum, tt.quantity)
			}
		})
	}
}

func TestTransitionDeviceRequest_ReassignmentFlaggedInEvent(t *testing.T) {
	req := newTestRequest("center_approved", 2)
	payload := DeviceRequestPayload{
		AllocatedDeviceIDs: []string{"d1", "d2"},
		InFlightAllocations: map[string]string{
			"d2": "REQ-OTHER",  // đang gắn với yêu cầu khác: phải bị flag
			"d1": "REQ-TEST01", // gắn với chính yêu cầu này: không flag
		},
	}

	updated, event, err := TransitionDeviceRequest(req, ActionAllocate, payload, "center-admin", RoleCenter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusDelivering {
		t.Fatalf("status = %q, want delivering", updated.Status)
	}
	if len(event.Reassigned) != 1 || event.Reassigned[0] != "d2" {
		t.Errorf("event.Reassigned = %v, want [d2]", event.Reassigned)
	}
}

func TestTransitionDeviceRequest_ReceiveSetsReceiver(t *testing.T) {
	req := newTestRequest(StatusDelivering, 1)

	updated, event, err := TransitionDeviceRequest(req, ActionReceive, DeviceRequestPayload{}, "ward-staff", RoleWard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusReceived {
		t.Errorf("status = %q, want received", updated.Status)
	}
	if updated.ReceivedBy != "ward-staff" || updated.ReceivedAt == nil {
		t.Errorf("receiver not recorded: by=%q at=%v", updated.ReceivedBy, updated.ReceivedAt)
	}
	if event.ActorRole != RoleWard {
		t.Errorf("event.ActorRole = %q, want ward", event.ActorRole)
	}
}
