package notify

import (
	"testing"
	"time"

	"device-manager-api-server/internal/workflow"
)

func TestFromDomainEvent_SkipsActorRole(t *testing.T) {
	ev := workflow.DomainEvent{
		EntityID:       "REQ-01",
		EntityKind:     workflow.KindDeviceRequest,
		PreviousStatus: workflow.StatusPending,
		NewStatus:      "center_approved",
		Actor:          "center-admin",
		ActorRole:      workflow.RoleCenter,
		At:             time.Now(),
	}

	out := FromDomainEvent(ev, "Laptop (x2)", "ward_1", "user-1")
	if len(out) != 1 {
		t.Fatalf("got %d notifications, want 1 (ward only)", len(out))
	}
	n := out[0]
	if n.TargetRole != string(workflow.RoleWard) || n.TargetWard != "ward_1" {
		t.Errorf("target = role %q ward %q", n.TargetRole, n.TargetWard)
	}
	if n.Title != "✅ Yêu cầu đã được duyệt" {
		t.Errorf("title = %q", n.Title)
	}
	if n.ActionRoute != "/requests/REQ-01" {
		t.Errorf("actionRoute = %q", n.ActionRoute)
	}
}

func TestFromDomainEvent_IncidentResolveNotifiesReporterAndWard(t *testing.T) {
	ev := workflow.DomainEvent{
		EntityID:   "INC-01",
		EntityKind: workflow.KindIncident,
		NewStatus:  workflow.StatusResolved,
		ActorRole:  workflow.RoleCenter,
		At:         time.Now(),
	}

	out := FromDomainEvent(ev, "Máy in HP-02", "ward_1", "user-1")
	if len(out) != 2 {
		t.Fatalf("got %d notifications, want 2", len(out))
	}
	targets := map[string]bool{}
	for _, n := range out {
		targets[n.TargetRole] = true
		if n.Category != "incidents" {
			t.Errorf("category = %q", n.Category)
		}
	}
	if !targets[string(workflow.RoleWard)] || !targets[string(workflow.RoleUser)] {
		t.Errorf("targets = %v, want ward and user", targets)
	}
}

func TestCreationFromEntity_NewRequestGoesToCenterOnly(t *testing.T) {
	out := CreationFromEntity(workflow.KindDeviceRequest, "REQ-01", "Laptop (x2)", "ward_1", time.Now())
	if len(out) != 1 {
		t.Fatalf("got %d notifications, want 1", len(out))
	}
	// Phường tạo yêu cầu không tự nhận "Yêu cầu mới cần duyệt".
	if out[0].TargetRole != string(workflow.RoleCenter) {
		t.Errorf("target role = %q, want center", out[0].TargetRole)
	}
}

func TestStatusTemplate_RoleAsymmetry(t *testing.T) {
	if _, ok := StatusTemplate(workflow.KindDeviceRequest, workflow.RoleWard, "center_approved"); ok {
		t.Error("ward table must not contain raw center variants")
	}
	if _, ok := StatusTemplate(workflow.KindDeviceRequest, workflow.RoleCenter, "center_approved"); !ok {
		t.Error("center table must contain raw center variants")
	}
}
