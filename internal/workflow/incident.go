package workflow

import (
	"time"

	"device-manager-api-server/internal/models"
)

// Action trên Incident.
const (
	ActionSubmit      = "submit"
	ActionWardApprove = "ward_approve"
	ActionWardReject  = "ward_reject"
	ActionInvestigate = "investigate"
	ActionProgress    = "progress"
	ActionResolve     = "resolve"
	ActionClose       = "close"
)

// IncidentPayload là dữ liệu kèm theo một transition của Incident.
type IncidentPayload struct {
	// Comment của phường, bắt buộc khi từ chối.
	Comment string
	// Resolution mô tả cách xử lý, ghi khi resolve.
	Resolution string
}

// incidentEdges liệt kê các trạng thái đích hợp lệ theo trạng thái nguồn.
// ward_rejected và closed là trạng thái kết thúc, không có cạnh đi ra.
var incidentEdges = map[string][]string{
	StatusReported:          {StatusPendingWardApprov},
	StatusPendingWardApprov: {StatusWardApproved, StatusWardRejected},
	StatusWardApproved:      {StatusInvestigating, StatusInProgress, StatusResolved, StatusClosed},
	StatusInvestigating:     {StatusInProgress, StatusResolved, StatusClosed},
	StatusInProgress:        {StatusResolved, StatusClosed},
	StatusResolved:          {StatusClosed},
}

// incidentActions ánh xạ action -> (trạng thái đích, vai trò được phép).
var incidentActions = map[string]struct {
	target string
	role   Role
}{
	ActionSubmit:      {StatusPendingWardApprov, ""},
	ActionWardApprove: {StatusWardApproved, RoleWard},
	ActionWardReject:  {StatusWardRejected, RoleWard},
	ActionInvestigate: {StatusInvestigating, RoleCenter},
	ActionProgress:    {StatusInProgress, RoleCenter},
	ActionResolve:     {StatusResolved, RoleCenter},
	ActionClose:       {StatusClosed, RoleCenter},
}

// TransitionIncident kiểm tra và áp dụng một transition trên sự cố.
// Hàm thuần túy như TransitionDeviceRequest: validate trước, mutate bản sao sau.
func TransitionIncident(inc models.Incident, action string, payload IncidentPayload, actor string, actorRole Role) (models.Incident, DomainEvent, error) {
	now := time.Now()
	from := Canonical(inc.Status)

	spec, ok := incidentActions[action]
	if !ok {
		return inc, DomainEvent{}, &InvalidTransitionError{EntityKind: KindIncident, From: inc.Status, To: "", Action: action}
	}
	if spec.role != "" && actorRole != spec.role {
		return inc, DomainEvent{}, &InvalidTransitionError{EntityKind: KindIncident, From: inc.Status, To: spec.target, Action: action}
	}
	if !edgeAllowed(from, spec.target) {
		return inc, DomainEvent{}, &InvalidTransitionError{EntityKind: KindIncident, From: inc.Status, To: spec.target, Action: action}
	}
	if action == ActionWardReject && payload.Comment == "" {
		return inc, DomainEvent{}, ErrCommentRequired
	}

	event := DomainEvent{
		EntityID:       inc.IncidentID,
		EntityKind:     KindIncident,
		PreviousStatus: inc.Status,
		NewStatus:      spec.target,
		Actor:          actor,
		ActorRole:      actorRole,
		At:             now,
	}

	inc.Status = spec.target
	inc.UpdatedAt = now
	inc.HasNewUpdate = true
	if payload.Comment != "" {
		inc.WardComment = payload.Comment
	}
	if action == ActionResolve {
		inc.Resolution = payload.Resolution
		inc.ResolvedAt = &now
	}

	return inc, event, nil
}

func edgeAllowed(from, to string) bool {
	for _, t := range incidentEdges[from] {
		if t == to {
			return true
		}
	}
	return false
}
