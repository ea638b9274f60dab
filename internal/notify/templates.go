package notify

import (
	"fmt"
	"time"

	"device-manager-api-server/internal/models"
	"device-manager-api-server/internal/workflow"
)

// Template là nội dung thông báo cho một tổ hợp (loại thực thể, vai trò, trạng thái).
// Body chứa đúng một %s cho tên hiển thị của thực thể.
type Template struct {
	Title       string
	Body        string
	Severity    string
	ActionRoute string
}

// creationTemplates: vai trò nào được báo khi có thực thể MỚI.
// Chỉ trung tâm được báo khi có yêu cầu thiết bị mới; chỉ phường của sự cố
// được báo khi có sự cố mới. Phường tạo yêu cầu không tự nhận thông báo
// "Yêu cầu mới cần duyệt": hành vi tự báo trong bản cũ là lỗi, không giữ lại.
var creationTemplates = map[string]map[workflow.Role]Template{
	workflow.KindDeviceRequest: {
		workflow.RoleCenter: {
			Title:       "📝 Yêu cầu cấp thiết bị mới",
			Body:        "Yêu cầu %s đang chờ trung tâm duyệt.",
			Severity:    models.SeverityInfo,
			ActionRoute: "/requests",
		},
	},
	workflow.KindIncident: {
		workflow.RoleWard: {
			Title:       "🚨 Sự cố mới cần duyệt",
			Body:        "Sự cố %s đang chờ phường duyệt.",
			Severity:    models.SeverityWarning,
			ActionRoute: "/incidents",
		},
	},
}

// statusTemplates: kind -> vai trò -> trạng thái (theo góc nhìn của vai trò đó).
// Trung tâm thấy trạng thái thô nên key của trung tâm là biến thể thô
// (center_approved, ...); các vai trò khác key theo dạng chuẩn hóa.
var statusTemplates = map[string]map[workflow.Role]map[string]Template{
	workflow.KindDeviceRequest: {
		workflow.RoleWard: {
			workflow.StatusApproved: {
				Title:       "✅ Yêu cầu đã được duyệt",
				Body:        "Yêu cầu %s đã được trung tâm duyệt.",
				Severity:    models.SeverityInfo,
				ActionRoute: "/requests",
			},
			workflow.StatusRejected: {
				Title:       "❌ Yêu cầu bị từ chối",
				Body:        "Yêu cầu %s đã bị trung tâm từ chối.",
				Severity:    models.SeverityWarning,
				ActionRoute: "/requests",
			},
			workflow.StatusDelivering: {
				Title:       "🚚 Thiết bị đang được giao",
				Body:        "Thiết bị cho yêu cầu %s đang trên đường giao.",
				Severity:    models.SeverityInfo,
				ActionRoute: "/requests",
			},
		},
		workflow.RoleCenter: {
			workflow.CenterPrefix + workflow.StatusApproved: {
				Title:       "✅ Đã duyệt yêu cầu",
				Body:        "Yêu cầu %s đã được duyệt, chờ cấp phát thiết bị.",
				Severity:    models.SeverityInfo,
				ActionRoute: "/requests",
			},
			workflow.CenterPrefix + workflow.StatusRejected: {
				Title:       "❌ Đã từ chối yêu cầu",
				Body:        "Yêu cầu %s đã bị từ chối.",
				Severity:    models.SeverityInfo,
				ActionRoute: "/requests",
			},
			// Trung tâm thấy trạng thái thô, nên ghi đè center_approved -> approved
			// (giá trị chuẩn hóa không đổi) vẫn là một thay đổi với trung tâm.
			workflow.StatusApproved: {
				Title:       "✅ Yêu cầu đã được duyệt",
				Body:        "Yêu cầu %s đã được duyệt.",
				Severity:    models.SeverityInfo,
				ActionRoute: "/requests",
			},
			workflow.StatusRejected: {
				Title:       "❌ Yêu cầu đã bị từ chối",
				Body:        "Yêu cầu %s đã bị từ chối.",
				Severity:    models.SeverityInfo,
				ActionRoute: "/requests",
			},
			workflow.StatusDelivering: {
				Title:       "🚚 Đang giao thiết bị",
				Body:        "Thiết bị cho yêu cầu %s đã được cấp phát và đang giao.",
				Severity:    models.SeverityInfo,
				ActionRoute: "/requests",
			},
			workflow.StatusReceived: {
				Title:       "📦 Đơn vị đã nhận thiết bị",
				Body:        "Phường xác nhận đã nhận thiết bị cho yêu cầu %s.",
				Severity:    models.SeverityInfo,
				ActionRoute: "/requests",
			},
		},
	},
	workflow.KindIncident: {
		workflow.RoleUser: {
			workflow.StatusWardApproved: {
				Title:       "👍 Sự cố đã được phường duyệt",
				Body:        "Sự cố %s đã được phường duyệt và chuyển lên trung tâm.",
				Severity:    models.SeverityInfo,
				ActionRoute: "/incidents",
			},
			workflow.StatusWardRejected: {
				Title:       "👎 Sự cố bị từ chối",
				Body:        "Sự cố %s đã bị phường từ chối.",
				Severity:    models.SeverityWarning,
				ActionRoute: "/incidents",
			},
			workflow.StatusInvestigating: {
				Title:       "🔍 Sự cố đang được điều tra",
				Body:        "Trung tâm đang điều tra sự cố %s.",
				Severity:    models.SeverityInfo,
				ActionRoute: "/incidents",
			},
			workflow.StatusInProgress: {
				Title:       "🛠️ Sự cố đang được xử lý",
				Body:        "Trung tâm đang xử lý sự cố %s.",
				Severity:    models.SeverityInfo,
				ActionRoute: "/incidents",
			},
			workflow.StatusResolved: {
				Title:       "✅ Sự cố đã được xử lý",
				Body:        "Sự cố %s đã được xử lý xong.",
				Severity:    models.SeverityInfo,
				ActionRoute: "/incidents",
			},
			workflow.StatusClosed: {
				Title:       "🔒 Sự cố đã đóng",
				Body:        "Sự cố %s đã được đóng.",
				Severity:    models.SeverityInfo,
				ActionRoute: "/incidents",
			},
		},
		workflow.RoleWard: {
			workflow.StatusInProgress: {
				Title:       "🛠️ Trung tâm đang xử lý sự cố",
				Body:        "Sự cố %s trong phường đang được trung tâm xử lý.",
				Severity:    models.SeverityInfo,
				ActionRoute: "/incidents",
			},
			workflow.StatusResolved: {
				Title:       "✅ Sự cố trong phường đã được xử lý",
				Body:        "Sự cố %s đã được trung tâm xử lý xong.",
				Severity:    models.SeverityInfo,
				ActionRoute: "/incidents",
			},
		},
		workflow.RoleCenter: {
			workflow.StatusWardApproved: {
				Title:       "🚨 Sự cố mới cần xử lý",
				Body:        "Sự cố %s đã được phường duyệt, chờ trung tâm tiếp nhận.",
				Severity:    models.SeverityWarning,
				ActionRoute: "/incidents",
			},
		},
	},
}

// CreationTemplate trả về template cho thực thể mới theo vai trò người xem.
func CreationTemplate(kind string, role workflow.Role) (Template, bool) {
	tpl, ok := creationTemplates[kind][role]
	return tpl, ok
}

// StatusTemplate trả về template cho một trạng thái (đã theo góc nhìn của role).
func StatusTemplate(kind string, role workflow.Role, status string) (Template, bool) {
	tpl, ok := statusTemplates[kind][role][status]
	return tpl, ok
}

// FromDomainEvent dựng các thông báo đẩy trực tiếp sau một transition thành công
// (đường không qua change feed). Vai trò thực hiện transition không tự nhận
// thông báo về hành động của mình.
func FromDomainEvent(ev workflow.DomainEvent, displayName, wardID, ownerUserID string) []models.Notification {
	var out []models.Notification
	for _, role := range []workflow.Role{workflow.RoleCenter, workflow.RoleWard, workflow.RoleUser} {
		if role == ev.ActorRole {
			continue
		}
		viewStatus := workflow.NormalizeStatus(ev.NewStatus, role)
		tpl, ok := StatusTemplate(ev.EntityKind, role, viewStatus)
		if !ok {
			continue
		}
		n := models.Notification{
			Title:       tpl.Title,
			Body:        fmt.Sprintf(tpl.Body, displayName),
			Severity:    tpl.Severity,
			Category:    string(CategoryForKind(ev.EntityKind)),
			EntityID:    ev.EntityID,
			ActionRoute: tpl.ActionRoute + "/" + ev.EntityID,
			TargetRole:  string(role),
			CreatedAt:   ev.At,
		}
		switch role {
		case workflow.RoleWard:
			n.TargetWard = wardID
		case workflow.RoleUser:
			n.TargetUser = ownerUserID
		}
		out = append(out, n)
	}
	return out
}

// CreationFromEntity dựng thông báo đẩy trực tiếp khi một thực thể vừa được tạo.
func CreationFromEntity(kind, entityID, displayName, wardID string, createdAt time.Time) []models.Notification {
	var out []models.Notification
	for role, tpl := range creationTemplates[kind] {
		n := models.Notification{
			Title:       tpl.Title,
			Body:        fmt.Sprintf(tpl.Body, displayName),
			Severity:    tpl.Severity,
			Category:    string(CategoryForKind(kind)),
			EntityID:    entityID,
			ActionRoute: tpl.ActionRoute + "/" + entityID,
			TargetRole:  string(role),
			CreatedAt:   createdAt,
		}
		if role == workflow.RoleWard {
			n.TargetWard = wardID
		}
		out = append(out, n)
	}
	return out
}
