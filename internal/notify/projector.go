// Package notify biến các sự kiện change feed thô thành thông báo đã khử trùng
// lặp, lọc theo vai trò, cùng bộ đếm chưa đọc theo watermark.
package notify

import (
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"device-manager-api-server/internal/feed"
	"device-manager-api-server/internal/models"
	"device-manager-api-server/internal/workflow"
)

// State là trạng thái của một subscription.
type State string

const (
	// StatePriming: đang nhận replay ban đầu, chỉ ghi cache, không phát thông báo.
	StatePriming State = "priming"
	// StateLive: replay đã xong, các sự kiện tiếp theo được phân loại và phát.
	StateLive State = "live"
)

// Viewer là danh tính người xem của subscription.
type Viewer struct {
	Role   workflow.Role
	WardID string
	UserID string
}

// Sink nhận thông báo đã phân loại (thường là websocket hub).
type Sink interface {
	Emit(n models.Notification)
}

// Projector duy trì cache trạng thái đã chuẩn hóa theo từng entity và quyết định
// sự kiện nào đáng phát thông báo. Mỗi subscription sở hữu một Projector riêng;
// cache không chia sẻ và chỉ Projector được ghi vào nó.
//
// Các callback (OnEvent, MarkLive, OnStale) được feed adapter gọi tuần tự trên
// một goroutine, nên Projector không cần khóa.
type Projector struct {
	kind     string
	category Category
	viewer   Viewer
	sink     Sink
	counter  *UnreadCounter // có thể nil khi không cần đếm chưa đọc
	state    State
	cache    map[string]string

	// CountsChanged được gọi mỗi khi bộ đếm chưa đọc thay đổi ở trạng thái
	// Live, và một lần ngay khi MarkLive (đợt replay vừa nạp xong bộ đếm).
	// Caller dùng hook này để đẩy số badge mới tới client.
	CountsChanged func()
}

func NewProjector(kind string, viewer Viewer, sink Sink, counter *UnreadCounter) *Projector {
	return &Projector{
		kind:     kind,
		category: CategoryForKind(kind),
		viewer:   viewer,
		sink:     sink,
		counter:  counter,
		state:    StatePriming,
		cache:    make(map[string]string),
	}
}

// State trả về trạng thái hiện tại của subscription.
func (p *Projector) State() State { return p.state }

// CacheSize trả về số entity đang được theo dõi.
func (p *Projector) CacheSize() int { return len(p.cache) }

// CachedStatus trả về trạng thái chuẩn hóa đã ghi nhận cho một entity.
func (p *Projector) CachedStatus(entityID string) (string, bool) {
	s, ok := p.cache[entityID]
	return s, ok
}

// MarkLive chuyển sang trạng thái Live. Feed adapter gọi hàm này đúng một lần
// sau khi giao xong replay ban đầu.
func (p *Projector) MarkLive() {
	p.state = StateLive
	p.countsChanged()
}

// OnStale báo cho người xem rằng dữ liệu có thể đã cũ (feed đứt, hết lượt thử).
func (p *Projector) OnStale(err error) {
	log.Printf("projector(%s): feed stale for user %s: %v", p.kind, p.viewer.UserID, err)
	p.sink.Emit(models.Notification{
		Title:      "⚠️ Mất kết nối dữ liệu",
		Body:       "Dữ liệu đang hiển thị có thể đã cũ. Vui lòng tải lại trang.",
		Severity:   models.SeverityWarning,
		Category:   string(p.category),
		TargetUser: p.viewer.UserID,
		CreatedAt:  time.Now(),
	})
}

// OnEvent xử lý một sự kiện change feed. Thứ tự theo từng entity do feed đảm
// bảo; cache cập nhật theo last-write-wins.
func (p *Projector) OnEvent(ev feed.Event) {
	if ev.Type == feed.EventRemoved {
		// Xóa document: evict cache, không bao giờ phát thông báo.
		delete(p.cache, ev.EntityID)
		if p.counter != nil {
			p.counter.Forget(p.category, ev.EntityID)
			if p.state == StateLive {
				p.countsChanged()
			}
		}
		return
	}

	status, ok := snapshotStatus(ev.Snapshot)
	if !ok {
		// Snapshot thiếu status: log và dùng mặc định an toàn,
		// không được làm sập subscription.
		log.Printf("projector(%s): %v", p.kind, &workflow.MalformedSnapshotError{EntityID: ev.EntityID, Field: "status"})
	}
	norm := workflow.NormalizeStatus(status, p.viewer.Role)
	ts := snapshotTime(ev.Snapshot)

	if p.state == StatePriming {
		// Replay ban đầu: chỉ ghi nhận, tuyệt đối không phát.
		// Timestamp vẫn được đưa vào bộ đếm để badge chưa đọc hoạt động
		// xuyên phiên (entity đổi sau watermark vẫn được đếm).
		p.cache[ev.EntityID] = norm
		p.observe(ev.EntityID, ts)
		return
	}

	switch ev.Type {
	case feed.EventCreated:
		p.handleCreated(ev, norm, ts)
	case feed.EventModified:
		prev, seen := p.cache[ev.EntityID]
		if !seen {
			// Lỗ hổng feed: entity chưa từng thấy thì coi như mới tạo.
			p.handleCreated(ev, norm, ts)
			return
		}
		if prev == norm {
			// Trạng thái theo góc nhìn này không đổi: nuốt, chống trùng lặp.
			return
		}
		if tpl, ok := StatusTemplate(p.kind, p.viewer.Role, norm); ok {
			p.emit(tpl, ev)
		}
		p.cache[ev.EntityID] = norm
		p.observe(ev.EntityID, ts)
		p.countsChanged()
	}
}

// handleCreated ghi cache cho mọi sự kiện created; chỉ phát thông báo khi
// vai trò người xem được phép biết có thực thể mới loại này.
func (p *Projector) handleCreated(ev feed.Event, norm string, ts time.Time) {
	p.cache[ev.EntityID] = norm
	p.observe(ev.EntityID, ts)
	p.countsChanged()

	tpl, ok := CreationTemplate(p.kind, p.viewer.Role)
	if !ok {
		return
	}
	if p.kind == workflow.KindIncident && p.viewer.Role == workflow.RoleWard {
		// Sự cố mới chỉ báo cho đúng phường của nó.
		if ward, _ := ev.Snapshot["wardID"].(string); ward != p.viewer.WardID {
			return
		}
	}
	p.emit(tpl, ev)
}

func (p *Projector) emit(tpl Template, ev feed.Event) {
	entityID := businessID(p.kind, ev)
	severity := tpl.Severity
	if p.kind == workflow.KindIncident {
		if s, _ := ev.Snapshot["severity"].(string); s == "critical" {
			severity = models.SeverityCritical
		}
	}
	p.sink.Emit(models.Notification{
		Title:       tpl.Title,
		Body:        fmt.Sprintf(tpl.Body, displayName(p.kind, ev.Snapshot)),
		Severity:    severity,
		Category:    string(p.category),
		EntityID:    entityID,
		ActionRoute: tpl.ActionRoute + "/" + entityID,
		TargetUser:  p.viewer.UserID,
		CreatedAt:   time.Now(),
	})
}

func (p *Projector) observe(entityID string, ts time.Time) {
	if p.counter != nil {
		p.counter.Observe(p.category, entityID, ts)
	}
}

func (p *Projector) countsChanged() {
	if p.counter != nil && p.CountsChanged != nil {
		p.CountsChanged()
	}
}

// snapshotStatus đọc field status; thiếu hoặc sai kiểu trả về ("", false).
func snapshotStatus(snap bson.M) (string, bool) {
	s, ok := snap["status"].(string)
	return s, ok
}

// snapshotTime lấy thời điểm thay đổi gần nhất từ snapshot.
// Change stream decode ngày thành primitive.DateTime, document Find có thể
// ra time.Time tùy codec, nên nhận cả hai.
func snapshotTime(snap bson.M) time.Time {
	for _, field := range []string{"updatedAt", "createdAt"} {
		switch v := snap[field].(type) {
		case primitive.DateTime:
			return v.Time()
		case time.Time:
			return v
		}
	}
	return time.Now()
}

// businessID ưu tiên mã nghiệp vụ (requestID/incidentID) để hiển thị và điều hướng.
func businessID(kind string, ev feed.Event) string {
	field := "requestID"
	if kind == workflow.KindIncident {
		field = "incidentID"
	}
	if id, ok := ev.Snapshot[field].(string); ok && id != "" {
		return id
	}
	return ev.EntityID
}

func displayName(kind string, snap bson.M) string {
	if kind == workflow.KindDeviceRequest {
		deviceType, _ := snap["deviceType"].(string)
		if deviceType == "" {
			deviceType = "thiết bị"
		}
		switch q := snap["quantity"].(type) {
		case int32:
			return fmt.Sprintf("%s (x%d)", deviceType, q)
		case int64:
			return fmt.Sprintf("%s (x%d)", deviceType, q)
		case int:
			return fmt.Sprintf("%s (x%d)", deviceType, q)
		}
		return deviceType
	}
	if name, ok := snap["deviceName"].(string); ok && name != "" {
		return name
	}
	if id, ok := snap["incidentID"].(string); ok && id != "" {
		return id
	}
	return "thiết bị"
}
