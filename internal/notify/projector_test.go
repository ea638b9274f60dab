package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"device-manager-api-server/internal/feed"
	"device-manager-api-server/internal/models"
	"device-manager-api-server/internal/workflow"
)

// captureSink gom thông báo phát ra để test kiểm tra.
type captureSink struct {
	emitted []models.Notification
}

func (s *captureSink) Emit(n models.Notification) { s.emitted = append(s.emitted, n) }

func requestEvent(id string, evType feed.EventType, status string) feed.Event {
	return feed.Event{
		EntityID: id,
		Type:     evType,
		Snapshot: bson.M{
			"requestID":  id,
			"wardID":     "ward_1",
			"deviceType": "Laptop",
			"quantity":   int32(2),
			"status":     status,
			"updatedAt":  time.Now(),
		},
	}
}

func incidentEvent(id string, evType feed.EventType, status, wardID string) feed.Event {
	return feed.Event{
		EntityID: id,
		Type:     evType,
		Snapshot: bson.M{
			"incidentID": id,
			"wardID":     wardID,
			"deviceName": "Máy in HP-02",
			"severity":   "high",
			"status":     status,
			"updatedAt":  time.Now(),
		},
	}
}

func TestProjector_NoNotifyOnPrime(t *testing.T) {
	for n := 0; n <= 3; n++ {
		t.Run(fmt.Sprintf("%d documents", n), func(t *testing.T) {
			sink := &captureSink{}
			p := NewProjector(workflow.KindDeviceRequest, Viewer{Role: workflow.RoleCenter, UserID: "center-1"}, sink, nil)

			if p.State() != StatePriming {
				t.Fatalf("initial state = %q, want priming", p.State())
			}
			for i := 0; i < n; i++ {
				p.OnEvent(requestEvent(fmt.Sprintf("r%d", i), feed.EventCreated, "pending"))
			}
			p.MarkLive()

			if len(sink.emitted) != 0 {
				t.Errorf("priming emitted %d notifications, want 0", len(sink.emitted))
			}
			if p.CacheSize() != n {
				t.Errorf("cache size = %d, want %d", p.CacheSize(), n)
			}
			if p.State() != StateLive {
				t.Errorf("state after MarkLive = %q, want live", p.State())
			}
		})
	}
}

// Kịch bản đầy đủ theo góc nhìn phường: replay 2 yêu cầu, sau đó trung tâm duyệt.
func TestProjector_WardApprovalScenario(t *testing.T) {
	sink := &captureSink{}
	p := NewProjector(workflow.KindDeviceRequest, Viewer{Role: workflow.RoleWard, WardID: "ward_1", UserID: "ward-staff"}, sink, nil)

	p.OnEvent(requestEvent("r1", feed.EventCreated, "pending"))
	p.OnEvent(requestEvent("r2", feed.EventCreated, "approved"))
	p.MarkLive()

	if len(sink.emitted) != 0 {
		t.Fatalf("priming emitted %d notifications", len(sink.emitted))
	}
	if s, _ := p.CachedStatus("r1"); s != "pending" {
		t.Fatalf("cache[r1] = %q, want pending", s)
	}

	// Trung tâm duyệt r1: raw center_approved, phường thấy approved != pending.
	p.OnEvent(requestEvent("r1", feed.EventModified, "center_approved"))
	if len(sink.emitted) != 1 {
		t.Fatalf("emitted %d notifications, want 1", len(sink.emitted))
	}
	n := sink.emitted[0]
	if n.Title != "✅ Yêu cầu đã được duyệt" {
		t.Errorf("title = %q", n.Title)
	}
	if n.EntityID != "r1" || n.Category != "requests" {
		t.Errorf("notification fields: %+v", n)
	}
	if s, _ := p.CachedStatus("r1"); s != "approved" {
		t.Errorf("cache[r1] = %q, want approved", s)
	}

	// Ghi lại cùng trạng thái: giá trị chuẩn hóa không đổi, phải nuốt.
	p.OnEvent(requestEvent("r1", feed.EventModified, "center_approved"))
	if len(sink.emitted) != 1 {
		t.Errorf("duplicate modified re-notified: %d notifications", len(sink.emitted))
	}
}

// Trung tâm so sánh theo trạng thái thô: center_approved -> approved vẫn là
// thay đổi với trung tâm dù giá trị chuẩn hóa giống hệt.
func TestProjector_CenterSeesRawStatusChanges(t *testing.T) {
	sink := &captureSink{}
	p := NewProjector(workflow.KindDeviceRequest, Viewer{Role: workflow.RoleCenter, UserID: "center-1"}, sink, nil)

	p.OnEvent(requestEvent("r1", feed.EventCreated, "pending"))
	p.MarkLive()

	p.OnEvent(requestEvent("r1", feed.EventModified, "center_approved"))
	if len(sink.emitted) != 1 {
		t.Fatalf("emitted %d, want 1", len(sink.emitted))
	}
	if sink.emitted[0].Title != "✅ Đã duyệt yêu cầu" {
		t.Errorf("title = %q, want raw-variant template", sink.emitted[0].Title)
	}

	p.OnEvent(requestEvent("r1", feed.EventModified, "approved"))
	if len(sink.emitted) != 2 {
		t.Errorf("raw change center_approved -> approved not re-notified for center (emitted %d)", len(sink.emitted))
	}

	// Phường thì ngược lại: cùng chuỗi sự kiện chỉ ra một thông báo.
	wardSink := &captureSink{}
	wp := NewProjector(workflow.KindDeviceRequest, Viewer{Role: workflow.RoleWard, WardID: "ward_1", UserID: "ward-staff"}, wardSink, nil)
	wp.OnEvent(requestEvent("r1", feed.EventCreated, "pending"))
	wp.MarkLive()
	wp.OnEvent(requestEvent("r1", feed.EventModified, "center_approved"))
	wp.OnEvent(requestEvent("r1", feed.EventModified, "approved"))
	if len(wardSink.emitted) != 1 {
		t.Errorf("ward emitted %d, want exactly 1", len(wardSink.emitted))
	}
}

func TestProjector_CreationAuthorization(t *testing.T) {
	// Yêu cầu thiết bị mới: chỉ trung tâm được báo.
	centerSink := &captureSink{}
	cp := NewProjector(workflow.KindDeviceRequest, Viewer{Role: workflow.RoleCenter, UserID: "center-1"}, centerSink, nil)
	cp.MarkLive()
	cp.OnEvent(requestEvent("r1", feed.EventCreated, "pending"))
	if len(centerSink.emitted) != 1 {
		t.Errorf("center emitted %d on new request, want 1", len(centerSink.emitted))
	}

	wardSink := &captureSink{}
	wp := NewProjector(workflow.KindDeviceRequest, Viewer{Role: workflow.RoleWard, WardID: "ward_1", UserID: "ward-staff"}, wardSink, nil)
	wp.MarkLive()
	wp.OnEvent(requestEvent("r1", feed.EventCreated, "pending"))
	if len(wardSink.emitted) != 0 {
		t.Errorf("ward emitted %d on new request, want 0", len(wardSink.emitted))
	}
	if wp.CacheSize() != 1 {
		t.Errorf("cache must record entity even without notification")
	}

	// Sự cố mới: chỉ phường trùng wardID được báo.
	matchSink := &captureSink{}
	mp := NewProjector(workflow.KindIncident, Viewer{Role: workflow.RoleWard, WardID: "ward_1", UserID: "ward-staff"}, matchSink, nil)
	mp.MarkLive()
	mp.OnEvent(incidentEvent("i1", feed.EventCreated, "pending_ward_approval", "ward_1"))
	if len(matchSink.emitted) != 1 {
		t.Errorf("matching ward emitted %d, want 1", len(matchSink.emitted))
	}

	otherSink := &captureSink{}
	op := NewProjector(workflow.KindIncident, Viewer{Role: workflow.RoleWard, WardID: "ward_2", UserID: "other-staff"}, otherSink, nil)
	op.MarkLive()
	op.OnEvent(incidentEvent("i1", feed.EventCreated, "pending_ward_approval", "ward_1"))
	if len(otherSink.emitted) != 0 {
		t.Errorf("other ward emitted %d, want 0", len(otherSink.emitted))
	}
}

func TestProjector_ModifiedForUnseenEntityTreatedAsCreated(t *testing.T) {
	sink := &captureSink{}
	p := NewProjector(workflow.KindIncident, Viewer{Role: workflow.RoleWard, WardID: "ward_1", UserID: "ward-staff"}, sink, nil)
	p.MarkLive()

	// Lỗ hổng feed: modified cho entity chưa thấy bao giờ.
	p.OnEvent(incidentEvent("i9", feed.EventModified, "pending_ward_approval", "ward_1"))
	if len(sink.emitted) != 1 {
		t.Errorf("unseen modified emitted %d, want 1 (treated as created)", len(sink.emitted))
	}
	if s, ok := p.CachedStatus("i9"); !ok || s != "pending_ward_approval" {
		t.Errorf("cache[i9] = %q, %v", s, ok)
	}
}

func TestProjector_RemovedEvictsWithoutNotify(t *testing.T) {
	sink := &captureSink{}
	p := NewProjector(workflow.KindDeviceRequest, Viewer{Role: workflow.RoleCenter, UserID: "center-1"}, sink, nil)
	p.OnEvent(requestEvent("r1", feed.EventCreated, "pending"))
	p.MarkLive()

	p.OnEvent(feed.Event{EntityID: "r1", Type: feed.EventRemoved})
	if len(sink.emitted) != 0 {
		t.Errorf("removal emitted %d notifications, want 0", len(sink.emitted))
	}
	if p.CacheSize() != 0 {
		t.Errorf("cache size = %d after removal, want 0", p.CacheSize())
	}
}

func TestProjector_MalformedSnapshotDoesNotCrash(t *testing.T) {
	sink := &captureSink{}
	p := NewProjector(workflow.KindDeviceRequest, Viewer{Role: workflow.RoleWard, WardID: "ward_1", UserID: "ward-staff"}, sink, nil)
	p.MarkLive()

	// Snapshot thiếu status: dùng mặc định an toàn, subscription sống tiếp.
	p.OnEvent(feed.Event{
		EntityID: "r1",
		Type:     feed.EventModified,
		Snapshot: bson.M{"requestID": "r1", "wardID": "ward_1"},
	})
	if _, ok := p.CachedStatus("r1"); !ok {
		t.Error("entity with malformed snapshot not cached")
	}

	// Sự kiện tiếp theo có status hợp lệ vẫn được xử lý bình thường.
	p.OnEvent(requestEvent("r1", feed.EventModified, "center_approved"))
	if len(sink.emitted) != 1 {
		t.Errorf("emitted %d after recovery, want 1", len(sink.emitted))
	}
}

func TestProjector_CriticalIncidentUpgradesSeverity(t *testing.T) {
	sink := &captureSink{}
	p := NewProjector(workflow.KindIncident, Viewer{Role: workflow.RoleCenter, UserID: "center-1"}, sink, nil)
	p.OnEvent(incidentEvent("i1", feed.EventCreated, "pending_ward_approval", "ward_1"))
	p.MarkLive()

	ev := incidentEvent("i1", feed.EventModified, "ward_approved", "ward_1")
	ev.Snapshot["severity"] = "critical"
	p.OnEvent(ev)

	if len(sink.emitted) != 1 {
		t.Fatalf("emitted %d, want 1", len(sink.emitted))
	}
	if sink.emitted[0].Severity != models.SeverityCritical {
		t.Errorf("severity = %q, want critical", sink.emitted[0].Severity)
	}
}

// Bộ đếm chưa đọc trên đường socket phải được tiêu thụ: mỗi lần nó thay đổi
// khi Live (và một lần khi hết priming) hook CountsChanged phải được gọi để
// caller đẩy số badge mới xuống client.
func TestProjector_CountsChangedSignal(t *testing.T) {
	ctx := context.Background()
	counter := NewUnreadCounter(NewMemoryWatermarkStore(), "ward-staff")
	sink := &captureSink{}
	p := NewProjector(workflow.KindDeviceRequest, Viewer{Role: workflow.RoleWard, WardID: "ward_1", UserID: "ward-staff"}, sink, counter)

	calls := 0
	p.CountsChanged = func() { calls++ }

	// Priming nạp bộ đếm nhưng chưa đẩy gì xuống client.
	p.OnEvent(requestEvent("r1", feed.EventCreated, "pending"))
	if calls != 0 {
		t.Fatalf("CountsChanged fired %d times during priming, want 0", calls)
	}

	// Hết priming: đẩy một lần để client có badge từ dữ liệu replay.
	p.MarkLive()
	if calls != 1 {
		t.Fatalf("CountsChanged after MarkLive = %d, want 1", calls)
	}
	if count, err := counter.Count(ctx, CategoryRequests); err != nil || count != 1 {
		t.Fatalf("count from replay = %d (err %v), want 1", count, err)
	}

	// Sự kiện đáng kể khi Live: đẩy tiếp.
	p.OnEvent(requestEvent("r1", feed.EventModified, "center_approved"))
	if calls != 2 {
		t.Errorf("CountsChanged after live modified = %d, want 2", calls)
	}

	// Ghi lại cùng trạng thái chuẩn hóa: không đáng kể, không đẩy.
	p.OnEvent(requestEvent("r1", feed.EventModified, "center_approved"))
	if calls != 2 {
		t.Errorf("CountsChanged fired on suppressed duplicate (calls = %d)", calls)
	}

	// Xóa document: bộ đếm quên entity, badge phải được cập nhật.
	p.OnEvent(feed.Event{EntityID: "r1", Type: feed.EventRemoved})
	if calls != 3 {
		t.Errorf("CountsChanged after removal = %d, want 3", calls)
	}
	if count, _ := counter.Count(ctx, CategoryRequests); count != 0 {
		t.Errorf("count after removal = %d, want 0", count)
	}
}

func TestProjector_StaleEmitsWarning(t *testing.T) {
	sink := &captureSink{}
	p := NewProjector(workflow.KindDeviceRequest, Viewer{Role: workflow.RoleWard, WardID: "ward_1", UserID: "ward-staff"}, sink, nil)

	p.OnStale(feed.ErrDisconnected)
	if len(sink.emitted) != 1 {
		t.Fatalf("emitted %d, want 1", len(sink.emitted))
	}
	if sink.emitted[0].Severity != models.SeverityWarning || sink.emitted[0].TargetUser != "ward-staff" {
		t.Errorf("stale warning fields: %+v", sink.emitted[0])
	}
}
