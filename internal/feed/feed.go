// Package feed cung cấp luồng sự kiện thay đổi document cho notification projector.
// Adapter đảm bảo: replay toàn bộ kết quả hiện có dưới dạng sự kiện created
// (priming burst) ngay sau khi subscribe, sau đó mới tới các sự kiện thật.
package feed

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

// EventType phân loại sự kiện từ change feed.
type EventType string

const (
	EventCreated  EventType = "created"
	EventModified EventType = "modified"
	EventRemoved  EventType = "removed"
)

// ErrDisconnected báo kết nối change feed bị đứt. Adapter tự resubscribe
// (kèm priming lại); lỗi chỉ nổi lên subscriber khi đã hết số lần thử.
var ErrDisconnected = errors.New("change feed disconnected")

// Event là một thay đổi đã commit trên document, kèm snapshot đầy đủ.
// Snapshot là trạng thái sau thay đổi, không phải diff.
type Event struct {
	EntityID string
	Type     EventType
	Snapshot bson.M
}

// Query xác định một subscription: collection nào, lọc theo field nào.
type Query struct {
	Collection string
	Filter     bson.M
}

// Subscriber nhận sự kiện từ adapter. Các callback được gọi tuần tự trên
// một goroutine duy nhất cho mỗi subscription, không bao giờ chồng lấn.
type Subscriber interface {
	// OnEvent nhận từng sự kiện theo đúng thứ tự feed giao.
	OnEvent(ev Event)
	// MarkLive được gọi đúng một lần sau mỗi đợt priming, khi toàn bộ
	// replay ban đầu đã được giao xong.
	MarkLive()
	// OnStale được gọi khi adapter đã hết số lần resubscribe; dữ liệu
	// đang hiển thị có thể cũ.
	OnStale(err error)
}

// Unsubscribe dừng giao sự kiện ngay lập tức và hủy subscription.
// Sự kiện đang bay tại thời điểm hủy bị bỏ, lần subscribe sau sẽ priming lại.
type Unsubscribe func()

// Adapter mở các subscription trên nguồn dữ liệu.
type Adapter interface {
	Subscribe(query Query, sub Subscriber) (Unsubscribe, error)
}
