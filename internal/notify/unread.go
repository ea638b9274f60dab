package notify

import (
	"context"
	"sync"
	"time"

	"device-manager-api-server/internal/workflow"
)

// Category gom thông báo theo màn hình danh sách tương ứng.
type Category string

const (
	CategoryRequests  Category = "requests"
	CategoryIncidents Category = "incidents"
)

// CategoryForKind ánh xạ loại thực thể sang category thông báo.
func CategoryForKind(kind string) Category {
	if kind == workflow.KindIncident {
		return CategoryIncidents
	}
	return CategoryRequests
}

// ValidCategory kiểm tra giá trị category từ client.
func ValidCategory(s string) bool {
	return Category(s) == CategoryRequests || Category(s) == CategoryIncidents
}

// WatermarkStore lưu mốc thời gian đã xem theo từng user, từng category.
// Ghi theo last-write-wins; thua một lần ghi chỉ làm badge tắt muộn hơn.
type WatermarkStore interface {
	Get(ctx context.Context, userID string, category Category) (time.Time, error)
	Set(ctx context.Context, userID string, category Category, ts time.Time) error
}

// UnreadCounter đếm số entity có thay đổi đáng kể sau watermark của user.
// Tách khỏi việc phát toast: user chỉ cần mở màn hình danh sách là badge
// về 0, không cần đã thấy từng toast một.
type UnreadCounter struct {
	mu     sync.Mutex
	store  WatermarkStore
	userID string
	latest map[Category]map[string]time.Time
}

func NewUnreadCounter(store WatermarkStore, userID string) *UnreadCounter {
	return &UnreadCounter{
		store:  store,
		userID: userID,
		latest: make(map[Category]map[string]time.Time),
	}
}

// Observe ghi nhận thời điểm thay đổi đáng kể mới nhất của một entity.
// Thời điểm cũ hơn cái đã ghi thì bỏ qua.
func (c *UnreadCounter) Observe(category Category, entityID string, ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byEntity, ok := c.latest[category]
	if !ok {
		byEntity = make(map[string]time.Time)
		c.latest[category] = byEntity
	}
	if prev, ok := byEntity[entityID]; !ok || ts.After(prev) {
		byEntity[entityID] = ts
	}
}

// Forget gỡ entity khỏi bộ đếm (document đã bị xóa).
func (c *UnreadCounter) Forget(category Category, entityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.latest[category], entityID)
}

// Count trả về số entity có thay đổi sau watermark hiện tại.
func (c *UnreadCounter) Count(ctx context.Context, category Category) (int, error) {
	watermark, err := c.store.Get(ctx, c.userID, category)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, ts := range c.latest[category] {
		if ts.After(watermark) {
			count++
		}
	}
	return count, nil
}

// Acknowledge đặt watermark = bây giờ; Count cho category này về 0.
func (c *UnreadCounter) Acknowledge(ctx context.Context, category Category) error {
	return c.store.Set(ctx, c.userID, category, time.Now())
}
