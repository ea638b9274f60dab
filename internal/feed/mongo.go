package feed

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAdapter hiện thực Adapter trên MongoDB change stream.
// Mỗi subscription chạy trên một goroutine riêng: replay kết quả Find ban đầu
// làm priming burst, rồi chuyển sang đọc change stream.
type MongoAdapter struct {
	DB *mongo.Database
	// MaxRetries là số lần resubscribe khi stream đứt trước khi báo stale.
	MaxRetries int
	RetryDelay time.Duration
}

func NewMongoAdapter(db *mongo.Database) *MongoAdapter {
	return &MongoAdapter{
		DB:         db,
		MaxRetries: 5,
		RetryDelay: 2 * time.Second,
	}
}

// Subscribe mở subscription và trả về hàm hủy. Hàm hủy dừng giao sự kiện
// ngay lập tức; goroutine nền tự thoát.
func (a *MongoAdapter) Subscribe(query Query, sub Subscriber) (Unsubscribe, error) {
	if query.Collection == "" {
		return nil, fmt.Errorf("feed: query missing collection")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go a.run(ctx, query, sub)

	return Unsubscribe(cancel), nil
}

func (a *MongoAdapter) run(ctx context.Context, query Query, sub Subscriber) {
	retries := 0
	for {
		err := a.stream(ctx, query, sub)
		if ctx.Err() != nil {
			return // đã unsubscribe
		}

		retries++
		if retries > a.MaxRetries {
			log.Printf("feed: subscription on %s gave up after %d retries: %v", query.Collection, a.MaxRetries, err)
			sub.OnStale(fmt.Errorf("%w: %v", ErrDisconnected, err))
			return
		}

		log.Printf("feed: subscription on %s disconnected (%v), resubscribing (%d/%d)", query.Collection, err, retries, a.MaxRetries)
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.RetryDelay):
		}
	}
}

// stream thực hiện một vòng đời subscription: mở change stream trước,
// replay Find sau, để không lọt thay đổi giữa hai bước. Mỗi lần gọi lại
// hàm này (sau disconnect) là một đợt priming mới. Bắt buộc, nếu không
// client sẽ nhận bão thông báo sau khi reconnect.
func (a *MongoAdapter) stream(ctx context.Context, query Query, sub Subscriber) error {
	coll := a.DB.Collection(query.Collection)

	cs, err := coll.Watch(ctx, watchPipeline(query.Filter), options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return err
	}
	defer cs.Close(context.Background())

	// Priming: replay toàn bộ kết quả hiện có dưới dạng sự kiện created.
	filter := query.Filter
	if filter == nil {
		filter = bson.M{}
	}
	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		return err
	}
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			log.Printf("feed: failed to decode priming document on %s: %v", query.Collection, err)
			continue
		}
		sub.OnEvent(Event{EntityID: documentID(doc), Type: EventCreated, Snapshot: doc})
	}
	if err := cursor.Err(); err != nil {
		cursor.Close(context.Background())
		return err
	}
	cursor.Close(context.Background())

	sub.MarkLive()

	for cs.Next(ctx) {
		var change changeDocument
		if err := cs.Decode(&change); err != nil {
			log.Printf("feed: failed to decode change event on %s: %v", query.Collection, err)
			continue
		}
		if ev, ok := translate(change); ok {
			sub.OnEvent(ev)
		}
	}
	if err := cs.Err(); err != nil {
		return err
	}
	return ErrDisconnected
}

// changeDocument là cấu trúc sự kiện thô của MongoDB change stream.
type changeDocument struct {
	OperationType string `bson:"operationType"`
	FullDocument  bson.M `bson:"fullDocument"`
	DocumentKey   struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
}

// translate ánh xạ operationType của MongoDB sang EventType của feed.
func translate(change changeDocument) (Event, bool) {
	id := change.DocumentKey.ID.Hex()
	switch change.OperationType {
	case "insert":
		return Event{EntityID: id, Type: EventCreated, Snapshot: change.FullDocument}, true
	case "update", "replace":
		return Event{EntityID: id, Type: EventModified, Snapshot: change.FullDocument}, true
	case "delete":
		return Event{EntityID: id, Type: EventRemoved}, true
	default:
		return Event{}, false
	}
}

// watchPipeline chuyển filter của query thành $match trên fullDocument.
// Sự kiện delete không còn fullDocument nên luôn được cho qua: evict một
// entity ngoài phạm vi chỉ là no-op phía projector.
func watchPipeline(filter bson.M) mongo.Pipeline {
	if len(filter) == 0 {
		return mongo.Pipeline{}
	}
	full := bson.M{}
	for k, v := range filter {
		full["fullDocument."+k] = v
	}
	match := bson.M{"$or": bson.A{full, bson.M{"operationType": "delete"}}}
	return mongo.Pipeline{bson.D{{Key: "$match", Value: match}}}
}

func documentID(doc bson.M) string {
	if oid, ok := doc["_id"].(primitive.ObjectID); ok {
		return oid.Hex()
	}
	if s, ok := doc["_id"].(string); ok {
		return s
	}
	return ""
}
