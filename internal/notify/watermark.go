package notify

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoWatermarkStore lưu watermark trong collection "watermarks".
// Một document cho mỗi cặp (userID, category), upsert khi ghi.
type MongoWatermarkStore struct {
	coll *mongo.Collection
}

func NewMongoWatermarkStore(db *mongo.Database) *MongoWatermarkStore {
	return &MongoWatermarkStore{coll: db.Collection("watermarks")}
}

type watermarkDoc struct {
	UserID    string    `bson:"userID"`
	Category  string    `bson:"category"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (s *MongoWatermarkStore) Get(ctx context.Context, userID string, category Category) (time.Time, error) {
	var doc watermarkDoc
	err := s.coll.FindOne(ctx, bson.M{"userID": userID, "category": string(category)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		// Chưa từng acknowledge: mọi thay đổi đều tính là chưa đọc.
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return doc.UpdatedAt, nil
}

func (s *MongoWatermarkStore) Set(ctx context.Context, userID string, category Category, ts time.Time) error {
	filter := bson.M{"userID": userID, "category": string(category)}
	update := bson.M{"$set": bson.M{"updatedAt": ts}}
	_, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// MemoryWatermarkStore là bản in-memory cho test và môi trường dev.
type MemoryWatermarkStore struct {
	mu    sync.Mutex
	marks map[string]time.Time
}

func NewMemoryWatermarkStore() *MemoryWatermarkStore {
	return &MemoryWatermarkStore{marks: make(map[string]time.Time)}
}

func (s *MemoryWatermarkStore) Get(_ context.Context, userID string, category Category) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marks[userID+"/"+string(category)], nil
}

func (s *MemoryWatermarkStore) Set(_ context.Context, userID string, category Category, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[userID+"/"+string(category)] = ts
	return nil
}
