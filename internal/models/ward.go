package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ward là đơn vị hành chính quản lý thiết bị và duyệt sự cố.
type Ward struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WardID    string             `bson:"wardID" json:"wardID"`
	Name      string             `bson:"name" json:"name"`
	Address   string             `bson:"address,omitempty" json:"address"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
