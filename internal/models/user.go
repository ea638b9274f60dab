package models

// User tương ứng với document trong MongoDB.
type User struct {
	Email    string `bson:"email" json:"email"`
	Name     string `bson:"name" json:"name"`
	Password string `bson:"password" json:"-"`
	Role     string `bson:"role" json:"role"` // center, ward, user
	WardID   string `bson:"wardID,omitempty" json:"wardID"`
	UserID   string `bson:"userID" json:"userID"`
	Status   string `bson:"status" json:"status"`
}
