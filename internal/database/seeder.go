// server/internal/database/seeder.go
package database

import (
	"context"
	"log"

	"device-manager-api-server/internal/auth"
	"device-manager-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func SeedCenterAdmin(db *mongo.Database) error {
	userCollection := db.Collection("users")
	adminEmail := "center@example.com"

	// Kiểm tra xem tài khoản trung tâm đã tồn tại chưa
	count, err := userCollection.CountDocuments(context.Background(), bson.M{"email": adminEmail})
	if err != nil {
		return err
	}

	if count > 0 {
		log.Println("Center admin already exists. Seeding skipped.")
		return nil
	}

	// Tạo tài khoản trung tâm nếu chưa có
	log.Println("Center admin not found. Seeding...")
	hashedPassword, err := auth.HashPassword("centeradminpassword") // Đặt một password mặc định
	if err != nil {
		return err
	}

	admin := models.User{
		Email:    adminEmail,
		Name:     "Center Admin",
		Password: hashedPassword,
		Role:     "center",
		UserID:   "center-admin",
		Status:   "active",
	}

	_, err = userCollection.InsertOne(context.Background(), admin)
	if err != nil {
		return err
	}

	log.Println("Center admin seeded successfully.")
	return nil
}
