// server/cmd/api/main.go
package main

import (
	"context"
	"log"
	"time"

	"device-manager-api-server/config"
	"device-manager-api-server/internal/api/routes"
	"device-manager-api-server/internal/auth"
	"device-manager-api-server/internal/database"
	"device-manager-api-server/internal/feed"
	"device-manager-api-server/internal/notify"
	"device-manager-api-server/internal/socket"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func main() {
	// 1. Load biến môi trường từ file .env (nếu có) rồi đến config
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}

	if cfg.JWT.Secret != "" {
		auth.JwtSecret = []byte(cfg.JWT.Secret)
	}

	// 2. Kết nối MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.Fatalf("Failed to ping MongoDB: %v", err)
	}
	log.Println("Connected to MongoDB")

	db := client.Database(cfg.Mongo.DBName)

	// 3. Seed tài khoản trung tâm mặc định
	if err := database.SeedCenterAdmin(db); err != nil {
		log.Fatalf("Failed to seed center admin: %v", err)
	}

	// 4. Khởi tạo hub websocket, change feed adapter và watermark store
	wsHub := socket.NewHub()

	feedAdapter := feed.NewMongoAdapter(db)
	if cfg.Feed.MaxRetries > 0 {
		feedAdapter.MaxRetries = cfg.Feed.MaxRetries
	}
	feedAdapter.RetryDelay = cfg.FeedRetryDelay()

	store := notify.NewMongoWatermarkStore(db)

	// 5. Truyền tất cả các thành phần cần thiết vào router
	router := routes.SetupRouter(cfg, db, wsHub, feedAdapter, store)

	// 6. Start server
	log.Printf("Starting API server on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
