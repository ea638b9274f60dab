// server/internal/api/routes/routes.go
package routes

import (
	"device-manager-api-server/config"
	"device-manager-api-server/internal/api/handlers"
	"device-manager-api-server/internal/api/middleware"
	"device-manager-api-server/internal/feed"
	"device-manager-api-server/internal/notify"
	"device-manager-api-server/internal/socket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// SetupRouter nhận vào các thành phần phụ thuộc và thiết lập các route
func SetupRouter(
	cfg config.Config,
	db *mongo.Database,
	wsHub *socket.Hub,
	feedAdapter feed.Adapter,
	store notify.WatermarkStore,
) *gin.Engine {
	router := gin.Default()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	// Khởi tạo các handlers
	userHandler := &handlers.UserHandler{DB: db, Config: cfg}
	wardHandler := &handlers.WardHandler{DB: db}
	requestHandler := &handlers.RequestHandler{DB: db, Hub: wsHub}
	incidentHandler := &handlers.IncidentHandler{DB: db, Hub: wsHub}
	notificationHandler := &handlers.NotificationHandler{DB: db, Store: store}
	webSocketHandler := &handlers.WebSocketHandler{Hub: wsHub, Feed: feedAdapter, Store: store}

	apiV1 := router.Group("/api/v1")
	{
		// Route cho WebSocket (token qua query param, tự xác thực bên trong)
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		// Nhóm API authentication
		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", userHandler.Login)
		}

		// === CÁC ROUTE YÊU CẦU XÁC THỰC (PROTECTED) ===

		// Nhóm API quản trị, yêu cầu vai trò "center"
		admin := apiV1.Group("/admin")
		admin.Use(middleware.Authenticate())
		admin.Use(middleware.Authorize("center"))
		{
			admin.POST("/users", userHandler.CreateUser)

			wards := admin.Group("/wards")
			{
				wards.POST("/", wardHandler.CreateWard)
				wards.GET("/", wardHandler.GetAllWards)
			}
		}

		// Nhóm các API nghiệp vụ chính
		businessRoutes := apiV1.Group("/")
		businessRoutes.Use(middleware.Authenticate())
		{
			// Device request management
			requests := businessRoutes.Group("/requests")
			{
				// Ward tạo yêu cầu và xem yêu cầu của phường mình
				wardRequestRoutes := requests.Group("/")
				wardRequestRoutes.Use(middleware.Authorize("ward"))
				{
					wardRequestRoutes.POST("/", requestHandler.CreateDeviceRequest)
					wardRequestRoutes.GET("/my-ward", requestHandler.GetMyWardRequests)
					wardRequestRoutes.POST("/:id/receive", requestHandler.ConfirmReceived)
				}

				// Center duyệt, từ chối và cấp phát
				centerRequestRoutes := requests.Group("/")
				centerRequestRoutes.Use(middleware.Authorize("center"))
				{
					centerRequestRoutes.GET("/", requestHandler.GetAllRequests)
					centerRequestRoutes.POST("/:id/approve", requestHandler.ApproveRequest)
					centerRequestRoutes.POST("/:id/reject", requestHandler.RejectRequest)
					centerRequestRoutes.POST("/:id/allocate", requestHandler.AllocateDevices)
				}

				requests.GET("/:id", middleware.Authorize("center", "ward"), requestHandler.GetRequestByID)
			}

			// Incident management
			incidents := businessRoutes.Group("/incidents")
			{
				userIncidentRoutes := incidents.Group("/")
				userIncidentRoutes.Use(middleware.Authorize("user"))
				{
					userIncidentRoutes.POST("/", incidentHandler.CreateIncident)
					userIncidentRoutes.GET("/mine", incidentHandler.GetMyIncidents)
				}

				wardIncidentRoutes := incidents.Group("/")
				wardIncidentRoutes.Use(middleware.Authorize("ward"))
				{
					wardIncidentRoutes.GET("/my-ward", incidentHandler.GetMyWardIncidents)
					wardIncidentRoutes.POST("/:id/ward-approve", incidentHandler.WardApprove)
					wardIncidentRoutes.POST("/:id/ward-reject", incidentHandler.WardReject)
				}

				centerIncidentRoutes := incidents.Group("/")
				centerIncidentRoutes.Use(middleware.Authorize("center"))
				{
					centerIncidentRoutes.GET("/", incidentHandler.GetAllIncidents)
					centerIncidentRoutes.POST("/:id/investigate", incidentHandler.Investigate)
					centerIncidentRoutes.POST("/:id/progress", incidentHandler.Progress)
					centerIncidentRoutes.POST("/:id/resolve", incidentHandler.Resolve)
					centerIncidentRoutes.POST("/:id/close", incidentHandler.Close)
				}

				incidents.GET("/:id", incidentHandler.GetIncidentByID)
				incidents.POST("/:id/viewed", incidentHandler.MarkViewed)
			}

			// Notification read state
			notifications := businessRoutes.Group("/notifications")
			{
				notifications.GET("/unread", notificationHandler.GetUnreadCounts)
				notifications.POST("/:category/ack", notificationHandler.Acknowledge)
			}
		}
	}

	return router
}
