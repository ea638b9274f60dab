// server/internal/api/handlers/user_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"device-manager-api-server/config"
	"device-manager-api-server/internal/auth"
	"device-manager-api-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserHandler struct {
	DB     *mongo.Database
	Config config.Config
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type CreateUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`   // "ward" hoặc "user"
	WardID   string `json:"wardID"`                    // Bắt buộc với role "ward"
}

// Login xác thực email/password và trả về JWT.
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	err := h.DB.Collection("users").FindOne(c.Request.Context(), bson.M{"email": strings.ToLower(req.Email)}).Decode(&user)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if user.Status != "active" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is disabled"})
		return
	}

	token, err := auth.GenerateJWT(user.Email, user.Role, user.WardID, user.UserID, h.Config.JWTExpiration())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"email":  user.Email,
			"name":   user.Name,
			"role":   user.Role,
			"wardID": user.WardID,
			"userID": user.UserID,
		},
	})
}

// CreateUser tạo tài khoản mới. Chỉ center được gọi (bảo vệ bởi middleware).
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Role != "ward" && req.Role != "user" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be 'ward' or 'user'"})
		return
	}
	if req.Role == "ward" && req.WardID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wardID is required for ward accounts"})
		return
	}

	email := strings.ToLower(req.Email)
	count, err := h.DB.Collection("users").CountDocuments(c.Request.Context(), bson.M{"email": email})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check existing user", "details": err.Error()})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		Email:    email,
		Name:     req.Name,
		Password: hashed,
		Role:     req.Role,
		WardID:   req.WardID,
		UserID:   fmt.Sprintf("%s-%s", req.Role, uuid.New().String()[:8]),
		Status:   "active",
	}

	if _, err := h.DB.Collection("users").InsertOne(c.Request.Context(), user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"userID": user.UserID,
		"email":  user.Email,
	})
}

type WardHandler struct {
	DB *mongo.Database
}

type CreateWardRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
}

func (h *WardHandler) CreateWard(c *gin.Context) {
	var req CreateWardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ward := models.Ward{
		WardID:    fmt.Sprintf("WARD-%s", strings.ToUpper(uuid.New().String()[:8])),
		Name:      req.Name,
		Address:   req.Address,
		CreatedAt: time.Now(),
	}

	if _, err := h.DB.Collection("wards").InsertOne(c.Request.Context(), ward); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create ward", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "wardID": ward.WardID})
}

func (h *WardHandler) GetAllWards(c *gin.Context) {
	cursor, err := h.DB.Collection("wards").Find(c.Request.Context(), bson.M{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query wards", "details": err.Error()})
		return
	}
	defer cursor.Close(c.Request.Context())

	var wards []models.Ward
	if err := cursor.All(c.Request.Context(), &wards); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode wards", "details": err.Error()})
		return
	}

	if wards == nil {
		wards = []models.Ward{}
	}
	c.JSON(http.StatusOK, wards)
}
