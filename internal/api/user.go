package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vision-assist/backend/internal/models"
	"vision-assist/backend/internal/service"
	apperrors "vision-assist/backend/pkg/errors"
	"vision-assist/backend/pkg/jwt"
	"vision-assist/backend/pkg/logger"
	"vision-assist/backend/pkg/middleware"
)

// UserHandler handles account endpoints
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(service *service.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// RegisterRoutes mounts the handler under /users. auth must reject
// anonymous callers.
func (h *UserHandler) RegisterRoutes(router gin.IRouter, auth gin.HandlerFunc) {
	users := router.Group("/users")
	{
		users.POST("/register", h.Register)
		users.POST("/login", h.Login)
		users.GET("/me", auth, h.Me)
		users.PUT("/me", auth, h.UpdateMe)
	}

	admin := users.Group("")
	admin.Use(auth, middleware.RequireCurrentRole(h.service, jwt.RoleAdmin))
	{
		admin.GET("", h.ListUsers)
		admin.GET("/:id", h.GetUser)
		admin.PUT("/:id", h.UpdateUser)
		admin.DELETE("/:id", h.DeleteUser)
	}
}

// Register creates an account and logs it in
func (h *UserHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.FromGin(c).Warn("Error binding JSON for register", "error", err.Error())
		badRequest(c, "Invalid request format", err.Error())
		return
	}

	user, token, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully",
		"user":    user,
		"token":   token,
	})
}

// Login authenticates a user
func (h *UserHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format", err.Error())
		return
	}

	user, token, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		logger.FromGin(c).Warn("Login failed", "username", req.Username)
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"user":    user,
		"token":   token,
	})
}

// Me returns the current authenticated user
func (h *UserHandler) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		_ = c.Error(apperrors.NewUnauthorizedError(apperrors.CodeAuthRequired, "Authentication required"))
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateMe changes the caller's own profile; role changes are ignored
func (h *UserHandler) UpdateMe(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		_ = c.Error(apperrors.NewUnauthorizedError(apperrors.CodeAuthRequired, "Authentication required"))
		return
	}

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format", err.Error())
		return
	}

	user, err := h.service.UpdateUser(c.Request.Context(), claims.UserID, &req, false)
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// ListUsers returns a page of users
func (h *UserHandler) ListUsers(c *gin.Context) {
	skip, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil || skip < 0 {
		badRequest(c, "skip must be a non-negative integer", nil)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 {
		badRequest(c, "limit must be a positive integer", nil)
		return
	}

	users, err := h.service.ListUsers(c.Request.Context(), skip, limit)
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// GetUser returns one user
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), id)
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateUser changes any user, including the role
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format", err.Error())
		return
	}

	user, err := h.service.UpdateUser(c.Request.Context(), id, &req, true)
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// DeleteUser removes a user
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(c.Request.Context(), id); err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func userID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid user ID", c.Param("id"))
		return 0, false
	}
	return uint(id), true
}
