package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"fitlog/internal/api/middleware"
	"fitlog/internal/database"
)

// UserHandler 提供当前用户资料的读取与更新。
type UserHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewUserHandler(db *gorm.DB, logger *slog.Logger) *UserHandler {
	return &UserHandler{db: db, logger: logger}
}

type userProfileResponse struct {
	ID    uint    `json:"id"`
	Email string  `json:"email"`
	Name  string  `json:"name"`
	Bio   *string `json:"bio"`
}

// Me 返回当前登录用户的资料。
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var user database.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		h.loggerFromContext(c).Error("load user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, userProfileResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Bio:   user.Bio,
	})
}

type updateProfileRequest struct {
	Name *string `json:"name"`
	Bio  *string `json:"bio"`
}

// UpdateMe 更新用户名与简介。bio 传 null 表示清空。
func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	var user database.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		logger.Error("load user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			BadRequest(c, "name must not be empty")
			return
		}
		if len(name) > 100 {
			BadRequest(c, "name too long")
			return
		}
		updates["name"] = name
	}
	if req.Bio != nil {
		bio := strings.TrimSpace(*req.Bio)
		if bio == "" {
			updates["bio"] = nil
		} else {
			updates["bio"] = bio
		}
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			logger.Error("update user failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
	}

	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		logger.Error("reload user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, userProfileResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Bio:   user.Bio,
	})
}

func (h *UserHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
