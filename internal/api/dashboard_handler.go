package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"fitlog/internal/api/middleware"
	"fitlog/internal/dashboard"
)

// DashboardHandler 暴露日历活动与成就查询接口。
type DashboardHandler struct {
	service *dashboard.Service
	logger  *slog.Logger
}

func NewDashboardHandler(service *dashboard.Service, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{service: service, logger: logger}
}

// Activities 返回指定日期区间内每天的活动汇总。
func (h *DashboardHandler) Activities(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	startDate := c.Query("startDate")
	endDate := c.Query("endDate")

	rows, err := h.service.Activities(c.Request.Context(), userID, startDate, endDate)
	if err != nil {
		if dashboard.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		h.loggerFromContext(c).Error("load activities failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, rows)
}

// Achievements 返回最近的增量成就列表。
func (h *DashboardHandler) Achievements(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	items, err := h.service.Achievements(c.Request.Context(), userID)
	if err != nil {
		h.loggerFromContext(c).Error("load achievements failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, items)
}

func (h *DashboardHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
