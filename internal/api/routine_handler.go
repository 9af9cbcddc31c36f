package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fitlog/internal/api/middleware"
	"fitlog/internal/routines"
)

// RoutineHandler 暴露训练计划与训练日的 REST 接口。
type RoutineHandler struct {
	service *routines.Service
	logger  *slog.Logger
}

func NewRoutineHandler(service *routines.Service, logger *slog.Logger) *RoutineHandler {
	return &RoutineHandler{service: service, logger: logger}
}

type createRoutineRequest struct {
	RoutineName string                  `json:"routine_name" binding:"required"`
	Workouts    []routines.WorkoutInput `json:"workouts" binding:"dive"`
}

// Create 新建计划并种下今天的训练日。
func (h *RoutineHandler) Create(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req createRoutineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Create(c.Request.Context(), userID, req.RoutineName, req.Workouts)
	if err != nil {
		h.renderServiceError(c, err, "create routine")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// List 返回用户的计划列表，带最近一次训练内容。
func (h *RoutineHandler) List(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	items, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		h.renderServiceError(c, err, "list routines")
		return
	}

	c.JSON(http.StatusOK, items)
}

// Today 返回今天的训练日；还没记录时 workouts 为空数组。
func (h *RoutineHandler) Today(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	routineID, ok := h.routineID(c)
	if !ok {
		return
	}

	routine, day, err := h.service.Today(c.Request.Context(), userID, routineID)
	if err != nil {
		h.renderServiceError(c, err, "load today")
		return
	}

	// 今天还没记录时 routine_day 为 null，workouts 固定给空数组
	resp := gin.H{
		"routine":     routine,
		"routine_day": day,
		"workouts":    []routines.WorkoutView{},
	}
	if day != nil {
		resp["workouts"] = day.Workouts
	}
	c.JSON(http.StatusOK, resp)
}

// DayByDate 返回指定日期的训练日。
func (h *RoutineHandler) DayByDate(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	routineID, ok := h.routineID(c)
	if !ok {
		return
	}

	day, err := h.service.DayByDate(c.Request.Context(), userID, routineID, c.Param("date"))
	if err != nil {
		h.renderServiceError(c, err, "load day")
		return
	}

	c.JSON(http.StatusOK, day)
}

type saveDayRequest struct {
	Workouts []routines.WorkoutInput `json:"workouts" binding:"dive"`
}

// SaveToday 整日替换今天的训练内容。
func (h *RoutineHandler) SaveToday(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	routineID, ok := h.routineID(c)
	if !ok {
		return
	}

	var req saveDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	day, err := h.service.SaveToday(c.Request.Context(), userID, routineID, req.Workouts)
	if err != nil {
		h.renderServiceError(c, err, "save today")
		return
	}

	c.JSON(http.StatusOK, day)
}

// SaveDay 整日替换指定日期的训练内容，允许补录过去的日期。
func (h *RoutineHandler) SaveDay(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	routineID, ok := h.routineID(c)
	if !ok {
		return
	}

	var req saveDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	day, err := h.service.SaveDay(c.Request.Context(), userID, routineID, c.Param("date"), req.Workouts)
	if err != nil {
		h.renderServiceError(c, err, "save day")
		return
	}

	c.JSON(http.StatusOK, day)
}

type renameRoutineRequest struct {
	RoutineName string `json:"routine_name" binding:"required"`
}

// Rename 修改计划名。
func (h *RoutineHandler) Rename(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	routineID, ok := h.routineID(c)
	if !ok {
		return
	}

	var req renameRoutineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	routine, err := h.service.Rename(c.Request.Context(), userID, routineID, req.RoutineName)
	if err != nil {
		h.renderServiceError(c, err, "rename routine")
		return
	}

	c.JSON(http.StatusOK, routine)
}

// Delete 删除计划及其全部训练日；个人纪录保留，由后台任务清理回链。
func (h *RoutineHandler) Delete(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	routineID, ok := h.routineID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, routineID); err != nil {
		h.renderServiceError(c, err, "delete routine")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *RoutineHandler) routineID(c *gin.Context) (uint, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid routine id")
		return 0, false
	}
	return uint(id), true
}

func (h *RoutineHandler) renderServiceError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, routines.ErrRoutineNotFound):
		NotFound(c, routines.ErrRoutineNotFound.Error())
	case errors.Is(err, routines.ErrDayNotFound):
		NotFound(c, routines.ErrDayNotFound.Error())
	case errors.Is(err, routines.ErrDuplicateName):
		Conflict(c, routines.ErrDuplicateName.Error())
	case errors.Is(err, routines.ErrEmptyName):
		BadRequest(c, routines.ErrEmptyName.Error())
	case errors.Is(err, routines.ErrInvalidDate):
		BadRequest(c, routines.ErrInvalidDate.Error())
	default:
		h.loggerFromContext(c).Error(action+" failed", slog.Any("error", err))
		Internal(c, "internal error")
	}
}

func (h *RoutineHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
